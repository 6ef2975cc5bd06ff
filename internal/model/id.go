package model

import "github.com/oklog/ulid/v2"

// NewID returns a fresh ULID string. Transactions, rounds, and ruleset
// versions all share this id scheme, so audit rows sort lexicographically in
// creation order.
func NewID() string {
	return ulid.Make().String()
}

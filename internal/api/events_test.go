package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agonlabs/agon/internal/contest"
)

func TestEventsStream(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/events")
	if err != nil {
		t.Fatalf("GET /v1/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	// Collect event names off the stream while the contest plays out.
	kinds := make(chan string, 64)
	go func() {
		defer close(kinds)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				kinds <- name
				if name == contest.EventContestEnded {
					return
				}
			}
		}
	}()

	go func() {
		ctx := context.Background()
		if err := srv.contest.Start(ctx); err != nil {
			t.Errorf("Start: %v", err)
			return
		}
		if _, err := srv.contest.RunAll(ctx); err != nil {
			t.Errorf("RunAll: %v", err)
		}
	}()

	var got []string
	deadline := time.After(15 * time.Second)
	for {
		select {
		case kind, ok := <-kinds:
			if !ok {
				for _, want := range []string{
					contest.EventContestStarted,
					contest.EventRoundStarted,
					contest.EventSubmissionReceived,
					contest.EventRoundCompleted,
					contest.EventContestEnded,
				} {
					found := false
					for _, k := range got {
						if k == want {
							found = true
							break
						}
					}
					if !found {
						t.Errorf("stream missing event %q (got %v)", want, got)
					}
				}
				return
			}
			got = append(got, kind)
		case <-deadline:
			resp.Body.Close()
			t.Fatalf("timed out waiting for events; got %v", got)
		}
	}
}

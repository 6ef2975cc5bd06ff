package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agonlabs/agon/internal/contest"
	"github.com/agonlabs/agon/internal/model"
	"github.com/agonlabs/agon/internal/ruleset"
)

func getJSON(t *testing.T, url string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var st contest.Status
	getJSON(t, ts.URL+"/v1/status", &st)
	if st.Phase != model.PhaseIdle || len(st.Agents) != 2 {
		t.Errorf("idle status = %+v", st)
	}

	playContest(t, srv)

	getJSON(t, ts.URL+"/v1/status", &st)
	if st.Phase != model.PhaseEnded || st.RoundsPlayed != 1 {
		t.Errorf("ended status = %+v", st)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv := newTestServer(t)
	playContest(t, srv)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body leaderboardResponse
	getJSON(t, ts.URL+"/v1/leaderboard", &body)

	if len(body.Standings) != 2 {
		t.Fatalf("got %d standings, want 2", len(body.Standings))
	}
	if body.Standings[0].Name != "alice" || body.Standings[0].Balance != 1000 {
		t.Errorf("first standing = %+v", body.Standings[0])
	}
	if body.TotalMoney != 500 {
		t.Errorf("total money = %d, want 500", body.TotalMoney)
	}
}

func TestLedgerHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	playContest(t, srv)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Two registration markers plus two rewards.
	var all historyResponse
	getJSON(t, ts.URL+"/v1/ledger/history", &all)
	if len(all.Transactions) != 4 {
		t.Fatalf("got %d transactions, want 4", len(all.Transactions))
	}

	var filtered historyResponse
	getJSON(t, ts.URL+"/v1/ledger/history?actor=bob", &filtered)
	if len(filtered.Transactions) != 2 || filtered.Transactions[1].Actor != "bob" {
		t.Fatalf("filtered history = %+v", filtered.Transactions)
	}
	if filtered.Transactions[1].Delta != -500 || filtered.Transactions[1].Balance != -500 {
		t.Errorf("bob reward entry = %+v", filtered.Transactions[1])
	}
}

func TestConstitutionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body constitutionResponse
	getJSON(t, ts.URL+"/v1/constitution", &body)
	if body.Text != ruleset.DefaultText {
		t.Errorf("constitution text = %q", body.Text)
	}
	if body.Author != "arbiter" {
		t.Errorf("author = %q, want arbiter", body.Author)
	}

	var hist constitutionHistoryResponse
	getJSON(t, ts.URL+"/v1/constitution/history", &hist)
	if len(hist.Versions) != 0 {
		t.Errorf("fresh constitution has %d versions, want 0", len(hist.Versions))
	}
}

func TestRoundsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	playContest(t, srv)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var list listRoundsResponse
	getJSON(t, ts.URL+"/v1/rounds", &list)
	if list.Total != 1 || len(list.Rounds) != 1 {
		t.Fatalf("rounds list = %+v", list)
	}
	if list.Rounds[0].ProblemID != "001" || list.Rounds[0].Agents != 2 {
		t.Errorf("round summary = %+v", list.Rounds[0])
	}

	var round model.Round
	getJSON(t, ts.URL+"/v1/rounds/"+list.Rounds[0].ID, &round)
	if len(round.Results) != 2 {
		t.Fatalf("round detail has %d results, want 2", len(round.Results))
	}
	if round.ResultFor("alice").Reward != 1000 {
		t.Errorf("alice reward = %d", round.ResultFor("alice").Reward)
	}

	resp := getJSON(t, ts.URL+"/v1/rounds/does-not-exist", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown round status = %d, want 404", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	playContest(t, srv)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var ex contest.Export
	getJSON(t, ts.URL+"/v1/export", &ex)
	if ex.Phase != model.PhaseEnded {
		t.Errorf("export phase = %q", ex.Phase)
	}
	if len(ex.Transactions) != 4 || len(ex.Rounds) != 1 {
		t.Errorf("export has %d transactions, %d rounds", len(ex.Transactions), len(ex.Rounds))
	}
	if ex.TotalMoney != 500 {
		t.Errorf("export total money = %d, want 500", ex.TotalMoney)
	}
}

package models

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to EventStatus
		ok       bool
	}{
		{"", EventReceived, true},
		{"", EventFailed, true},
		{"", EventProcessing, false},
		{EventReceived, EventProcessing, true},
		{EventReceived, EventProcessed, false},
		{EventReceived, EventFailed, false},
		{EventProcessing, EventProcessed, true},
		{EventProcessing, EventFailed, true},
		{EventProcessing, EventReceived, false},
		{EventProcessed, EventFailed, false},
		{EventFailed, EventReceived, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%q,%q) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTerminal(t *testing.T) {
	if EventReceived.Terminal() || EventProcessing.Terminal() {
		t.Fatal("non-terminal status reported terminal")
	}
	if !EventProcessed.Terminal() || !EventFailed.Terminal() {
		t.Fatal("terminal status reported non-terminal")
	}
	if EventStatus("DONE").Valid() {
		t.Fatal("unknown status reported valid")
	}
}

func TestIneligibility(t *testing.T) {
	ok := User{Status: UserActive, Verified: true, AutoSave: true}
	if r := ok.Ineligibility(nil); r != "" {
		t.Fatalf("eligible user rejected: %s", r)
	}

	cases := map[string]struct {
		u    User
		link *PartnerUser
	}{
		"pending":        {User{Status: UserPending, Verified: true, AutoSave: true}, nil},
		"unverified":     {User{Status: UserActive, AutoSave: true}, nil},
		"no opt-in":      {User{Status: UserActive, Verified: true}, nil},
		"suspended link": {ok, &PartnerUser{Status: PartnerSuspended}},
	}
	for name, tc := range cases {
		if r := tc.u.Ineligibility(tc.link); r == "" {
			t.Errorf("%s: expected rejection", name)
		}
	}
}

func TestJobKeys(t *testing.T) {
	e := Event{PartnerName: "betco", EventID: "E1"}
	if e.JobKey() != "betco-E1" {
		t.Fatalf("job key = %s", e.JobKey())
	}
	if WebhookJobKey("betco", "E1") != "webhook-betco-E1" {
		t.Fatalf("webhook key = %s", WebhookJobKey("betco", "E1"))
	}
	if SumEntries([]LedgerEntry{{Amount: -200}, {Amount: 200}}) != 0 {
		t.Fatal("balanced pair should sum to zero")
	}
}

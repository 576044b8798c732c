package ledger

import (
	"testing"
	"time"
)

var fixedTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// TestEntry_Validate_Valid tests that a complete entry passes validation.
func TestEntry_Validate_Valid(t *testing.T) {
	e := Entry{Timestamp: fixedTime, Email: "j@x.com", Status: StatusSent}
	if err := e.Validate(); err != nil {
		t.Errorf("expected valid entry, got: %v", err)
	}
}

// TestEntry_Validate_EmptyEmail tests that a keyless entry is rejected.
func TestEntry_Validate_EmptyEmail(t *testing.T) {
	e := Entry{Timestamp: fixedTime, Status: StatusSent}
	if err := e.Validate(); err != ErrEmptyEmail {
		t.Errorf("expected ErrEmptyEmail, got: %v", err)
	}
}

// TestEntry_Validate_BadStatus tests that unknown statuses are rejected.
func TestEntry_Validate_BadStatus(t *testing.T) {
	e := Entry{Timestamp: fixedTime, Email: "j@x.com", Status: "queued"}
	if err := e.Validate(); err != ErrInvalidStatus {
		t.Errorf("expected ErrInvalidStatus, got: %v", err)
	}
}

// TestReplay_MostRecentWins tests that a later entry supersedes an earlier one.
func TestReplay_MostRecentWins(t *testing.T) {
	v := Replay([]Entry{
		{Timestamp: fixedTime, Email: "j@x.com", Status: StatusFailed},
		{Timestamp: fixedTime.Add(time.Minute), Email: "j@x.com", Status: StatusSent},
	})
	if !v.WasSent("j@x.com") {
		t.Error("expected most-recent sent status to win")
	}
}

// TestReplay_SentThenFailed tests that a later failure clears the sent gate.
func TestReplay_SentThenFailed(t *testing.T) {
	v := Replay([]Entry{
		{Timestamp: fixedTime, Email: "j@x.com", Status: StatusSent},
		{Timestamp: fixedTime.Add(time.Minute), Email: "j@x.com", Status: StatusFailed},
	})
	if v.WasSent("j@x.com") {
		t.Error("expected later failed entry to supersede sent")
	}
}

// TestView_WasSent_CaseInsensitive tests that gating keys are normalized.
func TestView_WasSent_CaseInsensitive(t *testing.T) {
	v := Replay([]Entry{{Timestamp: fixedTime, Email: "J@X.Com", Status: StatusSent}})
	if !v.WasSent("  j@x.com ") {
		t.Error("expected case-insensitive key match")
	}
}

// TestView_WasSent_UnknownKey tests that unseen keys are not gated.
func TestView_WasSent_UnknownKey(t *testing.T) {
	v := Replay(nil)
	if v.WasSent("nobody@x.com") {
		t.Error("expected unknown key to report not sent")
	}
}

// TestView_Observe tests that a live view folds new entries in.
func TestView_Observe(t *testing.T) {
	v := Replay(nil)
	v.Observe(Entry{Timestamp: fixedTime, Email: "j@x.com", Status: StatusSent})
	if !v.WasSent("j@x.com") {
		t.Error("expected observed entry to update the view")
	}
}

// TestView_Counts tests sent/failed aggregation over the folded view.
func TestView_Counts(t *testing.T) {
	v := Replay([]Entry{
		{Timestamp: fixedTime, Email: "a@x.com", Status: StatusSent},
		{Timestamp: fixedTime, Email: "b@x.com", Status: StatusFailed},
		{Timestamp: fixedTime, Email: "c@x.com", Status: StatusFailed},
		{Timestamp: fixedTime.Add(time.Minute), Email: "b@x.com", Status: StatusSent},
	})
	sent, failed := v.Counts()
	if sent != 2 || failed != 1 {
		t.Errorf("Counts = (%d, %d), want (2, 1)", sent, failed)
	}
}

// TestView_FailedKeys tests the sorted failed-key listing.
func TestView_FailedKeys(t *testing.T) {
	v := Replay([]Entry{
		{Timestamp: fixedTime, Email: "z@x.com", Status: StatusFailed},
		{Timestamp: fixedTime, Email: "a@x.com", Status: StatusFailed},
	})
	keys := v.FailedKeys()
	if len(keys) != 2 || keys[0] != "a@x.com" || keys[1] != "z@x.com" {
		t.Errorf("FailedKeys = %v", keys)
	}
}

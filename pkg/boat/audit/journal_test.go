package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/boat/pkg/boat/channels"
	"github.com/jholhewres/boat/pkg/boat/dispatch"
)

func openTestJournal(t *testing.T, hash bool) (*Journal, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "boat.db")
	j, err := Open(Options{
		Path:        path,
		HashSenders: hash,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j, path
}

func record(outcome dispatch.Outcome, started time.Time) dispatch.Record {
	return dispatch.Record{
		RunID:    "run-" + string(outcome),
		Channel:  "console",
		ChatID:   "party",
		Kind:     channels.KindGroup,
		Author:   channels.Identity{ID: "u1", Name: "alice"},
		Command:  "!ping",
		Outcome:  outcome,
		Started:  started,
		Duration: 15 * time.Millisecond,
	}
}

func TestJournal_ObserveAndRecent(t *testing.T) {
	t.Parallel()

	j, _ := openTestJournal(t, false)
	ctx := context.Background()
	now := time.Now()

	j.Observe(record(dispatch.OutcomeOK, now.Add(-time.Minute)))
	failed := record(dispatch.OutcomeFailed, now)
	failed.Err = errors.New("boom")
	j.Observe(failed)

	n, err := j.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent() returned %d rows, want 2", len(entries))
	}
	first := entries[0]
	if first.Outcome != dispatch.OutcomeFailed || first.Error != "boom" {
		t.Errorf("newest entry = %+v", first)
	}
	if first.SenderName != "alice" || first.SenderID != "u1" || first.Kind != "group" {
		t.Errorf("sender fields = %q %q %q", first.SenderName, first.SenderID, first.Kind)
	}
	if first.Duration != 15*time.Millisecond {
		t.Errorf("Duration = %s, want 15ms", first.Duration)
	}

	limited, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("Recent(1) returned %d rows", len(limited))
	}
}

func TestJournal_HashSenders(t *testing.T) {
	t.Parallel()

	j, path := openTestJournal(t, true)
	ctx := context.Background()
	j.Observe(record(dispatch.OutcomeDenied, time.Now()))

	entries, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	hashed := entries[0].SenderName
	if hashed == "alice" || len(hashed) != 32 {
		t.Errorf("SenderName = %q, want a 32-char digest", hashed)
	}
	j.Close()

	// Reopening keeps the key, so digests stay stable.
	again, err := Open(Options{Path: path, HashSenders: true, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if got := again.digest("alice"); got != hashed {
		t.Errorf("digest after reopen = %q, want %q", got, hashed)
	}
}

func TestJournal_Prune(t *testing.T) {
	t.Parallel()

	j, _ := openTestJournal(t, false)
	ctx := context.Background()
	now := time.Now()

	j.Observe(record(dispatch.OutcomeOK, now.Add(-48*time.Hour)))
	j.Observe(record(dispatch.OutcomeTimeout, now))

	removed, err := j.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("Prune() removed %d rows, want 1", removed)
	}
	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Outcome != dispatch.OutcomeTimeout {
		t.Errorf("remaining entries = %+v", entries)
	}
}

package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-fulfillment/core"
)

type pruneTokenStore struct {
	cutoff time.Time
	pruned int64
	err    error
}

func (s *pruneTokenStore) Upsert(context.Context, core.ResetToken) error { return nil }

func (s *pruneTokenStore) Get(context.Context, string, core.TokenType) (core.ResetToken, error) {
	return core.ResetToken{}, core.ErrPendingResetNotFound
}

func (s *pruneTokenStore) DeleteForEmail(context.Context, string) error { return nil }

func (s *pruneTokenStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	if s.err != nil {
		return 0, s.err
	}
	return s.pruned, nil
}

type recordingEnqueuer struct {
	messages []*job.ExecutionMessage
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if e.err != nil {
		return queue.EnqueueReceipt{}, e.err
	}
	e.messages = append(e.messages, msg)
	return queue.EnqueueReceipt{}, nil
}

func TestPrunerRunUsesRetentionCutoff(t *testing.T) {
	store := &pruneTokenStore{pruned: 3}
	pruner, err := NewPruner(store, 10*24*time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPruner() error = %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pruner.now = func() time.Time { return now }

	pruned, err := pruner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if pruned != 3 {
		t.Fatalf("Run() pruned = %d, want 3", pruned)
	}
	if want := now.Add(-10 * 24 * time.Hour); !store.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", store.cutoff, want)
	}
}

func TestPrunerRunPropagatesStoreFailure(t *testing.T) {
	store := &pruneTokenStore{err: errors.New("disk full")}
	pruner, err := NewPruner(store, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPruner() error = %v", err)
	}
	if _, err := pruner.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error")
	}
}

func TestPrunerScheduleCollapsesPerDay(t *testing.T) {
	pruner, err := NewPruner(&pruneTokenStore{}, 30*24*time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPruner() error = %v", err)
	}
	pruner.now = func() time.Time {
		return time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	}
	enqueuer := &recordingEnqueuer{}

	if err := pruner.Schedule(context.Background(), enqueuer); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != PruneJobID {
		t.Fatalf("JobID = %q, want %q", msg.JobID, PruneJobID)
	}
	if want := PruneJobID + ":2026-03-01"; msg.IdempotencyKey != want {
		t.Fatalf("IdempotencyKey = %q, want %q", msg.IdempotencyKey, want)
	}
	if msg.Parameters["retention"] != "720h0m0s" {
		t.Fatalf("retention = %v, want 720h0m0s", msg.Parameters["retention"])
	}
}

func TestPrunerScheduleRequiresEnqueuer(t *testing.T) {
	pruner, err := NewPruner(&pruneTokenStore{}, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPruner() error = %v", err)
	}
	if err := pruner.Schedule(context.Background(), nil); err == nil {
		t.Fatal("Schedule() expected error for nil enqueuer")
	}
}

var _ core.ResetTokenStore = (*pruneTokenStore)(nil)
var _ queue.Enqueuer = (*recordingEnqueuer)(nil)

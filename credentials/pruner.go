package credentials

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-fulfillment/core"
)

// PruneJobID identifies the retention sweep on the job queue.
const PruneJobID = "fulfillment.tokens.prune"

// Pruner deletes pending credentials older than the retention window. Expired
// reset links already fail validation via the payload TTL; pruning keeps the
// table from accumulating rows for links nobody followed.
type Pruner struct {
	tokens    core.ResetTokenStore
	retention time.Duration
	logger    core.Logger
	now       func() time.Time
}

func NewPruner(tokens core.ResetTokenStore, retention time.Duration, logger core.Logger) (*Pruner, error) {
	if tokens == nil {
		return nil, fmt.Errorf("credentials: reset token store is required")
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	_, logger = glog.Resolve("credentials.pruner", nil, logger)
	return &Pruner{
		tokens:    tokens,
		retention: retention,
		logger:    glog.Ensure(logger),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (p *Pruner) Run(ctx context.Context) (int64, error) {
	if p == nil || p.tokens == nil {
		return 0, fmt.Errorf("credentials: pruner is not configured")
	}
	cutoff := p.now().Add(-p.retention)
	pruned, err := p.tokens.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("token prune failed", "error", err)
		return 0, err
	}
	if pruned > 0 {
		p.logger.Info("pruned stale credentials", "count", pruned, "cutoff", cutoff.Format(time.RFC3339))
	}
	return pruned, nil
}

// Schedule enqueues the sweep on the shared job queue. The idempotency key is
// day-granular so repeated scheduling within a day collapses to one run.
func (p *Pruner) Schedule(ctx context.Context, enqueuer queue.Enqueuer) error {
	if p == nil {
		return fmt.Errorf("credentials: pruner is not configured")
	}
	if enqueuer == nil {
		return fmt.Errorf("credentials: enqueuer is required")
	}
	_, err := enqueuer.Enqueue(ctx, &job.ExecutionMessage{
		JobID:          PruneJobID,
		IdempotencyKey: PruneJobID + ":" + p.now().Format("2006-01-02"),
		Parameters: map[string]any{
			"retention": p.retention.String(),
		},
	})
	return err
}

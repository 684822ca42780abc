package mail

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/goliatone/go-fulfillment/core"
)

// SendJobID identifies rendered outbound mail on the job queue.
const SendJobID = "fulfillment.mail.send"

// QueueMailer renders notifications and hands them to the shared job queue.
// Delivery is fire and forget from the caller's perspective; retry policy
// lives with the queue worker.
type QueueMailer struct {
	enqueuer queue.Enqueuer
	renderer *Renderer
	from     string
	logger   core.Logger
}

func NewQueueMailer(enqueuer queue.Enqueuer, renderer *Renderer, from string, logger core.Logger) (*QueueMailer, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("mail: enqueuer is required")
	}
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("mail: from address is required")
	}
	_, logger = glog.Resolve("mail", nil, logger)
	return &QueueMailer{
		enqueuer: enqueuer,
		renderer: renderer,
		from:     strings.TrimSpace(from),
		logger:   glog.Ensure(logger),
	}, nil
}

func (m *QueueMailer) EnqueuePurchaseNotification(ctx context.Context, msg core.PurchaseNotification) error {
	if m == nil || m.enqueuer == nil {
		return fmt.Errorf("mail: mailer is not configured")
	}
	email := core.NormalizeEmail(msg.Email)
	if email == "" {
		return fmt.Errorf("mail: recipient email is required")
	}

	subject, body, err := m.renderer.RenderPurchase(msg)
	if err != nil {
		return err
	}

	// The auth link travels only inside the queued body, never in logs.
	_, err = m.enqueuer.Enqueue(ctx, &job.ExecutionMessage{
		JobID:          SendJobID,
		IdempotencyKey: SendJobID + ":" + email + ":" + subject,
		Parameters: map[string]any{
			"from":    m.from,
			"to":      email,
			"subject": subject,
			"body":    body,
			"locale":  m.renderer.Locale(msg.Locale),
		},
	})
	if err != nil {
		m.logger.Error("enqueue purchase notification failed", "email", email, "error", err)
		return err
	}
	m.logger.Info("purchase notification enqueued", "email", email, "books", len(msg.Books))
	return nil
}

var _ core.Mailer = (*QueueMailer)(nil)

package webhooks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goliatone/go-fulfillment/core"
)

// Handler consumes one verified delivery and classifies the outcome.
type Handler interface {
	HandleDelivery(ctx context.Context, req core.InboundRequest) (core.DeliveryReceipt, error)
}

// Processor is the webhook entry point: verify authenticity, then hand the
// raw body to the orchestrator. Deliveries run on independent concurrent
// handlers with no shared in-process state; idempotency lives in the order
// ledger's unique constraint, not here.
type Processor struct {
	Verifier Verifier
	Handler  Handler
}

func NewProcessor(verifier Verifier, handler Handler) *Processor {
	return &Processor{
		Verifier: verifier,
		Handler:  handler,
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.DeliveryReceipt, error) {
	if p == nil || p.Handler == nil {
		return core.DeliveryReceipt{
			Outcome:    core.OutcomeError,
			StatusCode: http.StatusInternalServerError,
		}, fmt.Errorf("webhooks: processor requires a handler")
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return core.DeliveryReceipt{
				Outcome:    core.OutcomeRejected,
				StatusCode: http.StatusUnauthorized,
			}, err
		}
	}

	receipt, err := p.Handler.HandleDelivery(ctx, req)
	if receipt.StatusCode == 0 {
		receipt.StatusCode = statusForOutcome(receipt.Outcome)
	}
	return receipt, err
}

func statusForOutcome(outcome core.DeliveryOutcome) int {
	switch outcome {
	case core.OutcomeIgnored, core.OutcomeOK:
		return http.StatusOK
	case core.OutcomeRejected:
		return http.StatusBadRequest
	case core.OutcomeRetry:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

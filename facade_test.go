package fulfillment

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"

	fulfillmentcommand "github.com/goliatone/go-fulfillment/command"
	fulfillmentquery "github.com/goliatone/go-fulfillment/query"

	"github.com/goliatone/go-fulfillment/core"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}
	stateReader := &stubCatalogStateReader{}

	facade, err := NewFacade(svc, WithCatalogStateReader(stateReader))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.ProcessDelivery == nil || commands.DeleteOrder == nil || commands.IssueResetToken == nil || commands.CompletePasswordChange == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetOrder == nil || queries.ListOrders == nil || queries.ResolvePendingReset == nil || queries.CatalogState == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	stateReader := &stubCatalogStateReader{}

	facade, err := NewFacade(svc, WithCatalogStateReader(stateReader))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.DeliveryReceipt]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().ProcessDelivery.Execute(ctx, fulfillmentcommand.ProcessDeliveryMessage{
		Request: core.InboundRequest{Body: []byte(`{"event":"PAYMENT_CHANGED"}`)},
	}); err != nil {
		t.Fatalf("execute process delivery: %v", err)
	}
	receipt, ok := collector.Load()
	if !ok || receipt.Outcome != core.OutcomeOK {
		t.Fatalf("unexpected delivery result: %#v ok=%v", receipt, ok)
	}

	order, err := facade.Queries().GetOrder.Query(context.Background(), fulfillmentquery.GetOrderMessage{OrderID: "ord_1"})
	if err != nil {
		t.Fatalf("query get order: %v", err)
	}
	if order.ID != "ord_1" || order.Email != "reader@example.com" {
		t.Fatalf("unexpected order result: %#v", order)
	}

	state, err := facade.Queries().CatalogState.Query(context.Background(), fulfillmentquery.CatalogStateMessage{
		User: &core.UserInfo{ID: 7, Role: "user"},
	})
	if err != nil {
		t.Fatalf("query catalog state: %v", err)
	}
	if !state.IsAuthenticated || !state.Purchased(11) {
		t.Fatalf("unexpected catalog state: %#v", state)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct{}

func (s *stubFacadeService) HandleDelivery(context.Context, core.InboundRequest) (core.DeliveryReceipt, error) {
	return core.DeliveryReceipt{Outcome: core.OutcomeOK, StatusCode: 200, OrdersCreated: 1}, nil
}

func (s *stubFacadeService) DeleteOrder(context.Context, string, core.UserInfo) error {
	return nil
}

func (s *stubFacadeService) IssueResetToken(context.Context, string) (string, error) {
	return "sealed-token", nil
}

func (s *stubFacadeService) CompletePasswordChange(context.Context, string, string) error {
	return nil
}

func (s *stubFacadeService) GetOrder(_ context.Context, id string) (core.Order, error) {
	return core.Order{ID: id, Email: "reader@example.com", ProductHandle: "deep-sea-atlas"}, nil
}

func (s *stubFacadeService) ListOrdersForUser(context.Context, core.OrderFilter) ([]core.Order, error) {
	return []core.Order{{ID: "ord_1"}}, nil
}

func (s *stubFacadeService) ResolvePendingReset(_ context.Context, email string, _ string) (core.AuthLinkPayload, error) {
	return core.AuthLinkPayload{Email: email}, nil
}

type stubCatalogStateReader struct{}

func (s *stubCatalogStateReader) StateFor(context.Context, *core.UserInfo) core.CatalogState {
	return core.CatalogState{
		IsAuthenticated:  true,
		PurchasedBookIDs: map[int64]struct{}{11: {}},
	}
}

var _ CommandQueryService = (*stubFacadeService)(nil)
var _ fulfillmentquery.CatalogStateReader = (*stubCatalogStateReader)(nil)

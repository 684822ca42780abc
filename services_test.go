package fulfillment

import (
	"context"
	"testing"

	"github.com/goliatone/go-fulfillment/core"
)

type stubOrderLedger struct {
	orders map[string]Order
}

func (s *stubOrderLedger) Create(_ context.Context, email string, productHandle string) (Order, error) {
	order := Order{ID: "ord_1", Email: email, ProductHandle: productHandle}
	if s.orders == nil {
		s.orders = map[string]Order{}
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderLedger) Get(_ context.Context, id string) (Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return Order{}, core.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubOrderLedger) GetByEmailHandle(context.Context, string, string) (Order, error) {
	return Order{}, core.ErrOrderNotFound
}

func (s *stubOrderLedger) UpdateLinks(context.Context, string, core.OrderLinks) error { return nil }

func (s *stubOrderLedger) ListForUser(context.Context, OrderFilter) ([]Order, error) {
	return nil, nil
}

func (s *stubOrderLedger) UpdateCategoryForHandle(context.Context, string, string) (int64, error) {
	return 0, nil
}

func (s *stubOrderLedger) Delete(context.Context, string) error { return nil }

type stubResolver struct {
	lookups int
}

func (r *stubResolver) LookupUsersByEmails(_ context.Context, emails []string) (map[string]UserInfo, error) {
	r.lookups++
	found := map[string]UserInfo{}
	for _, email := range emails {
		found[email] = UserInfo{ID: 9, Email: email}
	}
	return found, nil
}

func (r *stubResolver) CreateUserForEmail(_ context.Context, email string, name string) (UserInfo, string, error) {
	return UserInfo{ID: 9, Email: email, Name: name}, "temp-pass-123", nil
}

func (r *stubResolver) LookupBooksByHandles(_ context.Context, handles []string) (map[string]BookRef, error) {
	found := map[string]BookRef{}
	for _, handle := range handles {
		found[handle] = BookRef{ID: 11, Handle: handle, Title: "Sea Stories"}
	}
	return found, nil
}

type stubIssuer struct{}

func (stubIssuer) IssueInitialToken(context.Context, string, string, []int64) (string, error) {
	return "sealed-token", nil
}

func (stubIssuer) IssueResetToken(context.Context, string, []int64) (string, error) {
	return "sealed-token", nil
}

func (stubIssuer) DecodePayload(context.Context, string) (AuthLinkPayload, error) {
	return AuthLinkPayload{}, nil
}

func (stubIssuer) ResolvePendingReset(context.Context, string, string) (AuthLinkPayload, error) {
	return AuthLinkPayload{}, nil
}

func (stubIssuer) CompletePasswordChange(context.Context, string, string) error { return nil }

func TestSetup_KeepsInjectedResolverAndIssuer(t *testing.T) {
	resolver := &stubResolver{}

	service, err := Setup(DefaultConfig(),
		WithOrderStore(&stubOrderLedger{}),
		WithIdentityResolver(resolver),
		WithCredentialIssuer(stubIssuer{}),
	)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	deps := service.Dependencies()
	if deps.IdentityResolver != IdentityResolver(resolver) {
		t.Fatal("setup must keep the injected resolver")
	}

	receipt, err := service.HandleDelivery(context.Background(), InboundRequest{
		Body: []byte(`{"event":"PAYMENT_CHANGED","email":"reader@example.com","payment_status":"paid","cart":[{"product_handle":"sea-stories"}]}`),
	})
	if err != nil {
		t.Fatalf("handle delivery: %v", err)
	}
	if receipt.Outcome != core.OutcomeOK || receipt.OrdersCreated != 1 {
		t.Fatalf("unexpected receipt: %#v", receipt)
	}
	if resolver.lookups == 0 {
		t.Fatal("injected resolver was never consulted")
	}
}

func TestSetup_WithoutStoresLeavesResolversUnset(t *testing.T) {
	service, err := Setup(DefaultConfig(), WithOrderStore(&stubOrderLedger{}))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	deps := service.Dependencies()
	if deps.IdentityResolver != nil || deps.CredentialIssuer != nil {
		t.Fatal("resolver wiring needs account, catalog and token stores")
	}
}

var (
	_ OrderStore       = (*stubOrderLedger)(nil)
	_ IdentityResolver = (*stubResolver)(nil)
	_ CredentialIssuer = stubIssuer{}
)

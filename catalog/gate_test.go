package catalog

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-fulfillment/core"
)

type fakeOrders struct {
	orders []core.Order
	err    error
	calls  int
}

func (f *fakeOrders) Create(context.Context, string, string) (core.Order, error) {
	return core.Order{}, nil
}

func (f *fakeOrders) Get(context.Context, string) (core.Order, error) {
	return core.Order{}, core.ErrOrderNotFound
}

func (f *fakeOrders) GetByEmailHandle(context.Context, string, string) (core.Order, error) {
	return core.Order{}, core.ErrOrderNotFound
}

func (f *fakeOrders) UpdateLinks(context.Context, string, core.OrderLinks) error { return nil }

func (f *fakeOrders) ListForUser(context.Context, core.OrderFilter) ([]core.Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.orders, nil
}

func (f *fakeOrders) UpdateCategoryForHandle(context.Context, string, string) (int64, error) {
	return 0, nil
}

func (f *fakeOrders) Delete(context.Context, string) error { return nil }

type fakeBooks struct {
	free    []int64
	freeErr error
}

func (f *fakeBooks) GetByHandles(context.Context, []string) (map[string]core.BookRef, error) {
	return map[string]core.BookRef{}, nil
}

func (f *fakeBooks) GetByID(context.Context, int64) (core.BookRef, error) {
	return core.BookRef{}, core.ErrBookNotFound
}

func (f *fakeBooks) FreeBookIDs(context.Context) ([]int64, error) {
	return f.free, f.freeErr
}

func int64Ptr(v int64) *int64 { return &v }

func newGate(t *testing.T, orders core.OrderStore, books core.CatalogStore) *Gate {
	t.Helper()
	gate, err := NewGate(orders, books)
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	return gate
}

func renderQuery(t *testing.T, predicate Predicate) string {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqldb.Close() })
	db := bun.NewDB(sqldb, sqlitedialect.New())
	query := db.NewSelect().TableExpr("books").Column("id")
	return predicate(query).String()
}

func TestStateForComputesPurchasedSet(t *testing.T) {
	orders := &fakeOrders{orders: []core.Order{
		{ID: "a", LinkedBookID: int64Ptr(11)},
		{ID: "b", LinkedBookID: int64Ptr(42)},
		{ID: "c", LinkedBookID: nil},
	}}
	gate := newGate(t, orders, &fakeBooks{})

	user := &core.UserInfo{ID: 3, Email: "reader@example.com", Role: "user"}
	state := gate.StateFor(context.Background(), user)

	if !state.IsAuthenticated || state.IsAdmin {
		t.Fatalf("unexpected flags: %+v", state)
	}
	if len(state.PurchasedBookIDs) != 2 || !state.Purchased(11) || !state.Purchased(42) {
		t.Fatalf("unexpected purchased set: %v", state.PurchasedBookIDs)
	}
	if state.Purchased(99) {
		t.Fatal("unlinked book reported as purchased")
	}
}

func TestStateForAdminSkipsLookup(t *testing.T) {
	orders := &fakeOrders{}
	gate := newGate(t, orders, &fakeBooks{})

	state := gate.StateFor(context.Background(), &core.UserInfo{ID: 1, Role: core.RoleAdmin})
	if !state.IsAdmin {
		t.Fatal("expected admin state")
	}
	if orders.calls != 0 {
		t.Fatalf("admin state must not list orders, got %d calls", orders.calls)
	}
}

func TestStateForFailsClosed(t *testing.T) {
	orders := &fakeOrders{err: core.ErrBackendUnavailable}
	gate := newGate(t, orders, &fakeBooks{})

	state := gate.StateFor(context.Background(), &core.UserInfo{ID: 2, Role: "user"})
	if len(state.PurchasedBookIDs) != 0 {
		t.Fatalf("expected empty purchased set on lookup failure, got %v", state.PurchasedBookIDs)
	}
	if !state.IsAuthenticated {
		t.Fatal("failure must not drop authentication")
	}
}

func TestPredicateEmptyPurchasedMatchesNothing(t *testing.T) {
	gate := newGate(t, &fakeOrders{}, &fakeBooks{})
	state := core.CatalogState{IsAuthenticated: true, PurchasedBookIDs: map[int64]struct{}{}}

	rendered := renderQuery(t, gate.PredicateFor(context.Background(), state, core.ScopePurchased))
	if !strings.Contains(rendered, "1 = 0") {
		t.Fatalf("expected impossible filter, got %q", rendered)
	}
}

func TestPredicatePurchasedFiltersByIDs(t *testing.T) {
	gate := newGate(t, &fakeOrders{}, &fakeBooks{})
	state := core.CatalogState{
		IsAuthenticated:  true,
		PurchasedBookIDs: map[int64]struct{}{11: {}},
	}

	rendered := renderQuery(t, gate.PredicateFor(context.Background(), state, core.ScopePurchased))
	if !strings.Contains(rendered, "IN (11)") {
		t.Fatalf("expected id filter, got %q", rendered)
	}
}

func TestPredicateAdminSeesEverything(t *testing.T) {
	gate := newGate(t, &fakeOrders{}, &fakeBooks{})
	state := core.CatalogState{IsAdmin: true, IsAuthenticated: true}

	rendered := renderQuery(t, gate.PredicateFor(context.Background(), state, core.ScopePurchased))
	if strings.Contains(rendered, "WHERE") {
		t.Fatalf("admin predicate must not filter, got %q", rendered)
	}
}

func TestPredicateAnonymousClampedToFree(t *testing.T) {
	gate := newGate(t, &fakeOrders{}, &fakeBooks{free: []int64{5}})
	state := core.CatalogState{PurchasedBookIDs: map[int64]struct{}{}}

	rendered := renderQuery(t, gate.PredicateFor(context.Background(), state, core.ScopeAll))
	if !strings.Contains(rendered, "IN (5)") {
		t.Fatalf("expected free-set clamp, got %q", rendered)
	}
}

func TestComposeANDsPredicates(t *testing.T) {
	combined := Compose(IDsIn([]int64{1, 2}), nil, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("language_code = ?", "en")
	})
	rendered := renderQuery(t, combined)
	if !strings.Contains(rendered, "IN (1, 2)") || !strings.Contains(rendered, "language_code") {
		t.Fatalf("expected both clauses, got %q", rendered)
	}
}

func TestCanOpen(t *testing.T) {
	gate := newGate(t, &fakeOrders{}, &fakeBooks{free: []int64{5}})

	admin := core.CatalogState{IsAdmin: true}
	if !gate.CanOpen(context.Background(), admin, 999) {
		t.Fatal("admin must open any book")
	}

	buyer := core.CatalogState{
		IsAuthenticated:  true,
		PurchasedBookIDs: map[int64]struct{}{11: {}},
	}
	if !gate.CanOpen(context.Background(), buyer, 11) {
		t.Fatal("buyer must open purchased book")
	}
	if !gate.CanOpen(context.Background(), buyer, 5) {
		t.Fatal("free book must be openable")
	}
	if gate.CanOpen(context.Background(), buyer, 42) {
		t.Fatal("unpurchased paid book must be closed")
	}

	expiredLookup := newGate(t, &fakeOrders{}, &fakeBooks{freeErr: core.ErrBackendUnavailable})
	if expiredLookup.CanOpen(context.Background(), buyer, 5) {
		t.Fatal("free lookup failure must fail closed")
	}
}

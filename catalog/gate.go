package catalog

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-fulfillment/core"
)

// Predicate narrows a book select query. Predicates compose with AND and
// never mutate shared query builders; each request builds its own chain.
type Predicate func(*bun.SelectQuery) *bun.SelectQuery

// All is the identity predicate.
func All() Predicate {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	}
}

// IDsIn keeps books whose id is in the set. An empty set matches nothing.
func IDsIn(ids []int64) Predicate {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if len(ids) == 0 {
			return q.Where("1 = 0")
		}
		return q.Where("?TableAlias.id IN (?)", bun.In(ids))
	}
}

// Compose ANDs predicates in order, skipping nils.
func Compose(predicates ...Predicate) Predicate {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, predicate := range predicates {
			if predicate == nil {
				continue
			}
			q = predicate(q)
		}
		return q
	}
}

// Gate derives per-request catalog visibility from live order linkage. Every
// request recomputes state; nothing here caches across requests, so a new
// purchase is visible on the very next call.
type Gate struct {
	orders core.OrderStore
	books  core.CatalogStore
}

func NewGate(orders core.OrderStore, books core.CatalogStore) (*Gate, error) {
	if orders == nil {
		return nil, fmt.Errorf("catalog: order store is required")
	}
	if books == nil {
		return nil, fmt.Errorf("catalog: catalog store is required")
	}
	return &Gate{orders: orders, books: books}, nil
}

// StateFor computes the viewer's catalog state. Admins short-circuit with no
// order lookup. A failed lookup yields an empty purchased set rather than an
// error so the viewer sees too little, never too much.
func (g *Gate) StateFor(ctx context.Context, user *core.UserInfo) core.CatalogState {
	state := core.CatalogState{PurchasedBookIDs: map[int64]struct{}{}}
	if g == nil || user == nil {
		return state
	}
	state.IsAuthenticated = true
	if user.IsAdmin() {
		state.IsAdmin = true
		return state
	}

	orders, err := g.orders.ListForUser(ctx, core.OrderFilter{
		UserID: &user.ID,
		Email:  user.Email,
	})
	if err != nil {
		return state
	}
	for _, order := range orders {
		if order.LinkedBookID != nil {
			state.PurchasedBookIDs[*order.LinkedBookID] = struct{}{}
		}
	}
	return state
}

// PredicateFor maps (state, scope) to a query predicate. Unauthenticated
// viewers are clamped to the free scope regardless of the requested one.
func (g *Gate) PredicateFor(ctx context.Context, state core.CatalogState, scope core.CatalogScope) Predicate {
	if state.IsAdmin {
		return All()
	}
	if !state.IsAuthenticated {
		scope = core.ScopeFree
	}

	switch scope {
	case core.ScopeAll:
		return All()
	case core.ScopeFree:
		return g.freePredicate(ctx)
	case core.ScopePurchased:
		ids := make([]int64, 0, len(state.PurchasedBookIDs))
		for id := range state.PurchasedBookIDs {
			ids = append(ids, id)
		}
		return IDsIn(ids)
	default:
		return IDsIn(nil)
	}
}

// Visible applies the scope predicate to a base book query.
func (g *Gate) Visible(ctx context.Context, base *bun.SelectQuery, state core.CatalogState, scope core.CatalogScope) *bun.SelectQuery {
	return g.PredicateFor(ctx, state, scope)(base)
}

// CanOpen answers direct-object access for a single book. Admins can open
// anything; others need the book purchased or free.
func (g *Gate) CanOpen(ctx context.Context, state core.CatalogState, bookID int64) bool {
	if state.IsAdmin {
		return true
	}
	if state.Purchased(bookID) {
		return true
	}
	if g == nil || g.books == nil {
		return false
	}
	freeIDs, err := g.books.FreeBookIDs(ctx)
	if err != nil {
		return false
	}
	for _, id := range freeIDs {
		if id == bookID {
			return true
		}
	}
	return false
}

func (g *Gate) freePredicate(ctx context.Context) Predicate {
	if g == nil || g.books == nil {
		return IDsIn(nil)
	}
	freeIDs, err := g.books.FreeBookIDs(ctx)
	if err != nil {
		return IDsIn(nil)
	}
	return IDsIn(freeIDs)
}

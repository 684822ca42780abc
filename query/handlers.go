package query

import (
	"context"

	"github.com/goliatone/go-fulfillment/core"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (core.Order, error)
	ListOrdersForUser(ctx context.Context, filter core.OrderFilter) ([]core.Order, error)
}

type ResetReader interface {
	ResolvePendingReset(ctx context.Context, email string, token string) (core.AuthLinkPayload, error)
}

type CatalogStateReader interface {
	StateFor(ctx context.Context, user *core.UserInfo) core.CatalogState
}

type GetOrderQuery struct {
	reader OrderReader
}

func NewGetOrderQuery(reader OrderReader) *GetOrderQuery {
	return &GetOrderQuery{reader: reader}
}

func (q *GetOrderQuery) Query(ctx context.Context, msg GetOrderMessage) (core.Order, error) {
	if q == nil || q.reader == nil {
		return core.Order{}, queryDependencyError("query: order reader is required")
	}
	return q.reader.GetOrder(ctx, msg.OrderID)
}

type ListOrdersQuery struct {
	reader OrderReader
}

func NewListOrdersQuery(reader OrderReader) *ListOrdersQuery {
	return &ListOrdersQuery{reader: reader}
}

func (q *ListOrdersQuery) Query(ctx context.Context, msg ListOrdersMessage) ([]core.Order, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: order reader is required")
	}
	return q.reader.ListOrdersForUser(ctx, msg.Filter)
}

type ResolvePendingResetQuery struct {
	reader ResetReader
}

func NewResolvePendingResetQuery(reader ResetReader) *ResolvePendingResetQuery {
	return &ResolvePendingResetQuery{reader: reader}
}

func (q *ResolvePendingResetQuery) Query(ctx context.Context, msg ResolvePendingResetMessage) (core.AuthLinkPayload, error) {
	if q == nil || q.reader == nil {
		return core.AuthLinkPayload{}, queryDependencyError("query: reset reader is required")
	}
	return q.reader.ResolvePendingReset(ctx, msg.Email, msg.Token)
}

type CatalogStateQuery struct {
	reader CatalogStateReader
}

func NewCatalogStateQuery(reader CatalogStateReader) *CatalogStateQuery {
	return &CatalogStateQuery{reader: reader}
}

func (q *CatalogStateQuery) Query(ctx context.Context, msg CatalogStateMessage) (core.CatalogState, error) {
	if q == nil || q.reader == nil {
		return core.CatalogState{}, queryDependencyError("query: catalog state reader is required")
	}
	return q.reader.StateFor(ctx, msg.User), nil
}

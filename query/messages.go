package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-fulfillment/core"
)

const (
	TypeGetOrder            = "fulfillment.query.order.get"
	TypeListOrders          = "fulfillment.query.order.list"
	TypeResolvePendingReset = "fulfillment.query.reset.resolve"
	TypeCatalogState        = "fulfillment.query.catalog.state"
)

type GetOrderMessage struct {
	OrderID string
}

func (GetOrderMessage) Type() string { return TypeGetOrder }

func (m GetOrderMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return fmt.Errorf("query: order id is required")
	}
	return nil
}

type ListOrdersMessage struct {
	Filter core.OrderFilter
}

func (ListOrdersMessage) Type() string { return TypeListOrders }

func (m ListOrdersMessage) Validate() error {
	if m.Filter.UserID == nil && core.NormalizeEmail(m.Filter.Email) == "" {
		return fmt.Errorf("query: order filter requires a user id or email")
	}
	return nil
}

type ResolvePendingResetMessage struct {
	Email string
	Token string
}

func (ResolvePendingResetMessage) Type() string { return TypeResolvePendingReset }

func (m ResolvePendingResetMessage) Validate() error {
	if core.NormalizeEmail(m.Email) == "" {
		return fmt.Errorf("query: email is required")
	}
	if strings.TrimSpace(m.Token) == "" {
		return fmt.Errorf("query: token is required")
	}
	return nil
}

type CatalogStateMessage struct {
	User *core.UserInfo
}

func (CatalogStateMessage) Type() string { return TypeCatalogState }

func (CatalogStateMessage) Validate() error { return nil }

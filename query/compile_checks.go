package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-fulfillment/core"
)

var (
	_ gocmd.Querier[GetOrderMessage, core.Order]                          = (*GetOrderQuery)(nil)
	_ gocmd.Querier[ListOrdersMessage, []core.Order]                      = (*ListOrdersQuery)(nil)
	_ gocmd.Querier[ResolvePendingResetMessage, core.AuthLinkPayload]     = (*ResolvePendingResetQuery)(nil)
	_ gocmd.Querier[CatalogStateMessage, core.CatalogState]               = (*CatalogStateQuery)(nil)
)

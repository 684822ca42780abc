package fulfillment

import (
	"fmt"

	"github.com/goliatone/go-fulfillment/catalog"
	fulfillmentcommand "github.com/goliatone/go-fulfillment/command"
	"github.com/goliatone/go-fulfillment/core"
	fulfillmentquery "github.com/goliatone/go-fulfillment/query"
)

type CommandQueryService interface {
	fulfillmentcommand.MutatingService
	fulfillmentquery.OrderReader
	fulfillmentquery.ResetReader
}

type Commands struct {
	ProcessDelivery        *fulfillmentcommand.ProcessDeliveryCommand
	DeleteOrder            *fulfillmentcommand.DeleteOrderCommand
	IssueResetToken        *fulfillmentcommand.IssueResetTokenCommand
	CompletePasswordChange *fulfillmentcommand.CompletePasswordChangeCommand
}

type Queries struct {
	GetOrder            *fulfillmentquery.GetOrderQuery
	ListOrders          *fulfillmentquery.ListOrdersQuery
	ResolvePendingReset *fulfillmentquery.ResolvePendingResetQuery
	CatalogState        *fulfillmentquery.CatalogStateQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	catalogStateReader fulfillmentquery.CatalogStateReader
}

func WithCatalogStateReader(reader fulfillmentquery.CatalogStateReader) FacadeOption {
	return func(options *facadeOptions) {
		options.catalogStateReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("fulfillment: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.catalogStateReader
	if reader == nil {
		reader = resolveCatalogStateReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		ProcessDelivery:        fulfillmentcommand.NewProcessDeliveryCommand(service),
		DeleteOrder:            fulfillmentcommand.NewDeleteOrderCommand(service),
		IssueResetToken:        fulfillmentcommand.NewIssueResetTokenCommand(service),
		CompletePasswordChange: fulfillmentcommand.NewCompletePasswordChangeCommand(service),
	}
	facade.queries = Queries{
		GetOrder:            fulfillmentquery.NewGetOrderQuery(service),
		ListOrders:          fulfillmentquery.NewListOrdersQuery(service),
		ResolvePendingReset: fulfillmentquery.NewResolvePendingResetQuery(service),
		CatalogState:        fulfillmentquery.NewCatalogStateQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveCatalogStateReader finds a catalog state source for the facade. A
// service that implements the reader wins; otherwise a gate is built from the
// service's own stores.
func resolveCatalogStateReader(service CommandQueryService) fulfillmentquery.CatalogStateReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(fulfillmentquery.CatalogStateReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.OrderStore == nil || deps.CatalogStore == nil {
		return nil
	}
	gate, err := catalog.NewGate(deps.OrderStore, deps.CatalogStore)
	if err != nil {
		return nil
	}
	return gate
}

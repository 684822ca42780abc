package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-fulfillment/core"
)

type MutatingService interface {
	HandleDelivery(ctx context.Context, req core.InboundRequest) (core.DeliveryReceipt, error)
	DeleteOrder(ctx context.Context, orderID string, requestedBy core.UserInfo) error
	IssueResetToken(ctx context.Context, email string) (string, error)
	CompletePasswordChange(ctx context.Context, email string, newPassword string) error
}

type ProcessDeliveryCommand struct {
	service MutatingService
}

func NewProcessDeliveryCommand(service MutatingService) *ProcessDeliveryCommand {
	return &ProcessDeliveryCommand{service: service}
}

func (c *ProcessDeliveryCommand) Execute(ctx context.Context, msg ProcessDeliveryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery service is required")
	}
	receipt, err := c.service.HandleDelivery(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, receipt)
	return nil
}

type DeleteOrderCommand struct {
	service MutatingService
}

func NewDeleteOrderCommand(service MutatingService) *DeleteOrderCommand {
	return &DeleteOrderCommand{service: service}
}

func (c *DeleteOrderCommand) Execute(ctx context.Context, msg DeleteOrderMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order service is required")
	}
	return c.service.DeleteOrder(ctx, msg.OrderID, msg.RequestedBy)
}

type IssueResetTokenCommand struct {
	service MutatingService
}

func NewIssueResetTokenCommand(service MutatingService) *IssueResetTokenCommand {
	return &IssueResetTokenCommand{service: service}
}

func (c *IssueResetTokenCommand) Execute(ctx context.Context, msg IssueResetTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	token, err := c.service.IssueResetToken(ctx, msg.Email)
	if err != nil {
		return err
	}
	storeResult(ctx, token)
	return nil
}

type CompletePasswordChangeCommand struct {
	service MutatingService
}

func NewCompletePasswordChangeCommand(service MutatingService) *CompletePasswordChangeCommand {
	return &CompletePasswordChangeCommand{service: service}
}

func (c *CompletePasswordChangeCommand) Execute(ctx context.Context, msg CompletePasswordChangeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	return c.service.CompletePasswordChange(ctx, msg.Email, msg.NewPassword)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

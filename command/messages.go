package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-fulfillment/core"
)

const (
	TypeProcessDelivery        = "fulfillment.command.delivery.process"
	TypeDeleteOrder            = "fulfillment.command.order.delete"
	TypeIssueResetToken        = "fulfillment.command.reset.issue"
	TypeCompletePasswordChange = "fulfillment.command.password.complete"
)

type ProcessDeliveryMessage struct {
	Request core.InboundRequest
}

func (ProcessDeliveryMessage) Type() string { return TypeProcessDelivery }

func (m ProcessDeliveryMessage) Validate() error {
	if len(m.Request.Body) == 0 {
		return fmt.Errorf("command: delivery body is required")
	}
	return nil
}

type DeleteOrderMessage struct {
	OrderID     string
	RequestedBy core.UserInfo
}

func (DeleteOrderMessage) Type() string { return TypeDeleteOrder }

func (m DeleteOrderMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return fmt.Errorf("command: order id is required")
	}
	return nil
}

type IssueResetTokenMessage struct {
	Email string
}

func (IssueResetTokenMessage) Type() string { return TypeIssueResetToken }

func (m IssueResetTokenMessage) Validate() error {
	if core.NormalizeEmail(m.Email) == "" {
		return fmt.Errorf("command: email is required")
	}
	return nil
}

type CompletePasswordChangeMessage struct {
	Email       string
	NewPassword string
}

func (CompletePasswordChangeMessage) Type() string { return TypeCompletePasswordChange }

func (m CompletePasswordChangeMessage) Validate() error {
	if core.NormalizeEmail(m.Email) == "" {
		return fmt.Errorf("command: email is required")
	}
	if m.NewPassword == "" {
		return fmt.Errorf("command: new password is required")
	}
	return nil
}

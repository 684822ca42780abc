package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessDeliveryMessage]        = (*ProcessDeliveryCommand)(nil)
	_ gocmd.Commander[DeleteOrderMessage]            = (*DeleteOrderCommand)(nil)
	_ gocmd.Commander[IssueResetTokenMessage]        = (*IssueResetTokenCommand)(nil)
	_ gocmd.Commander[CompletePasswordChangeMessage] = (*CompletePasswordChangeCommand)(nil)
)

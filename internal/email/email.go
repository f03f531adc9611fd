// Package email defines the customer email collaborator. The core only
// needs the contract; the production sender lives behind it.
package email

import (
	"context"

	"go.uber.org/zap"

	"github.com/xenking/pizza-ops/internal/domain/order"
)

// Sender delivers customer-facing order emails.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, o *order.Order) error
	SendOrderStatusUpdate(ctx context.Context, o *order.Order, newStatus order.Status) error
}

// LogSender writes emails to the log instead of sending them. Wired in
// environments without an email provider.
type LogSender struct {
	lg *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(lg *zap.Logger) *LogSender {
	return &LogSender{lg: lg.Named("email")}
}

func (s *LogSender) SendOrderConfirmation(_ context.Context, o *order.Order) error {
	s.lg.Info("order confirmation",
		zap.String("to", o.Customer.Email),
		zap.String("order_number", o.Number),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return nil
}

func (s *LogSender) SendOrderStatusUpdate(_ context.Context, o *order.Order, newStatus order.Status) error {
	s.lg.Info("order status update",
		zap.String("to", o.Customer.Email),
		zap.String("order_number", o.Number),
		zap.String("status", string(newStatus)),
	)
	return nil
}

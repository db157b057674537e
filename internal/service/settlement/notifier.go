package settlement

import (
	"context"
	"log"

	"vinylshop/internal/domain"
)

// LogNotifier is the default confirmation sink. Outbound mail delivery lives
// behind the Notifier interface so the settlement path never depends on a
// mail transport.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) OrderConfirmed(_ context.Context, order *domain.Order) error {
	n.Logger.Printf("order %s confirmed for %s: %d item(s), %d %s",
		order.ID, order.Email, len(order.Items), order.AmountCents, order.Currency)
	return nil
}

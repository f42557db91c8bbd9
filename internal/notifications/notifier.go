package notifications

import (
	"context"
	"strings"

	"github.com/angelmondragon/stowaway-backend/pkg/logger"
)

// Notifier sends messages without ever failing the caller.
type Notifier struct {
	gateway Gateway
	logg    *logger.Logger
}

func NewNotifier(gateway Gateway, logg *logger.Logger) *Notifier {
	return &Notifier{gateway: gateway, logg: logg}
}

// Notify reports whether the message was handed to the gateway. Errors are logged.
func (n *Notifier) Notify(ctx context.Context, msg Message) bool {
	if n == nil || n.gateway == nil {
		return false
	}
	if strings.TrimSpace(msg.To) == "" {
		if n.logg != nil {
			n.logg.Warn(n.logg.WithField(ctx, "template", msg.Template), "notification skipped: no recipient")
		}
		return false
	}
	if err := n.gateway.Send(ctx, msg); err != nil {
		if n.logg != nil {
			n.logg.Error(n.logg.WithField(ctx, "template", msg.Template), "notification failed", err)
		}
		return false
	}
	return true
}

package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/sony/gobreaker/v2"

	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
)

const defaultPublishTimeout = 5 * time.Second

// Message is one outbound SMS rendered downstream from Template and Variables.
type Message struct {
	To        string            `json:"to"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Gateway delivers a message to the customer or worker.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

// PubSubGateway publishes messages to the notification topic consumed by the SMS sender.
type PubSubGateway struct {
	pub     publisher
	breaker *gobreaker.CircuitBreaker[string]
	timeout time.Duration
}

func NewPubSubGateway(p *gcppubsub.Publisher, timeout time.Duration) (*PubSubGateway, error) {
	if p == nil {
		return nil, errors.New("notification publisher required")
	}
	return newPubSubGateway(&gcpPublisher{Publisher: p}, timeout), nil
}

func newPubSubGateway(pub publisher, timeout time.Duration) *PubSubGateway {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &PubSubGateway{
		pub:     pub,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "notifications-pubsub",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
	}
}

func (g *PubSubGateway) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient is required")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification")
	}

	publishCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err = g.breaker.Execute(func() (string, error) {
		result := g.pub.Publish(publishCtx, &gcppubsub.Message{
			Data: data,
			Attributes: map[string]string{
				"template":   msg.Template,
				"created_at": time.Now().UTC().Format(time.RFC3339Nano),
			},
		})
		if result == nil {
			return "", fmt.Errorf("publisher returned nil for template %s", msg.Template)
		}
		return result.Get(publishCtx)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish notification")
	}
	return nil
}

// LogGateway writes messages to the log instead of sending them.
type LogGateway struct {
	logg *logger.Logger
}

func NewLogGateway(logg *logger.Logger) *LogGateway {
	return &LogGateway{logg: logg}
}

func (g *LogGateway) Send(ctx context.Context, msg Message) error {
	if g == nil || g.logg == nil {
		return nil
	}
	ctx = g.logg.WithFields(ctx, map[string]any{
		"to":        msg.To,
		"template":  msg.Template,
		"variables": msg.Variables,
	})
	g.logg.Info(ctx, "notification suppressed (log gateway)")
	return nil
}

package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/transfer"

	"github.com/angelmondragon/stowaway-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// TransferParams describes a Connect transfer from the platform balance to a worker account.
type TransferParams struct {
	AmountCents    int64
	Currency       string
	Destination    string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// TransferClient moves money to connected accounts.
type TransferClient interface {
	CreateTransfer(ctx context.Context, params TransferParams) (string, error)
}

type createFunc func(params *stripe.TransferParams) (*stripe.Transfer, error)

// Client wraps Stripe transfers behind a circuit breaker.
type Client struct {
	environment string
	breaker     *gobreaker.CircuitBreaker[*stripe.Transfer]
	create      createFunc
	logger      *logger.Logger
}

// NewClient initializes Stripe once with the configured secret and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}
	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}
	return newClient(env, transfer.New, logg), nil
}

func newClient(env string, create createFunc, logg *logger.Logger) *Client {
	return &Client{
		environment: env,
		create:      create,
		logger:      logg,
		breaker: gobreaker.NewCircuitBreaker[*stripe.Transfer](gobreaker.Settings{
			Name:        "stripe-transfers",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			IsSuccessful: func(err error) bool {
				// card and balance errors are the caller's problem, not an outage
				var stripeErr *stripe.Error
				if errors.As(err, &stripeErr) {
					return stripeErr.HTTPStatusCode < 500
				}
				return err == nil
			},
		}),
	}
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateTransfer sends funds to the destination account and returns the transfer id.
func (c *Client) CreateTransfer(ctx context.Context, params TransferParams) (string, error) {
	if params.AmountCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if strings.TrimSpace(params.Destination) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transfer destination is required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	req := &stripe.TransferParams{
		Amount:      stripe.Int64(params.AmountCents),
		Currency:    stripe.String(currency),
		Destination: stripe.String(params.Destination),
		Metadata:    params.Metadata,
	}
	if params.Description != "" {
		req.Description = stripe.String(params.Description)
	}
	req.Context = ctx
	if params.IdempotencyKey != "" {
		req.SetIdempotencyKey(params.IdempotencyKey)
	}

	result, err := c.breaker.Execute(func() (*stripe.Transfer, error) {
		return c.create(req)
	})
	if err != nil {
		if c.logger != nil {
			ctx = c.logger.WithFields(ctx, map[string]any{
				"destination":     params.Destination,
				"amount_cents":    params.AmountCents,
				"idempotency_key": params.IdempotencyKey,
			})
			c.logger.Error(ctx, "stripe transfer failed", err)
		}
		return "", mapStripeError(err)
	}
	return result.ID, nil
}

func mapStripeError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe temporarily unavailable")
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripe.ErrorCodeBalanceInsufficient {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "platform balance insufficient").
				WithDetails(map[string]any{"stripe_code": string(stripeErr.Code)})
		}
		code := pkgerrors.CodeDependency
		if stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.Wrap(code, err, "stripe transfer failed").
			WithDetails(map[string]any{"stripe_code": string(stripeErr.Code)})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe transfer failed")
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}

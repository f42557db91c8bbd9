package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/stowaway-backend/api/responses"
	"github.com/angelmondragon/stowaway-backend/api/validators"
	"github.com/angelmondragon/stowaway-backend/internal/dispatch"
	"github.com/angelmondragon/stowaway-backend/internal/fulfillment"
	dispatchwebhook "github.com/angelmondragon/stowaway-backend/internal/webhooks/dispatch"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
	"github.com/angelmondragon/stowaway-backend/pkg/logger"
	"github.com/angelmondragon/stowaway-backend/pkg/metrics"
)

const maxCheckLength = 512

type DispatchWebhookService interface {
	HandleWebhook(ctx context.Context, payload dispatch.Payload) fulfillment.Result
}

// DispatchGuard suppresses redelivered triggers.
type DispatchGuard interface {
	CheckAndMark(ctx context.Context, fingerprint string) (bool, error)
	Delete(ctx context.Context, fingerprint string) error
}

// DispatchOptions configures the dispatch webhook endpoint.
type DispatchOptions struct {
	Secret       string
	MaxBodyBytes int64
	// SkipSignature disables verification when no secret is configured (local only).
	SkipSignature bool
	Metrics       *metrics.WebhookMetrics
}

type ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// DispatchWebhookCheck answers the platform's endpoint validation handshake.
func DispatchWebhookCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		check := validators.SanitizeString(r.URL.Query().Get("check"), maxCheckLength)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, check)
	}
}

// DispatchWebhook verifies, de-duplicates and routes dispatch task triggers.
func DispatchWebhook(svc DispatchWebhookService, guard DispatchGuard, opts DispatchOptions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		if opts.MaxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				opts.Metrics.Observe("", metrics.OutcomeRejected)
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !opts.SkipSignature && !dispatchwebhook.ValidSignature(body, opts.Secret, r.Header.Get(dispatchwebhook.SignatureHeader)) {
			opts.Metrics.Observe("", metrics.OutcomeRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid dispatch signature"))
			return
		}

		var payload dispatch.Payload
		if err := validators.DecodeJSON(body, &payload); err != nil {
			opts.Metrics.Observe("", metrics.OutcomeRejected)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		fingerprint := payload.FingerprintID()
		guarded := false
		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, fingerprint)
			switch {
			case err != nil:
				// the persisted status checks still de-duplicate; keep going
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "dispatch delivery guard unavailable")
				}
			case seen:
				opts.Metrics.Observe(string(payload.TriggerName), metrics.OutcomeDuplicate)
				responses.WriteJSON(w, http.StatusOK, ack{Success: true, Message: "duplicate delivery"})
				return
			default:
				guarded = true
			}
		}

		result := svc.HandleWebhook(ctx, payload)
		if !result.Success {
			if guarded {
				if err := guard.Delete(ctx, fingerprint); err != nil && logg != nil {
					logg.Error(ctx, "failed to release dispatch delivery guard", err)
				}
			}
			responses.WriteJSON(w, http.StatusInternalServerError, ack{Success: false, Message: result.Message})
			return
		}
		responses.WriteJSON(w, http.StatusOK, ack{Success: true, Message: result.Message})
	}
}

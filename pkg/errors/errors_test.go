package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stripe/stripe-go/v82"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeAlreadyProcessed, status: http.StatusOK, publicMsg: "already processed"},
		{code: CodeConfiguration, status: http.StatusUnprocessableEntity, publicMsg: "operator action required", detailsOK: true},
		{code: CodeUnsupported, status: http.StatusBadRequest, publicMsg: "unsupported event", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeWalksWrappedChain(t *testing.T) {
	inner := New(CodeConfiguration, "payout account missing")
	wrapped := fmt.Errorf("settle job: %w", inner)
	if !IsCode(wrapped, CodeConfiguration) {
		t.Fatalf("expected configuration code through wrap")
	}
	if IsCode(wrapped, CodeDependency) {
		t.Fatalf("unexpected dependency code match")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestDumpExtractsProviderDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "tasks_short_id_key", TableName: "tasks"}
	dump := Dump(Wrap(CodeConflict, fmt.Errorf("insert task: %w", pgErr), "duplicate task"))
	if dump.Code != CodeConflict || dump.PGCode != "23505" || dump.PGConstraint != "tasks_short_id_key" {
		t.Fatalf("unexpected pg dump %+v", dump)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected wrapped chain, got %v", dump.Chain)
	}

	stripeErr := &stripe.Error{Code: stripe.ErrorCodeBalanceInsufficient, Type: stripe.ErrorTypeInvalidRequest, RequestID: "req_1"}
	dump = Dump(Wrap(CodeDependency, stripeErr, "transfer failed"))
	if dump.StripeCode != string(stripe.ErrorCodeBalanceInsufficient) || dump.StripeRequestID != "req_1" {
		t.Fatalf("unexpected stripe dump %+v", dump)
	}

	if empty := Dump(nil); empty.TopMessage != "" || empty.Chain != nil {
		t.Fatal("nil error must dump empty")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":        {err: nil, want: false},
		"plain":      {err: stdErrors.New("timeout"), want: true},
		"dependency": {err: Wrap(CodeDependency, stdErrors.New("503"), "stripe"), want: true},
		"validation": {err: New(CodeValidation, "bad destination"), want: false},
		"wrapped":    {err: fmt.Errorf("settle: %w", New(CodeConfiguration, "no account")), want: false},
	}
	for name, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v got %v", name, tc.want, got)
		}
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection reset"), "publish notification")
	if got := err.Error(); got != "DEPENDENCY_ERROR: publish notification: connection reset" {
		t.Fatalf("unexpected message %q", got)
	}
}

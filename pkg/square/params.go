package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
)

// Square rejects longer values outright.
const (
	maxNoteLen      = 500
	maxReferenceLen = 40
)

// PaymentCreateParams describes a card-on-file charge. Payments autocomplete unless
// Autocomplete is explicitly false.
type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
	Autocomplete   *bool
}

func (p PaymentCreateParams) validate() error {
	switch {
	case p.AmountCents <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	case strings.TrimSpace(p.SourceID) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	case strings.TrimSpace(p.LocationID) == "":
		return pkgerrors.New(pkgerrors.CodeConfiguration, "square location id is not configured")
	}
	return nil
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	autocomplete := true
	if p.Autocomplete != nil {
		autocomplete = *p.Autocomplete
	}
	currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
	if currency == "" {
		currency = sq.Currency("USD")
	}
	amount := p.AmountCents
	return &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       p.SourceID,
		AmountMoney:    &sq.Money{Amount: &amount, Currency: &currency},
		LocationID:     optional(p.LocationID, 0),
		CustomerID:     optional(p.CustomerID, 0),
		Note:           optional(p.Note, maxNoteLen),
		ReferenceID:    optional(p.ReferenceID, maxReferenceLen),
		Autocomplete:   &autocomplete,
	}
}

// optional trims value and caps it at maxLen bytes; blank values become nil.
func optional(value string, maxLen int) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if maxLen > 0 && len(trimmed) > maxLen {
		trimmed = trimmed[:maxLen]
	}
	return &trimmed
}

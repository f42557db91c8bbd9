package workers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stowaway-backend/pkg/errors"
)

// Payee is the payout destination resolved for a job or route.
type Payee struct {
	ID              uuid.UUID
	Kind            enums.WorkerType
	Name            string
	Phone           string
	AccountID       string
	PayoutsEnabled  bool
	HasPayoutTarget bool
}

func PayeeFromDriver(d *models.Driver) Payee {
	p := Payee{ID: d.ID, Kind: enums.WorkerTypeIndependent, Name: d.Name, PayoutsEnabled: d.StripePayoutsEnabled}
	if d.Phone != nil {
		p.Phone = *d.Phone
	}
	if d.StripeConnectAccountID != nil && strings.TrimSpace(*d.StripeConnectAccountID) != "" {
		p.AccountID = strings.TrimSpace(*d.StripeConnectAccountID)
		p.HasPayoutTarget = true
	}
	return p
}

func PayeeFromPartner(m *models.MovingPartner) Payee {
	p := Payee{ID: m.ID, Kind: enums.WorkerTypePartner, Name: m.Name, PayoutsEnabled: m.StripePayoutsEnabled}
	if m.Phone != nil {
		p.Phone = *m.Phone
	}
	if m.StripeConnectAccountID != nil && strings.TrimSpace(*m.StripeConnectAccountID) != "" {
		p.AccountID = strings.TrimSpace(*m.StripeConnectAccountID)
		p.HasPayoutTarget = true
	}
	return p
}

// Ready returns a CodeConfiguration error when the payee cannot receive transfers.
func (p Payee) Ready() error {
	switch {
	case !p.HasPayoutTarget:
		return pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("%s %s has no payout account", p.Kind, p.ID))
	case !p.PayoutsEnabled:
		return pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("payouts are not enabled for %s %s", p.Kind, p.ID))
	}
	return nil
}

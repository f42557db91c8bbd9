package fulfillment

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stowaway-backend/internal/dispatch"
	"github.com/angelmondragon/stowaway-backend/internal/notifications"
	"github.com/angelmondragon/stowaway-backend/pkg/db/models"
	"github.com/angelmondragon/stowaway-backend/pkg/enums"
)

func newTrackingToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func (s *service) trackingURL(token string) string {
	return joinURL(s.links.TrackingBaseURL, token)
}

func (s *service) feedbackURL(id uuid.UUID) string {
	return joinURL(s.links.FeedbackBaseURL, id.String())
}

func phoneOf(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// completionTemplate picks the customer copy for the finished service by appointment type.
func completionTemplate(t enums.AppointmentType) string {
	switch t {
	case enums.AppointmentTypeStorageTermEnd:
		return notifications.TemplateTermEndComplete
	case enums.AppointmentTypeStorageAccess:
		return notifications.TemplateAccessComplete
	default:
		return notifications.TemplateLoadingComplete
	}
}

func customerMessage(appt *models.Appointment, template string, c dispatch.Completion, extra map[string]string) notifications.Message {
	vars := map[string]string{
		notifications.VarCustomerName: appt.CustomerName,
		notifications.VarWorkerName:   c.WorkerName,
	}
	for k, v := range extra {
		vars[k] = v
	}
	return notifications.Message{To: phoneOf(appt.CustomerPhone), Template: template, Variables: vars}
}

func orderMessage(order *models.PackingSupplyOrder, template string, c dispatch.Completion, extra map[string]string) notifications.Message {
	vars := map[string]string{
		notifications.VarCustomerName: order.CustomerName,
		notifications.VarWorkerName:   c.WorkerName,
	}
	for k, v := range extra {
		vars[k] = v
	}
	return notifications.Message{To: phoneOf(order.CustomerPhone), Template: template, Variables: vars}
}

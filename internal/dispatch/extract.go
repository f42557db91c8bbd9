package dispatch

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWorkerName is used when the payload omits the worker descriptor.
const DefaultWorkerName = "Your Stowaway driver"

var metersPerMile = decimal.NewFromFloat(1609.344)

// Completion is the normalized view of a webhook used by the step handlers.
// Missing optional fields stay zero; callers apply their own fallbacks.
type Completion struct {
	ShortID       string
	Trigger       Trigger
	Kind          JobKind
	WebhookTime   time.Time
	DistanceMiles decimal.NullDecimal
	StartedAt     *time.Time
	ArrivedAt     *time.Time
	CompletedAt   *time.Time
	Photos        []string
	FailureReason string
	WorkerName    string
	WorkerPhone   string
	Metadata      map[string]string
}

// Extract normalizes a payload. It never fails.
func Extract(p Payload) Completion {
	out := Completion{
		ShortID:     strings.TrimSpace(p.Data.Task.ShortID),
		Trigger:     p.TriggerName,
		Kind:        KindOf(p.Data.Task),
		WebhookTime: fromMillis(p.Time),
		WorkerName:  DefaultWorkerName,
		Metadata:    map[string]string{},
	}

	for _, field := range p.Data.Task.Metadata {
		if value, ok := p.Data.Task.MetadataValue(field.Name); ok {
			out.Metadata[field.Name] = value
		}
	}

	if w := p.Data.Worker; w != nil {
		if name := strings.TrimSpace(w.Name); name != "" {
			out.WorkerName = name
		}
		out.WorkerPhone = strings.TrimSpace(w.Phone)
	}

	details := p.Data.Task.CompletionDetails
	if details != nil {
		if details.Distance != nil && *details.Distance > 0 {
			miles := decimal.NewFromFloat(*details.Distance).Div(metersPerMile).Round(2)
			out.DistanceMiles = decimal.NewNullDecimal(miles)
		}
		for _, event := range details.Events {
			if event.Time <= 0 {
				continue
			}
			name := strings.ToLower(event.Name)
			ts := fromMillis(event.Time)
			switch {
			case strings.Contains(name, "start") && out.StartedAt == nil:
				out.StartedAt = &ts
			case strings.Contains(name, "arriv") && out.ArrivedAt == nil:
				out.ArrivedAt = &ts
			}
		}
		if details.Time != nil && *details.Time > 0 {
			ts := fromMillis(*details.Time)
			out.CompletedAt = &ts
		}
		out.Photos = collectPhotos(details)
		out.FailureReason = strings.TrimSpace(firstNonEmpty(details.FailureReason, details.FailureNotes))
	}

	if out.CompletedAt == nil && p.TriggerName == TriggerTaskCompleted && !out.WebhookTime.IsZero() {
		ts := out.WebhookTime
		out.CompletedAt = &ts
	}
	return out
}

func collectPhotos(details *CompletionDetails) []string {
	photos := make([]string, 0, len(details.PhotoUploadIDs)+1)
	seen := map[string]struct{}{}
	for _, id := range append([]string{details.PhotoUploadID}, details.PhotoUploadIDs...) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		photos = append(photos, id)
	}
	return photos
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

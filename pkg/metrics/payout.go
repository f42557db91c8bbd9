package metrics

import "github.com/prometheus/client_golang/prometheus"

// Payout kinds.
const (
	PayoutKindJob   = "job"
	PayoutKindRoute = "route"
)

// PayoutMetrics tracks settlement attempts and transferred volume.
type PayoutMetrics struct {
	attempts    *prometheus.CounterVec
	amountCents *prometheus.CounterVec
}

func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_attempts_total",
		Help:      "Settlement attempts by kind and resulting payout status.",
	}, []string{"kind", "status"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_transferred_cents_total",
		Help:      "Net cents transferred to workers.",
	}, []string{"kind"})
	reg.MustRegister(attempts, amount)
	return &PayoutMetrics{attempts: attempts, amountCents: amount}
}

// Observe records a settlement outcome; amountCents is counted only for completed transfers.
func (p *PayoutMetrics) Observe(kind, status string, amountCents int64) {
	if p == nil || p.attempts == nil {
		return
	}
	p.attempts.WithLabelValues(normalizeLabel(kind), normalizeLabel(status)).Inc()
	if status == "completed" && amountCents > 0 {
		p.amountCents.WithLabelValues(normalizeLabel(kind)).Add(float64(amountCents))
	}
}

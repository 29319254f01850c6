package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		codesIssuedTotal,
		redemptionsTotal,
		rateLimitedTotal,
		sessionChecksTotal,
		codesSweptTotal,
	)
}

var (
	codesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "access_codes_issued_total",
			Help: "Total number of access codes issued.",
		},
	)

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_redemptions_total",
			Help: "Redemption attempts by outcome (success/unknown_family/not_in_family/already_used/rate_limited/error).",
		},
		[]string{"outcome"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "access_rate_limited_total",
			Help: "Redemption attempts denied by the rate limiter.",
		},
	)

	sessionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_session_checks_total",
			Help: "Cookie session validations by result (valid/invalid).",
		},
		[]string{"valid"},
	)

	codesSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "access_codes_swept_total",
			Help: "Expired codes removed by the sweep worker.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncCodesIssued(n int) {
	codesIssuedTotal.Add(float64(n))
}

func IncRedemption(outcome string) {
	redemptionsTotal.WithLabelValues(norm(outcome)).Inc()
	if norm(outcome) == "rate_limited" {
		rateLimitedTotal.Inc()
	}
}

func IncSessionCheck(valid bool) {
	sessionChecksTotal.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

func IncCodesSwept(n int) {
	codesSweptTotal.Add(float64(n))
}

package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "portal_auth_rate_limit_checks_total",
	Help: "Total number of auth rate limit checks by action, store and outcome",
}, []string{"action", "store", "outcome"})

func observeCheck(action Action, store string, result Result, err error) {
	outcome := outcomeAllowed
	switch {
	case err != nil:
		outcome = outcomeError
	case !result.Allowed:
		outcome = outcomeDenied
	}
	checksTotal.WithLabelValues(string(action), store, outcome).Inc()
}

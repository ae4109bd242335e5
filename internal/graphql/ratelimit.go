package graphql

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

// RateLimit is the GitHub rate-limit state reported on a response.
type RateLimit struct {
	Limit     int
	Remaining int
	// Reset is the raw X-RateLimit-Reset value (Unix seconds), possibly empty.
	Reset string
}

// parseRateLimit reads the X-RateLimit-* headers. ok is false unless both
// limit and remaining are present and numeric.
func parseRateLimit(h http.Header) (rl RateLimit, ok bool) {
	limit, err := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	if err != nil {
		return RateLimit{}, false
	}
	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return RateLimit{}, false
	}
	return RateLimit{
		Limit:     limit,
		Remaining: remaining,
		Reset:     h.Get("X-RateLimit-Reset"),
	}, true
}

// observeRateLimit logs and records the rate-limit headers. It never affects
// the outcome of the call.
func (r *Relay) observeRateLimit(log logrus.FieldLogger, h http.Header) {
	rl, ok := parseRateLimit(h)
	if !ok {
		return
	}
	r.metrics.ObserveRateLimit(rl.Limit, rl.Remaining)

	fields := logrus.Fields{
		"rate_limit":     rl.Limit,
		"rate_remaining": rl.Remaining,
		"rate_reset":     rl.Reset,
	}
	log.WithFields(fields).Info("GitHub rate limit status")
	if rl.Remaining < r.lowWater {
		log.WithFields(fields).Warn("GitHub rate limit low")
	}
}

package fetch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Outcome is what the Fetcher reports back to the Registry after a
// provider call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// RegistryConfig tunes health tracking. Zero values fall back to the
// defaults noted per field.
type RegistryConfig struct {
	FailureThreshold int           // consecutive failures before a provider is disabled; default 3
	BackoffBase      time.Duration // first disable window; default 30s
	BackoffCap       time.Duration // maximum disable window; default 30m
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Minute
	}
	return c
}

// Health is a read-only snapshot of one provider's state.
type Health struct {
	ConsecutiveFailures int
	DisabledUntil       time.Time
	LastSuccessAt       time.Time
}

// providerHealth is mutated under its own mutex so unrelated providers
// never serialize on each other.
type providerHealth struct {
	mu                  sync.Mutex
	consecutiveFailures int
	disabledUntil       time.Time
	lastSuccessAt       time.Time
}

// Registry holds the ordered adapter lists per kind and owns all
// provider health state. Register all adapters before first use; the
// lists are read-only afterwards.
type Registry struct {
	cfg    RegistryConfig
	byKind map[Kind][]Adapter
	health map[string]*providerHealth
	log    zerolog.Logger
}

func NewRegistry(cfg RegistryConfig, log zerolog.Logger) *Registry {
	return &Registry{
		cfg:    cfg.withDefaults(),
		byKind: make(map[Kind][]Adapter),
		health: make(map[string]*providerHealth),
		log:    log,
	}
}

// Register appends adapters to the priority list for kind, in the given
// order. Startup-time only; not safe to call concurrently with
// Candidates or Report.
func (r *Registry) Register(kind Kind, adapters ...Adapter) {
	for _, a := range adapters {
		if !a.Supports(kind) {
			continue
		}
		r.byKind[kind] = append(r.byKind[kind], a)
		if _, ok := r.health[a.ID()]; !ok {
			r.health[a.ID()] = &providerHealth{}
		}
	}
}

// Candidates returns the adapters for kind in priority order, skipping
// providers currently disabled by backoff. When every provider is
// disabled it returns the full list so callers can still make a
// best-effort attempt.
func (r *Registry) Candidates(kind Kind) []Adapter {
	all := r.byKind[kind]
	now := time.Now()

	out := make([]Adapter, 0, len(all))
	for _, a := range all {
		h := r.health[a.ID()]
		h.mu.Lock()
		disabled := now.Before(h.disabledUntil)
		h.mu.Unlock()
		if !disabled {
			out = append(out, a)
		}
	}
	if len(out) == 0 && len(all) > 0 {
		// Degrade to "try everyone" rather than failing outright.
		out = append(out, all...)
	}
	return out
}

// Report records a call outcome for a provider. A success resets the
// failure count and clears any disable window. Reaching the failure
// threshold disables the provider for an exponentially growing window.
func (r *Registry) Report(providerID string, outcome Outcome) {
	h, ok := r.health[providerID]
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if outcome == OutcomeSuccess {
		h.consecutiveFailures = 0
		h.disabledUntil = time.Time{}
		h.lastSuccessAt = time.Now()
		return
	}

	h.consecutiveFailures++
	if h.consecutiveFailures >= r.cfg.FailureThreshold {
		d := r.backoff(h.consecutiveFailures)
		h.disabledUntil = time.Now().Add(d)
		r.log.Warn().
			Str("provider", providerID).
			Int("consecutive_failures", h.consecutiveFailures).
			Dur("backoff", d).
			Msg("provider disabled")
	}
}

// HealthOf returns a snapshot of a provider's health state.
func (r *Registry) HealthOf(providerID string) (Health, bool) {
	h, ok := r.health[providerID]
	if !ok {
		return Health{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return Health{
		ConsecutiveFailures: h.consecutiveFailures,
		DisabledUntil:       h.disabledUntil,
		LastSuccessAt:       h.lastSuccessAt,
	}, true
}

// backoff doubles the base window for every failure past the threshold,
// capped at BackoffCap.
func (r *Registry) backoff(consecutiveFailures int) time.Duration {
	d := r.cfg.BackoffBase
	for i := r.cfg.FailureThreshold; i < consecutiveFailures; i++ {
		d *= 2
		if d >= r.cfg.BackoffCap {
			return r.cfg.BackoffCap
		}
	}
	if d > r.cfg.BackoffCap {
		d = r.cfg.BackoffCap
	}
	return d
}

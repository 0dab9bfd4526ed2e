package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"marketdata/internal/fetch/cache"
)

// RateLimiter gates outgoing provider calls. It is advisory: Acquire
// never blocks; the Fetcher decides whether to wait, fail over or give
// up. Wait blocks until a permit is available or ctx is done.
type RateLimiter interface {
	Acquire(providerID string) (ok bool, retryAfter time.Duration)
	Wait(ctx context.Context, providerID string) error
}

// Config tunes orchestration. Zero values fall back to the defaults
// noted per field.
type Config struct {
	CallTimeout time.Duration // per provider call; default 8s
	PermitWait  time.Duration // bounded wait for the last candidate's permit; default 2s
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 8 * time.Second
	}
	if c.PermitWait <= 0 {
		c.PermitWait = 2 * time.Second
	}
	return c
}

// Fetcher orchestrates one fetch: cache check, rate-limit permit,
// provider call, normalization and failover. It makes a single pass
// over the candidate list per call; retries belong to the caller.
type Fetcher struct {
	registry  *Registry
	limiter   RateLimiter
	transport Transport
	store     *cache.Store[Result]
	cfg       Config
	log       zerolog.Logger
}

// New wires a Fetcher. limiter and store may be nil, disabling rate
// limiting and caching respectively.
func New(registry *Registry, limiter RateLimiter, transport Transport, store *cache.Store[Result], cfg Config, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		registry:  registry,
		limiter:   limiter,
		transport: transport,
		store:     store,
		cfg:       cfg.withDefaults(),
		log:       log,
	}
}

// FetchNews returns normalized news for the given search terms. from
// and to bound the publication window when non-zero.
func (f *Fetcher) FetchNews(ctx context.Context, terms string, from, to time.Time) ([]NewsItem, error) {
	params := map[string]string{}
	if !from.IsZero() {
		params[ParamFrom] = from.UTC().Format("2006-01-02")
	}
	if !to.IsZero() {
		params[ParamTo] = to.UTC().Format("2006-01-02")
	}
	res, err := f.fetch(ctx, Query{Kind: KindNews, Terms: terms, Params: params})
	if err != nil {
		return nil, err
	}
	return res.News, nil
}

// FetchPrice returns a normalized quote for symbol. An empty interval
// asks for the latest quote; otherwise the quote reflects the most
// recent bar of that interval.
func (f *Fetcher) FetchPrice(ctx context.Context, symbol, interval string) (PriceQuote, error) {
	params := map[string]string{}
	if interval != "" {
		params[ParamInterval] = interval
	}
	res, err := f.fetch(ctx, Query{Kind: KindPrice, Terms: symbol, Params: params})
	if err != nil {
		return PriceQuote{}, err
	}
	if res.Quote == nil {
		return PriceQuote{}, fmt.Errorf("provider returned no quote: %w", ErrMalformedResponse)
	}
	return *res.Quote, nil
}

func (f *Fetcher) fetch(ctx context.Context, q Query) (Result, error) {
	if f.store == nil {
		return f.fetchUpstream(ctx, q)
	}
	fp := q.Fingerprint()
	if res, ok := f.store.Get(fp); ok {
		return res, nil
	}
	// Concurrent misses for the same fingerprint collapse into one
	// upstream pass so duplicates don't spend rate-limit budget.
	return f.store.Do(fp, func() (Result, error) {
		return f.fetchUpstream(ctx, q)
	})
}

func (f *Fetcher) fetchUpstream(ctx context.Context, q Query) (Result, error) {
	candidates := f.registry.Candidates(q.Kind)
	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("no providers registered for kind %q", q.Kind)
	}

	attempts := make([]Attempt, 0, len(candidates))
	for i, a := range candidates {
		lastCandidate := i == len(candidates)-1

		if ok := f.acquirePermit(ctx, a.ID(), lastCandidate); !ok {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			attempts = append(attempts, Attempt{
				Provider: a.ID(),
				Err:      fmt.Errorf("no local rate-limit permit: %w", ErrRateLimited),
			})
			continue
		}

		res, err := f.call(ctx, q, a)
		if err == nil {
			f.registry.Report(a.ID(), OutcomeSuccess)
			return res, nil
		}
		if ctx.Err() != nil {
			// Caller cancellation is not a provider failure.
			return Result{}, ctx.Err()
		}
		if penalizesHealth(err) {
			f.registry.Report(a.ID(), OutcomeFailure)
		}
		f.log.Debug().
			Str("provider", a.ID()).
			Str("kind", string(q.Kind)).
			Str("terms", q.Terms).
			Err(err).
			Msg("provider attempt failed")
		attempts = append(attempts, Attempt{Provider: a.ID(), Err: err})
	}

	return Result{}, &ExhaustedError{Query: q, Attempts: attempts}
}

// acquirePermit tries for a non-blocking permit. A trading caller
// prefers failover over waiting, so only the last candidate earns a
// bounded wait.
func (f *Fetcher) acquirePermit(ctx context.Context, providerID string, lastCandidate bool) bool {
	if f.limiter == nil {
		return true
	}
	ok, _ := f.limiter.Acquire(providerID)
	if ok {
		return true
	}
	if !lastCandidate {
		return false
	}
	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.PermitWait)
	defer cancel()
	return f.limiter.Wait(waitCtx, providerID) == nil
}

func (f *Fetcher) call(ctx context.Context, q Query, a Adapter) (Result, error) {
	req, err := a.BuildRequest(q)
	if err != nil {
		return Result{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
	defer cancel()

	status, body, err := f.transport.Do(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Result{}, fmt.Errorf("%w: call timed out after %s", ErrUpstream, f.cfg.CallTimeout)
		}
		return Result{}, fmt.Errorf("%w: transport: %v", ErrUpstream, err)
	}
	return a.ParseResponse(q, status, body)
}

// Package ratelimit admits or rejects inbound events per (scope, principal)
// under configured quotas. Buckets are consulted in fixed order: global(IP),
// then user(identity) with role multipliers, then the per-event bucket.
// Admission is atomic: a rejection consumes nothing.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	apperrors "github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Scope identifies which quota rejected an event.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeUser   Scope = "user"
	ScopeEvent  Scope = "event"
)

// systemEvents are never rate-limited.
var systemEvents = map[string]bool{
	"connect":       true,
	"disconnect":    true,
	"authenticate":  true,
	"authenticated": true,
	"auth_failed":   true,
	"heartbeat":     true,
	"rate_limited":  true,
	"token_refresh": true,
}

// Request describes one inbound event to admit.
type Request struct {
	IP       string
	Identity string
	Roles    []string
	Event    string
}

// Decision is the admission outcome with the structured metadata the
// contract requires on rejection.
type Decision struct {
	Allowed         bool
	Rejected        Scope
	Forbidden       bool
	RemainingPoints int
	TotalHits       int
	MsBeforeNext    int64
}

// AsError converts a rejection into its typed error. Returns nil when the
// request was admitted.
func (d *Decision) AsError() error {
	if d.Allowed {
		return nil
	}
	if d.Forbidden {
		return apperrors.NewForbiddenError("principal is blacklisted")
	}
	return &apperrors.RateLimitError{
		Scope:           string(d.Rejected),
		MsBeforeNext:    d.MsBeforeNext,
		RemainingPoints: d.RemainingPoints,
		TotalHits:       d.TotalHits,
	}
}

// Limiter enforces the connection-tier quotas.
type Limiter struct {
	store Store
	cfg   *sharedConfig.RateLimitConfig
	log   logger.Interface

	whitelist        map[string]bool
	blacklist        map[string]bool
	failClosedEvents map[string]bool

	storeOutages *prometheus.CounterVec
}

// NewLimiter builds a limiter over the given store.
func NewLimiter(store Store, cfg *sharedConfig.RateLimitConfig, reg prometheus.Registerer) *Limiter {
	l := &Limiter{
		store:            store,
		cfg:              cfg,
		log:              logger.NewLogger().With("component", "ratelimit"),
		whitelist:        toSet(cfg.Whitelist),
		blacklist:        toSet(cfg.Blacklist),
		failClosedEvents: toSet(cfg.FailClosedEvents),
		storeOutages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_ratelimit_store_outages_total",
			Help: "Rate-limit store failures by admission outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(l.storeOutages)
	}
	return l
}

// Allow runs the admission pipeline for one inbound event. Rejections are
// reported in the Decision, not as an error; the returned error is reserved
// for unexpected internal failures.
func (l *Limiter) Allow(ctx context.Context, req Request) (*Decision, error) {
	if isSystemEvent(req.Event) {
		return &Decision{Allowed: true}, nil
	}

	if l.blacklist[req.Identity] || l.blacklist[req.IP] {
		return &Decision{Allowed: false, Forbidden: true}, nil
	}
	if l.whitelist[req.Identity] || l.whitelist[req.IP] {
		return &Decision{Allowed: true}, nil
	}

	checks, scopes := l.buildChecks(req)
	if len(checks) == 0 {
		return &Decision{Allowed: true}, nil
	}

	// A standing block trumps everything; it is never extended or consumed.
	for i, c := range checks {
		ttl, err := l.store.BlockTTL(ctx, c.Key)
		if err != nil {
			return l.storeFailure(req, scopes[i], err), nil
		}
		if ttl > 0 {
			d := &Decision{
				Allowed:      false,
				Rejected:     scopes[i],
				MsBeforeNext: ttl.Milliseconds(),
			}
			// The bucket counter may outlive its window; report it while it
			// is still live.
			if state, live, perr := l.store.Peek(ctx, c.Key); perr == nil && live {
				remaining := c.Limit - int(state.Hits)
				if remaining < 0 {
					remaining = 0
				}
				d.RemainingPoints = remaining
				d.TotalHits = int(state.Hits)
			}
			return d, nil
		}
	}

	allowed, failedIdx, states, err := l.store.Consume(ctx, checks)
	if err != nil {
		scope := ScopeGlobal
		if len(scopes) > 0 {
			scope = scopes[0]
		}
		return l.storeFailure(req, scope, err), nil
	}

	if allowed {
		return &Decision{Allowed: true}, nil
	}

	failed := checks[failedIdx]
	state := states[0]
	remaining := failed.Limit - int(state.Hits)
	if remaining < 0 {
		remaining = 0
	}
	msBeforeNext := state.TTL.Milliseconds()

	// Exhaustion starts the block penalty for the failing scope.
	block := l.blockDuration(scopes[failedIdx], req.Event)
	if block > 0 {
		if err := l.store.SetBlock(ctx, failed.Key, block); err != nil {
			l.log.Warnw("failed to set rate-limit block", "key", failed.Key, "error", err)
		}
		msBeforeNext = block.Milliseconds()
	}

	return &Decision{
		Allowed:         false,
		Rejected:        scopes[failedIdx],
		RemainingPoints: remaining,
		TotalHits:       int(state.Hits) + 1,
		MsBeforeNext:    msBeforeNext,
	}, nil
}

// Reset clears bucket and block state for a principal across all scopes.
func (l *Limiter) Reset(ctx context.Context, req Request) error {
	checks, _ := l.buildChecks(req)
	for _, c := range checks {
		if err := l.store.Reset(ctx, c.Key); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) buildChecks(req Request) ([]BucketCheck, []Scope) {
	var checks []BucketCheck
	var scopes []Scope

	if req.IP != "" && l.cfg.Global.Points > 0 {
		limit, window := l.limitAndWindow(l.cfg.Global, nil)
		checks = append(checks, BucketCheck{
			Key:    "ws_global_rl:" + req.IP,
			Limit:  limit,
			Window: window,
		})
		scopes = append(scopes, ScopeGlobal)
	}

	if req.Identity != "" && l.cfg.User.Points > 0 {
		limit, window := l.limitAndWindow(l.cfg.User, req.Roles)
		checks = append(checks, BucketCheck{
			Key:    "ws_user_rl:" + req.Identity,
			Limit:  limit,
			Window: window,
		})
		scopes = append(scopes, ScopeUser)
	}

	if bucket, ok := l.cfg.Events[req.Event]; ok && bucket.Points > 0 {
		principal := req.Identity
		if principal == "" {
			principal = req.IP
		}
		limit, window := l.limitAndWindow(bucket, req.Roles)
		checks = append(checks, BucketCheck{
			Key:    "ws_event_" + req.Event + "_rl:" + principal,
			Limit:  limit,
			Window: window,
		})
		scopes = append(scopes, ScopeEvent)
	}

	return checks, scopes
}

// limitAndWindow applies the highest matching role multiplier and the
// execEvenly smoothing. Smoothing divides the window into per-point
// sub-windows so bursts are spread instead of front-loaded. Global(IP)
// buckets pass nil roles and keep their base points.
func (l *Limiter) limitAndWindow(bucket sharedConfig.BucketConfig, roles []string) (int, time.Duration) {
	points := float64(bucket.Points)
	window := time.Duration(bucket.Duration) * time.Second

	best := 1.0
	for _, role := range roles {
		if m, ok := l.cfg.RoleMultipliers[role]; ok && m > best {
			best = m
		}
	}
	points *= best

	limit := int(points)
	if limit < 1 {
		limit = 1
	}

	if bucket.ExecEvenly && limit > 1 {
		return 1, window / time.Duration(limit)
	}
	return limit, window
}

func (l *Limiter) blockDuration(scope Scope, event string) time.Duration {
	switch scope {
	case ScopeGlobal:
		return time.Duration(l.cfg.Global.BlockDuration) * time.Second
	case ScopeUser:
		return time.Duration(l.cfg.User.BlockDuration) * time.Second
	case ScopeEvent:
		if bucket, ok := l.cfg.Events[event]; ok {
			return time.Duration(bucket.BlockDuration) * time.Second
		}
	}
	return 0
}

// storeFailure applies the degradation policy: fail-open for global and user
// scopes (configurable), fail-closed for event buckets carrying destructive
// side effects. Outages are always counted.
func (l *Limiter) storeFailure(req Request, scope Scope, err error) *Decision {
	failOpen := l.cfg.FailOpen
	if l.failClosedEvents[req.Event] {
		failOpen = false
	}

	outcome := "fail_open"
	if !failOpen {
		outcome = "fail_closed"
	}
	l.storeOutages.WithLabelValues(outcome).Inc()
	l.log.Errorw("rate-limit store unavailable",
		"scope", string(scope),
		"event", req.Event,
		"outcome", outcome,
		"error", err,
	)

	if failOpen {
		return &Decision{Allowed: true}
	}
	return &Decision{Allowed: false, Rejected: scope, MsBeforeNext: 1000}
}

func isSystemEvent(event string) bool {
	if event == "" {
		return false
	}
	return systemEvents[event] || strings.HasPrefix(event, "system:")
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

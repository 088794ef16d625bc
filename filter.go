package plog

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/trickstertwo/xclock"
	"golang.org/x/time/rate"
)

// Filter decides whether a channel accepts a record.
// Implementations must be safe for concurrent use.
type Filter interface {
	Accept(r *Record) bool
}

// CheckedFilter is implemented by filters that can fail to decide. A non-nil
// error is a filter fault: the dispatcher accepts the record and reports it.
type CheckedFilter interface {
	Filter
	Check(r *Record) (bool, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(r *Record) bool

func (f FilterFunc) Accept(r *Record) bool { return f(r) }

var errClockUnavailable = errors.New("clock unavailable")

type constFilter bool

func (c constFilter) Accept(*Record) bool { return bool(c) }

var (
	// Always accepts every record.
	Always Filter = constFilter(true)
	// Never rejects every record.
	Never Filter = constFilter(false)
)

type threshold Level

func (t threshold) Accept(r *Record) bool { return r.Level >= Level(t) }

// Threshold accepts records at or above min.
func Threshold(min Level) Filter { return threshold(ClampLevel(min)) }

// RateLimit accepts at most N records per level within each fixed window.
type RateLimit struct {
	n      int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[Level]*rateWindow
}

type rateWindow struct {
	start time.Time
	count int
}

// NewRateLimit builds a fixed-window limiter. n <= 0 or window <= 0 is a
// configuration error.
func NewRateLimit(n int, window time.Duration) (*RateLimit, error) {
	if n <= 0 {
		return nil, &ConfigError{Field: "rateLimit.n", Reason: "must be positive"}
	}
	if window <= 0 {
		return nil, &ConfigError{Field: "rateLimit.window", Reason: "must be positive"}
	}
	return &RateLimit{
		n:       n,
		window:  window,
		now:     xclock.Now,
		windows: make(map[Level]*rateWindow, len(levels)),
	}, nil
}

func (rl *RateLimit) Accept(r *Record) bool {
	ok, err := rl.Check(r)
	return ok || err != nil
}

func (rl *RateLimit) Check(r *Record) (bool, error) {
	t := rl.now()
	if t.IsZero() {
		return true, errClockUnavailable
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.windows[r.Level]
	if !ok {
		w = &rateWindow{start: t}
		rl.windows[r.Level] = w
	}
	if t.Sub(w.start) >= rl.window || t.Before(w.start) {
		w.start = t
		w.count = 0
	}
	if w.count >= rl.n {
		return false, nil
	}
	w.count++
	return true, nil
}

// TokenBucket smooths bursts per level with a token bucket.
type TokenBucket struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[Level]*rate.Limiter
}

// NewTokenBucket accepts perSecond records per level on average with bursts up
// to burst.
func NewTokenBucket(perSecond float64, burst int) (*TokenBucket, error) {
	if perSecond <= 0 {
		return nil, &ConfigError{Field: "tokenBucket.rate", Reason: "must be positive"}
	}
	if burst <= 0 {
		return nil, &ConfigError{Field: "tokenBucket.burst", Reason: "must be positive"}
	}
	return &TokenBucket{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      xclock.Now,
		limiters: make(map[Level]*rate.Limiter, len(levels)),
	}, nil
}

func (tb *TokenBucket) Accept(r *Record) bool {
	ok, err := tb.Check(r)
	return ok || err != nil
}

func (tb *TokenBucket) Check(r *Record) (bool, error) {
	t := tb.now()
	if t.IsZero() {
		return true, errClockUnavailable
	}
	tb.mu.Lock()
	l, ok := tb.limiters[r.Level]
	if !ok {
		l = rate.NewLimiter(tb.limit, tb.burst)
		tb.limiters[r.Level] = l
	}
	tb.mu.Unlock()
	return l.AllowN(t, 1), nil
}

type allOf []Filter

func (a allOf) Accept(r *Record) bool {
	ok, _ := a.Check(r)
	return ok
}

// Check evaluates each child with fail-open semantics and returns the first
// child fault alongside the combined decision.
func (a allOf) Check(r *Record) (bool, error) {
	var first error
	for _, f := range a {
		ok, fault := evaluate(f, r)
		if fault != nil && first == nil {
			first = fault
		}
		if !ok {
			return false, first
		}
	}
	return true, first
}

func (allOf) resolvesFaults() {}

type anyOf []Filter

func (a anyOf) Accept(r *Record) bool {
	ok, _ := a.Check(r)
	return ok
}

func (a anyOf) Check(r *Record) (bool, error) {
	var first error
	for _, f := range a {
		ok, fault := evaluate(f, r)
		if fault != nil && first == nil {
			first = fault
		}
		if ok {
			return true, first
		}
	}
	return false, first
}

func (anyOf) resolvesFaults() {}

// faultResolver marks composites whose decision already accounts for child
// faults, so a reported fault does not force acceptance.
type faultResolver interface{ resolvesFaults() }

// And accepts when every filter accepts. An empty And accepts everything.
func And(fs ...Filter) Filter { return allOf(compact(fs)) }

// Or accepts when any filter accepts. An empty Or rejects everything.
func Or(fs ...Filter) Filter { return anyOf(compact(fs)) }

func compact(fs []Filter) []Filter {
	out := make([]Filter, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

type messageMatch struct{ re *regexp.Regexp }

func (m messageMatch) Accept(r *Record) bool { return m.re.MatchString(r.Message) }

// MessageMatch accepts records whose message matches the regular expression.
func MessageMatch(pattern string) (Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &ConfigError{Field: "filter.pattern", Reason: "invalid pattern", Err: err}
	}
	return messageMatch{re: re}, nil
}

// evaluate runs f against r and fails open on errors and panics.
func evaluate(f Filter, r *Record) (ok bool, fault error) {
	defer func() {
		if p := recover(); p != nil {
			ok, fault = true, panicError(p)
		}
	}()
	if cf, isChecked := f.(CheckedFilter); isChecked {
		ok, fault = cf.Check(r)
		if fault != nil {
			if _, resolved := f.(faultResolver); !resolved {
				ok = true
			}
		}
		return ok, fault
	}
	return f.Accept(r), nil
}

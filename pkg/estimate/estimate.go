// Package estimate derives account creation-date estimates from indirect
// profile signals: the numeric user ID, the shape of the username, and
// audience metrics. Each classifier produces an independent dated estimate
// with a confidence weight; the aggregator combines them into a single
// answer with a confidence label and accuracy band.
//
// Basic usage:
//
//	est := estimate.New()
//	result := est.AccountAge("3000000000", "charli", 150_000_000, 11_000_000_000, true)
//	fmt.Println(estimate.FormatDate(result.EstimatedDate), result.Confidence)
package estimate

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Confidence is the ordinal weight assigned to an estimation method.
// The numeric value is used directly in the weighted average.
type Confidence int

// Confidence weights in increasing order of trust.
const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the confidence as its label rather than its weight.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// Method labels reported in results.
const (
	MethodUserID   = "User ID Analysis"
	MethodUsername = "Username Pattern"
	MethodMetrics  = "Profile Metrics"
	MethodDefault  = "Default"
)

// Estimate is a single method's dated guess at account creation.
type Estimate struct {
	Date       time.Time  `json:"date"`
	Confidence Confidence `json:"confidence"`
	Method     string     `json:"method"`
}

// Result combines all available estimates into a final answer.
type Result struct {
	EstimatedDate time.Time  `json:"estimated_date"`
	Confidence    string     `json:"confidence"`
	Method        string     `json:"method"`
	Accuracy      string     `json:"accuracy"`
	AllEstimates  []Estimate `json:"all_estimates"`
}

// Estimator runs the classification pipeline. It holds no mutable state
// beyond the optional memoization map and is safe for concurrent use.
type Estimator struct {
	logger *slog.Logger
	now    func() time.Time
	memo   *sync.Map
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) { e.logger = logger }
}

// WithClock overrides the time source used for future-date filtering and
// the default-result date.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) { e.now = now }
}

// WithMemoization caches results keyed by the full input tuple plus the
// current hour. Cached future-date filtering decisions go stale as the
// clock advances, so entries expire on the hour boundary; callers needing
// exact freshness should skip this option.
func WithMemoization() Option {
	return func(e *Estimator) { e.memo = &sync.Map{} }
}

// New creates an Estimator.
func New(opts ...Option) *Estimator {
	e := &Estimator{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AccountAge runs all classifiers on the given signals and aggregates their
// estimates. Every input combination, however degenerate, yields a
// well-formed Result; there is no error path.
func (e *Estimator) AccountAge(userID, username string, followers, totalLikes int64, verified bool) Result {
	now := e.now().UTC()

	if e.memo == nil {
		return e.accountAge(now, userID, username, followers, totalLikes, verified)
	}

	key := memoKey(userID, username, followers, totalLikes, verified, now)
	if v, ok := e.memo.Load(key); ok {
		if r, ok := v.(Result); ok {
			return r
		}
	}
	r := e.accountAge(now, userID, username, followers, totalLikes, verified)
	e.memo.Store(key, r)
	return r
}

func (e *Estimator) accountAge(now time.Time, userID, username string, followers, totalLikes int64, verified bool) Result {
	var estimates []Estimate
	if est, ok := e.FromUserID(userID); ok {
		estimates = append(estimates, est)
	}
	if est, ok := e.FromUsername(username); ok {
		estimates = append(estimates, est)
	}
	if est, ok := e.FromMetrics(followers, totalLikes, verified); ok {
		estimates = append(estimates, est)
	}
	return e.aggregate(now, estimates)
}

func memoKey(userID, username string, followers, totalLikes int64, verified bool, now time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%d|%t|%d",
		userID, username, followers, totalLikes, verified, now.Truncate(time.Hour).Unix())
}

// aggregate combines estimates into a Result. Estimates dated in the future
// relative to now are dropped as misconfiguration; if nothing survives, the
// default result anchors at now with very_low confidence.
func (e *Estimator) aggregate(now time.Time, estimates []Estimate) Result {
	valid := make([]Estimate, 0, len(estimates))
	for _, est := range estimates {
		if est.Date.After(now) {
			e.logger.Warn("dropping future-dated estimate", "method", est.Method, "date", est.Date)
			continue
		}
		valid = append(valid, est)
	}

	if len(valid) == 0 {
		return Result{
			EstimatedDate: now,
			Confidence:    "very_low",
			Method:        MethodDefault,
			Accuracy:      "± 2 years",
			AllEstimates:  []Estimate{},
		}
	}

	// Arithmetic mean in epoch-seconds space, weighted by ordinal
	// confidence. Not calendar-aware.
	var weightedSum, totalWeight float64
	var maxConfidence Confidence
	for _, est := range valid {
		weight := float64(est.Confidence)
		weightedSum += float64(est.Date.Unix()) * weight
		totalWeight += weight
		if est.Confidence > maxConfidence {
			maxConfidence = est.Confidence
		}
	}
	final := time.Unix(int64(weightedSum/totalWeight), 0).UTC()

	// First estimate at the maximum weight names the method; evaluation
	// order is ID, username, metrics.
	method := "Combined"
	for _, est := range valid {
		if est.Confidence == maxConfidence {
			method = est.Method
			break
		}
	}

	return Result{
		EstimatedDate: final,
		Confidence:    maxConfidence.String(),
		Method:        method,
		Accuracy:      accuracyFor(maxConfidence),
		AllEstimates:  valid,
	}
}

// accuracyFor maps a confidence weight to its error band.
func accuracyFor(c Confidence) string {
	switch c {
	case ConfidenceHigh:
		return "± 6 months"
	case ConfidenceMedium:
		return "± 1 year"
	default:
		return "± 2 years"
	}
}

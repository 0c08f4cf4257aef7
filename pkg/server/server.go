// Package server exposes profile age estimation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/codeGROOVE-dev/tokage/pkg/estimate"
	"github.com/codeGROOVE-dev/tokage/pkg/httpcache"
	"github.com/codeGROOVE-dev/tokage/pkg/tiktok"
)

// Fetcher retrieves a profile by username.
type Fetcher interface {
	Fetch(ctx context.Context, username string) (*tiktok.Profile, error)
}

// Server routes profile requests through the fetcher and estimator.
type Server struct {
	fetcher   Fetcher
	estimator *estimate.Estimator
	cache     httpcache.Cacher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithResponseCache caches rendered responses keyed by username.
func WithResponseCache(cache httpcache.Cacher) Option {
	return func(s *Server) { s.cache = cache }
}

// WithEstimator sets a custom estimator.
func WithEstimator(est *estimate.Estimator) Option {
	return func(s *Server) { s.estimator = est }
}

// WithClock overrides the time source used for age rendering.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server around the given fetcher.
func New(fetcher Fetcher, opts ...Option) *Server {
	s := &Server{
		fetcher:   fetcher,
		estimator: estimate.New(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/profile/{username}", s.handleProfile)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		s.writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	ctx := r.Context()
	body, err := s.profileJSON(ctx, username)
	if err != nil {
		s.logger.WarnContext(ctx, "profile request failed", "username", username, "error", err)
		switch {
		case errors.Is(err, tiktok.ErrProfileNotFound):
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("profile not found: %s", username))
		case errors.Is(err, tiktok.ErrRateLimited):
			s.writeError(w, http.StatusTooManyRequests, "rate limited by upstream, try again later")
		default:
			s.writeError(w, http.StatusBadGateway, "failed to fetch profile")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // response already committed
}

// profileJSON fetches, estimates, and renders a profile response. Rendered
// responses are cached; errors are not, so transient upstream failures do
// not stick for the full TTL.
func (s *Server) profileJSON(ctx context.Context, username string) ([]byte, error) {
	render := func(ctx context.Context) ([]byte, error) {
		p, err := s.fetcher.Fetch(ctx, username)
		if err != nil {
			return nil, err
		}
		res := s.estimator.AccountAge(p.UserID, p.Username, p.Followers, p.TotalLikes, p.Verified)
		return json.Marshal(Render(p, res, s.now().UTC()))
	}

	if s.cache == nil {
		return render(ctx)
	}
	return s.cache.GetSet(ctx, "profile:"+username, render, s.cache.TTL())
}

// ProfileResponse is the wire format for a profile estimation.
type ProfileResponse struct {
	Username              string            `json:"username"`
	DisplayName           string            `json:"display_name"`
	AvatarURL             string            `json:"avatar_url"`
	Region                string            `json:"region"`
	Bio                   string            `json:"bio"`
	UserID                string            `json:"user_id"`
	EstimatedCreationDate string            `json:"estimated_creation_date"`
	AccountAge            string            `json:"account_age"`
	EstimationConfidence  string            `json:"estimation_confidence"`
	EstimationMethod      string            `json:"estimation_method"`
	AccuracyRange         string            `json:"accuracy_range"`
	EstimationDetails     EstimationDetails `json:"estimation_details"`
	Followers             int64             `json:"followers"`
	TotalLikes            int64             `json:"total_likes"`
	Verified              bool              `json:"verified"`
}

// EstimationDetails carries the per-method breakdown.
type EstimationDetails struct {
	Note         string           `json:"note"`
	AllEstimates []MethodEstimate `json:"all_estimates"`
}

// MethodEstimate is one classifier's contribution.
type MethodEstimate struct {
	Method     string `json:"method"`
	Date       string `json:"date"`
	Confidence string `json:"confidence"`
}

// Render combines a fetched profile and an estimation result into the
// response document.
func Render(p *tiktok.Profile, res estimate.Result, now time.Time) ProfileResponse {
	details := EstimationDetails{
		Note:         "Estimated creation date based on multiple analysis methods",
		AllEstimates: make([]MethodEstimate, 0, len(res.AllEstimates)),
	}
	for _, est := range res.AllEstimates {
		details.AllEstimates = append(details.AllEstimates, MethodEstimate{
			Method:     est.Method,
			Date:       estimate.FormatDate(est.Date),
			Confidence: est.Confidence.String(),
		})
	}

	return ProfileResponse{
		Username:              p.Username,
		DisplayName:           p.DisplayName,
		AvatarURL:             p.AvatarURL,
		Region:                p.Region,
		Bio:                   p.Bio,
		UserID:                p.UserID,
		Followers:             p.Followers,
		TotalLikes:            p.TotalLikes,
		Verified:              p.Verified,
		EstimatedCreationDate: estimate.FormatDate(res.EstimatedDate),
		AccountAge:            estimate.Age(res.EstimatedDate, now),
		EstimationConfidence:  res.Confidence,
		EstimationMethod:      res.Method,
		AccuracyRange:         res.Accuracy,
		EstimationDetails:     details,
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Debug("response encoding failed", "error", err)
	}
}

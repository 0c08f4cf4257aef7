package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/tokage/pkg/estimate"
	"github.com/codeGROOVE-dev/tokage/pkg/tiktok"
)

// fakeFetcher returns canned profiles and counts calls.
type fakeFetcher struct {
	profiles map[string]*tiktok.Profile
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(_ context.Context, username string) (*tiktok.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tiktok.ErrProfileNotFound, username)
	}
	return p, nil
}

// mapCache is an in-memory response cache for tests.
type mapCache struct {
	data map[string][]byte
}

func (m *mapCache) GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), _ ...time.Duration) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	m.data[key] = v
	return v, nil
}

func (*mapCache) TTL() time.Duration { return time.Hour }

var testProfile = &tiktok.Profile{
	Username:    "dancequeen",
	DisplayName: "Dance Queen",
	AvatarURL:   "https://cdn.example.com/avatar.jpg",
	Bio:         "dancing daily",
	Region:      "US",
	UserID:      "3000000000",
	URL:         "https://www.tiktok.com/@dancequeen",
	Followers:   150000,
	TotalLikes:  2500000,
	Verified:    true,
}

func newTestServer(f Fetcher, opts ...Option) *httptest.Server {
	now := time.Date(2026, time.August, 23, 0, 0, 0, 0, time.UTC)
	opts = append([]Option{
		WithEstimator(estimate.New(estimate.WithClock(func() time.Time { return now }))),
		WithClock(func() time.Time { return now }),
	}, opts...)
	return httptest.NewServer(New(f, opts...).Handler())
}

func TestProfileEndpoint(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*tiktok.Profile{"dancequeen": testProfile}}
	srv := newTestServer(fetcher)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/profile/dancequeen")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}

	var got ProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Username != "dancequeen" {
		t.Errorf("username = %q, want dancequeen", got.Username)
	}
	if got.UserID != "3000000000" {
		t.Errorf("user_id = %q, want 3000000000", got.UserID)
	}
	// ID range 2e9..5e9 pins the highest-confidence estimate.
	if got.EstimationConfidence != "high" {
		t.Errorf("confidence = %q, want high", got.EstimationConfidence)
	}
	if got.EstimationMethod != "User ID Analysis" {
		t.Errorf("method = %q, want User ID Analysis", got.EstimationMethod)
	}
	if got.AccuracyRange != "± 6 months" {
		t.Errorf("accuracy = %q, want ± 6 months", got.AccuracyRange)
	}
	if got.EstimatedCreationDate == "" {
		t.Error("estimated_creation_date is empty")
	}
	if got.AccountAge == "" || got.AccountAge == "0 days" {
		t.Errorf("account_age = %q, want a positive age", got.AccountAge)
	}
	if len(got.EstimationDetails.AllEstimates) != 3 {
		t.Errorf("got %d estimates, want 3", len(got.EstimationDetails.AllEstimates))
	}
}

func TestProfileEndpointNotFound(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*tiktok.Profile{}}
	srv := newTestServer(fetcher)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/profile/nobody")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestProfileEndpointRateLimited(t *testing.T) {
	fetcher := &fakeFetcher{err: tiktok.ErrRateLimited}
	srv := newTestServer(fetcher)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/profile/anyone")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestProfileEndpointUpstreamError(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("request failed: connection reset")}
	srv := newTestServer(fetcher)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/profile/anyone")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestProfileEndpointCaching(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*tiktok.Profile{"dancequeen": testProfile}}
	srv := newTestServer(fetcher, WithResponseCache(&mapCache{data: make(map[string][]byte)}))
	defer srv.Close()

	for range 3 {
		resp, err := http.Get(srv.URL + "/api/profile/dancequeen")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close() //nolint:errcheck // test
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	}

	if fetcher.calls != 1 {
		t.Errorf("fetcher saw %d calls, want 1", fetcher.calls)
	}
}

func TestProfileEndpointErrorsNotCached(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]*tiktok.Profile{}}
	srv := newTestServer(fetcher, WithResponseCache(&mapCache{data: make(map[string][]byte)}))
	defer srv.Close()

	for range 2 {
		resp, err := http.Get(srv.URL + "/api/profile/nobody")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close() //nolint:errcheck // test
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
	}

	// Failures must reach the fetcher every time.
	if fetcher.calls != 2 {
		t.Errorf("fetcher saw %d calls, want 2", fetcher.calls)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeFetcher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(&fakeFetcher{profiles: map[string]*tiktok.Profile{"dancequeen": testProfile}})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/profile/dancequeen", http.NoBody)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Origin", "https://example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck // test

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRender(t *testing.T) {
	now := time.Date(2026, time.August, 23, 0, 0, 0, 0, time.UTC)
	res := estimate.Result{
		EstimatedDate: time.Date(2018, time.August, 1, 0, 0, 0, 0, time.UTC),
		Confidence:    "high",
		Method:        "User ID Analysis",
		Accuracy:      "± 6 months",
		AllEstimates: []estimate.Estimate{
			{Date: time.Date(2018, time.August, 1, 0, 0, 0, 0, time.UTC), Confidence: estimate.ConfidenceHigh, Method: "User ID Analysis"},
		},
	}

	got := Render(testProfile, res, now)

	if got.EstimatedCreationDate != "August 01, 2018" {
		t.Errorf("estimated_creation_date = %q, want %q", got.EstimatedCreationDate, "August 01, 2018")
	}
	if got.AccountAge != "8 years" {
		t.Errorf("account_age = %q, want %q", got.AccountAge, "8 years")
	}
	if len(got.EstimationDetails.AllEstimates) != 1 {
		t.Fatalf("got %d estimates, want 1", len(got.EstimationDetails.AllEstimates))
	}
	if got.EstimationDetails.AllEstimates[0].Confidence != "high" {
		t.Errorf("detail confidence = %q, want high", got.EstimationDetails.AllEstimates[0].Confidence)
	}
	if got.EstimationDetails.Note == "" {
		t.Error("note is empty")
	}
}

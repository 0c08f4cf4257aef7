package tiktok

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.tiktok.com/@someuser", true},
		{"https://tiktok.com/@someuser", true},
		{"https://WWW.TIKTOK.COM/@SomeUser", true},
		{"https://www.tiktok.com/discover", false},
		{"https://example.com/@someuser", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := Match(tt.url); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestExtractUsername(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.tiktok.com/@charlidamelio", "charlidamelio"},
		{"https://www.tiktok.com/@charlidamelio?lang=en", "charlidamelio"},
		{"https://www.tiktok.com/@charlidamelio/video/123", "charlidamelio"},
		{"@charlidamelio", "charlidamelio"},
		{"charlidamelio", "charlidamelio"},
	}

	for _, tt := range tests {
		if got := extractUsername(tt.input); got != tt.want {
			t.Errorf("extractUsername(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input any
		want  int64
	}{
		{float64(12345), 12345},
		{float64(0), 0},
		{float64(-5), 0},
		{"1234", 1234},
		{"1,234,567", 1234567},
		{"1.2K", 1200},
		{"3.4M", 3400000},
		{"1.1B", 1100000000},
		{"garbage", 0},
		{"", 0},
		{nil, 0},
		{true, 0},
	}

	for _, tt := range tests {
		if got := parseCount(tt.input); got != tt.want {
			t.Errorf("parseCount(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestHasRehydrationData(t *testing.T) {
	if !hasRehydrationData([]byte(profileFixture)) {
		t.Error("full profile page should pass validation")
	}
	if hasRehydrationData([]byte("<html><body>Verify you are human</body></html>")) {
		t.Error("bot-wall page should fail validation")
	}
	if hasRehydrationData(nil) {
		t.Error("empty body should fail validation")
	}
}

const profileFixture = `<!DOCTYPE html><html><head></head><body>
<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">{
  "__DEFAULT_SCOPE__": {
    "webapp.user-detail": {
      "userInfo": {
        "user": {
          "id": "3000000000",
          "uniqueId": "dancequeen",
          "nickname": "Dance Queen",
          "signature": "dancing daily",
          "region": "US",
          "verified": true,
          "avatarLarger": "https://cdn.example.com/avatar-large.jpg",
          "avatarMedium": "https://cdn.example.com/avatar-medium.jpg"
        },
        "stats": {
          "followerCount": 150000,
          "heartCount": 2500000
        }
      }
    }
  }
}</script>
</body></html>`

func TestParseProfile(t *testing.T) {
	c, err := New(context.Background())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got, err := c.parseProfile(context.Background(), []byte(profileFixture), "https://www.tiktok.com/@dancequeen")
	if err != nil {
		t.Fatalf("parseProfile failed: %v", err)
	}

	want := &Profile{
		Username:    "dancequeen",
		DisplayName: "Dance Queen",
		AvatarURL:   "https://cdn.example.com/avatar-large.jpg",
		Bio:         "dancing daily",
		Region:      "US",
		UserID:      "3000000000",
		URL:         "https://www.tiktok.com/@dancequeen",
		Followers:   150000,
		TotalLikes:  2500000,
		Verified:    true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
}

const notFoundFixture = `<!DOCTYPE html><html><body>
<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">{
  "__DEFAULT_SCOPE__": {
    "webapp.user-detail": {
      "userInfo": {}
    }
  }
}</script>
</body></html>`

func TestParseProfileNotFound(t *testing.T) {
	c, err := New(context.Background())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.parseProfile(context.Background(), []byte(notFoundFixture), "https://www.tiktok.com/@ghost")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestParseProfileNoData(t *testing.T) {
	c, err := New(context.Background())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.parseProfile(context.Background(), []byte("<html><body>nothing here</body></html>"), "https://www.tiktok.com/@ghost")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestParseProfileAvatarFallback(t *testing.T) {
	const fixture = `<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">{
  "__DEFAULT_SCOPE__": {
    "webapp.user-detail": {
      "userInfo": {
        "user": {
          "uniqueId": "noavatar",
          "avatarMedium": "https://cdn.example.com/medium.jpg"
        },
        "stats": {"followerCount": 10}
      }
    }
  }
}</script>`

	c, err := New(context.Background())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got, err := c.parseProfile(context.Background(), []byte(fixture), "https://www.tiktok.com/@noavatar")
	if err != nil {
		t.Fatalf("parseProfile failed: %v", err)
	}
	if got.AvatarURL != "https://cdn.example.com/medium.jpg" {
		t.Errorf("avatar = %q, want medium fallback", got.AvatarURL)
	}
}

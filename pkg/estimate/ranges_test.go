package estimate

import (
	"fmt"
	"strconv"
	"testing"
	"time"
)

func TestFromUserID_RangeBoundaries(t *testing.T) {
	e := New()

	// Every lower bound and every upper-bound-minus-one must resolve to
	// its own range's date.
	for i, r := range userIDEras {
		lo := strconv.FormatUint(r.lo, 10)
		est, ok := e.FromUserID(lo)
		if !ok {
			t.Fatalf("FromUserID(%s) returned no estimate", lo)
		}
		if !est.Date.Equal(r.date) {
			t.Errorf("range %d: FromUserID(%s) = %v, want %v", i, lo, est.Date, r.date)
		}

		if r.open {
			continue
		}
		hi := strconv.FormatUint(r.hi-1, 10)
		est, ok = e.FromUserID(hi)
		if !ok {
			t.Fatalf("FromUserID(%s) returned no estimate", hi)
		}
		if !est.Date.Equal(r.date) {
			t.Errorf("range %d: FromUserID(%s) = %v, want %v", i, hi, est.Date, r.date)
		}
	}
}

func TestFromUserID_GrowthPeriodExample(t *testing.T) {
	e := New()

	est, ok := e.FromUserID("3000000000")
	if !ok {
		t.Fatal("FromUserID returned no estimate")
	}
	want := time.Date(2018, time.August, 1, 0, 0, 0, 0, time.UTC)
	if !est.Date.Equal(want) {
		t.Errorf("date = %v, want %v", est.Date, want)
	}
	if est.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %v, want %v", est.Confidence, ConfidenceHigh)
	}
	if est.Method != MethodUserID {
		t.Errorf("method = %q, want %q", est.Method, MethodUserID)
	}
}

func TestFromUserID_BeyondUint64(t *testing.T) {
	e := New()

	// IDs larger than any fixed-width integer still land in the
	// open-ended bucket.
	est, ok := e.FromUserID("99999999999999999999999999")
	if !ok {
		t.Fatal("FromUserID returned no estimate")
	}
	want := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	if !est.Date.Equal(want) {
		t.Errorf("date = %v, want %v", est.Date, want)
	}
}

func TestFromUserID_Invalid(t *testing.T) {
	e := New()

	for _, id := range []string{"", "abc", "12.5", "-5", "1e9", "12 34", "0x1f"} {
		t.Run(fmt.Sprintf("%q", id), func(t *testing.T) {
			if _, ok := e.FromUserID(id); ok {
				t.Errorf("FromUserID(%q) returned an estimate, want none", id)
			}
		})
	}
}

func TestUserIDEras_TotalCoverage(t *testing.T) {
	// Ranges must be contiguous from zero and end open-ended.
	var next uint64
	for i, r := range userIDEras {
		if r.lo != next {
			t.Errorf("range %d starts at %d, want %d", i, r.lo, next)
		}
		if r.open {
			if i != len(userIDEras)-1 {
				t.Errorf("range %d is open-ended but not last", i)
			}
			continue
		}
		if r.hi <= r.lo {
			t.Errorf("range %d is empty: [%d, %d)", i, r.lo, r.hi)
		}
		next = r.hi
	}
	if last := userIDEras[len(userIDEras)-1]; !last.open {
		t.Error("final range must be open-ended")
	}
}

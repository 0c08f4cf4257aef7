package estimate

import (
	"math"
	"time"
)

// Metrics scale logarithmically: each order of magnitude in audience size
// pushes the derived year roughly one year back from the anchor.
const (
	followerAnchorYear = 2024
	likesAnchorYear    = 2025
	oldestMetricYear   = 2016
	newestFollowerYear = 2021
	newestLikesYear    = 2020
)

var (
	// platformLaunch is the earliest possible account creation date.
	platformLaunch = monthStart(2016, time.September)
	// verifiedEra reflects that verified accounts tend to predate typical ones.
	verifiedEra = monthStart(2018, time.January)
	// typicalNewAccount is the fallback when no metric carries any signal.
	typicalNewAccount = monthStart(2021, time.January)
)

// FromMetrics estimates creation date from audience metrics. Each metric is
// a one-directional "at least this old" indicator, so the earliest candidate
// wins: a single strong signal may pull the estimate backward, never
// forward. Negative counts produce no estimate; all-zero inputs produce the
// typical-new-account default. The result never precedes the platform
// launch date.
func (e *Estimator) FromMetrics(followers, totalLikes int64, verified bool) (Estimate, bool) {
	if followers < 0 || totalLikes < 0 {
		e.logger.Warn("negative profile metrics", "followers", followers, "total_likes", totalLikes)
		return Estimate{}, false
	}

	var candidates []time.Time
	if followers > 0 {
		year := clampYear(followerAnchorYear-int(math.Log10(float64(followers)+1)), newestFollowerYear)
		candidates = append(candidates, time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
	}
	if totalLikes > 0 {
		year := clampYear(likesAnchorYear-int(math.Log10(float64(totalLikes)+1)), newestLikesYear)
		candidates = append(candidates, time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC))
	}
	if verified {
		candidates = append(candidates, verifiedEra)
	}

	date := typicalNewAccount
	if len(candidates) > 0 {
		date = candidates[0]
		for _, c := range candidates[1:] {
			if c.Before(date) {
				date = c
			}
		}
	}
	if date.Before(platformLaunch) {
		date = platformLaunch
	}

	return Estimate{Date: date, Confidence: ConfidenceLow, Method: MethodMetrics}, true
}

func clampYear(year, newest int) int {
	if year < oldestMetricYear {
		return oldestMetricYear
	}
	if year > newest {
		return newest
	}
	return year
}

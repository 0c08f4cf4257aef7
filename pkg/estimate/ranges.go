package estimate

import (
	"math/big"
	"time"
)

// idRange is one half-open [lo, hi) bucket of the user ID space. The final
// bucket is open-ended.
type idRange struct {
	lo   uint64
	hi   uint64
	open bool
	date time.Time
}

// userIDEras maps ID allocation ranges to approximate creation dates.
// Ranges are contiguous, non-overlapping, and cover [0, +inf); declaration
// order is authoritative.
var userIDEras = []idRange{
	{0, 100_000_000, false, monthStart(2016, time.September)},     // early beta
	{100_000_000, 500_000_000, false, monthStart(2017, time.January)}, // launch period
	{500_000_000, 1_000_000_000, false, monthStart(2017, time.June)},
	{1_000_000_000, 2_000_000_000, false, monthStart(2018, time.January)},
	{2_000_000_000, 5_000_000_000, false, monthStart(2018, time.August)}, // growth period
	{5_000_000_000, 10_000_000_000, false, monthStart(2019, time.March)},
	{10_000_000_000, 20_000_000_000, false, monthStart(2019, time.September)},
	{20_000_000_000, 50_000_000_000, false, monthStart(2020, time.March)}, // COVID boom
	{50_000_000_000, 100_000_000_000, false, monthStart(2020, time.September)},
	{100_000_000_000, 200_000_000_000, false, monthStart(2021, time.March)},
	{200_000_000_000, 500_000_000_000, false, monthStart(2021, time.September)},
	{500_000_000_000, 1_000_000_000_000, false, monthStart(2022, time.March)},
	{1_000_000_000_000, 2_000_000_000_000, false, monthStart(2022, time.September)},
	{2_000_000_000_000, 5_000_000_000_000, false, monthStart(2023, time.March)},
	{5_000_000_000_000, 10_000_000_000_000, false, monthStart(2023, time.September)},
	{10_000_000_000_000, 20_000_000_000_000, false, monthStart(2024, time.March)},
	{20_000_000_000_000, 0, true, monthStart(2024, time.September)},
}

func monthStart(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func (r idRange) contains(id *big.Int) bool {
	if id.Cmp(new(big.Int).SetUint64(r.lo)) < 0 {
		return false
	}
	if r.open {
		return true
	}
	return id.Cmp(new(big.Int).SetUint64(r.hi)) < 0
}

// FromUserID estimates creation date from the numeric user ID, the
// strongest available signal. The ID is parsed with unbounded precision;
// anything past the last range boundary lands in the open-ended bucket.
// Empty, non-numeric, or negative input produces no estimate.
func (e *Estimator) FromUserID(userID string) (Estimate, bool) {
	if userID == "" {
		return Estimate{}, false
	}
	id, ok := new(big.Int).SetString(userID, 10)
	if !ok || id.Sign() < 0 {
		e.logger.Warn("user ID is not a non-negative integer", "user_id", userID)
		return Estimate{}, false
	}
	for _, r := range userIDEras {
		if r.contains(id) {
			return Estimate{Date: r.date, Confidence: ConfidenceHigh, Method: MethodUserID}, true
		}
	}
	// Unreachable while the table covers [0, +inf); abstain rather than guess.
	return Estimate{}, false
}

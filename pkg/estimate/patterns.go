package estimate

import (
	"regexp"
	"time"
)

// usernameEra pairs a username shape with the era it was common in.
type usernameEra struct {
	pattern *regexp.Regexp
	date    time.Time
}

// usernameEras is evaluated top to bottom; first match wins. The final
// catch-all guarantees every non-empty username gets a date: names that fit
// no known early pattern land in the most recent bucket.
var usernameEras = []usernameEra{
	{regexp.MustCompile(`^user\d{7,9}$`), monthStart(2016, time.September)},   // auto-generated user1234567
	{regexp.MustCompile(`^[a-z]{3,8}\d{2,4}$`), monthStart(2017, time.March)}, // abc123
	{regexp.MustCompile(`^\w{3,8}$`), monthStart(2017, time.September)},       // simple names
	{regexp.MustCompile(`^.{1,8}$`), monthStart(2018, time.June)},             // very short names
	{regexp.MustCompile(`^.+$`), monthStart(2020, time.January)},              // everything else
}

// FromUsername estimates creation date from the shape of the username.
// Empty input produces no estimate; any other string matches the table.
func (e *Estimator) FromUsername(username string) (Estimate, bool) {
	if username == "" {
		return Estimate{}, false
	}
	for _, era := range usernameEras {
		if era.pattern.MatchString(username) {
			return Estimate{Date: era.date, Confidence: ConfidenceMedium, Method: MethodUsername}, true
		}
	}
	return Estimate{}, false
}

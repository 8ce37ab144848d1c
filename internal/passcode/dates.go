package passcode

import "time"

// DateLayout is the wire and storage format for passcode expiry dates.
// Expiry is date-only: a passcode expires once the current instant is past
// midnight UTC of its expiry date.
const DateLayout = "2006-01-02"

// AddMonthsClamped returns t's date shifted by the given number of calendar
// months, keeping the day-of-month where possible and clamping to the last
// valid day of the target month otherwise (Jan 31 + 1 month = Feb 29 in a
// leap year, Feb 28 otherwise). This differs from time.Time.AddDate, which
// normalizes the overflow into the following month. The result is truncated
// to midnight UTC.
func AddMonthsClamped(t time.Time, months int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()

	total := int(month) - 1 + months
	year += total / 12
	total %= 12
	if total < 0 {
		total += 12
		year--
	}
	target := time.Month(total + 1)

	if last := daysIn(year, target); day > last {
		day = last
	}
	return time.Date(year, target, day, 0, 0, 0, 0, time.UTC)
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseDate parses a date-only expiry string at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

package service

import "time"

// dayBounds returns the epoch-millisecond window [00:00:00.000, 23:59:59.999]
// of the calendar day of d, resolved in loc. Only d's year, month and day are used.
func dayBounds(d time.Time, loc *time.Location) (from, to int64) {
	y, m, day := d.Date()
	start := time.Date(y, m, day, 0, 0, 0, 0, loc)
	end := time.Date(y, m, day, 23, 59, 59, 999_999_999, loc)
	return start.UnixMilli(), end.UnixMilli()
}

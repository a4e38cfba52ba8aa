// Package calendar provides date arithmetic for rebalance scheduling.
// All dates are normalized to midnight UTC; weekends are the only
// non-business days (crypto venues trade through holidays, but the
// covariance window is specified in business days).
package calendar

import "time"

// Midnight truncates t to midnight UTC.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Daily returns every calendar day from start to end inclusive.
func Daily(start, end time.Time) []time.Time {
	start = Midnight(start)
	end = Midnight(end)
	if end.Before(start) {
		return nil
	}
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// IsBusinessDay reports whether t falls on a weekday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddBusinessDays shifts t by n business days. Negative n moves backwards.
// A weekend t is first rolled to the nearest weekday in the direction of
// travel, matching pandas BDay semantics.
func AddBusinessDays(t time.Time, n int) time.Time {
	t = Midnight(t)
	if n == 0 {
		return t
	}
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for !IsBusinessDay(t) {
		t = t.AddDate(0, 0, step)
	}
	for i := 0; i < n; {
		t = t.AddDate(0, 0, step)
		if IsBusinessDay(t) {
			i++
		}
	}
	return t
}

// LastPerWeek returns, for each ISO week touched by dates, the index of the
// last date in that week. dates must be ascending. Used to resample a daily
// view panel to a weekly rebalance rule.
func LastPerWeek(dates []time.Time) []int {
	var idx []int
	for i := range dates {
		if i+1 == len(dates) {
			idx = append(idx, i)
			break
		}
		y1, w1 := dates[i].ISOWeek()
		y2, w2 := dates[i+1].ISOWeek()
		if y1 != y2 || w1 != w2 {
			idx = append(idx, i)
		}
	}
	return idx
}

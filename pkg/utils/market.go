// Package utils holds the business-day calendar and retry helpers shared by
// the batch jobs.
package utils

import (
	"time"

	"nse-options-lab/internal/models"
)

// IsWeekend reports whether d falls on Saturday or Sunday.
func IsWeekend(d models.Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// PrevBusinessDay returns the weekday strictly before d.
func PrevBusinessDay(d models.Date) models.Date {
	prev := d.AddDays(-1)
	for IsWeekend(prev) {
		prev = prev.AddDays(-1)
	}
	return prev
}

// NextBusinessDay returns the weekday strictly after d.
func NextBusinessDay(d models.Date) models.Date {
	next := d.AddDays(1)
	for IsWeekend(next) {
		next = next.AddDays(1)
	}
	return next
}

// LastWeekdayBefore returns the latest date strictly before d that falls on wd.
func LastWeekdayBefore(d models.Date, wd time.Weekday) models.Date {
	back := int(d.Weekday()-wd+7) % 7
	if back == 0 {
		back = 7
	}
	return d.AddDays(-back)
}

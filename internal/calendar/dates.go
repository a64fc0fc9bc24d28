// Package calendar regroupe les jours fériés, l'analyse des dates et la
// validation des dates prévues de convocation.
package calendar

import (
	"errors"
	"strings"
	"time"
)

// DayLayout est le format des jours civils échangés avec l'API.
const DayLayout = "2006-01-02"

var errInvalidDate = errors.New("date invalide")

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DayLayout,
}

// ParseDateTime accepte un horodatage RFC 3339 ou une date/heure locale sans
// fuseau, interprétée dans loc.
func ParseDateTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errInvalidDate
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errInvalidDate
}

// ParseDay lit un jour civil YYYY-MM-DD et renvoie son début dans loc.
func ParseDay(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t, nil
}

// DayBounds renvoie [début, fin) du jour civil contenant t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// DayKey renvoie le jour civil de t dans loc au format YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// IsWeekend indique un samedi ou un dimanche dans loc.
func IsWeekend(t time.Time, loc *time.Location) bool {
	switch t.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

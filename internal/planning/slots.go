// Package planning répartit des convocations en masse sur des journées de visite.
package planning

import (
	"time"

	"github.com/sante-travail/convocations/internal/apperr"
)

// MaxPerDay est le nombre de créneaux distincts d'une journée (6 heures de 60 minutes).
const MaxPerDay = 360

var slotHours = []int{9, 10, 11, 12, 13, 14}

// BuildSlots répartit quantity rendez-vous sur les heures 09h à 14h du jour day
// (début de journée dans loc). Chaque heure reçoit au plus ceil(quantity/6)
// rendez-vous espacés de 60/perHour minutes.
func BuildSlots(day time.Time, quantity int, loc *time.Location) ([]time.Time, error) {
	if quantity <= 0 {
		return nil, nil
	}
	if quantity > MaxPerDay {
		return nil, apperr.Validationf("Quantité maximale par jour : %d", MaxPerDay)
	}

	perHour := (quantity + len(slotHours) - 1) / len(slotHours)
	step := 60
	if perHour > 1 {
		step = max(1, 60/perHour)
	}

	d := day.In(loc)
	at := func(hour, minute int) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
	}

	slots := make([]time.Time, 0, quantity)
	remaining := quantity
	for _, h := range slotHours {
		if remaining <= 0 {
			break
		}
		take := min(perHour, remaining)
		for i := 0; i < take; i++ {
			slots = append(slots, at(h, i*step))
		}
		remaining -= take
	}
	// débordement sur 14h, minute par minute
	for k := 0; remaining > 0; k++ {
		slots = append(slots, at(14, min(59, k)))
		remaining--
	}
	return slots, nil
}

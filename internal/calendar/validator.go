package calendar

import (
	"context"
	"strings"
	"time"

	"github.com/sante-travail/convocations/internal/apperr"
)

// HolidayLookup trouve le jour férié d'un jour civil.
type HolidayLookup interface {
	FindOnDay(ctx context.Context, t time.Time) (*JourFerie, error)
}

// Validator contrôle les dates prévues de convocation.
type Validator struct {
	holidays HolidayLookup
	loc      *time.Location
}

// NewValidator crée le validateur.
func NewValidator(holidays HolidayLookup, loc *time.Location) *Validator {
	return &Validator{holidays: holidays, loc: loc}
}

// ValidateRaw analyse puis contrôle une date prévue brute.
func (v *Validator) ValidateRaw(ctx context.Context, raw string) (time.Time, error) {
	t, err := ParseDateTime(raw, v.loc)
	if err != nil {
		return time.Time{}, apperr.Validation("datePrevue invalide ou manquante")
	}
	if err := v.Check(ctx, t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// Check rejette les week-ends et les jours fériés.
func (v *Validator) Check(ctx context.Context, t time.Time) error {
	if IsWeekend(t, v.loc) {
		return apperr.Validation("Date Prévue tombe sur un week-end")
	}
	jf, err := v.holidays.FindOnDay(ctx, t)
	if err != nil {
		return err
	}
	if jf != nil {
		label := "jour férié"
		if jf.Label != nil && strings.TrimSpace(*jf.Label) != "" {
			label = *jf.Label
		}
		return apperr.Validationf("Date Prévue tombe sur un jour férié : %s", label)
	}
	return nil
}

func errInvalidBound(name string) error {
	return apperr.Validation(name + " invalide")
}

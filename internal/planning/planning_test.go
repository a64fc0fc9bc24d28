package planning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sante-travail/convocations/internal/apperr"
	"github.com/sante-travail/convocations/internal/calendar"
	"github.com/sante-travail/convocations/internal/convocation"
	"github.com/sante-travail/convocations/internal/personnel"
)

var casablanca = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Casablanca")
	if err != nil {
		panic(err)
	}
	return loc
}()

func clock(slots []time.Time) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Format("15:04")
	}
	return out
}

func TestBuildSlots(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, casablanca)

	cases := []struct {
		qty  int
		want []string
	}{
		{0, []string{}},
		{3, []string{"09:00", "10:00", "11:00"}},
		{6, []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00"}},
		{8, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00", "12:30"}},
		{13, []string{"09:00", "09:20", "09:40", "10:00", "10:20", "10:40", "11:00", "11:20", "11:40", "12:00", "12:20", "12:40", "13:00"}},
	}
	for _, tc := range cases {
		slots, err := BuildSlots(day, tc.qty, casablanca)
		require.NoError(t, err)
		assert.Equal(t, tc.want, clock(slots), "qty=%d", tc.qty)
		for _, s := range slots {
			assert.Equal(t, "2026-05-04", s.Format("2006-01-02"))
		}
	}
}

func TestBuildSlotsFullDayIsDistinct(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, casablanca)
	slots, err := BuildSlots(day, MaxPerDay, casablanca)
	require.NoError(t, err)
	require.Len(t, slots, MaxPerDay)

	seen := map[time.Time]bool{}
	for _, s := range slots {
		assert.False(t, seen[s], "créneau en double %s", s)
		seen[s] = true
		assert.True(t, s.Hour() >= 9 && s.Hour() <= 14)
	}
	assert.Equal(t, "14:59", clock(slots[len(slots)-1:])[0])

	_, err = BuildSlots(day, MaxPerDay+1, casablanca)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

type fakePeople struct {
	ids    []string
	filter personnel.Filter
	limit  int
}

func (f *fakePeople) ListIDs(_ context.Context, filter personnel.Filter, limit int) ([]string, error) {
	f.filter, f.limit = filter, limit
	if limit < len(f.ids) {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

type fakeConvs struct {
	got    convocation.BulkInput
	counts map[string]int
}

func (f *fakeConvs) BulkCreate(_ context.Context, in convocation.BulkInput) (int, error) {
	f.got = in
	return len(in.Rows), nil
}

func (f *fakeConvs) CountOnDay(_ context.Context, day string) (int, error) {
	return f.counts[day], nil
}

type fakeHolidays map[string]string

func (h fakeHolidays) FindOnDay(_ context.Context, t time.Time) (*calendar.JourFerie, error) {
	key := calendar.DayKey(t, casablanca)
	label, ok := h[key]
	if !ok {
		return nil, nil
	}
	jf := &calendar.JourFerie{Date: key}
	if label != "" {
		jf.Label = &label
	}
	return jf, nil
}

func TestScheduleAssignsSlotsInListingOrder(t *testing.T) {
	people := &fakePeople{ids: []string{"p1", "p2", "p3", "p4", "p5"}}
	convs := &fakeConvs{}
	s := NewScheduler(people, convs, fakeHolidays{}, casablanca)
	statut := convocation.StatutAConvoquer

	res, err := s.Schedule(context.Background(), Input{
		Filters: personnel.Filter{ServiceID: " srv-1 "},
		Plan:    []PlanRow{{Day: "2026-05-04", Quantity: 2}, {Day: "2026-05-05", Quantity: 0}, {Day: "2026-05-06", Quantity: 1}},
		Statut:  &statut,
	})
	require.NoError(t, err)

	assert.Equal(t, "srv-1", people.filter.ServiceID)
	assert.Equal(t, 3, people.limit)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, []DayResult{
		{Day: "2026-05-04", Quantity: 2, FirstSlot: "2026-05-04T09:00:00+01:00", LastSlot: "2026-05-04T10:00:00+01:00"},
		{Day: "2026-05-06", Quantity: 1, FirstSlot: "2026-05-06T09:00:00+01:00", LastSlot: "2026-05-06T09:00:00+01:00"},
	}, res.Days)
	assert.Equal(t, []convocation.BulkRow{
		{PersonnelID: "p1", DatePrevue: "2026-05-04T09:00:00+01:00"},
		{PersonnelID: "p2", DatePrevue: "2026-05-04T10:00:00+01:00"},
		{PersonnelID: "p3", DatePrevue: "2026-05-06T09:00:00+01:00"},
	}, convs.got.Rows)
	assert.Equal(t, &statut, convs.got.Statut)
}

func TestSchedulePlanErrors(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(&fakePeople{ids: []string{"p1"}}, &fakeConvs{}, fakeHolidays{}, casablanca)

	cases := []struct {
		name string
		plan []PlanRow
		msg  string
	}{
		{"empty", nil, "plan obligatoire"},
		{"zero", []PlanRow{{Day: "2026-05-04"}}, "Plan vide : aucune convocation à créer"},
		{"bad day", []PlanRow{{Day: "04/05/2026", Quantity: 1}}, `Jour invalide : "04/05/2026"`},
		{"duplicate", []PlanRow{{Day: "2026-05-04", Quantity: 1}, {Day: "2026-05-04", Quantity: 1}}, "Jour en double : 2026-05-04"},
		{"negative", []PlanRow{{Day: "2026-05-04", Quantity: -1}}, "Quantité invalide pour 2026-05-04"},
		{"too many people", []PlanRow{{Day: "2026-05-04", Quantity: 2}}, "Plan invalide : le total des créneaux ne correspond pas au total à créer."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Schedule(ctx, Input{Plan: tc.plan})
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tc.msg, apperr.Message(err))
		})
	}

	empty := NewScheduler(&fakePeople{}, &fakeConvs{}, fakeHolidays{}, casablanca)
	_, err := empty.Schedule(ctx, Input{Plan: []PlanRow{{Day: "2026-05-04", Quantity: 1}}})
	assert.Equal(t, "Aucun personnel trouvé pour ces filtres.", apperr.Message(err))
}

func TestCapacity(t *testing.T) {
	convs := &fakeConvs{counts: map[string]int{"2026-05-04": 12}}
	s := NewScheduler(&fakePeople{}, convs, fakeHolidays{"2026-05-01": "Fête du Travail"}, casablanca)

	got, err := s.Capacity(context.Background(), []string{"2026-05-04", "2026-05-01", "2026-05-02"})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, DayCapacity{Day: "2026-05-04", TotalNonAnnule: 12}, got[0])
	require.NotNil(t, got[1].JourFerie)
	assert.Equal(t, "Fête du Travail", *got[1].JourFerie)
	assert.False(t, got[1].Weekend)
	assert.True(t, got[2].Weekend)
	assert.Nil(t, got[2].JourFerie)

	_, err = s.Capacity(context.Background(), nil)
	assert.Equal(t, "day obligatoire (YYYY-MM-DD)", apperr.Message(err))
	_, err = s.Capacity(context.Background(), []string{"x"})
	assert.Equal(t, "day invalide", apperr.Message(err))
}

package convocation

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sante-travail/convocations/internal/apperr"
	"github.com/sante-travail/convocations/internal/calendar"
	"github.com/sante-travail/convocations/internal/personnel"
	"github.com/sante-travail/convocations/internal/util"
)

type memoryStore struct {
	mu     sync.Mutex
	items  map[string]Convocation
	people map[string]personnel.Personnel
}

func newMemoryStore(personnelIDs ...string) *memoryStore {
	m := &memoryStore{
		items:  map[string]Convocation{},
		people: map[string]personnel.Personnel{},
	}
	for _, id := range personnelIDs {
		m.people[id] = personnel.Personnel{ID: id, LastName: id, IsActive: true}
	}
	return m
}

func (m *memoryStore) Insert(ctx context.Context, c Convocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[c.ID] = c
	return nil
}

func (m *memoryStore) InsertMany(ctx context.Context, items []Convocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range items {
		m.items[c.ID] = c
	}
	return nil
}

func (m *memoryStore) Get(ctx context.Context, id string) (Convocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return Convocation{}, ErrNotFound
	}
	p := m.people[c.PersonnelID]
	c.Personnel = &p
	return c, nil
}

func (m *memoryStore) Mutate(ctx context.Context, id string, fn func(*Convocation) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&c); err != nil {
		return err
	}
	m.items[id] = c
	return nil
}

func (m *memoryStore) PersonnelExists(ctx context.Context, id string) (bool, error) {
	_, ok := m.people[id]
	return ok, nil
}

func (m *memoryStore) CountPersonnel(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := m.people[id]; ok {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) CountActiveBetween(ctx context.Context, start, end time.Time) (int, error) {
	n := 0
	for _, c := range m.items {
		if !c.DatePrevue.Before(start) && c.DatePrevue.Before(end) && c.Statut != StatutAnnulee {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) List(ctx context.Context, f ListFilter, offset, limit int) ([]Convocation, int, error) {
	var out []Convocation
	for _, c := range m.items {
		if f.Statut != "" && c.Statut != f.Statut {
			continue
		}
		if f.Unattached && c.BordereauID != nil {
			continue
		}
		if f.DatePrevueFrom != nil && c.DatePrevue.Before(*f.DatePrevueFrom) {
			continue
		}
		if f.DatePrevueTo != nil && !c.DatePrevue.Before(*f.DatePrevueTo) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DatePrevue.After(out[j].DatePrevue) })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

type holidayTable map[string]string

func (h holidayTable) FindOnDay(ctx context.Context, t time.Time) (*calendar.JourFerie, error) {
	day := t.UTC().Format(calendar.DayLayout)
	label, ok := h[day]
	if !ok {
		return nil, nil
	}
	return &calendar.JourFerie{Date: day, Label: &label}, nil
}

var fixedNow = time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC)

func newTestService(store *memoryStore) *Service {
	holidays := holidayTable{"2026-05-01": "Fête du Travail"}
	svc := NewService(store, calendar.NewValidator(holidays, time.UTC), time.UTC)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func strPtr(s string) *string { return &s }

func TestCreateDefaults(t *testing.T) {
	store := newMemoryStore("p1")
	svc := newTestService(store)

	c, err := svc.Create(context.Background(), CreateInput{PersonnelID: " p1 ", DatePrevue: "2026-05-04T10:00", Commentaire: strPtr("  ")})
	require.NoError(t, err)

	assert.Equal(t, StatutAConvoquer, c.Statut)
	assert.Equal(t, TypeInitiale, c.ConvocationType)
	assert.Equal(t, fixedNow, c.DateConvocation)
	assert.Nil(t, c.Commentaire)
	assert.Nil(t, c.BordereauID)
	require.NotNil(t, c.Personnel)
	assert.Equal(t, "p1", c.Personnel.ID)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryStore("p1"))
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
		kind apperr.Kind
		msg  string
	}{
		{"sans personnel", CreateInput{DatePrevue: "2026-05-04T10:00"}, apperr.KindValidation, "personnelId obligatoire"},
		{"date absente", CreateInput{PersonnelID: "p1"}, apperr.KindValidation, "datePrevue invalide ou manquante"},
		{"statut inconnu", CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-04T10:00", Statut: strPtr("PERDU")}, apperr.KindValidation, "Statut invalide"},
		{"personnel inconnu", CreateInput{PersonnelID: "px", DatePrevue: "2026-05-04T10:00"}, apperr.KindNotFound, "Personnel introuvable"},
		{"samedi", CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-02T10:00"}, apperr.KindValidation, "Date Prévue tombe sur un week-end"},
		{"jour férié", CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-01T10:00"}, apperr.KindValidation, "Date Prévue tombe sur un jour férié : Fête du Travail"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Equal(t, tc.msg, apperr.Message(err))
		})
	}
}

func TestWeekendRejectedOnCreateAndUpdate(t *testing.T) {
	store := newMemoryStore("p1")
	svc := newTestService(store)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-04T10:00"})
	require.NoError(t, err)

	for day := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC); day.Month() == time.June; day = day.AddDate(0, 0, 1) {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			continue
		}
		raw := day.Format("2006-01-02T15:04")

		_, err := svc.Create(ctx, CreateInput{PersonnelID: "p1", DatePrevue: raw})
		assert.True(t, apperr.Is(err, apperr.KindValidation), raw)

		_, err = svc.Update(ctx, c.ID, UpdateInput{DatePrevue: util.Some(raw)})
		assert.True(t, apperr.Is(err, apperr.KindValidation), raw)
	}
}

func decodeUpdate(t *testing.T, body string) UpdateInput {
	t.Helper()
	var in UpdateInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func TestUpdateRejectsPersonnelID(t *testing.T) {
	store := newMemoryStore("p1", "p2")
	svc := newTestService(store)
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-04T10:00"})
	require.NoError(t, err)

	for _, body := range []string{
		`{"personnelId": "p2", "datePrevue": "2026-05-05T10:00"}`,
		`{"personnelId": "p1", "datePrevue": "2026-05-05T10:00", "statut": "A_TRAITER"}`,
		`{"personnelId": null}`,
		`{"personnelId": 42, "statut": "PERDU"}`,
	} {
		_, err := svc.Update(ctx, c.ID, decodeUpdate(t, body))
		require.Error(t, err, body)
		assert.Equal(t, "Modification du personnel interdite sur cette route.", apperr.Message(err))
	}

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PersonnelID)
}

func TestUpdateRequiresDatePrevue(t *testing.T) {
	store := newMemoryStore("p1")
	svc := newTestService(store)
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-04T10:00"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, c.ID, decodeUpdate(t, `{"statut": "A_TRAITER"}`))
	assert.Equal(t, "datePrevue obligatoire", apperr.Message(err))

	_, err = svc.Update(ctx, c.ID, decodeUpdate(t, `{"datePrevue": "n'importe quand"}`))
	assert.Equal(t, "datePrevue invalide", apperr.Message(err))

	_, err = svc.Update(ctx, c.ID, decodeUpdate(t, `{"datePrevue": "2026-05-05T10:00", "convocationType": "RELANCE_9"}`))
	assert.Equal(t, "Type convocation invalide", apperr.Message(err))

	_, err = svc.Update(ctx, c.ID, decodeUpdate(t, `{"datePrevue": "2026-05-05T10:00", "dateConvocation": "hier"}`))
	assert.Equal(t, "dateConvocation invalide", apperr.Message(err))

	_, err = svc.Update(ctx, "absente", decodeUpdate(t, `{"datePrevue": "2026-05-05T10:00"}`))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateAppliesFields(t *testing.T) {
	store := newMemoryStore("p1")
	svc := newTestService(store)
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-04T10:00", Commentaire: strPtr("initial")})
	require.NoError(t, err)

	got, err := svc.Update(ctx, c.ID, decodeUpdate(t, `{"datePrevue": "2026-05-06T11:30", "statut": "A_RELANCER", "convocationType": "RELANCE_1", "commentaire": null}`))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 5, 6, 11, 30, 0, 0, time.UTC), got.DatePrevue)
	assert.Equal(t, StatutARelancer, got.Statut)
	assert.Equal(t, TypeRelance1, got.ConvocationType)
	assert.Nil(t, got.Commentaire)
}

func TestGeneratedConvocationProgressesThroughStatuses(t *testing.T) {
	store := newMemoryStore("p1")
	svc := newTestService(store)
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-04T10:00"})
	require.NoError(t, err)

	stored := store.items[c.ID]
	stored.Statut = StatutConvocationGeneree
	stored.BordereauID = strPtr("b1")
	store.items[c.ID] = stored

	for _, statut := range []string{StatutATraiter, StatutARelancer, StatutRelancee, StatutRealisee} {
		got, err := svc.Update(ctx, c.ID, decodeUpdate(t, `{"datePrevue": "2026-05-04T10:00", "statut": "`+statut+`"}`))
		require.NoError(t, err, statut)
		assert.Equal(t, statut, got.Statut)
		require.NotNil(t, got.BordereauID)
		assert.Equal(t, "b1", *got.BordereauID)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	store := newMemoryStore("p1")
	svc := newTestService(store)
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{PersonnelID: "p1", DatePrevue: "2026-05-04T10:00", Statut: strPtr(StatutRealisee), Commentaire: strPtr("vu")})
	require.NoError(t, err)

	first, err := svc.Cancel(ctx, c.ID, strPtr("agent muté"))
	require.NoError(t, err)
	assert.Equal(t, StatutAnnulee, first.Statut)
	assert.Equal(t, "agent muté", *first.Commentaire)

	second, err := svc.Cancel(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatutAnnulee, second.Statut)
	assert.Equal(t, "agent muté", *second.Commentaire)

	_, err = svc.Cancel(ctx, "absente", nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestBulkCreateRows(t *testing.T) {
	store := newMemoryStore("p1", "p2")
	svc := newTestService(store)

	count, err := svc.BulkCreate(context.Background(), BulkInput{
		Rows: []BulkRow{
			{PersonnelID: "p1", DatePrevue: "2026-05-02T09:00"},
			{PersonnelID: "p2", DatePrevue: "2026-05-04T10:00"},
			{PersonnelID: "", DatePrevue: "2026-05-04T10:00"},
			{PersonnelID: "p2", DatePrevue: "pas une date"},
		},
		ConvocationType: strPtr(TypeRelance2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, store.items, 2)

	for _, c := range store.items {
		assert.Equal(t, TypeRelance2, c.ConvocationType)
		assert.Equal(t, StatutAConvoquer, c.Statut)
		assert.Equal(t, fixedNow, c.DateConvocation)
	}
}

func TestBulkCreateFailures(t *testing.T) {
	svc := newTestService(newMemoryStore("p1"))
	ctx := context.Background()

	_, err := svc.BulkCreate(ctx, BulkInput{Rows: []BulkRow{{PersonnelID: "", DatePrevue: "x"}}})
	assert.Equal(t, "rows invalides", apperr.Message(err))

	_, err = svc.BulkCreate(ctx, BulkInput{Rows: []BulkRow{{PersonnelID: "p1", DatePrevue: "2026-05-04T10:00"}, {PersonnelID: "px", DatePrevue: "2026-05-04T10:00"}}})
	assert.Equal(t, "Un ou plusieurs personnels sont introuvables", apperr.Message(err))

	_, err = svc.BulkCreate(ctx, BulkInput{})
	assert.Equal(t, "personnelIds obligatoire", apperr.Message(err))

	_, err = svc.BulkCreate(ctx, BulkInput{PersonnelIDs: []string{"p1"}})
	assert.Equal(t, "datePrevue obligatoire / invalide", apperr.Message(err))
}

func TestBulkCreateLegacyMode(t *testing.T) {
	store := newMemoryStore("p1", "p2")
	svc := newTestService(store)

	count, err := svc.BulkCreate(context.Background(), BulkInput{
		PersonnelIDs: []string{"p1", "p2"},
		DatePrevue:   strPtr("2026-05-01T09:00"),
		Commentaire:  strPtr("campagne annuelle"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	for _, c := range store.items {
		assert.Equal(t, "campagne annuelle", *c.Commentaire)
	}
}

func TestCountOnDay(t *testing.T) {
	store := newMemoryStore("p1")
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.BulkCreate(ctx, BulkInput{Rows: []BulkRow{
		{PersonnelID: "p1", DatePrevue: "2026-05-04T09:00"},
		{PersonnelID: "p1", DatePrevue: "2026-05-04T14:59"},
		{PersonnelID: "p1", DatePrevue: "2026-05-05T09:00"},
	}})
	require.NoError(t, err)

	var cancelled string
	for id, c := range store.items {
		if c.DatePrevue.Hour() == 9 && c.DatePrevue.Day() == 4 {
			cancelled = id
		}
	}
	_, err = svc.Cancel(ctx, cancelled, nil)
	require.NoError(t, err)

	n, err := svc.CountOnDay(ctx, "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.CountOnDay(ctx, "")
	assert.Equal(t, "day obligatoire (YYYY-MM-DD)", apperr.Message(err))
	_, err = svc.CountOnDay(ctx, "2026-02-30")
	assert.Equal(t, "day invalide", apperr.Message(err))
}

func TestListDateBoundsInclusive(t *testing.T) {
	store := newMemoryStore("p1")
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.BulkCreate(ctx, BulkInput{Rows: []BulkRow{
		{PersonnelID: "p1", DatePrevue: "2026-05-04T09:00"},
		{PersonnelID: "p1", DatePrevue: "2026-05-05T23:30"},
		{PersonnelID: "p1", DatePrevue: "2026-05-06T09:00"},
	}})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, ListQuery{DateVisiteFrom: "2026-05-04", DateVisiteTo: "2026-05-05"}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 5, items[0].DatePrevue.Day())

	_, _, err = svc.List(ctx, ListQuery{DateConvocFrom: "05/05/2026"}, 0, 10)
	assert.Equal(t, "dateConvocFrom invalide", apperr.Message(err))
}

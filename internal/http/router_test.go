package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sante-travail/convocations/internal/apperr"
	"github.com/sante-travail/convocations/internal/auth"
	"github.com/sante-travail/convocations/internal/bordereau"
	"github.com/sante-travail/convocations/internal/config"
	"github.com/sante-travail/convocations/internal/convocation"
	"github.com/sante-travail/convocations/internal/personnel"
	"github.com/sante-travail/convocations/internal/planning"
	"github.com/sante-travail/convocations/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type fakeBordereaux struct {
	BordereauAPI
	get      func(id string) (bordereau.Bordereau, error)
	list     func(q bordereau.ListQuery, page, size int) ([]bordereau.Bordereau, int, error)
	generate func(id string) (bordereau.GenerateResult, error)
	attach   func(id string, ids []string) (bordereau.AttachResult, error)
	create   func(in bordereau.CreateInput) (bordereau.Bordereau, error)
}

func (f *fakeBordereaux) Get(_ context.Context, id string) (bordereau.Bordereau, error) {
	return f.get(id)
}

func (f *fakeBordereaux) List(_ context.Context, q bordereau.ListQuery, page, size int) ([]bordereau.Bordereau, int, error) {
	return f.list(q, page, size)
}

func (f *fakeBordereaux) Generate(_ context.Context, id string) (bordereau.GenerateResult, error) {
	return f.generate(id)
}

func (f *fakeBordereaux) Attach(_ context.Context, id string, ids []string) (bordereau.AttachResult, error) {
	return f.attach(id, ids)
}

func (f *fakeBordereaux) Create(_ context.Context, in bordereau.CreateInput) (bordereau.Bordereau, error) {
	return f.create(in)
}

func (f *fakeBordereaux) Export(_ context.Context, id string) ([]byte, string, error) {
	return []byte("xlsx"), "BDR-2026-05-04-SRVABC-0001.xlsx", nil
}

type fakeConvocations struct {
	ConvocationAPI
	count func(day string) (int, error)
}

func (f *fakeConvocations) CountOnDay(_ context.Context, day string) (int, error) {
	return f.count(day)
}

type fakePersonnel struct {
	PersonnelAPI
	updated bool
}

func (f *fakePersonnel) Update(_ context.Context, id string, in personnel.UpdateInput) (personnel.Personnel, error) {
	f.updated = true
	return personnel.Personnel{ID: id}, nil
}

type fakePlanning struct {
	PlanningAPI
	days []string
}

func (f *fakePlanning) Capacity(_ context.Context, days []string) ([]planning.DayCapacity, error) {
	f.days = days
	out := make([]planning.DayCapacity, 0, len(days))
	for _, d := range days {
		out = append(out, planning.DayCapacity{Day: d})
	}
	return out, nil
}

type fakeAuth struct {
	AuthAPI
}

func (fakeAuth) Login(_ context.Context, email, password string) (*service.LoginResult, error) {
	if password != "secret" {
		return nil, service.ErrInvalidCredentials
	}
	return &service.LoginResult{
		AccessToken:   "access",
		RefreshToken:  "refresh",
		Profile:       service.Profile{ID: "u1", Email: email, Roles: []string{service.RoleUser}},
		RefreshExpiry: time.Now().Add(time.Hour),
	}, nil
}

type testEnv struct {
	handler    http.Handler
	jwt        *auth.JWTManager
	bordereaux *fakeBordereaux
	convs      *fakeConvocations
	personnel  *fakePersonnel
	planning   *fakePlanning
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		jwt:        auth.NewJWTManager(testSecret, 15*time.Minute),
		bordereaux: &fakeBordereaux{},
		convs:      &fakeConvocations{},
		personnel:  &fakePersonnel{},
		planning:   &fakePlanning{},
	}
	ok := pingerFunc(func(context.Context) error { return nil })
	env.handler = NewRouter(Deps{
		Config: &config.Config{
			AllowOrigins:    []string{"http://localhost:5173"},
			RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
			RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		},
		DB:           ok,
		Redis:        ok,
		Tokens:       env.jwt,
		Auth:         fakeAuth{},
		Convocations: env.convs,
		Bordereaux:   env.bordereaux,
		Personnel:    env.personnel,
		Planning:     env.planning,
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if roles != nil {
		token, _, err := e.jwt.GenerateAccessToken("user-1", roles)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyReportsFailingDependency(t *testing.T) {
	h := NewRouter(Deps{
		Config: &config.Config{},
		DB:     pingerFunc(func(context.Context) error { return errors.New("connexion refusée") }),
		Redis:  pingerFunc(func(context.Context) error { return nil }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"Dépendances indisponibles","db":"connexion refusée","redis":""}`, rec.Body.String())
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/bordereaux", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Non authentifié", errorBody(t, rec))
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", apperr.Validation("Bordereau vide : aucune convocation"), http.StatusBadRequest, "Bordereau vide : aucune convocation"},
		{"not found", apperr.NotFound("Bordereau introuvable"), http.StatusNotFound, "Bordereau introuvable"},
		{"conflict", apperr.Conflict("Conflit (serialNumber déjà utilisé)", errors.New("23505")), http.StatusConflict, "Conflit (serialNumber déjà utilisé)"},
		{"internal", errors.New("pool fermé"), http.StatusInternalServerError, "Erreur serveur"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.bordereaux.generate = func(string) (bordereau.GenerateResult, error) {
				return bordereau.GenerateResult{}, tc.err
			}
			rec := env.do(t, http.MethodPost, "/api/bordereaux/b1/generate", "", service.RoleUser)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, errorBody(t, rec))
		})
	}
}

func TestListBordereauxEnvelope(t *testing.T) {
	env := newTestEnv(t)
	var got bordereau.ListQuery
	env.bordereaux.list = func(q bordereau.ListQuery, page, size int) ([]bordereau.Bordereau, int, error) {
		got = q
		assert.Equal(t, 2, page)
		assert.Equal(t, 100, size)
		return []bordereau.Bordereau{{ID: "b1", SerialNumber: "BDR-2026-05-04-SRVABC-0001"}}, 21, nil
	}

	rec := env.do(t, http.MethodGet, "/api/bordereaux?page=2&pageSize=500&statut=NOUVEAU&dateFrom=2026-05-01", "", service.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items    []bordereau.Bordereau `json:"items"`
		Total    int                   `json:"total"`
		Page     int                   `json:"page"`
		PageSize int                   `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 21, body.Total)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 100, body.PageSize)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "b1", body.Items[0].ID)
	assert.Equal(t, "NOUVEAU", got.Statut)
	assert.Equal(t, "2026-05-01", got.DateFrom)
}

func TestListPageIsBounded(t *testing.T) {
	env := newTestEnv(t)
	env.bordereaux.list = func(_ bordereau.ListQuery, page, size int) ([]bordereau.Bordereau, int, error) {
		assert.Equal(t, maxPage, page)
		assert.Equal(t, defaultPageSize, size)
		assert.Positive(t, page*size)
		return []bordereau.Bordereau{}, 0, nil
	}

	rec := env.do(t, http.MethodGet, "/api/bordereaux?page=9223372036854775807", "", service.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"page":1000000,"pageSize":10}`, rec.Body.String())
}

func TestCreateBordereauRejectsUnknownField(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/bordereaux", `{"serviceId":"s1","serial":"x"}`, service.RoleUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Champ inconnu : "serial"`, errorBody(t, rec))
}

func TestCreateBordereauReturnsCreated(t *testing.T) {
	env := newTestEnv(t)
	env.bordereaux.create = func(in bordereau.CreateInput) (bordereau.Bordereau, error) {
		return bordereau.Bordereau{ID: "b1", ServiceID: in.ServiceID, Statut: bordereau.StatutNouveau}, nil
	}
	rec := env.do(t, http.MethodPost, "/api/bordereaux", `{"serviceId":"s1"}`, service.RoleUser)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"statut":"NOUVEAU"`)
}

func TestAttachPassesIDs(t *testing.T) {
	env := newTestEnv(t)
	env.bordereaux.attach = func(id string, ids []string) (bordereau.AttachResult, error) {
		assert.Equal(t, "b1", id)
		assert.Equal(t, []string{"c1", "c2"}, ids)
		return bordereau.AttachResult{OK: true, Count: 1, AttachedIDs: []string{"c1"}, SkippedIDs: []string{"c2"}}, nil
	}
	rec := env.do(t, http.MethodPost, "/api/bordereaux/b1/convocations", `{"convocationIds":["c1","c2"]}`, service.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"skippedIds":["c2"]`)
}

func TestExportBordereauHeaders(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/bordereaux/b1/export", "", service.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="BDR-2026-05-04-SRVABC-0001.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "xlsx", rec.Body.String())
}

func TestCountConvocations(t *testing.T) {
	env := newTestEnv(t)
	env.convs.count = func(day string) (int, error) {
		if day == "" {
			return 0, apperr.Validation("day obligatoire (YYYY-MM-DD)")
		}
		return 4, nil
	}

	rec := env.do(t, http.MethodGet, "/api/convocations/count?day=2026-05-04", "", service.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"day":"2026-05-04","totalNonAnnule":4}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/convocations/count", "", service.RoleUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConvocationsRejectsUnknownStatut(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/convocations?statut=PERDUE", "", service.RoleUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Statut invalide", errorBody(t, rec))
}

func TestUpdatePersonnelRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/personnel/p1", `{"lastName":"Alaoui"}`, service.RoleUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, env.personnel.updated)

	rec = env.do(t, http.MethodPut, "/api/personnel/p1", `{"lastName":"Alaoui"}`, service.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.personnel.updated)
}

func TestCapacityRepeatedDays(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/planning/capacity?day=2026-05-01&day=2026-05-04", "", service.RoleUser)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2026-05-01", "2026-05-04"}, env.planning.days)
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"rh@example.org","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, refreshCookie, cookies[0].Name)
	assert.Equal(t, "refresh", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rec = env.do(t, http.MethodPost, "/api/auth/login", `{"email":"rh@example.org","password":"faux"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Identifiants invalides", errorBody(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/login", `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email et mot de passe obligatoires", errorBody(t, rec))
}

func TestUpdateConvocationRejectsPersonnelID(t *testing.T) {
	jwtManager := auth.NewJWTManager(testSecret, 15*time.Minute)
	h := NewRouter(Deps{
		Config: &config.Config{
			RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
			RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		},
		Tokens:       jwtManager,
		Convocations: convocation.NewService(nil, nil, time.UTC),
	})
	token, _, err := jwtManager.GenerateAccessToken("user-1", []string{service.RoleUser})
	require.NoError(t, err)

	for _, body := range []string{
		`{"personnelId":"p2","datePrevue":"2026-05-04T10:00"}`,
		`{"personnelId":null}`,
	} {
		req := httptest.NewRequest(http.MethodPut, "/api/convocations/c1", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Modification du personnel interdite sur cette route.", errorBody(t, rec))
	}
}

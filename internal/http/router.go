package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sante-travail/convocations/internal/bordereau"
	"github.com/sante-travail/convocations/internal/calendar"
	"github.com/sante-travail/convocations/internal/config"
	"github.com/sante-travail/convocations/internal/convocation"
	httpmiddleware "github.com/sante-travail/convocations/internal/http/middleware"
	"github.com/sante-travail/convocations/internal/personnel"
	"github.com/sante-travail/convocations/internal/planning"
	"github.com/sante-travail/convocations/internal/service"
)

// AuthAPI couvre la session utilisateur.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, rawToken string) (*service.LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	GetMe(ctx context.Context, subject string) (*service.Profile, error)
}

// ConvocationAPI couvre le cycle de vie des convocations.
type ConvocationAPI interface {
	Create(ctx context.Context, in convocation.CreateInput) (convocation.Convocation, error)
	Get(ctx context.Context, id string) (convocation.Convocation, error)
	Update(ctx context.Context, id string, in convocation.UpdateInput) (convocation.Convocation, error)
	Cancel(ctx context.Context, id string, motif *string) (convocation.Convocation, error)
	BulkCreate(ctx context.Context, in convocation.BulkInput) (int, error)
	CountOnDay(ctx context.Context, day string) (int, error)
	List(ctx context.Context, q convocation.ListQuery, page, pageSize int) ([]convocation.Convocation, int, error)
}

// BordereauAPI couvre le cycle de vie des bordereaux.
type BordereauAPI interface {
	Create(ctx context.Context, in bordereau.CreateInput) (bordereau.Bordereau, error)
	Get(ctx context.Context, id string) (bordereau.Bordereau, error)
	List(ctx context.Context, q bordereau.ListQuery, page, pageSize int) ([]bordereau.Bordereau, int, error)
	Update(ctx context.Context, id string, in bordereau.UpdateInput) (bordereau.Bordereau, error)
	Delete(ctx context.Context, id string) error
	Attach(ctx context.Context, id string, ids []string) (bordereau.AttachResult, error)
	Detach(ctx context.Context, id string, ids []string) (bordereau.DetachResult, error)
	Generate(ctx context.Context, id string) (bordereau.GenerateResult, error)
	Export(ctx context.Context, id string) ([]byte, string, error)
}

// HolidayAPI liste les jours fériés.
type HolidayAPI interface {
	List(ctx context.Context, from, to string) ([]calendar.JourFerie, error)
}

// PersonnelAPI couvre la recherche et la modification du personnel.
type PersonnelAPI interface {
	Search(ctx context.Context, f personnel.Filter, page, pageSize int) ([]personnel.Personnel, int, error)
	Get(ctx context.Context, id string) (personnel.Personnel, error)
	Update(ctx context.Context, id string, in personnel.UpdateInput) (personnel.Personnel, error)
	ServicesOfFormation(ctx context.Context, formationID string) ([]personnel.Unite, error)
}

// PlanningAPI couvre la planification en masse.
type PlanningAPI interface {
	Schedule(ctx context.Context, in planning.Input) (planning.Result, error)
	Capacity(ctx context.Context, days []string) ([]planning.DayCapacity, error)
}

// Pinger vérifie une dépendance.
type Pinger interface {
	Ping(ctx context.Context) error
}

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

// RedisPinger adapte un client redis à Pinger.
func RedisPinger(client *redis.Client) Pinger {
	return redisPinger{client: client}
}

// Deps regroupe ce dont le routeur a besoin.
type Deps struct {
	Config       *config.Config
	DB           Pinger
	Redis        Pinger
	Tokens       httpmiddleware.TokenParser
	Auth         AuthAPI
	Convocations ConvocationAPI
	Bordereaux   BordereauAPI
	Holidays     HolidayAPI
	Personnel    PersonnelAPI
	Planning     PlanningAPI
}

// Handler porte les handlers HTTP.
type Handler struct {
	Deps
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter renvoie le routeur configuré.
func NewRouter(d Deps) http.Handler {
	devCookies := false
	for _, origin := range d.Config.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	h := &Handler{
		Deps:          d,
		publicLimiter: httpmiddleware.NewRateLimiter(d.Config.RateLimitPublic.RequestsPerSecond, d.Config.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(d.Config.RateLimitAuth.RequestsPerSecond, d.Config.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(d.Config.AllowOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))
			public.Post("/auth/login", h.Login)
			public.Post("/auth/refresh", h.Refresh)
			public.Post("/auth/logout", h.Logout)
		})

		api.Group(func(private chi.Router) {
			private.Use(httpmiddleware.Auth(d.Tokens))
			private.Use(httpmiddleware.UserRateLimit(h.authLimiter, httpmiddleware.CostRead))
			batch := httpmiddleware.UserRateLimit(h.authLimiter, httpmiddleware.CostBatch)

			private.Get("/me", h.Me)

			private.Route("/convocations", func(c chi.Router) {
				c.Get("/", h.ListConvocations)
				c.Post("/", h.CreateConvocation)
				c.With(batch).Post("/bulk", h.BulkCreateConvocations)
				c.Get("/count", h.CountConvocations)
				c.Get("/{id}", h.GetConvocation)
				c.Put("/{id}", h.UpdateConvocation)
				c.Patch("/{id}", h.CancelConvocation)
			})

			private.Route("/bordereaux", func(b chi.Router) {
				b.Get("/", h.ListBordereaux)
				b.Post("/", h.CreateBordereau)
				b.Get("/{id}", h.GetBordereau)
				b.Put("/{id}", h.UpdateBordereau)
				b.Delete("/{id}", h.DeleteBordereau)
				b.Post("/{id}/convocations", h.AttachConvocations)
				b.Delete("/{id}/convocations", h.DetachConvocations)
				b.With(batch).Post("/{id}/generate", h.GenerateBordereau)
				b.With(batch).Get("/{id}/export", h.ExportBordereau)
			})

			private.Get("/jours-feries", h.ListJoursFeries)

			private.Route("/personnel", func(p chi.Router) {
				p.Get("/", h.SearchPersonnel)
				p.Get("/{id}", h.GetPersonnel)
				p.With(httpmiddleware.RequireRoles(service.RoleAdmin)).Put("/{id}", h.UpdatePersonnel)
			})
			private.Get("/formations/{id}/services", h.FormationServices)

			private.Route("/planning", func(p chi.Router) {
				p.With(batch).Post("/convocations", h.ScheduleConvocations)
				p.Get("/capacity", h.Capacity)
			})
		})
	})

	return r
}

// Health répond un statut simple.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready vérifie Postgres et Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.DB.Ping(ctx)
	redisErr := h.Redis.Ping(ctx)

	if dbErr != nil || redisErr != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Dépendances indisponibles",
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

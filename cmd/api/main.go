package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/auth"
	"github.com/sante-travail/convocations/internal/bordereau"
	"github.com/sante-travail/convocations/internal/calendar"
	"github.com/sante-travail/convocations/internal/config"
	"github.com/sante-travail/convocations/internal/convocation"
	"github.com/sante-travail/convocations/internal/db"
	internalhttp "github.com/sante-travail/convocations/internal/http"
	"github.com/sante-travail/convocations/internal/notify"
	"github.com/sante-travail/convocations/internal/personnel"
	"github.com/sante-travail/convocations/internal/planning"
	"github.com/sante-travail/convocations/internal/repo"
	"github.com/sante-travail/convocations/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api arrêtée sur erreur")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogger(cfg)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(repo.New(pool), redisClient, jwtManager, cfg.JWTRefreshTTL)

	holidays := calendar.NewService(calendar.NewRepository(pool), redisClient, cfg.HolidayCacheTTL, cfg.Location)
	convocations := convocation.NewService(convocation.NewRepository(pool), calendar.NewValidator(holidays, cfg.Location), cfg.Location)
	personnelRepo := personnel.NewRepository(pool)

	var notifier notify.Notifier
	if cfg.NotifyWebhook != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhook)
	}

	handler := internalhttp.NewRouter(internalhttp.Deps{
		Config:       cfg,
		DB:           pool,
		Redis:        internalhttp.RedisPinger(redisClient),
		Tokens:       jwtManager,
		Auth:         authService,
		Convocations: convocations,
		Bordereaux:   bordereau.NewService(bordereau.NewRepository(pool), notifier, cfg.Location),
		Holidays:     holidays,
		Personnel:    personnel.NewService(personnelRepo),
		Planning:     planning.NewScheduler(personnelRepo, convocations, holidays, cfg.Location),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("timezone", cfg.Location.String()).Msgf("API à l'écoute sur :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("arrêt en cours...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

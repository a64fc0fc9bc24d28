package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/calendar"
	"github.com/sante-travail/convocations/internal/db"
	"github.com/sante-travail/convocations/internal/personnel"
	"github.com/sante-travail/convocations/internal/repo"
	"github.com/sante-travail/convocations/internal/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		log.Fatal().Msg("définir DB_DSN")
	}
	loc, err := time.LoadLocation(envOr("TIMEZONE", "Africa/Casablanca"))
	if err != nil {
		log.Fatal().Err(err).Msg("TIMEZONE invalide")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connexion à la base impossible")
	}
	defer pool.Close()

	// REDIS_URL optionnel: sans lui, le cache de l'API expire au bout de HOLIDAY_CACHE_TTL.
	var cache *redis.Client
	if raw := strings.TrimSpace(os.Getenv("REDIS_URL")); raw != "" {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			log.Fatal().Err(err).Msg("REDIS_URL invalide")
		}
		cache = redis.NewClient(opts)
		defer cache.Close()
	}
	holidays := calendar.NewService(calendar.NewRepository(pool), cache, 10*time.Minute, loc)

	group, cmd, args := os.Args[1], os.Args[2], os.Args[3:]
	switch group + " " + cmd {
	case "holidays import":
		err = runHolidaysImport(ctx, holidays, args)
	case "holidays list":
		err = runHolidaysList(ctx, holidays, args)
	case "formations import", "services import", "postes import":
		err = runRefImport(ctx, personnel.NewImporter(personnel.NewRepository(pool)), personnel.RefKind(group), args)
	case "users create":
		err = runUsersCreate(ctx, repo.New(pool), args)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Str("cmd", group+" "+cmd).Msg("échec")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "référentiel CLI")
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  referentiel holidays import --file jours.yaml")
	fmt.Fprintln(os.Stderr, "  referentiel holidays list [--from 2026-01-01] [--to 2026-12-31]")
	fmt.Fprintln(os.Stderr, "  referentiel formations|services|postes import --file codes.yaml")
	fmt.Fprintln(os.Stderr, "  referentiel users create --email rh@example.org --password ... [--role ADMIN]")
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func runHolidaysImport(ctx context.Context, holidays *calendar.Service, args []string) error {
	fs := flag.NewFlagSet("holidays import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	file := fs.String("file", "", "fichier YAML des jours fériés")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("--file obligatoire")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("lecture %s: %w", *file, err)
	}
	defer f.Close()

	items, err := calendar.DecodeHolidays(f)
	if err != nil {
		return err
	}
	created, err := holidays.Import(ctx, items)
	if err != nil {
		return err
	}
	log.Info().Int("lus", len(items)).Int("crees", created).Msg("jours fériés importés")
	return nil
}

func runRefImport(ctx context.Context, importer *personnel.Importer, kind personnel.RefKind, args []string) error {
	fs := flag.NewFlagSet(string(kind)+" import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	file := fs.String("file", "", "fichier YAML (code, libelle, formation pour les services)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("--file obligatoire")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("lecture %s: %w", *file, err)
	}
	defer f.Close()

	entries, err := personnel.DecodeRefs(f)
	if err != nil {
		return err
	}
	created, err := importer.Import(ctx, kind, entries)
	if err != nil {
		return err
	}
	log.Info().Str("referentiel", string(kind)).Int("lus", len(entries)).Int("crees", created).Msg("référentiel importé")
	return nil
}

func runHolidaysList(ctx context.Context, holidays *calendar.Service, args []string) error {
	fs := flag.NewFlagSet("holidays list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	from := fs.String("from", "", "date de début (YYYY-MM-DD)")
	to := fs.String("to", "", "date de fin (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	items, err := holidays.List(ctx, *from, *to)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("aucun jour férié")
		return nil
	}
	encoded, _ := json.MarshalIndent(items, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

func runUsersCreate(ctx context.Context, queries *repo.Queries, args []string) error {
	fs := flag.NewFlagSet("users create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		email     = fs.String("email", "", "e-mail de connexion")
		password  = fs.String("password", "", "mot de passe initial")
		firstName = fs.String("first-name", "", "prénom")
		lastName  = fs.String("last-name", "", "nom")
		role      = fs.String("role", service.RoleUser, "ADMIN ou USER")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := service.CreateUser(ctx, queries, service.CreateUserInput{
		Email:     *email,
		Password:  *password,
		FirstName: *firstName,
		LastName:  *lastName,
		Role:      *role,
	})
	if err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID).Str("email", user.Email).Str("role", user.Role).Msg("utilisateur créé")
	return nil
}

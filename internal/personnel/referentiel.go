package personnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"

	"github.com/sante-travail/convocations/internal/util"
)

// RefKind désigne une table de référence importable.
type RefKind string

const (
	KindPoste     RefKind = "postes"
	KindFormation RefKind = "formations"
	KindService   RefKind = "services"
)

// ErrUnknownFormation est renvoyé quand un service cite une formation absente.
var ErrUnknownFormation = errors.New("formation inconnue")

// RefEntry est une ligne de fichier de référence. Formation (code) ne sert qu'aux services.
type RefEntry struct {
	Code      string `yaml:"code"`
	Libelle   string `yaml:"libelle"`
	Formation string `yaml:"formation"`
}

// DecodeRefs lit une liste YAML d'entrées {code, libelle, formation}.
func DecodeRefs(r io.Reader) ([]RefEntry, error) {
	var entries []RefEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return entries, nil
}

// RefStore insère une entrée de référence si son code est inconnu.
type RefStore interface {
	InsertRef(ctx context.Context, kind RefKind, e RefEntry) (bool, error)
}

// Importer charge les référentiels postes, formations et services.
type Importer struct {
	store RefStore
}

// NewImporter crée l'importeur.
func NewImporter(store RefStore) *Importer {
	return &Importer{store: store}
}

// Import valide toutes les entrées puis insère celles dont le code n'existe pas encore.
// Les entrées existantes ne sont pas modifiées. Renvoie le nombre de créations.
func (im *Importer) Import(ctx context.Context, kind RefKind, entries []RefEntry) (int, error) {
	if kind != KindPoste && kind != KindFormation && kind != KindService {
		return 0, fmt.Errorf("référentiel inconnu: %q", kind)
	}

	clean := make([]RefEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		e.Code = strings.TrimSpace(e.Code)
		e.Libelle = strings.TrimSpace(e.Libelle)
		e.Formation = strings.TrimSpace(e.Formation)
		switch {
		case e.Code == "" || e.Libelle == "":
			return 0, fmt.Errorf("entrée %d: code et libelle obligatoires", i+1)
		case kind == KindService && e.Formation == "":
			return 0, fmt.Errorf("entrée %d (%s): formation obligatoire", i+1, e.Code)
		}
		if _, dup := seen[e.Code]; dup {
			return 0, fmt.Errorf("entrée %d: code en double %s", i+1, e.Code)
		}
		seen[e.Code] = struct{}{}
		clean = append(clean, e)
	}

	created := 0
	for _, e := range clean {
		inserted, err := im.store.InsertRef(ctx, kind, e)
		if errors.Is(err, ErrUnknownFormation) {
			return created, fmt.Errorf("service %s: %w %s", e.Code, err, e.Formation)
		}
		if err != nil {
			return created, fmt.Errorf("%s %s: %w", kind, e.Code, err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

// InsertRef implémente RefStore; un code déjà présent est ignoré.
func (r *Repository) InsertRef(ctx context.Context, kind RefKind, e RefEntry) (bool, error) {
	id := util.NewID()
	var (
		query string
		args  []any
	)
	switch kind {
	case KindPoste:
		query = `INSERT INTO postes (id, code, libelle) VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING`
		args = []any{id, e.Code, e.Libelle}
	case KindFormation:
		query = `INSERT INTO formations (id, code, libelle) VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING`
		args = []any{id, e.Code, e.Libelle}
	case KindService:
		var formationID string
		err := r.pool.QueryRow(ctx, `SELECT id FROM formations WHERE code = $1`, e.Formation).Scan(&formationID)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrUnknownFormation
		}
		if err != nil {
			return false, err
		}
		query = `INSERT INTO services (id, code, libelle, formation_id) VALUES ($1, $2, $3, $4) ON CONFLICT (code) DO NOTHING`
		args = []any{id, e.Code, e.Libelle, formationID}
	default:
		return false, fmt.Errorf("référentiel inconnu: %q", kind)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

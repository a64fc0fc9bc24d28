package personnel

import (
	"net/url"
	"strings"

	"github.com/sante-travail/convocations/internal/db"
)

// Filter est le prédicat de recherche du personnel, partagé par la liste des
// convocations et la planification en masse.
type Filter struct {
	Nom             string `json:"nom"`
	Prenom          string `json:"prenom"`
	PosteID         string `json:"posteId"`
	ServiceID       string `json:"serviceId"`
	FormationID     string `json:"formationId"`
	Categorie       string `json:"categorie"`
	Tag             string `json:"tag"`
	IncludeInactive bool   `json:"includeInactive"`
}

// FilterFromQuery lit les paramètres de recherche d'une URL.
func FilterFromQuery(q url.Values) Filter {
	return Filter{
		Nom:             strings.TrimSpace(q.Get("nom")),
		Prenom:          strings.TrimSpace(q.Get("prenom")),
		PosteID:         strings.TrimSpace(q.Get("posteId")),
		ServiceID:       strings.TrimSpace(q.Get("serviceId")),
		FormationID:     strings.TrimSpace(q.Get("formationId")),
		Categorie:       strings.TrimSpace(q.Get("categorie")),
		Tag:             strings.TrimSpace(q.Get("tag")),
		IncludeInactive: strings.EqualFold(strings.TrimSpace(q.Get("includeInactive")), "true"),
	}
}

// Apply ajoute les conditions du filtre sur l'alias de table personnel donné.
// Une catégorie inconnue est ignorée.
func (f Filter) Apply(w *db.Where, alias string) {
	col := func(name string) string { return alias + "." + name }

	if f.Nom != "" {
		w.Add(col("last_name")+" ILIKE $%d", db.Contains(f.Nom))
	}
	if f.Prenom != "" {
		w.Add(col("first_name")+" ILIKE $%d", db.Contains(f.Prenom))
	}
	if f.PosteID != "" {
		w.Add(col("poste_id")+" = $%d", f.PosteID)
	}
	if f.ServiceID != "" {
		w.Add(col("service_id")+" = $%d", f.ServiceID)
	}
	if f.FormationID != "" {
		w.Add(col("formation_id")+" = $%d", f.FormationID)
	}
	if ValidCategorie(f.Categorie) {
		w.Add(col("categorie")+" = $%d", f.Categorie)
	}
	if f.Tag != "" {
		w.Add("$%d = ANY("+col("tags")+")", f.Tag)
	}
}

// ApplyActive ajoute en plus la restriction aux agents actifs, sauf demande contraire.
func (f Filter) ApplyActive(w *db.Where, alias string) {
	if !f.IncludeInactive {
		w.AddRaw(alias + ".is_active = TRUE")
	}
	f.Apply(w, alias)
}

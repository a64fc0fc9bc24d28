package db

import (
	"fmt"
	"strings"
)

// Where accumule des conditions AND et leurs paramètres positionnels.
type Where struct {
	clauses []string
	args    []any
}

// Add ajoute une condition dont le format contient un unique %d remplacé par
// la position du paramètre.
func (w *Where) Add(format string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

// AddRaw ajoute une condition sans paramètre.
func (w *Where) AddRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

// Arg ajoute un paramètre hors condition (LIMIT, OFFSET) et renvoie son placeholder.
func (w *Where) Arg(value any) string {
	w.args = append(w.args, value)
	return fmt.Sprintf("$%d", len(w.args))
}

// SQL renvoie la clause WHERE, ou une chaîne vide sans condition.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args renvoie les paramètres dans l'ordre des placeholders.
func (w *Where) Args() []any {
	return w.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Contains renvoie un motif LIKE « contient » dont les jokers sont échappés.
func Contains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

package repo

import "errors"

var (
	// ErrNotFound est renvoyé quand aucun enregistrement ne correspond.
	ErrNotFound = errors.New("enregistrement introuvable")
	// ErrEmailTaken signale un e-mail déjà utilisé.
	ErrEmailTaken = errors.New("email déjà utilisé")
)

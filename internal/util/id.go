package util

import (
	"time"

	"github.com/google/uuid"
)

// NewID génère un identifiant UUID v4 textuel.
func NewID() string {
	return uuid.NewString()
}

// Now renvoie l'instant courant en UTC.
func Now() time.Time {
	return time.Now().UTC()
}

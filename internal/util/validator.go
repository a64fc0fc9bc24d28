package util

import (
	"errors"
	"net/mail"
	"strings"
)

// ValidateEmail renvoie une erreur pour les e-mails invalides.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obligatoire")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email invalide")
	}
	return nil
}

// ValidatePassword vérifie la longueur minimale du mot de passe.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("le mot de passe doit contenir au moins 8 caractères")
	}
	return nil
}

// RequireString garantit une chaîne non vide.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obligatoire")
	}
	return nil
}

// TrimPtr renvoie nil pour une chaîne vide après trim.
func TrimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

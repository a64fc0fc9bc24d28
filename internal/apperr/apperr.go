package apperr

import (
	"errors"
	"fmt"
)

// Kind classe les erreurs métier pour le mapping HTTP.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error porte le message affiché à l'utilisateur et la cause éventuelle.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation signale une saisie invalide ou une règle métier violée.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Validationf formate le message de validation.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound signale une entité absente.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict signale une violation d'unicité.
func Conflict(msg string, cause error) error {
	return &Error{Kind: KindConflict, Message: msg, Err: cause}
}

// KindOf renvoie la classe de l'erreur; les erreurs inconnues sont internes.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Message renvoie le message public d'une erreur classée.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}

// Is indique si err appartient à la classe donnée.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

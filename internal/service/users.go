package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sante-travail/convocations/internal/auth"
	"github.com/sante-travail/convocations/internal/repo"
	"github.com/sante-travail/convocations/internal/util"
)

// Rôles reconnus par l'application.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

type userCreator interface {
	CreateUser(ctx context.Context, arg repo.CreateUserParams) (repo.User, error)
}

// CreateUserInput regroupe les champs de création d'un compte.
type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// CreateUser valide et crée un compte avec un hash Argon2id.
func CreateUser(ctx context.Context, r userCreator, in CreateUserInput) (repo.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := util.ValidateEmail(email); err != nil {
		return repo.User{}, err
	}
	if err := util.ValidatePassword(in.Password); err != nil {
		return repo.User{}, err
	}
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if role == "" {
		role = RoleUser
	}
	if role != RoleAdmin && role != RoleUser {
		return repo.User{}, errors.New("rôle invalide (ADMIN ou USER)")
	}

	hash, err := auth.Hash(in.Password)
	if err != nil {
		return repo.User{}, err
	}

	return r.CreateUser(ctx, repo.CreateUserParams{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         role,
	})
}

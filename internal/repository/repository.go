package repository

import (
	"github.com/prperemyshlev/session-auth-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User  UserRepository
	Token TokenRepository
	Tx    Transactor
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:  NewUserRepository(db),
		Token: NewTokenRepository(db),
		Tx:    db,
	}
}

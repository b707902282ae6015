package repository

import (
	"github.com/TIRP-Group3/design1/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type AuthRepository interface {
	CreateUser(user *models.User) error
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id int64) (*models.User, error)
	CountUsers() (int, error)
}

type authRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func NewAuthRepository(db *sqlx.DB, log *logrus.Logger) AuthRepository {
	return &authRepository{db: db, log: log}
}

func (r *authRepository) CreateUser(user *models.User) error {
	query := `INSERT INTO users (username, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	return r.db.QueryRowx(query, user.Username, user.Email, user.PasswordHash, user.Role).StructScan(user)
}

func (r *authRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE username = $1`
	err := r.db.Get(&user, query, username)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *authRepository) GetUserByID(id int64) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE id = $1`
	err := r.db.Get(&user, query, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CountUsers counts accounts that can log in. The seeded guest
// identity carries the disabled hash '!' and is excluded, so the
// first real registration still bootstraps the administrator.
func (r *authRepository) CountUsers() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE password_hash <> '!'`
	err := r.db.Get(&count, query)
	if err != nil {
		return 0, err
	}
	return count, nil
}

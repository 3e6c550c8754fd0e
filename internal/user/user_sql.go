package user

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/driver"
	"github.com/phinguyen111/studytime/internal/infrastructure/uuid"
)

type UserRepository struct {
	Conn          driver.ITransactionalDB `dep:""`
	UUIDGenerator uuid.Generator
}

var _ domain.UserRepository = &UserRepository{}

func NewUserRepository(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *UserRepository {
	return &UserRepository{
		Conn:          Conn,
		UUIDGenerator: UUIDGenerator,
	}
}

// FindByCredential query user with provided credential
func (repo *UserRepository) FindByCredential(ctx context.Context, post *domain.UserModel) (*domain.UserModel, error) {
	conn := repo.Conn
	rows, err := conn.QueryContext(ctx, `
SELECT id, username, password, email, role, login_retry
FROM "user"
WHERE username = $1 OR email = $2
	`, post.Username, post.Email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if rows.Next() {
		user := new(domain.UserModel)
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.Email, &user.Role, &user.LoginRetry); err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, nil
}

// FindByIDs load display fields for the given user IDs
func (repo *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.UserModel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	conn := repo.Conn
	holders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		holders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	rows, err := conn.QueryContext(ctx, `
SELECT id, username, email, role
FROM "user"
WHERE id IN (`+strings.Join(holders, ", ")+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.UserModel
	for rows.Next() {
		user := new(domain.UserModel)
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Role); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, nil
}

func (repo *UserRepository) SaveUser(ctx context.Context, post *domain.UserModel) error {
	conn := repo.Conn
	// generate id
	UUIDGenerator := repo.UUIDGenerator
	if uuid, err := UUIDGenerator.Generate(); err == nil {
		post.ID = uuid
	} else {
		return err
	}
	if post.Role == "" {
		post.Role = domain.RoleUser
	}

	_, err := conn.ExecContext(ctx, `
INSERT INTO "user"(id, username, password, email, role)
VALUES($1, $2, $3, $4, $5)
	`, post.ID, post.Username, post.Password, post.Email, post.Role)

	if err, ok := err.(*mysql.MySQLError); ok && err.Number == 1062 {
		return domain.ErrDuplicatedUser
	}
	return err
}

func (repo *UserRepository) UpdateUser(ctx context.Context, post *domain.UserModel) error {
	conn := repo.Conn
	_, err := conn.ExecContext(ctx, `
UPDATE "user"
SET email = $1,
    login_retry = $2
WHERE id = $3
	`, post.Email, post.LoginRetry, post.ID)
	return err
}

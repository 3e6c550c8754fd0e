package domain

import (
	"context"
)

// user roles carried in the JWT claims
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type UserModel struct {
	ID         string `json:"id"`
	Username   string `json:"username" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password,omitempty" validate:"required,min=8"`
	Role       string `json:"role"`
	LoginRetry int    `json:"-"`
	LastLogin  int64  `json:"-"`
}

type UserUseCase interface {
	SignUp(ctx context.Context, post *UserModel) (*UserModel, error)
	Exists(ctx context.Context, post *UserModel) (bool, error)
}

type UserRepository interface {
	FindByCredential(ctx context.Context, post *UserModel) (*UserModel, error)
	FindByIDs(ctx context.Context, ids []string) ([]*UserModel, error)
	UpdateUser(ctx context.Context, post *UserModel) error
	SaveUser(ctx context.Context, post *UserModel) error
}

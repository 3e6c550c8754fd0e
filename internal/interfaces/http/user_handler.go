package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/auth"
	"github.com/phinguyen111/studytime/internal/infrastructure/driver"
	"github.com/phinguyen111/studytime/internal/infrastructure/validate"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler user related operations
type UserHandler struct {
	JWTUtil        *auth.JWTUtil
	UserRepository domain.UserRepository
	KVStore        driver.KeyValueDB
	UserUseCase    domain.UserUseCase
	Validator      validate.Validator
	MaximumRetry   int
	RetryTimeout   time.Duration
}

// NewUserHandler create an user controller instance
func NewUserHandler(
	JWTUtil *auth.JWTUtil,
	UserRepository domain.UserRepository,
	KVStore driver.KeyValueDB,
	UserUseCase domain.UserUseCase,
	MaximumRetry int,
	RetryTimeout time.Duration,
	Validator validate.Validator,
) *UserHandler {
	handler := &UserHandler{
		JWTUtil:        JWTUtil,
		UserUseCase:    UserUseCase,
		Validator:      Validator,
		KVStore:        KVStore,
		UserRepository: UserRepository,
		MaximumRetry:   MaximumRetry,
		RetryTimeout:   RetryTimeout,
	}
	return handler
}

// HandleSignIn ...
func (uh *UserHandler) HandleSignIn(c echo.Context) (err error) {
	ju := uh.JWTUtil
	repo := uh.UserRepository

	// parse body
	post := new(domain.UserModel)
	if err = c.Bind(&post); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, internal.Error()))
	}
	post.Email = post.Username

	ctx := c.Request().Context()
	user, err := repo.FindByCredential(ctx, post)
	if err != nil {
		return err
	}
	if user == nil {
		return c.JSON(http.StatusUnauthorized, NewRESTStandardError(http.StatusUnauthorized, domain.ErrNoSuchUser.Error()))
	}
	if user.LoginRetry >= uh.MaximumRetry {
		return c.JSON(http.StatusForbidden, NewRESTStandardError(http.StatusForbidden, domain.ErrUserTooManyRetry.Error()))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(post.Password)); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			user.LoginRetry++
			repo.UpdateUser(ctx, user)
			return c.JSON(http.StatusUnauthorized, NewRESTStandardError(http.StatusUnauthorized, domain.ErrNoSuchUser.Error()))
		}
		return err
	}

	// reset retry number
	user.LoginRetry = 0
	repo.UpdateUser(ctx, user)
	// issue JWT
	tokenStr, err := ju.GenerateTokenStr(user)
	if err != nil {
		return err
	}
	ju.SetClientToken(c, tokenStr)
	return c.JSON(http.StatusOK, map[string]string{"token": tokenStr})
}

// HandleSignUp ...
func (uh *UserHandler) HandleSignUp(c echo.Context) (err error) {
	UserUseCase := uh.UserUseCase
	post := new(domain.UserModel)

	if err = c.Bind(&post); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, internal.Error()))
	}
	// clients cannot self-assign a role
	post.Role = domain.RoleUser

	// validation
	if fieldErrors := uh.Validator.Struct(post); fieldErrors != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", fieldErrors))
	}

	// hash password
	if password, err := bcrypt.GenerateFromPassword([]byte(post.Password), bcrypt.DefaultCost); err == nil {
		post.Password = string(password)
	} else {
		return err
	}

	// register
	_, err = UserUseCase.SignUp(c.Request().Context(), post)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatedUser) {
			return c.JSON(http.StatusConflict, NewRESTStandardError(http.StatusConflict, err.Error()))
		}
		return err
	}
	return c.NoContent(http.StatusCreated)
}

// HandleSignOut ...
func (uh *UserHandler) HandleSignOut(c echo.Context) (err error) {
	ju := uh.JWTUtil
	kv := uh.KVStore

	if tokenStr, err := ju.ExtractToken(c); err == nil {
		if token, err := ju.Validate(tokenStr); err == nil {
			ju.ClearClientToken(c)
			return kv.SetEX(tokenStr, "", token.TimeRemaining())
		}
		return c.NoContent(http.StatusUnauthorized)
	}
	return nil
}

// HandleUserExists ...
func (uh *UserHandler) HandleUserExists(c echo.Context) (err error) {
	UserUseCase := uh.UserUseCase
	post := new(domain.UserModel)
	post.Username = c.QueryParam("username")
	post.Email = c.QueryParam("email")

	if fieldError := uh.Validator.AllEmpty([]string{"username", "email"}, post.Username, post.Email); fieldError != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", []*validate.FieldError{fieldError}))
	}

	existing, err := UserUseCase.Exists(c.Request().Context(), post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, existing)
}

package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/wichananm65/storefront/internal/database"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 5

// ValidationError describes bad registration input in words fit for the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type Service struct {
	repo Repository
	cost int
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// NormalizeEmail is applied before every store and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in RegisterInput) validate() error {
	if in.Username == "" {
		return &ValidationError{Message: "username is required"}
	}
	if in.Email == "" {
		return &ValidationError{Message: "email is required"}
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return &ValidationError{Message: "email address is not valid"}
	}
	if len(in.Password) < MinPasswordLength {
		return &ValidationError{Message: "password must be at least 5 characters"}
	}
	return nil
}

// Register stores a new user with a bcrypt hash of the password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Identity, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	if err := in.validate(); err != nil {
		return Identity{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return Identity{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return Identity{}, database.Unavailable(err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Identity{}, err
	}

	created, err := s.repo.Create(ctx, User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return Identity{}, err
		}
		return Identity{}, database.Unavailable(err)
	}
	return created.Identity(), nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// Authenticate checks email and password. An unknown email still pays for
// one bcrypt comparison so response time does not reveal which emails are
// registered.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			dummyOnce.Do(func() {
				dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
			})
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return Identity{}, ErrNotFound
		}
		return Identity{}, database.Unavailable(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Identity{}, ErrInvalidCredentials
	}

	return user.Identity(), nil
}

func (s *Service) GetByID(ctx context.Context, id int) (User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, database.Unavailable(err)
	}
	return user, err
}

package product

import (
	"context"
	"errors"

	"github.com/wichananm65/storefront/internal/database"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, database.Unavailable(err)
	}
	return products, nil
}

// GetByID resolves a product for the cart. ErrNotFound is passed through;
// anything else is a store failure.
func (s *Service) GetByID(ctx context.Context, id int) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	p, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, ErrNotFound):
		return Product{}, err
	default:
		return Product{}, database.Unavailable(err)
	}
}

// Create inserts a catalog row; used by the seeding command.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	if p.Name == "" {
		return Product{}, errors.New("product name is required")
	}
	if p.Price.IsNegative() {
		return Product{}, errors.New("product price must be >= 0")
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, database.Unavailable(err)
	}
	return created, nil
}

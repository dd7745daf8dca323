package product

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	listProductsQuery = `
		SELECT id, name, price, image
		FROM products
		ORDER BY id
	`
	getProductByIDQuery = `
		SELECT id, name, price, image
		FROM products
		WHERE id = $1
	`
	insertProductQuery = `
		INSERT INTO products (name, price, image)
		VALUES ($1, $2, $3)
		RETURNING id
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, listProductsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, getProductByIDQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p Product) (Product, error) {
	if err := r.db.QueryRowContext(ctx, insertProductQuery, p.Name, p.Price, p.Image).Scan(&p.ID); err != nil {
		return Product{}, err
	}
	return p, nil
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p     Product
		image sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &image); err != nil {
		return Product{}, err
	}
	p.Image = image.String
	return p, nil
}

package order

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	insertOrderQuery = `
		INSERT INTO orders (user_id, total)
		VALUES ($1, $2)
		RETURNING id, date
	`
	insertItemQuery = `
		INSERT INTO order_items (order_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4)
	`
	listOrdersQuery = `
		SELECT id, user_id, total, date
		FROM orders
		WHERE user_id = $1
		ORDER BY date DESC, id DESC
	`
	listItemsQuery = `
		SELECT order_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`
)

// Create writes the order header and its items in one transaction. Any
// failure rolls the whole order back.
func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, insertOrderQuery, o.UserID, o.Total).Scan(&o.ID, &o.CreatedAt); err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		it.OrderID = o.ID
		if _, err := tx.ExecContext(ctx, insertItemQuery, it.OrderID, it.ProductName, it.Quantity, it.Price); err != nil {
			return Order{}, fmt.Errorf("insert order item %q: %w", it.ProductName, err)
		}
		items[i] = it
	}
	o.Items = items

	if err := tx.Commit(); err != nil {
		return Order{}, fmt.Errorf("commit order: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, listOrdersQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	index := map[int]int{}
	ids := make([]int64, 0)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Items = []Item{}
		index[o.ID] = len(orders)
		ids = append(ids, int64(o.ID))
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := r.db.QueryContext(ctx, listItemsQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it Item
		if err := itemRows.Scan(&it.OrderID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return orders, itemRows.Err()
}

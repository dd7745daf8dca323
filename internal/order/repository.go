package order

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository persists orders. Create stores the order and all of its items
// as one unit or nothing at all.
type Repository interface {
	Create(ctx context.Context, o Order) (Order, error)
	// ListByUser returns the user's orders newest first, ties broken by id
	// descending, each with its items.
	ListByUser(ctx context.Context, userID int) ([]Order, error)
}

type InMemoryRepository struct {
	mu     sync.RWMutex
	orders []Order
	nextID int
	now    func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, now: time.Now}
}

func (r *InMemoryRepository) Create(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o.ID = r.nextID
	r.nextID++
	o.CreatedAt = r.now().UTC()
	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		it.OrderID = o.ID
		items[i] = it
	}
	o.Items = items

	r.orders = append(r.orders, o)
	return o, nil
}

func (r *InMemoryRepository) ListByUser(_ context.Context, userID int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			o.Items = append([]Item(nil), o.Items...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

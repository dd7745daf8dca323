package session

import (
	"context"
	"encoding/json"
)

// Store persists sessions by id. Get returns ErrNotFound for unknown or
// expired ids.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Put(ctx context.Context, id string, s Session) error
	Delete(ctx context.Context, id string) error
}

// Updater is implemented by stores that run a read-modify-write atomically
// across processes. fn gets the stored session, or a zero Session and
// found=false, and may be called more than once. Nothing is written when fn
// returns an error.
type Updater interface {
	Update(ctx context.Context, id string, fn func(s *Session, found bool) error) (Session, error)
}

func encode(s Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(id string, data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, err
	}
	s.ID = id
	return s, nil
}

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomanqadri34/vcx-mart-sub002/models"
)

// Store loads and persists server-side sessions. Load never fails for an
// unknown or expired id; it hands back an empty session instead.
type Store interface {
	Load(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
}

func fresh(id string, now time.Time) *models.Session {
	return &models.Session{
		ID:        id,
		Cart:      models.Cart{Items: []models.CartItem{}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type MongoStore struct {
	coll *mongo.Collection
	ttl  time.Duration
}

func NewMongoStore(coll *mongo.Collection, ttl time.Duration) *MongoStore {
	return &MongoStore{coll: coll, ttl: ttl}
}

func (m *MongoStore) Load(ctx context.Context, id string) (*models.Session, error) {
	now := time.Now()
	var s models.Session
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fresh(id, now), nil
	}
	if err != nil {
		return nil, err
	}
	// the TTL monitor only sweeps once a minute
	if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now) {
		return fresh(id, now), nil
	}
	if s.Cart.Items == nil {
		s.Cart.Items = []models.CartItem{}
	}
	return &s, nil
}

// Save upserts the whole session; concurrent writers on one id are last write wins.
func (m *MongoStore) Save(ctx context.Context, s *models.Session) error {
	now := time.Now()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(m.ttl)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": s.ID}, s, options.Replace().SetUpsert(true))
	return err
}

// MemoryStore keeps sessions in process. Used by tests and local runs
// without a database.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]models.Session
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, sessions: make(map[string]models.Session)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	s, ok := m.sessions[id]
	if !ok || s.ExpiresAt.Before(now) {
		delete(m.sessions, id)
		return fresh(id, now), nil
	}
	cp := clone(s)
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(m.ttl)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	m.sessions[s.ID] = clone(*s)
	return nil
}

func clone(s models.Session) models.Session {
	items := make([]models.CartItem, len(s.Cart.Items))
	copy(items, s.Cart.Items)
	s.Cart.Items = items
	return s
}

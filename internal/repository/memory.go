package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"product_catalog/internal/model"
	"product_catalog/internal/pipeline"

	"github.com/google/uuid"
)

// MemoryStore keeps users and products in process. It backs the memory
// store driver and service tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]model.User
	products map[uuid.UUID]model.Product
	clock    func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    map[uuid.UUID]model.User{},
		products: map[uuid.UUID]model.Product{},
		clock:    time.Now,
	}
}

// SetClock replaces the time source used for timestamps
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *MemoryStore) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// Ping always succeeds; it lets the store stand in for a pool in health checks
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Users returns the store's UserRepository
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Products returns the store's ProductRepository
func (s *MemoryStore) Products() ProductRepository { return memoryProducts{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.emailTaken(user.Email, uuid.Nil) {
		return ErrDuplicateEmail
	}
	now := r.s.now()
	user.ID = uuid.New()
	user.TokenVersion = 0
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

// emailTaken must be called with the lock held
func (s *MemoryStore) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range s.users {
		if u.Email == email && id != except {
			return true
		}
	}
	return false
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r memoryUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memoryUsers) UpdateProfile(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if r.s.emailTaken(user.Email, user.ID) {
		return ErrDuplicateEmail
	}
	stored.Name = user.Name
	stored.Email = user.Email
	stored.UpdatedAt = r.s.now()
	r.s.users[user.ID] = stored
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r memoryUsers) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	stored.PasswordHash = passwordHash
	stored.TokenVersion++
	stored.UpdatedAt = r.s.now()
	r.s.users[id] = stored
	return stored.TokenVersion, nil
}

func (r memoryUsers) IncrementTokenVersion(_ context.Context, id uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	stored.TokenVersion++
	stored.UpdatedAt = r.s.now()
	r.s.users[id] = stored
	return stored.TokenVersion, nil
}

type memoryProducts struct{ s *MemoryStore }

func toDoc(p model.Product) doc {
	return doc{
		pipeline.FieldID:          p.ID,
		pipeline.FieldOwner:       p.Owner.ID,
		pipeline.FieldName:        p.Name,
		pipeline.FieldDescription: p.Description,
		pipeline.FieldPrice:       p.Price,
		pipeline.FieldQuantity:    p.Quantity,
		pipeline.FieldCategory:    p.Category,
		pipeline.FieldImage:       p.Image,
		pipeline.FieldCreatedAt:   p.CreatedAt,
		pipeline.FieldUpdatedAt:   p.UpdatedAt,
	}
}

func fromDoc(d doc) model.Product {
	var p model.Product
	p.ID, _ = d[pipeline.FieldID].(uuid.UUID)
	p.Name, _ = d[pipeline.FieldName].(string)
	p.Description, _ = d[pipeline.FieldDescription].(string)
	p.Price, _ = d[pipeline.FieldPrice].(float64)
	p.Quantity, _ = d[pipeline.FieldQuantity].(int64)
	p.Category, _ = d[pipeline.FieldCategory].(string)
	p.Image, _ = d[pipeline.FieldImage].(string)
	p.Owner.ID, _ = d[pipeline.FieldOwnerID].(uuid.UUID)
	p.Owner.Name, _ = d[pipeline.FieldOwnerName].(string)
	p.Owner.Email, _ = d[pipeline.FieldOwnerEmail].(string)
	p.CreatedAt, _ = d[pipeline.FieldCreatedAt].(time.Time)
	p.UpdatedAt, _ = d[pipeline.FieldUpdatedAt].(time.Time)
	return p
}

// resolveOwner must be called with the lock held
func (s *MemoryStore) resolveOwner(id uuid.UUID) (string, string, bool) {
	u, ok := s.users[id]
	return u.Name, u.Email, ok
}

// docs must be called with the lock held
func (s *MemoryStore) docs() []doc {
	out := make([]doc, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, toDoc(p))
	}
	return out
}

// withOwner fills the owner projection; must be called with the lock held
func (s *MemoryStore) withOwner(p model.Product) model.Product {
	p.Owner.Name, p.Owner.Email, _ = s.resolveOwner(p.Owner.ID)
	return p
}

// stamp assigns id and timestamps; must be called with the lock held
func (s *MemoryStore) stamp(p *model.Product) error {
	if _, ok := s.users[p.Owner.ID]; !ok {
		return fmt.Errorf("owner %s does not exist", p.Owner.ID)
	}
	now := s.now()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = now, now
	*p = s.withOwner(*p)
	return nil
}

func (r memoryProducts) Create(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.stamp(p); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r memoryProducts) CreateMany(_ context.Context, products []*model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	staged := make([]model.Product, 0, len(products))
	for i, p := range products {
		candidate := *p
		if err := r.s.stamp(&candidate); err != nil {
			return fmt.Errorf("failed to insert product %d: %w", i, err)
		}
		staged = append(staged, candidate)
	}
	for i, p := range staged {
		r.s.products[p.ID] = p
		*products[i] = p
	}
	return nil
}

func (r memoryProducts) Find(_ context.Context, stages []pipeline.Stage) ([]model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	docs, err := evaluate(r.s.docs(), stages, r.s.resolveOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, fromDoc(d))
	}
	return products, nil
}

func (r memoryProducts) Count(_ context.Context, filter pipeline.Match) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	docs, err := evaluate(r.s.docs(), []pipeline.Stage{filter}, r.s.resolveOwner)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return int64(len(docs)), nil
}

func (r memoryProducts) FindOneAndUpdate(_ context.Context, filter pipeline.Match, patch model.ProductPatch) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	docs, err := evaluate(r.s.docs(), []pipeline.Stage{filter, pipeline.Limit{N: 1}}, r.s.resolveOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	id, _ := docs[0][pipeline.FieldID].(uuid.UUID)
	p := r.s.products[id]
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Quantity != nil {
		p.Quantity = *patch.Quantity
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	p.UpdatedAt = r.s.now()
	r.s.products[id] = p

	out := r.s.withOwner(p)
	return &out, nil
}

func (r memoryProducts) FindOneAndDelete(_ context.Context, filter pipeline.Match) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	docs, err := evaluate(r.s.docs(), []pipeline.Stage{filter, pipeline.Limit{N: 1}}, r.s.resolveOwner)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	if len(docs) == 0 {
		return false, nil
	}
	id, _ := docs[0][pipeline.FieldID].(uuid.UUID)
	delete(r.s.products, id)
	return true, nil
}

func (r memoryProducts) Aggregate(_ context.Context, stages []pipeline.Stage) ([]Row, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	docs, err := evaluate(r.s.docs(), stages, r.s.resolveOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to run aggregation: %w", err)
	}
	rows := make([]Row, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, Row(d))
	}
	return rows, nil
}

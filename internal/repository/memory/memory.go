// Package memory provides an in-memory Store implementation
// (for testing/dev). Atomicity is simulated with a snapshot that is
// restored when the unit of work fails.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"

	"github.com/google/uuid"
)

type state struct {
	products     map[uuid.UUID]model.Product
	transactions []model.Transaction
	activity     []model.ActivityLogEntry
	users        map[uuid.UUID]model.User
	seq          map[uuid.UUID]uint64
	nextSeq      uint64
}

func newState() *state {
	return &state{
		products: make(map[uuid.UUID]model.Product),
		users:    make(map[uuid.UUID]model.User),
		seq:      make(map[uuid.UUID]uint64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, p := range s.products {
		c.products[id] = p
	}
	for id, u := range s.users {
		c.users[id] = u
	}
	for id, n := range s.seq {
		c.seq[id] = n
	}
	c.transactions = append([]model.Transaction(nil), s.transactions...)
	c.activity = append([]model.ActivityLogEntry(nil), s.activity...)
	c.nextSeq = s.nextSeq
	return c
}

// stamp fills in what the gorm hooks would have: id, timestamps and the
// insertion sequence used to keep "created_at DESC" stable under equal
// clock readings.
func (s *state) stamp(base *model.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := time.Now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	s.nextSeq++
	s.seq[base.ID] = s.nextSeq
}

// Store is the in-memory repository.Store. A single mutex serializes all
// mutating units of work; reads outside a unit take the same lock.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (m *Store) Products() repository.ProductRepository {
	return &productRepo{repoBase{store: m}}
}

func (m *Store) Transactions() repository.TransactionRepository {
	return &transactionRepo{repoBase{store: m}}
}

func (m *Store) Activity() repository.ActivityRepository {
	return &activityRepo{repoBase{store: m}}
}

func (m *Store) Users() repository.UserRepository {
	return &userRepo{repoBase{store: m}}
}

// Atomically runs fn against the live state under the store mutex and
// restores a snapshot if fn returns an error, so partial writes are
// never observable.
func (m *Store) Atomically(_ context.Context, fn func(repository.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txView{store: m}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// txView hands out repositories that skip locking; the enclosing
// Atomically already holds the mutex.
type txView struct {
	store *Store
}

func (v *txView) Products() repository.ProductRepository {
	return &productRepo{repoBase{store: v.store, locked: true}}
}

func (v *txView) Transactions() repository.TransactionRepository {
	return &transactionRepo{repoBase{store: v.store, locked: true}}
}

func (v *txView) Activity() repository.ActivityRepository {
	return &activityRepo{repoBase{store: v.store, locked: true}}
}

func (v *txView) Users() repository.UserRepository {
	return &userRepo{repoBase{store: v.store, locked: true}}
}

func (v *txView) Atomically(_ context.Context, fn func(repository.Store) error) error {
	// Already inside the unit of work; just run fn against it.
	return fn(v)
}

type repoBase struct {
	store  *Store
	locked bool
}

func (r *repoBase) enter() func() {
	if r.locked {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

// ---------------------------------------------------------------------
// products

type productRepo struct{ repoBase }

func (r *productRepo) Create(product *model.Product) error {
	defer r.enter()()
	st := r.store.st
	st.stamp(&product.BaseModel)
	st.products[product.ID] = *product
	return nil
}

func (r *productRepo) FindAll() ([]model.Product, error) {
	defer r.enter()()
	st := r.store.st
	products := make([]model.Product, 0, len(st.products))
	for _, p := range st.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return st.seq[products[i].ID] > st.seq[products[j].ID]
	})
	return products, nil
}

func (r *productRepo) FindByID(id uuid.UUID) (*model.Product, error) {
	defer r.enter()()
	p, ok := r.store.st.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *productRepo) FindBySKU(sku string) (*model.Product, error) {
	defer r.enter()()
	for _, p := range r.store.st.products {
		if p.SKU == sku {
			found := p
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *productRepo) Save(product *model.Product) error {
	defer r.enter()()
	st := r.store.st
	if _, ok := st.products[product.ID]; !ok {
		return repository.ErrNotFound
	}
	product.UpdatedAt = time.Now()
	st.products[product.ID] = *product
	return nil
}

func (r *productRepo) Delete(id uuid.UUID) error {
	defer r.enter()()
	st := r.store.st
	if _, ok := st.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(st.products, id)
	return nil
}

func (r *productRepo) UpdateQuantity(id uuid.UUID, expected, next int, updatedBy *string) (bool, error) {
	defer r.enter()()
	st := r.store.st
	p, ok := st.products[id]
	if !ok || p.Quantity != expected {
		return false, nil
	}
	p.Quantity = next
	p.UpdatedAt = time.Now()
	if updatedBy != nil {
		p.UpdatedByUserID = updatedBy
	}
	st.products[id] = p
	return true, nil
}

// ---------------------------------------------------------------------
// transactions

type transactionRepo struct{ repoBase }

func (r *transactionRepo) Create(tx *model.Transaction) error {
	defer r.enter()()
	st := r.store.st
	st.stamp(&tx.BaseModel)
	stored := *tx
	stored.Product = model.Product{} // association is resolved on read
	st.transactions = append(st.transactions, stored)
	return nil
}

func (r *transactionRepo) FindAll(filter repository.TransactionFilter) ([]model.Transaction, error) {
	defer r.enter()()
	st := r.store.st
	var out []model.Transaction
	for _, tx := range st.transactions {
		if filter.ProductID != nil && tx.ProductID != *filter.ProductID {
			continue
		}
		if filter.Type != nil && tx.Type != *filter.Type {
			continue
		}
		if p, ok := st.products[tx.ProductID]; ok {
			tx.Product = p
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		return st.seq[out[i].ID] > st.seq[out[j].ID]
	})
	return out, nil
}

func (r *transactionRepo) FindByID(id uuid.UUID) (*model.Transaction, error) {
	defer r.enter()()
	st := r.store.st
	for _, tx := range st.transactions {
		if tx.ID == id {
			if p, ok := st.products[tx.ProductID]; ok {
				tx.Product = p
			}
			return &tx, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ---------------------------------------------------------------------
// activity log

type activityRepo struct{ repoBase }

func (r *activityRepo) Append(entry *model.ActivityLogEntry) error {
	defer r.enter()()
	st := r.store.st
	st.stamp(&entry.BaseModel)
	st.activity = append(st.activity, *entry)
	return nil
}

func (r *activityRepo) FindRecent(limit int) ([]model.ActivityLogEntry, error) {
	defer r.enter()()
	st := r.store.st
	entries := append([]model.ActivityLogEntry(nil), st.activity...)
	sort.Slice(entries, func(i, j int) bool {
		return st.seq[entries[i].ID] > st.seq[entries[j].ID]
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// ---------------------------------------------------------------------
// users

type userRepo struct{ repoBase }

func (r *userRepo) Create(user *model.User) error {
	defer r.enter()()
	st := r.store.st
	st.stamp(&user.BaseModel)
	st.users[user.ID] = *user
	return nil
}

func (r *userRepo) FindByID(id uuid.UUID) (*model.User, error) {
	defer r.enter()()
	u, ok := r.store.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) FindByEmail(email string) (*model.User, error) {
	defer r.enter()()
	for _, u := range r.store.st.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) Update(user *model.User) error {
	defer r.enter()()
	st := r.store.st
	if _, ok := st.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	st.users[user.ID] = *user
	return nil
}

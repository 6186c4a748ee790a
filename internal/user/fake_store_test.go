package user

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/user/repo"
)

// memStore is an in-memory Store used by the tests in this package.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*entity.AdminUser
	deleted []int64
	// DeleteFunc overrides Delete when set.
	DeleteFunc func(ctx context.Context, id int64) (bool, error)
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]*entity.AdminUser{}}
}

func (m *memStore) Create(_ context.Context, u *entity.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(u)
}

func (m *memStore) insert(u *entity.AdminUser) error {
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return userrepo.ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().Add(time.Duration(m.nextID) * time.Millisecond)
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) CreateFirstAdmin(_ context.Context, u *entity.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Role == entity.RoleAdmin {
			return userrepo.ErrAdminExists
		}
	}
	return m.insert(u)
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*entity.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStore) GetByID(_ context.Context, id int64) (*entity.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) List(_ context.Context) ([]entity.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.AdminUser, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Update(_ context.Context, id int64, p entity.Patch) (*entity.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
		u.Salt = ""
		if p.Salt != nil {
			u.Salt = *p.Salt
		}
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) Delete(ctx context.Context, id int64) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return true, nil
}

func (m *memStore) TouchLastLogin(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		now := time.Now()
		u.LastLogin = &now
	}
	return nil
}

package auth

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
)

type fakeUsers struct {
	mu        sync.Mutex
	byEmail   map[string]*entity.AdminUser
	passwords map[string]string
	touched   []int64
	nextID    int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*entity.AdminUser{}, passwords: map[string]string{}}
}

func (f *fakeUsers) add(email, password, role string) *entity.AdminUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := &entity.AdminUser{ID: f.nextID, Email: email, Name: "Test", Role: role}
	f.byEmail[email] = u
	f.passwords[email] = password
	return u
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*entity.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = user.NormalizeEmail(email)
	u, ok := f.byEmail[email]
	if !ok || f.passwords[email] != password {
		return nil, user.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*entity.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeUsers) BootstrapAdmin(_ context.Context, email, name, password string) (*entity.Summary, error) {
	f.mu.Lock()
	for _, u := range f.byEmail {
		if u.Role == entity.RoleAdmin {
			f.mu.Unlock()
			return nil, user.ErrAdminExists
		}
	}
	f.mu.Unlock()
	if len(password) < user.MinPasswordLength {
		return nil, user.ErrPasswordTooShort
	}
	u := f.add(strings.ToLower(email), password, entity.RoleAdmin)
	u.Name = name
	sum := u.Summary()
	return &sum, nil
}

// fakeClock stands in for the database clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sessionRow struct {
	user      *entity.AdminUser
	expiresAt time.Time
}

type fakeSessions struct {
	mu    sync.Mutex
	clock *fakeClock
	users *fakeUsers
	rows  map[string]sessionRow
}

func (f *fakeSessions) Create(_ context.Context, userID int64, token string, ttl time.Duration) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owner *entity.AdminUser
	for _, u := range f.users.byEmail {
		if u.ID == userID {
			owner = u
		}
	}
	exp := f.clock.Now().Add(ttl)
	f.rows[token] = sessionRow{user: owner, expiresAt: exp}
	return exp, nil
}

func (f *fakeSessions) FindValid(_ context.Context, token string) (*entity.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[token]
	if !ok || row.user == nil || !row.expiresAt.After(f.clock.Now()) {
		return nil, sql.ErrNoRows
	}
	sum := row.user.Summary()
	return &sum, nil
}

func (f *fakeSessions) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, token)
	return nil
}

type otpRow struct {
	userID    int64
	code      string
	expiresAt time.Time
	used      bool
}

type fakeOtps struct {
	mu    sync.Mutex
	clock *fakeClock
	rows  []*otpRow
}

func (f *fakeOtps) Create(_ context.Context, userID int64, code, _ string, ttl time.Duration) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.userID == userID {
			r.used = true
		}
	}
	exp := f.clock.Now().Add(ttl)
	f.rows = append(f.rows, &otpRow{userID: userID, code: code, expiresAt: exp})
	return exp, nil
}

func (f *fakeOtps) Consume(_ context.Context, userID int64, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.userID != userID || r.used || !r.expiresAt.After(f.clock.Now()) {
			continue
		}
		if r.code != code {
			return false, nil
		}
		r.used = true
		return true, nil
	}
	return false, nil
}

type captureSender struct {
	mu   sync.Mutex
	sent []OtpIssued
}

func (c *captureSender) Send(_ context.Context, otp OtpIssued) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, otp)
	return nil
}

func (c *captureSender) last() OtpIssued {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}

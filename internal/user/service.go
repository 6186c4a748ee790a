package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/user/repo"
)

// MinPasswordLength applies at creation and at password change.
const MinPasswordLength = 8

// Store is the persistence the service needs; *repo.UserRepo implements it.
type Store interface {
	Create(ctx context.Context, u *entity.AdminUser) error
	CreateFirstAdmin(ctx context.Context, u *entity.AdminUser) error
	GetByEmail(ctx context.Context, email string) (*entity.AdminUser, error)
	GetByID(ctx context.Context, id int64) (*entity.AdminUser, error)
	List(ctx context.Context) ([]entity.AdminUser, error)
	Update(ctx context.Context, id int64, p entity.Patch) (*entity.AdminUser, error)
	Delete(ctx context.Context, id int64) (bool, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

var (
	ErrInvalidCredentials = apperr.New(apperr.KindAuthentication, "Credenziali non valide")
	ErrUserNotFound       = apperr.NotFound("Utente non trovato")
	ErrEmailTaken         = apperr.Conflict("Email già registrata")
	ErrAdminExists        = apperr.Conflict("Esiste già un admin")
	ErrMissingFields      = apperr.Validation("Email, nome e password sono richiesti")
	ErrPasswordTooShort   = apperr.Validation("La password deve essere di almeno 8 caratteri")
	ErrNothingToUpdate    = apperr.Validation("Nessun dato da aggiornare")
	ErrSelfDelete         = apperr.Validation("Non puoi eliminare il tuo account")
)

// UserService orchestrates the credential store: password checks and the
// collaborator lifecycle.
type UserService struct {
	store  Store
	hasher PasswordHasher
}

func NewUserService(store Store, hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = SaltedSHA256{}
	}
	return &UserService{store: store, hasher: hasher}
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate checks a password. Unknown email and wrong password return
// the same error so callers cannot enumerate accounts.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*entity.AdminUser, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if userrepo.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !VerifyPassword(u.PasswordHash, u.Salt, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// FindByEmail returns ErrUserNotFound when no account matches.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*entity.AdminUser, error) {
	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if userrepo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func (s *UserService) TouchLastLogin(ctx context.Context, id int64) error {
	return s.store.TouchLastLogin(ctx, id)
}

// List returns every account for the management screen.
func (s *UserService) List(ctx context.Context) ([]entity.Listing, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]entity.Listing, 0, len(users))
	for i := range users {
		out = append(out, users[i].Listing())
	}
	return out, nil
}

// CreateInput is the body of POST /admin/users.
type CreateInput struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create adds a collaborator (or admin, if requested).
func (s *UserService) Create(ctx context.Context, in CreateInput) (*entity.Listing, error) {
	u, err := s.newUser(in.Email, in.Name, in.Password, entity.NormalizeRole(in.Role))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	l := u.Listing()
	return &l, nil
}

// BootstrapAdmin creates the first admin account. It refuses once any admin
// exists.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, name, password string) (*entity.Summary, error) {
	u, err := s.newUser(email, name, password, entity.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateFirstAdmin(ctx, u); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrAdminExists):
			return nil, ErrAdminExists
		case errors.Is(err, userrepo.ErrEmailTaken):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	sum := u.Summary()
	return &sum, nil
}

func (s *UserService) newUser(email, name, password, role string) (*entity.AdminUser, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" || password == "" {
		return nil, ErrMissingFields
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &entity.AdminUser{Email: email, Name: name, PasswordHash: hash, Salt: salt, Role: role}, nil
}

// UpdateInput is the body of PUT /admin/users/{id}. Empty strings mean
// "leave unchanged".
type UpdateInput struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (s *UserService) Update(ctx context.Context, id int64, in UpdateInput) (*entity.Summary, error) {
	var p entity.Patch
	if name := strings.TrimSpace(in.Name); name != "" {
		p.Name = &name
	}
	if in.Role != "" {
		role := entity.NormalizeRole(in.Role)
		p.Role = &role
	}
	if in.Password != "" {
		if utf8.RuneCountInString(in.Password) < MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hash, salt, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		p.PasswordHash, p.Salt = &hash, &salt
	}
	if p.Empty() {
		return nil, ErrNothingToUpdate
	}
	u, err := s.store.Update(ctx, id, p)
	if err != nil {
		if userrepo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	sum := u.Summary()
	return &sum, nil
}

// Delete removes target on behalf of actorID. Admins cannot delete
// themselves.
func (s *UserService) Delete(ctx context.Context, actorID, target int64) error {
	if actorID == target {
		return ErrSelfDelete
	}
	ok, err := s.store.Delete(ctx, target)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

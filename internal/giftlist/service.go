package giftlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist/entity"
	listrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist/repo"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/httpx"
)

// MaxSlugAttempts bounds the retries after a public_url unique violation.
const MaxSlugAttempts = 20

// DefaultShopDomain is recorded when the caller does not name its shop.
const DefaultShopDomain = "unknown"

var (
	ErrListNotFound    = apperr.NotFound("Gift list not found")
	ErrItemNotFound    = apperr.NotFound("Item not found")
	ErrNothingToUpdate = apperr.Validation("Nessun dato da aggiornare")
	ErrSlugExhausted   = apperr.Conflict("Impossibile generare un indirizzo univoco per la lista")
)

// Store is the persistence the registry needs; *repo.GiftListRepo
// implements it.
type Store interface {
	SlugProber
	Create(ctx context.Context, l *entity.GiftList) error
	List(ctx context.Context) ([]entity.GiftList, error)
	GetByID(ctx context.Context, id int64) (*entity.GiftList, error)
	GetByPublicURL(ctx context.Context, slug string) (*entity.GiftList, error)
	Update(ctx context.Context, id int64, p entity.ListPatch) (*entity.GiftList, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Items(ctx context.Context, listID int64) ([]entity.Item, error)
	AddItem(ctx context.Context, listID int64, it entity.NewItem) (*entity.Item, error)
	RemoveItem(ctx context.Context, listID, itemID int64) (bool, error)
	ReplaceItems(ctx context.Context, listID int64, items []entity.NewItem) ([]entity.Item, error)
	PopularProducts(ctx context.Context) (map[string]int64, error)
}

// RegistryService owns gift lists and their items.
type RegistryService struct {
	store  Store
	slugs  *SlugGenerator
	logger *zap.SugaredLogger
}

func NewRegistryService(store Store, logger *zap.SugaredLogger) *RegistryService {
	return &RegistryService{store: store, slugs: NewSlugGenerator(store, logger), logger: logger}
}

// CreateInput is the body of POST /gift_lists.
type CreateInput struct {
	Title         string  `json:"title" validate:"required,min=3,max=200"`
	CustomerEmail string  `json:"customer_email" validate:"required,email"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Phone         *string `json:"phone"`
}

func (s *RegistryService) Create(ctx context.Context, in CreateInput, shopDomain string) (*entity.GiftList, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	if err := httpx.Validate(in); err != nil {
		return nil, err
	}
	if shopDomain == "" {
		shopDomain = DefaultShopDomain
	}
	l := &entity.GiftList{
		ShopDomain:    shopDomain,
		CustomerEmail: in.CustomerEmail,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
		Title:         in.Title,
	}
	for attempt := 1; attempt <= MaxSlugAttempts; attempt++ {
		l.PublicURL = s.slugs.Generate(ctx, l.Title, 0)
		err := s.store.Create(ctx, l)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, listrepo.ErrSlugTaken) {
			return nil, fmt.Errorf("create gift list: %w", err)
		}
		s.logger.Debugw("slug taken on insert, retrying", "slug", l.PublicURL, "attempt", attempt)
	}
	return nil, ErrSlugExhausted
}

func (s *RegistryService) ListAll(ctx context.Context) ([]entity.GiftList, error) {
	lists, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gift lists: %w", err)
	}
	return lists, nil
}

// Get returns a list by id with its items.
func (s *RegistryService) Get(ctx context.Context, id int64) (*entity.ListWithItems, error) {
	l, err := s.store.GetByID(ctx, id)
	return s.withItems(ctx, l, err)
}

// GetPublic returns a list by slug with its items.
func (s *RegistryService) GetPublic(ctx context.Context, slug string) (*entity.ListWithItems, error) {
	l, err := s.store.GetByPublicURL(ctx, slug)
	return s.withItems(ctx, l, err)
}

func (s *RegistryService) withItems(ctx context.Context, l *entity.GiftList, err error) (*entity.ListWithItems, error) {
	if err != nil {
		if errors.Is(err, listrepo.ErrNotFound) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("get gift list: %w", err)
	}
	items, err := s.store.Items(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if items == nil {
		items = []entity.Item{}
	}
	return &entity.ListWithItems{GiftList: *l, Items: items}, nil
}

// UpdateInput is the body of PUT /gift_lists/{id}. Absent fields are left
// unchanged.
type UpdateInput struct {
	Title         *string `json:"title" validate:"omitempty,min=3,max=200"`
	CustomerEmail *string `json:"customer_email" validate:"omitempty,email"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Phone         *string `json:"phone"`
}

// Update applies in. A new title re-derives the slug, ignoring the list's
// own current slug.
func (s *RegistryService) Update(ctx context.Context, id int64, in UpdateInput) (*entity.GiftList, error) {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if err := httpx.Validate(in); err != nil {
		return nil, err
	}
	p := entity.ListPatch{
		Title:         in.Title,
		CustomerEmail: in.CustomerEmail,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
	}
	if p.Empty() {
		return nil, ErrNothingToUpdate
	}
	for attempt := 1; attempt <= MaxSlugAttempts; attempt++ {
		if p.Title != nil {
			slug := s.slugs.Generate(ctx, *p.Title, id)
			p.PublicURL = &slug
		}
		l, err := s.store.Update(ctx, id, p)
		switch {
		case err == nil:
			return l, nil
		case errors.Is(err, listrepo.ErrNotFound):
			return nil, ErrListNotFound
		case errors.Is(err, listrepo.ErrSlugTaken):
			s.logger.Debugw("slug taken on rename, retrying", "id", id, "attempt", attempt)
			continue
		default:
			return nil, fmt.Errorf("update gift list: %w", err)
		}
	}
	return nil, ErrSlugExhausted
}

func (s *RegistryService) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete gift list: %w", err)
	}
	if !ok {
		return ErrListNotFound
	}
	return nil
}

// ItemInput is one item in POST /items and PUT /items bodies.
type ItemInput struct {
	ProductID     string  `json:"product_id" validate:"required"`
	VariantID     string  `json:"variant_id" validate:"required"`
	Quantity      *int    `json:"quantity" validate:"omitempty,min=1"`
	ProductTitle  *string `json:"product_title"`
	ProductImage  *string `json:"product_image"`
	ProductPrice  *string `json:"product_price"`
	ProductHandle *string `json:"product_handle"`
}

func (in *ItemInput) normalize() {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.VariantID = strings.TrimSpace(in.VariantID)
}

func (in ItemInput) toNew() entity.NewItem {
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	return entity.NewItem{
		ProductID:     in.ProductID,
		VariantID:     in.VariantID,
		Quantity:      qty,
		ProductTitle:  in.ProductTitle,
		ProductImage:  in.ProductImage,
		ProductPrice:  in.ProductPrice,
		ProductHandle: in.ProductHandle,
	}
}

func (s *RegistryService) AddItem(ctx context.Context, listID int64, in ItemInput) (*entity.Item, error) {
	in.normalize()
	if err := httpx.Validate(in); err != nil {
		return nil, err
	}
	it, err := s.store.AddItem(ctx, listID, in.toNew())
	if err != nil {
		if errors.Is(err, listrepo.ErrNotFound) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("add item: %w", err)
	}
	return it, nil
}

func (s *RegistryService) RemoveItem(ctx context.Context, listID, itemID int64) error {
	ok, err := s.store.RemoveItem(ctx, listID, itemID)
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	if !ok {
		return ErrItemNotFound
	}
	return nil
}

// ReplaceInput is the body of PUT /gift_lists/{id}/items.
type ReplaceInput struct {
	Items []ItemInput `json:"items" validate:"dive"`
}

// ReplaceItems swaps the full item set, keeping the purchased flag of items
// that survive the edit.
func (s *RegistryService) ReplaceItems(ctx context.Context, listID int64, in ReplaceInput) ([]entity.Item, error) {
	for i := range in.Items {
		in.Items[i].normalize()
	}
	if err := httpx.Validate(in); err != nil {
		return nil, err
	}
	next := make([]entity.NewItem, 0, len(in.Items))
	for _, it := range in.Items {
		next = append(next, it.toNew())
	}
	items, err := s.store.ReplaceItems(ctx, listID, next)
	if err != nil {
		if errors.Is(err, listrepo.ErrNotFound) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("replace items: %w", err)
	}
	if items == nil {
		items = []entity.Item{}
	}
	return items, nil
}

// PopularProducts maps product_id to the number of items referencing it.
func (s *RegistryService) PopularProducts(ctx context.Context) (map[string]int64, error) {
	counts, err := s.store.PopularProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("popular products: %w", err)
	}
	return counts, nil
}

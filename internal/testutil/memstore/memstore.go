// Package memstore is test support: an in-memory registry backend shared by
// the giftlist, webhook and router tests. Production code never imports it.
// It follows the semantics of the Postgres repositories: unique public_url,
// cascade deletes, list-scoped item removal, natural-key item merge and the
// webhook purchase ledger.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist/entity"
	listrepo "github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist/repo"
	whentity "github.com/ovaphlow/pitchfork/service-giftlist/internal/webhook/entity"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	clock  time.Time
	lists  map[int64]*entity.GiftList
	items  map[int64]*entity.Item
	orders map[string]bool

	// ProbeErr, when set, is returned by PublicURLExists.
	ProbeErr error
	// RaceSlug simulates a concurrent writer: the next Create using this
	// slug finds it taken by a list inserted after the probe.
	RaceSlug string
}

func New() *Store {
	return &Store{
		clock:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		lists:  map[int64]*entity.GiftList{},
		items:  map[int64]*entity.Item{},
		orders: map[string]bool{},
	}
}

// tick returns a strictly increasing timestamp.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Store) slugTaken(slug string, excludeID int64) bool {
	for _, l := range s.lists {
		if l.PublicURL == slug && l.ID != excludeID {
			return true
		}
	}
	return false
}

func (s *Store) Create(_ context.Context, l *entity.GiftList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RaceSlug != "" && l.PublicURL == s.RaceSlug {
		s.RaceSlug = ""
		s.nextID++
		s.lists[s.nextID] = &entity.GiftList{ID: s.nextID, Title: l.Title, PublicURL: l.PublicURL, CreatedAt: s.tick()}
	}
	if s.slugTaken(l.PublicURL, 0) {
		return listrepo.ErrSlugTaken
	}
	s.nextID++
	l.ID = s.nextID
	l.CreatedAt = s.tick()
	cp := *l
	s.lists[l.ID] = &cp
	return nil
}

// Seed inserts a list with a fixed slug, bypassing slug generation.
func (s *Store) Seed(title, slug string) *entity.GiftList {
	l := &entity.GiftList{Title: title, PublicURL: slug, CustomerEmail: "seed@example.com", ShopDomain: "unknown"}
	if err := s.Create(context.Background(), l); err != nil {
		panic(err)
	}
	return l
}

func (s *Store) List(_ context.Context) ([]entity.GiftList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.GiftList, 0, len(s.lists))
	for _, l := range s.lists {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*entity.GiftList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		return nil, listrepo.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) GetByPublicURL(_ context.Context, slug string) (*entity.GiftList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lists {
		if l.PublicURL == slug {
			cp := *l
			return &cp, nil
		}
	}
	return nil, listrepo.ErrNotFound
}

func (s *Store) Update(_ context.Context, id int64, p entity.ListPatch) (*entity.GiftList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		return nil, listrepo.ErrNotFound
	}
	if p.PublicURL != nil && s.slugTaken(*p.PublicURL, id) {
		return nil, listrepo.ErrSlugTaken
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&l.Title, p.Title)
	set(&l.PublicURL, p.PublicURL)
	set(&l.CustomerEmail, p.CustomerEmail)
	if p.FirstName != nil {
		l.FirstName = p.FirstName
	}
	if p.LastName != nil {
		l.LastName = p.LastName
	}
	if p.Phone != nil {
		l.Phone = p.Phone
	}
	cp := *l
	return &cp, nil
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for itemID, it := range s.items {
		if it.GiftListID == id {
			delete(s.items, itemID)
		}
	}
	_, ok := s.lists[id]
	delete(s.lists, id)
	return ok, nil
}

func (s *Store) PublicURLExists(_ context.Context, slug string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ProbeErr != nil {
		return false, s.ProbeErr
	}
	return s.slugTaken(slug, excludeID), nil
}

func (s *Store) itemsOf(listID int64) []entity.Item {
	out := []entity.Item{}
	for _, it := range s.items {
		if it.GiftListID == listID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Items(_ context.Context, listID int64) ([]entity.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsOf(listID), nil
}

func (s *Store) insertItem(listID int64, n entity.NewItem) *entity.Item {
	s.nextID++
	it := &entity.Item{
		ID:            s.nextID,
		GiftListID:    listID,
		ProductID:     n.ProductID,
		VariantID:     n.VariantID,
		Quantity:      n.Quantity,
		ProductTitle:  n.ProductTitle,
		ProductImage:  n.ProductImage,
		ProductPrice:  n.ProductPrice,
		ProductHandle: n.ProductHandle,
		CreatedAt:     s.tick(),
	}
	s.items[it.ID] = it
	return it
}

func (s *Store) AddItem(_ context.Context, listID int64, n entity.NewItem) (*entity.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[listID]; !ok {
		return nil, listrepo.ErrNotFound
	}
	cp := *s.insertItem(listID, n)
	return &cp, nil
}

func (s *Store) RemoveItem(_ context.Context, listID, itemID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok || it.GiftListID != listID {
		return false, nil
	}
	delete(s.items, itemID)
	return true, nil
}

func (s *Store) ReplaceItems(_ context.Context, listID int64, next []entity.NewItem) ([]entity.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[listID]; !ok {
		return nil, listrepo.ErrNotFound
	}
	plan := listrepo.MergeItems(s.itemsOf(listID), next)
	for _, u := range plan.Update {
		it := s.items[u.ID]
		it.Quantity = u.Item.Quantity
		it.ProductTitle = u.Item.ProductTitle
		it.ProductImage = u.Item.ProductImage
		it.ProductPrice = u.Item.ProductPrice
		it.ProductHandle = u.Item.ProductHandle
	}
	for _, n := range plan.Insert {
		s.insertItem(listID, n)
	}
	for _, id := range plan.Delete {
		delete(s.items, id)
	}
	return s.itemsOf(listID), nil
}

func (s *Store) PopularProducts(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int64{}
	for _, it := range s.items {
		out[it.ProductID]++
	}
	return out, nil
}

// Apply implements the webhook purchase store.
func (s *Store) Apply(_ context.Context, orderID string, claims []whentity.Claim) (whentity.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res whentity.ApplyResult
	if orderID != "" {
		res.Duplicate = s.orders[orderID]
		s.orders[orderID] = true
	}
	for i, c := range claims {
		var hit *entity.Item
		switch {
		case c.Explicit():
			hit = s.items[c.ItemID]
		case res.Duplicate || c.VariantID == "":
			continue
		default:
			for _, it := range s.items {
				if it.VariantID != c.VariantID || it.Purchased || (c.ListID != 0 && it.GiftListID != c.ListID) {
					continue
				}
				if hit == nil || it.CreatedAt.Before(hit.CreatedAt) {
					hit = it
				}
			}
		}
		if hit == nil {
			continue
		}
		hit.Purchased = true
		res.Matches = append(res.Matches, whentity.Match{
			Claim:      i,
			LineItemID: c.LineItemID,
			ItemID:     hit.ID,
			ListID:     hit.GiftListID,
			ListTitle:  s.lists[hit.GiftListID].Title,
			Fallback:   !c.Explicit(),
		})
	}
	return res, nil
}

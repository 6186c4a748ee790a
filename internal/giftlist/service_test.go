package giftlist_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist/entity"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/testutil/memstore"
	whentity "github.com/ovaphlow/pitchfork/service-giftlist/internal/webhook/entity"
)

func newService(t *testing.T) (*giftlist.RegistryService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return giftlist.NewRegistryService(store, zap.NewNop().Sugar()), store
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndGetRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	l, err := svc.Create(ctx, giftlist.CreateInput{Title: "Baby Shower", CustomerEmail: "mario@example.com"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.PublicURL != "baby-shower" || l.ShopDomain != giftlist.DefaultShopDomain {
		t.Fatalf("created = %+v", l)
	}
	got, err := svc.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Baby Shower" || got.CustomerEmail != "mario@example.com" {
		t.Fatalf("got = %+v", got)
	}
	if got.Items == nil || len(got.Items) != 0 {
		t.Fatalf("items = %#v, want empty non-nil", got.Items)
	}
	pub, err := svc.GetPublic(ctx, "baby-shower")
	if err != nil || pub.ID != l.ID {
		t.Fatalf("GetPublic = %+v, %v", pub, err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	cases := []giftlist.CreateInput{
		{Title: "ab", CustomerEmail: "a@b.it"},
		{Title: strings.Repeat("a", 201), CustomerEmail: "a@b.it"},
		{Title: "Valid title", CustomerEmail: "not-an-email"},
		{Title: "Valid title"},
	}
	for i, in := range cases {
		if _, err := svc.Create(ctx, in, ""); apperrKind(err) != apperr.KindValidation {
			t.Errorf("case %d: err = %v", i, err)
		}
	}
}

func apperrKind(err error) apperr.Kind {
	if e, ok := apperr.As(err); ok {
		return e.Kind
	}
	return -1
}

func TestCreateRetriesOnUniqueViolation(t *testing.T) {
	svc, store := newService(t)
	store.RaceSlug = "festa"

	l, err := svc.Create(context.Background(), giftlist.CreateInput{Title: "Festa", CustomerEmail: "a@b.it"}, "shop.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if l.PublicURL != "festa-2" || l.ShopDomain != "shop.example.com" {
		t.Fatalf("list = %+v", l)
	}
}

func TestCreateGivesUpAfterMaxAttempts(t *testing.T) {
	svc, store := newService(t)
	store.ProbeErr = errors.New("probe down")
	store.Seed("Festa", "festa")

	_, err := svc.Create(context.Background(), giftlist.CreateInput{Title: "Festa", CustomerEmail: "a@b.it"}, "")
	if !errors.Is(err, giftlist.ErrSlugExhausted) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, giftlist.CreateInput{Title: "Baby Shower", CustomerEmail: "a@b.it"}, "")
	b, _ := svc.Create(ctx, giftlist.CreateInput{Title: "Matrimonio", CustomerEmail: "a@b.it"}, "")

	if _, err := svc.Update(ctx, a.ID, giftlist.UpdateInput{}); !errors.Is(err, giftlist.ErrNothingToUpdate) {
		t.Fatalf("empty update: %v", err)
	}
	same, err := svc.Update(ctx, a.ID, giftlist.UpdateInput{Title: ptr("Baby Shower")})
	if err != nil || same.PublicURL != "baby-shower" {
		t.Fatalf("same title: %+v %v", same, err)
	}
	renamed, err := svc.Update(ctx, b.ID, giftlist.UpdateInput{Title: ptr("Baby Shower"), Phone: ptr("+39 333")})
	if err != nil {
		t.Fatal(err)
	}
	if renamed.PublicURL != "baby-shower-2" || renamed.Phone == nil || *renamed.Phone != "+39 333" {
		t.Fatalf("renamed = %+v", renamed)
	}
	emailOnly, err := svc.Update(ctx, b.ID, giftlist.UpdateInput{CustomerEmail: ptr("new@b.it")})
	if err != nil || emailOnly.PublicURL != "baby-shower-2" {
		t.Fatalf("email update changed slug: %+v %v", emailOnly, err)
	}
	if _, err := svc.Update(ctx, 999, giftlist.UpdateInput{Title: ptr("Nope nope")}); !errors.Is(err, giftlist.ErrListNotFound) {
		t.Fatalf("missing list: %v", err)
	}
}

func TestItemsAddRemove(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	l, _ := svc.Create(ctx, giftlist.CreateInput{Title: "Baby Shower", CustomerEmail: "a@b.it"}, "")
	other, _ := svc.Create(ctx, giftlist.CreateInput{Title: "Altro", CustomerEmail: "a@b.it"}, "")

	it, err := svc.AddItem(ctx, l.ID, giftlist.ItemInput{ProductID: "1", VariantID: "9"})
	if err != nil {
		t.Fatal(err)
	}
	if it.Quantity != 1 || it.Purchased {
		t.Fatalf("item = %+v", it)
	}
	if _, err := svc.AddItem(ctx, l.ID, giftlist.ItemInput{ProductID: "1", VariantID: "9", Quantity: ptr(0)}); apperrKind(err) != apperr.KindValidation {
		t.Fatalf("zero quantity: %v", err)
	}
	if _, err := svc.AddItem(ctx, l.ID, giftlist.ItemInput{ProductID: " ", VariantID: "9"}); apperrKind(err) != apperr.KindValidation {
		t.Fatalf("blank product: %v", err)
	}
	if _, err := svc.AddItem(ctx, 999, giftlist.ItemInput{ProductID: "1", VariantID: "9"}); !errors.Is(err, giftlist.ErrListNotFound) {
		t.Fatalf("missing list: %v", err)
	}

	if err := svc.RemoveItem(ctx, other.ID, it.ID); !errors.Is(err, giftlist.ErrItemNotFound) {
		t.Fatalf("cross-list remove: %v", err)
	}
	if err := svc.RemoveItem(ctx, l.ID, it.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Get(ctx, l.ID)
	if len(got.Items) != 0 {
		t.Fatalf("items after remove = %d", len(got.Items))
	}
}

func TestDeleteCascades(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	l, _ := svc.Create(ctx, giftlist.CreateInput{Title: "Baby Shower", CustomerEmail: "a@b.it"}, "")
	_, _ = svc.AddItem(ctx, l.ID, giftlist.ItemInput{ProductID: "1", VariantID: "9"})

	if err := svc.Delete(ctx, l.ID); err != nil {
		t.Fatal(err)
	}
	if items, _ := store.Items(ctx, l.ID); len(items) != 0 {
		t.Fatalf("orphan items: %+v", items)
	}
	if err := svc.Delete(ctx, l.ID); !errors.Is(err, giftlist.ErrListNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestReplaceItemsKeepsPurchased(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	l, _ := svc.Create(ctx, giftlist.CreateInput{Title: "Baby Shower", CustomerEmail: "a@b.it"}, "")
	kept, _ := svc.AddItem(ctx, l.ID, giftlist.ItemInput{ProductID: "1", VariantID: "9"})
	_, _ = svc.AddItem(ctx, l.ID, giftlist.ItemInput{ProductID: "2", VariantID: "20"})

	if _, err := store.Apply(ctx, "", claimsFor(kept.ID)); err != nil {
		t.Fatal(err)
	}

	items, err := svc.ReplaceItems(ctx, l.ID, giftlist.ReplaceInput{Items: []giftlist.ItemInput{
		{ProductID: "1", VariantID: "9", Quantity: ptr(3)},
		{ProductID: "3", VariantID: "30"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	byVariant := map[string]entity.Item{}
	for _, it := range items {
		byVariant[it.VariantID] = it
	}
	if k := byVariant["9"]; k.ID != kept.ID || !k.Purchased || k.Quantity != 3 {
		t.Fatalf("kept item = %+v", k)
	}
	if n := byVariant["30"]; n.Purchased || n.Quantity != 1 {
		t.Fatalf("new item = %+v", n)
	}
	if _, ok := byVariant["20"]; ok {
		t.Fatal("dropped item still present")
	}
}

func TestPopularProducts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		l, _ := svc.Create(ctx, giftlist.CreateInput{Title: fmt.Sprintf("Lista %d", i), CustomerEmail: "a@b.it"}, "")
		_, _ = svc.AddItem(ctx, l.ID, giftlist.ItemInput{ProductID: "100", VariantID: "1"})
		if i == 0 {
			_, _ = svc.AddItem(ctx, l.ID, giftlist.ItemInput{ProductID: "200", VariantID: "2"})
		}
	}
	counts, err := svc.PopularProducts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["100"] != 3 || counts["200"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func claimsFor(itemID int64) []whentity.Claim {
	return []whentity.Claim{{LineItemID: "li-1", ItemID: itemID}}
}

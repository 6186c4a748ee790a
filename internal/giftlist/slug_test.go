package giftlist_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/testutil/memstore"
)

var slugShape = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestSlugify(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Baby Shower", "baby-shower"},
		{"  Matrimonio di Anna & Luca!! ", "matrimonio-di-anna-luca"},
		{"Perché sì", "perche-si"},
		{"Crème brûlée -- 2025", "creme-brulee-2025"},
		{"ÀÉÎÕÜ", "aeiou"},
		{"---", giftlist.DefaultSlugBase},
		{"🎁🎉", giftlist.DefaultSlugBase},
		{"", giftlist.DefaultSlugBase},
		{"!!!a", "a"},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			got := giftlist.Slugify(tc.title)
			if got != tc.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tc.title, got, tc.want)
			}
		})
	}
}

func TestSlugifyShapeAndIdempotence(t *testing.T) {
	titles := []string{
		"Baby Shower", "Lista di nozze — Giulia", "  spaces  ", "Ünïcödé Tïtlé",
		"a--b__c", "123 Via Roma", "日本語のリスト", "x", "Über-Geschenk #1",
	}
	for _, title := range titles {
		s := giftlist.Slugify(title)
		if !slugShape.MatchString(s) {
			t.Errorf("Slugify(%q) = %q has invalid shape", title, s)
		}
		if again := giftlist.Slugify(s); again != s {
			t.Errorf("Slugify not idempotent for %q: %q -> %q", title, s, again)
		}
	}
}

func TestGenerateIncrementsSuffix(t *testing.T) {
	store := memstore.New()
	store.Seed("Baby Shower", "baby-shower")
	store.Seed("Baby Shower", "baby-shower-2")
	store.Seed("Baby Shower", "baby-shower-3")

	g := giftlist.NewSlugGenerator(store, zap.NewNop().Sugar())
	if got := g.Generate(context.Background(), "Baby Shower", 0); got != "baby-shower-4" {
		t.Fatalf("got %q, want baby-shower-4", got)
	}
}

func TestGenerateExcludesOwnRow(t *testing.T) {
	store := memstore.New()
	own := store.Seed("Baby Shower", "baby-shower")

	g := giftlist.NewSlugGenerator(store, zap.NewNop().Sugar())
	if got := g.Generate(context.Background(), "Baby Shower", own.ID); got != "baby-shower" {
		t.Fatalf("rename to same title gave %q", got)
	}
}

func TestGenerateReturnsCandidateOnStoreError(t *testing.T) {
	store := memstore.New()
	store.ProbeErr = errors.New("connection refused")

	g := giftlist.NewSlugGenerator(store, zap.NewNop().Sugar())
	if got := g.Generate(context.Background(), "Festa", 0); got != "festa" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	store := memstore.New()
	store.Seed("Festa", "festa")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := giftlist.NewSlugGenerator(store, zap.NewNop().Sugar())
	if got := g.Generate(ctx, "Festa", 0); got != "festa" {
		t.Fatalf("got %q", got)
	}
}

package giftlist

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSlugBase is used when a title has no usable ASCII letters or digits.
const DefaultSlugBase = "lista-regalo"

// Slugify lower-cases title, strips diacritics and collapses every run of
// characters outside [a-z0-9] into a single hyphen.
func Slugify(title string) string {
	// transformers carry state, so build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, title)
	if err != nil {
		s = title
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return DefaultSlugBase
	}
	return b.String()
}

// SlugProber answers whether a slug is already used by another list.
type SlugProber interface {
	PublicURLExists(ctx context.Context, slug string, excludeID int64) (bool, error)
}

// SlugGenerator derives unique public URLs from titles.
type SlugGenerator struct {
	store  SlugProber
	logger *zap.SugaredLogger
}

func NewSlugGenerator(store SlugProber, logger *zap.SugaredLogger) *SlugGenerator {
	return &SlugGenerator{store: store, logger: logger}
}

// Generate returns the first free slug among base, base-2, base-3, ...
// ignoring the list excludeID. A probe failure returns the current
// candidate; the unique constraint on public_url still guards the insert.
func (g *SlugGenerator) Generate(ctx context.Context, title string, excludeID int64) string {
	base := Slugify(title)
	candidate := base
	for n := 2; ; n++ {
		if err := ctx.Err(); err != nil {
			return candidate
		}
		taken, err := g.store.PublicURLExists(ctx, candidate, excludeID)
		if err != nil {
			g.logger.Warnw("slug probe failed, using candidate", "slug", candidate, "err", err)
			return candidate
		}
		if !taken {
			return candidate
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

package webhook

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/webhook/entity"
)

// TagPrefix precedes the list title in order tags.
const TagPrefix = "Lista regalo: "

const tagTimeout = 15 * time.Second

type Store interface {
	Apply(ctx context.Context, orderID string, claims []entity.Claim) (entity.ApplyResult, error)
}

// Tagger writes tags back onto the external order.
type Tagger interface {
	TagOrder(ctx context.Context, orderID string, tags []string) error
}

// Stats counts reconciliation outcomes since process start.
type Stats struct {
	Explicit  atomic.Int64
	Fallback  atomic.Int64
	Unmatched atomic.Int64
}

// StatsSnapshot is the JSON form of Stats.
type StatsSnapshot struct {
	ExplicitMatches int64 `json:"explicit_matches"`
	FallbackMatches int64 `json:"fallback_matches"`
	Unmatched       int64 `json:"unmatched"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ExplicitMatches: s.Explicit.Load(),
		FallbackMatches: s.Fallback.Load(),
		Unmatched:       s.Unmatched.Load(),
	}
}

// Reconciler marks registry items purchased from verified order payloads.
type Reconciler struct {
	store    Store
	tagger   Tagger
	logger   *zap.SugaredLogger
	stats    *Stats
	dispatch func(func())
}

// NewReconciler builds a reconciler. tagger may be nil to disable order
// tagging.
func NewReconciler(store Store, tagger Tagger, logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{
		store:    store,
		tagger:   tagger,
		logger:   logger,
		stats:    &Stats{},
		dispatch: func(f func()) { go f() },
	}
}

// Stats exposes the outcome counters.
func (r *Reconciler) Stats() *Stats { return r.stats }

// Claims turns the order's line items into purchase claims.
func Claims(o Order) []entity.Claim {
	claims := make([]entity.Claim, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		claims = append(claims, entity.Claim{
			LineItemID: li.ID.String(),
			ItemID:     li.Properties.id(PropItemID),
			ListID:     li.Properties.id(PropListID),
			VariantID:  li.VariantID.String(),
		})
	}
	return claims
}

// Reconcile applies the order and, once committed, schedules order
// tagging. Store failures are returned; tagging failures are only logged.
func (r *Reconciler) Reconcile(ctx context.Context, o Order) (entity.ApplyResult, error) {
	claims := Claims(o)
	if len(claims) == 0 {
		return entity.ApplyResult{}, nil
	}
	res, err := r.store.Apply(ctx, o.ID.String(), claims)
	if err != nil {
		return res, fmt.Errorf("apply order %s: %w", o.ID, err)
	}

	// keyed by claim index: line item ids may be missing or repeated
	matched := make([]bool, len(claims))
	for _, m := range res.Matches {
		if m.Claim >= 0 && m.Claim < len(matched) {
			matched[m.Claim] = true
		}
		if m.Fallback {
			r.stats.Fallback.Add(1)
			r.logger.Warnw("line item matched by variant", "match", "variant_fallback",
				"order_id", o.ID, "line_item_id", m.LineItemID, "item_id", m.ItemID, "list_id", m.ListID)
			continue
		}
		r.stats.Explicit.Add(1)
	}
	for _, ok := range matched {
		if !ok {
			r.stats.Unmatched.Add(1)
		}
	}
	r.logger.Infow("order reconciled", "order_id", o.ID, "line_items", len(claims),
		"matched", len(res.Matches), "duplicate", res.Duplicate)

	if tags := tagsFor(res.Matches); len(tags) > 0 && r.tagger != nil && o.ID != "" && !res.Duplicate {
		orderID := o.ID.String()
		r.dispatch(func() { r.tag(orderID, tags) })
	}
	return res, nil
}

func (r *Reconciler) tag(orderID string, tags []string) {
	ctx, cancel := context.WithTimeout(context.Background(), tagTimeout)
	defer cancel()
	if err := r.tagger.TagOrder(ctx, orderID, tags); err != nil {
		r.logger.Errorw("order tagging failed", "order_id", orderID, "err", err)
		return
	}
	r.logger.Debugw("order tagged", "order_id", orderID, "tags", tags)
}

func tagsFor(matches []entity.Match) []string {
	seen := map[string]bool{}
	var tags []string
	for _, m := range matches {
		title := strings.TrimSpace(m.ListTitle)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		tags = append(tags, TagPrefix+title)
	}
	sort.Strings(tags)
	return tags
}

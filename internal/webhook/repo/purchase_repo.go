package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/webhook/entity"
	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/database"
)

// PurchaseRepo flips gift_list_items.purchased for reconciled orders and
// remembers which orders have been seen.
type PurchaseRepo struct {
	db *sqlx.DB
}

func NewPurchaseRepo(db *sqlx.DB) *PurchaseRepo {
	return &PurchaseRepo{db: db}
}

// EnsureTable creates webhook_orders. Requires gift_list_items.
func (r *PurchaseRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS webhook_orders (
  order_id TEXT PRIMARY KEY,
  received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type matchRow struct {
	ItemID    int64  `db:"item_id"`
	ListID    int64  `db:"list_id"`
	ListTitle string `db:"list_title"`
}

const markExplicit = `
UPDATE gift_list_items i SET purchased = TRUE
FROM gift_lists l
WHERE i.id = $1 AND l.id = i.gift_list_id
RETURNING i.id AS item_id, l.id AS list_id, l.title AS list_title`

// markFallback marks the oldest unpurchased item with the variant. Rows
// locked by a concurrent delivery are skipped rather than waited on.
const markFallback = `
UPDATE gift_list_items i SET purchased = TRUE
FROM gift_lists l
WHERE i.id = (
  SELECT id FROM gift_list_items
  WHERE variant_id = $1 AND purchased = FALSE AND ($2::bigint = 0 OR gift_list_id = $2::bigint)
  ORDER BY created_at, id
  LIMIT 1
  FOR UPDATE SKIP LOCKED
) AND l.id = i.gift_list_id
RETURNING i.id AS item_id, l.id AS list_id, l.title AS list_title`

// Apply marks the claimed items purchased in a single transaction.
func (r *PurchaseRepo) Apply(ctx context.Context, orderID string, claims []entity.Claim) (entity.ApplyResult, error) {
	var res entity.ApplyResult
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res = entity.ApplyResult{}
		if orderID != "" {
			ins, err := tx.ExecContext(ctx, `INSERT INTO webhook_orders (order_id) VALUES ($1) ON CONFLICT DO NOTHING`, orderID)
			if err != nil {
				return fmt.Errorf("record order: %w", err)
			}
			n, err := ins.RowsAffected()
			if err != nil {
				return err
			}
			res.Duplicate = n == 0
		}
		for i, c := range claims {
			var (
				row matchRow
				err error
			)
			switch {
			case c.Explicit():
				err = tx.GetContext(ctx, &row, markExplicit, c.ItemID)
			case res.Duplicate || c.VariantID == "":
				continue
			default:
				err = tx.GetContext(ctx, &row, markFallback, c.VariantID, c.ListID)
			}
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("mark line item %s: %w", c.LineItemID, err)
			}
			res.Matches = append(res.Matches, entity.Match{
				Claim:      i,
				LineItemID: c.LineItemID,
				ItemID:     row.ItemID,
				ListID:     row.ListID,
				ListTitle:  row.ListTitle,
				Fallback:   !c.Explicit(),
			})
		}
		return nil
	})
	return res, err
}

// PurgeOrders forgets orders received more than days ago.
func (r *PurchaseRepo) PurgeOrders(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhook_orders WHERE received_at < NOW() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

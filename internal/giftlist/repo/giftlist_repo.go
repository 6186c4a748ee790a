package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist/entity"
	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/database"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrSlugTaken = errors.New("public_url already in use")
)

// publicURLConstraints names the unique index on public_url: ours, and the
// one created by the knex migration of earlier deployments.
var publicURLConstraints = []string{"gift_lists_public_url_key", "gift_lists_public_url_unique"}

// GiftListRepo provides data access for gift_lists and gift_list_items.
type GiftListRepo struct {
	db *sqlx.DB
}

func NewGiftListRepo(db *sqlx.DB) *GiftListRepo { return &GiftListRepo{db: db} }

// EnsureTable creates both tables if not exists (idempotent). Some
// deployments created them without the optional columns, which are added
// afterwards.
func (r *GiftListRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS gift_lists (
  id BIGSERIAL PRIMARY KEY,
  shop_domain TEXT NOT NULL DEFAULT 'unknown',
  customer_email TEXT NOT NULL,
  title TEXT NOT NULL,
  public_url TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT gift_lists_public_url_key UNIQUE (public_url)
);
ALTER TABLE gift_lists ADD COLUMN IF NOT EXISTS first_name TEXT;
ALTER TABLE gift_lists ADD COLUMN IF NOT EXISTS last_name TEXT;
ALTER TABLE gift_lists ADD COLUMN IF NOT EXISTS phone TEXT;
CREATE INDEX IF NOT EXISTS idx_gift_lists_created ON gift_lists (created_at DESC);

CREATE TABLE IF NOT EXISTS gift_list_items (
  id BIGSERIAL PRIMARY KEY,
  gift_list_id BIGINT NOT NULL REFERENCES gift_lists(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 1),
  purchased BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE gift_list_items ADD COLUMN IF NOT EXISTS product_title TEXT;
ALTER TABLE gift_list_items ADD COLUMN IF NOT EXISTS product_image TEXT;
ALTER TABLE gift_list_items ADD COLUMN IF NOT EXISTS product_price TEXT;
ALTER TABLE gift_list_items ADD COLUMN IF NOT EXISTS product_handle TEXT;
CREATE INDEX IF NOT EXISTS idx_gift_list_items_list ON gift_list_items (gift_list_id);
CREATE INDEX IF NOT EXISTS idx_gift_list_items_variant ON gift_list_items (variant_id) WHERE purchased = FALSE;
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const (
	listColumns = `id, shop_domain, customer_email, first_name, last_name, phone, title, public_url, created_at`
	itemColumns = `id, gift_list_id, product_id, variant_id, quantity, purchased,
		product_title, product_image, product_price, product_handle, created_at`
)

// Create inserts l and fills ID and CreatedAt. A taken public_url yields
// ErrSlugTaken.
func (r *GiftListRepo) Create(ctx context.Context, l *entity.GiftList) error {
	query := `INSERT INTO gift_lists (shop_domain, customer_email, first_name, last_name, phone, title, public_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, l.ShopDomain, l.CustomerEmail, l.FirstName, l.LastName, l.Phone, l.Title, l.PublicURL)
	if err := row.Scan(&l.ID, &l.CreatedAt); err != nil {
		if database.IsUniqueViolation(err, publicURLConstraints...) {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

// List returns every list, most recent first.
func (r *GiftListRepo) List(ctx context.Context) ([]entity.GiftList, error) {
	lists := []entity.GiftList{}
	err := r.db.SelectContext(ctx, &lists, `SELECT `+listColumns+` FROM gift_lists ORDER BY created_at DESC, id DESC`)
	return lists, err
}

func (r *GiftListRepo) GetByID(ctx context.Context, id int64) (*entity.GiftList, error) {
	return r.getOne(ctx, `SELECT `+listColumns+` FROM gift_lists WHERE id = $1`, id)
}

func (r *GiftListRepo) GetByPublicURL(ctx context.Context, slug string) (*entity.GiftList, error) {
	return r.getOne(ctx, `SELECT `+listColumns+` FROM gift_lists WHERE public_url = $1`, slug)
}

func (r *GiftListRepo) getOne(ctx context.Context, query string, arg any) (*entity.GiftList, error) {
	var l entity.GiftList
	if err := r.db.GetContext(ctx, &l, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Update applies the non-nil fields of p and returns the updated row.
func (r *GiftListRepo) Update(ctx context.Context, id int64, p entity.ListPatch) (*entity.GiftList, error) {
	var sets []string
	var args []any
	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("title", p.Title)
	add("public_url", p.PublicURL)
	add("customer_email", p.CustomerEmail)
	add("first_name", p.FirstName)
	add("last_name", p.LastName)
	add("phone", p.Phone)
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE gift_lists SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), listColumns)
	var l entity.GiftList
	if err := r.db.GetContext(ctx, &l, query, args...); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		case database.IsUniqueViolation(err, publicURLConstraints...):
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return &l, nil
}

// Delete removes a list and its items in one transaction, items first.
// Reports whether the list existed.
func (r *GiftListRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM gift_list_items WHERE gift_list_id = $1`, id); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM gift_lists WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete list: %w", err)
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	return deleted, err
}

// PublicURLExists reports whether slug is used by a list other than
// excludeID (0 excludes nothing).
func (r *GiftListRepo) PublicURLExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM gift_lists WHERE public_url = $1 AND id <> $2)`, slug, excludeID)
	return exists, err
}

// Items returns the items of a list in insertion order.
func (r *GiftListRepo) Items(ctx context.Context, listID int64) ([]entity.Item, error) {
	return selectItems(ctx, r.db, listID)
}

func selectItems(ctx context.Context, q sqlx.QueryerContext, listID int64) ([]entity.Item, error) {
	items := []entity.Item{}
	err := sqlx.SelectContext(ctx, q, &items,
		`SELECT `+itemColumns+` FROM gift_list_items WHERE gift_list_id = $1 ORDER BY created_at, id`, listID)
	return items, err
}

// AddItem inserts an item if the list exists, ErrNotFound otherwise.
func (r *GiftListRepo) AddItem(ctx context.Context, listID int64, it entity.NewItem) (*entity.Item, error) {
	item, err := insertItem(ctx, r.db, listID, it)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

func insertItem(ctx context.Context, q sqlx.QueryerContext, listID int64, it entity.NewItem) (*entity.Item, error) {
	query := `INSERT INTO gift_list_items
		  (gift_list_id, product_id, variant_id, quantity, product_title, product_image, product_price, product_handle)
		SELECT id, $2, $3, $4, $5, $6, $7, $8 FROM gift_lists WHERE id = $1
		RETURNING ` + itemColumns
	var item entity.Item
	if err := sqlx.GetContext(ctx, q, &item, query, listID, it.ProductID, it.VariantID, it.Quantity,
		it.ProductTitle, it.ProductImage, it.ProductPrice, it.ProductHandle); err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes itemID only if it belongs to listID.
func (r *GiftListRepo) RemoveItem(ctx context.Context, listID, itemID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gift_list_items WHERE id = $1 AND gift_list_id = $2`, itemID, listID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReplaceItems swaps the item set of a list in one transaction. Existing
// items whose (product_id, variant_id) reappear keep their id and
// purchased flag; the rest are deleted.
func (r *GiftListRepo) ReplaceItems(ctx context.Context, listID int64, next []entity.NewItem) ([]entity.Item, error) {
	var out []entity.Item
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked int64
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM gift_lists WHERE id = $1 FOR UPDATE`, listID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		current, err := selectItems(ctx, tx, listID)
		if err != nil {
			return err
		}
		plan := MergeItems(current, next)
		for _, u := range plan.Update {
			_, err := tx.ExecContext(ctx, `UPDATE gift_list_items
				SET quantity = $2, product_title = $3, product_image = $4, product_price = $5, product_handle = $6
				WHERE id = $1`,
				u.ID, u.Item.Quantity, u.Item.ProductTitle, u.Item.ProductImage, u.Item.ProductPrice, u.Item.ProductHandle)
			if err != nil {
				return fmt.Errorf("update item %d: %w", u.ID, err)
			}
		}
		for _, it := range plan.Insert {
			if _, err := insertItem(ctx, tx, listID, it); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
		}
		if len(plan.Delete) > 0 {
			q, args, err := sqlx.In(`DELETE FROM gift_list_items WHERE gift_list_id = ? AND id IN (?)`, listID, plan.Delete)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
				return fmt.Errorf("delete items: %w", err)
			}
		}
		out, err = selectItems(ctx, tx, listID)
		return err
	})
	return out, err
}

// ItemUpdate rewrites an existing item in place.
type ItemUpdate struct {
	ID   int64
	Item entity.NewItem
}

// MergePlan is the set of statements ReplaceItems runs.
type MergePlan struct {
	Update []ItemUpdate
	Insert []entity.NewItem
	Delete []int64
}

// MergeItems matches next against current by natural key. Duplicate keys
// pair up in order.
func MergeItems(current []entity.Item, next []entity.NewItem) MergePlan {
	pool := make(map[entity.ItemKey][]int64)
	for _, it := range current {
		pool[it.Key()] = append(pool[it.Key()], it.ID)
	}
	var plan MergePlan
	for _, it := range next {
		ids := pool[it.Key()]
		if len(ids) == 0 {
			plan.Insert = append(plan.Insert, it)
			continue
		}
		plan.Update = append(plan.Update, ItemUpdate{ID: ids[0], Item: it})
		pool[it.Key()] = ids[1:]
	}
	for _, it := range current {
		for _, id := range pool[it.Key()] {
			plan.Delete = append(plan.Delete, id)
		}
		delete(pool, it.Key())
	}
	return plan
}

// PopularProducts counts item rows per product_id across all lists.
func (r *GiftListRepo) PopularProducts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		ProductID string `db:"product_id"`
		Count     int64  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT product_id, COUNT(*) AS count FROM gift_list_items GROUP BY product_id`); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Count
	}
	return out, nil
}

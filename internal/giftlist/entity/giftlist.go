package entity

import "time"

// GiftList represents a row in the `gift_lists` table.
type GiftList struct {
	ID            int64     `db:"id" json:"id"`
	ShopDomain    string    `db:"shop_domain" json:"shop_domain"`
	CustomerEmail string    `db:"customer_email" json:"customer_email"`
	FirstName     *string   `db:"first_name" json:"first_name"`
	LastName      *string   `db:"last_name" json:"last_name"`
	Phone         *string   `db:"phone" json:"phone"`
	Title         string    `db:"title" json:"title"`
	PublicURL     string    `db:"public_url" json:"public_url"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Item represents a row in `gift_list_items`. The product_* columns are a
// catalog snapshot taken when the item was added.
type Item struct {
	ID            int64     `db:"id" json:"id"`
	GiftListID    int64     `db:"gift_list_id" json:"gift_list_id"`
	ProductID     string    `db:"product_id" json:"product_id"`
	VariantID     string    `db:"variant_id" json:"variant_id"`
	Quantity      int       `db:"quantity" json:"quantity"`
	Purchased     bool      `db:"purchased" json:"purchased"`
	ProductTitle  *string   `db:"product_title" json:"product_title"`
	ProductImage  *string   `db:"product_image" json:"product_image"`
	ProductPrice  *string   `db:"product_price" json:"product_price"`
	ProductHandle *string   `db:"product_handle" json:"product_handle"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ListWithItems is a list and its full item collection. Items is never nil.
type ListWithItems struct {
	GiftList
	Items []Item `json:"items"`
}

// NewItem holds the caller-supplied columns of an item.
type NewItem struct {
	ProductID     string
	VariantID     string
	Quantity      int
	ProductTitle  *string
	ProductImage  *string
	ProductPrice  *string
	ProductHandle *string
}

// Key is the natural key used when merging item sets.
func (n NewItem) Key() ItemKey { return ItemKey{ProductID: n.ProductID, VariantID: n.VariantID} }

func (i Item) Key() ItemKey { return ItemKey{ProductID: i.ProductID, VariantID: i.VariantID} }

type ItemKey struct {
	ProductID string
	VariantID string
}

// ListPatch lists the mutable columns; nil fields are left untouched.
type ListPatch struct {
	Title         *string
	CustomerEmail *string
	FirstName     *string
	LastName      *string
	Phone         *string
	PublicURL     *string
}

func (p ListPatch) Empty() bool {
	return p.Title == nil && p.CustomerEmail == nil && p.FirstName == nil && p.LastName == nil && p.Phone == nil
}

package shopify

import "context"

const productsQuery = `
  query GetProducts($first: Int!) {
    products(first: $first) {
      edges {
        node {
          id
          title
          handle
          description
          priceRange { minVariantPrice { amount currencyCode } }
          images(first: 1) { edges { node { url altText } } }
          variants(first: 10) {
            edges { node { id title price { amount currencyCode } availableForSale } }
          }
        }
      }
    }
  }`

const collectionsQuery = `
  query GetCollections($first: Int!) {
    collections(first: $first) {
      edges { node { id title handle description image { url altText } } }
    }
  }`

type money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type image struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
}

type productNode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	Description string `json:"description"`
	PriceRange  struct {
		MinVariantPrice money `json:"minVariantPrice"`
	} `json:"priceRange"`
	Images struct {
		Edges []struct {
			Node image `json:"node"`
		} `json:"edges"`
	} `json:"images"`
	Variants struct {
		Edges []struct {
			Node struct {
				ID               string `json:"id"`
				Title            string `json:"title"`
				Price            money  `json:"price"`
				AvailableForSale bool   `json:"availableForSale"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

// Variant is a flattened product variant.
type Variant struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

// Product is the flattened catalog entry served to the storefront UI.
type Product struct {
	ID          string    `json:"id"`
	VariantID   string    `json:"variant_id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency"`
	Image       *string   `json:"image"`
	ImageAlt    string    `json:"imageAlt"`
	Available   bool      `json:"available"`
	Variants    []Variant `json:"variants"`
}

type Collection struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Handle        string  `json:"handle"`
	Description   string  `json:"description"`
	Image         *string `json:"image"`
	ProductsCount int     `json:"productsCount"`
}

// Products returns the first n catalog products.
func (c *Client) Products(ctx context.Context, n int) ([]Product, error) {
	var data struct {
		Products struct {
			Edges []struct {
				Node productNode `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := c.storefront(ctx, productsQuery, map[string]any{"first": ClampFirst(n)}, &data); err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(data.Products.Edges))
	for _, e := range data.Products.Edges {
		out = append(out, flattenProduct(e.Node))
	}
	return out, nil
}

func flattenProduct(n productNode) Product {
	p := Product{
		ID:          TrimGID(n.ID),
		Title:       n.Title,
		Handle:      n.Handle,
		Description: n.Description,
		Price:       n.PriceRange.MinVariantPrice.Amount,
		Currency:    n.PriceRange.MinVariantPrice.CurrencyCode,
		ImageAlt:    n.Title,
		Variants:    make([]Variant, 0, len(n.Variants.Edges)),
	}
	if len(n.Images.Edges) > 0 {
		img := n.Images.Edges[0].Node
		if img.URL != "" {
			p.Image = &img.URL
		}
		if img.AltText != "" {
			p.ImageAlt = img.AltText
		}
	}
	for i, e := range n.Variants.Edges {
		v := Variant{
			ID:        TrimGID(e.Node.ID),
			Title:     e.Node.Title,
			Price:     e.Node.Price.Amount,
			Available: e.Node.AvailableForSale,
		}
		if i == 0 {
			p.VariantID = v.ID
			p.Available = v.Available
		}
		p.Variants = append(p.Variants, v)
	}
	return p
}

// Collections returns the first n collections.
func (c *Client) Collections(ctx context.Context, n int) ([]Collection, error) {
	var data struct {
		Collections struct {
			Edges []struct {
				Node struct {
					ID          string `json:"id"`
					Title       string `json:"title"`
					Handle      string `json:"handle"`
					Description string `json:"description"`
					Image       *image `json:"image"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"collections"`
	}
	if err := c.storefront(ctx, collectionsQuery, map[string]any{"first": ClampFirst(n)}, &data); err != nil {
		return nil, err
	}
	out := make([]Collection, 0, len(data.Collections.Edges))
	for _, e := range data.Collections.Edges {
		col := Collection{
			ID:          TrimGID(e.Node.ID),
			Title:       e.Node.Title,
			Handle:      e.Node.Handle,
			Description: e.Node.Description,
		}
		if e.Node.Image != nil && e.Node.Image.URL != "" {
			u := e.Node.Image.URL
			col.Image = &u
		}
		out = append(out, col)
	}
	return out, nil
}

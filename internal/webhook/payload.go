package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Line item property names attached by the storefront's cart link.
const (
	PropItemID   = "_gift_list_item_id"
	PropListID   = "_gift_list_id"
	PropListName = "_gift_list_name"
)

// FlexID accepts a JSON number, string or null and keeps its decimal text.
// Order and line item ids exceed 2^53, so numbers are not decoded as
// float64.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// Properties holds line item properties. The platform sends them as a list
// of {name, value} pairs; older payloads and tests use a plain object.
type Properties map[string]string

func (p *Properties) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	out := Properties{}
	switch {
	case bytes.Equal(b, []byte("null")):
	case len(b) > 0 && b[0] == '[':
		var pairs []struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(b, &pairs); err != nil {
			return err
		}
		for _, kv := range pairs {
			out[kv.Name] = rawString(kv.Value)
		}
	default:
		var m map[string]json.RawMessage
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		for k, v := range m {
			out[k] = rawString(v)
		}
	}
	*p = out
	return nil
}

func rawString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(v))
}

// Get looks name up with and without its leading underscore.
func (p Properties) Get(name string) string {
	if v, ok := p[name]; ok {
		return v
	}
	return p[strings.TrimPrefix(name, "_")]
}

func (p Properties) id(name string) int64 {
	n, err := strconv.ParseInt(p.Get(name), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

type LineItem struct {
	ID         FlexID     `json:"id"`
	VariantID  FlexID     `json:"variant_id"`
	ProductID  FlexID     `json:"product_id"`
	Quantity   int        `json:"quantity"`
	Title      string     `json:"title"`
	Properties Properties `json:"properties"`
}

// Order is the subset of the orders/create payload the reconciler reads.
type Order struct {
	ID        FlexID     `json:"id"`
	Name      string     `json:"name"`
	Tags      string     `json:"tags"`
	LineItems []LineItem `json:"line_items"`
}

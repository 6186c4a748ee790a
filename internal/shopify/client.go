// Package shopify talks to the commerce platform: the Storefront GraphQL
// API for the catalog proxy and the Admin REST API for order tagging.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/config"
)

const (
	DefaultFirst = 50
	MaxFirst     = 250
)

var (
	ErrNotConfigured = errors.New("shopify not configured")
	ErrAdminDisabled = errors.New("shopify admin token not configured")
)

// APIError carries GraphQL errors returned with a 200 response.
type APIError struct {
	Errors json.RawMessage
}

func (e *APIError) Error() string { return "shopify api error: " + string(e.Errors) }

// Client is safe for concurrent use.
type Client struct {
	cfg  config.Shopify
	http *http.Client
	// BaseURL replaces https://<store domain> when set (tests).
	BaseURL string
}

func NewClient(cfg config.Shopify) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-01"
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: 20 * time.Second}}
}

// StorefrontConfigured reports whether catalog calls can be made.
func (c *Client) StorefrontConfigured() bool {
	return c.cfg.StoreDomain != "" && c.cfg.StorefrontToken != ""
}

// AdminConfigured reports whether order tagging is enabled.
func (c *Client) AdminConfigured() bool {
	return c.cfg.StoreDomain != "" && c.cfg.AdminToken != ""
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://" + c.cfg.StoreDomain
}

// ClampFirst bounds a page size to 1..MaxFirst, defaulting to DefaultFirst.
func ClampFirst(n int) int {
	switch {
	case n <= 0:
		return DefaultFirst
	case n > MaxFirst:
		return MaxFirst
	}
	return n
}

func (c *Client) storefront(ctx context.Context, query string, vars map[string]any, out any) error {
	if !c.StorefrontConfigured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/%s/graphql.json", c.base(), c.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.cfg.StorefrontToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("storefront request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read storefront response: %w", err)
	}
	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("storefront status %d: %w", resp.StatusCode, err)
	}
	if len(envelope.Errors) > 0 && string(envelope.Errors) != "null" {
		return &APIError{Errors: envelope.Errors}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("storefront status %d", resp.StatusCode)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// TrimGID strips the "gid://shopify/<Type>/" prefix from a global id.
func TrimGID(gid string) string {
	if i := strings.LastIndexByte(gid, '/'); i >= 0 && strings.HasPrefix(gid, "gid://") {
		return gid[i+1:]
	}
	return gid
}

// TagOrder merges tags into the order's existing tags.
func (c *Client) TagOrder(ctx context.Context, orderID string, tags []string) error {
	if !c.AdminConfigured() {
		return ErrAdminDisabled
	}
	url := fmt.Sprintf("%s/admin/api/%s/orders/%s.json", c.base(), c.cfg.APIVersion, orderID)

	var current struct {
		Order struct {
			Tags string `json:"tags"`
		} `json:"order"`
	}
	if err := c.admin(ctx, http.MethodGet, url+"?fields=id,tags", nil, &current); err != nil {
		return fmt.Errorf("get order tags: %w", err)
	}
	merged := MergeTags(current.Order.Tags, tags)
	body := map[string]any{"order": map[string]any{"id": orderID, "tags": merged}}
	if err := c.admin(ctx, http.MethodPut, url, body, nil); err != nil {
		return fmt.Errorf("update order tags: %w", err)
	}
	return nil
}

func (c *Client) admin(ctx context.Context, method, url string, in, out any) error {
	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.cfg.AdminToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// MergeTags adds tags to a comma separated tag string, without duplicates
// (case-insensitive), and returns the sorted result.
func MergeTags(existing string, tags []string) string {
	seen := map[string]bool{}
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			return
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	for _, t := range strings.Split(existing, ",") {
		add(t)
	}
	for _, t := range tags {
		add(t)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

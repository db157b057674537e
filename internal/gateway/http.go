package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vinylshop/internal/domain"
)

// maxResponseSize caps gateway response bodies (4MB).
const maxResponseSize = 4 * 1024 * 1024

// HTTPClient talks to the marketplace REST API with token auth.
type HTTPClient struct {
	baseURL string
	token   string
	seller  string
	client  *http.Client
}

func NewHTTPClient(baseURL, token, seller string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		seller:  seller,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type listingPayload struct {
	ID              int64          `json:"id"`
	Status          string         `json:"status"`
	Condition       string         `json:"condition"`
	SleeveCondition string         `json:"sleeve_condition"`
	Comments        string         `json:"comments"`
	Location        string         `json:"location"`
	Price           pricePayload   `json:"price"`
	Release         releasePayload `json:"release"`
}

type pricePayload struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

type releasePayload struct {
	ID     int64  `json:"id"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Thumb  string `json:"thumbnail"`
}

type inventoryResponse struct {
	Listings   []listingPayload `json:"listings"`
	Pagination struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
		Items int `json:"items"`
	} `json:"pagination"`
}

func (c *HTTPClient) ListInventory(ctx context.Context, page, perPage int, status string) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if status != "" {
		q.Set("status", status)
	}
	endpoint := fmt.Sprintf("%s/users/%s/inventory?%s", c.baseURL, url.PathEscape(c.seller), q.Encode())

	var resp inventoryResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	result := &Page{
		Page:  resp.Pagination.Page,
		Pages: resp.Pagination.Pages,
		Total: resp.Pagination.Items,
	}
	for _, l := range resp.Listings {
		result.Listings = append(result.Listings, Listing{
			ID:              l.ID,
			ReleaseID:       l.Release.ID,
			Artist:          l.Release.Artist,
			Title:           l.Release.Title,
			PriceCents:      centsFromDecimal(l.Price.Value),
			Currency:        l.Price.Currency,
			Condition:       l.Condition,
			SleeveCondition: l.SleeveCondition,
			Comments:        l.Comments,
			Location:        l.Location,
			Status:          l.Status,
			ImageURL:        l.Release.Thumb,
		})
	}
	return result, nil
}

func (c *HTTPClient) DeleteListing(ctx context.Context, id int64) error {
	endpoint := fmt.Sprintf("%s/marketplace/listings/%d", c.baseURL, id)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *HTTPClient) CreateListing(ctx context.Context, draft ListingDraft) (int64, error) {
	endpoint := c.baseURL + "/marketplace/listings"
	body := map[string]any{
		"release_id":       draft.ReleaseID,
		"price":            decimal.New(draft.PriceCents, -2),
		"currency":         draft.Currency,
		"condition":        draft.Condition,
		"sleeve_condition": draft.SleeveCondition,
		"comments":         draft.Comments,
		"location":         draft.Location,
		"quantity":         draft.Quantity,
		"status":           ListingStatusForSale,
	}
	var resp struct {
		ListingID int64 `json:"listing_id"`
	}
	// The relist path must never double-create on a retried request.
	idempotencyKey := uuid.NewString()
	if err := c.doWithKey(ctx, http.MethodPost, endpoint, body, &resp, idempotencyKey); err != nil {
		return 0, err
	}
	return resp.ListingID, nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	return c.doWithKey(ctx, method, endpoint, body, out, "")
}

func (c *HTTPClient) doWithKey(ctx context.Context, method, endpoint string, body, out any, idempotencyKey string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrGateway, method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d: %s", domain.ErrGateway, method, endpoint, resp.StatusCode, truncate(raw, 256))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", domain.ErrGateway, err)
		}
	}
	return nil
}

func centsFromDecimal(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

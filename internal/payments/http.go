package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vinylshop/internal/domain"
)

// HTTPProvider creates checkout sessions against the payment processor's
// REST API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (p *HTTPProvider) CreateSession(ctx context.Context, params SessionParams) (*Session, error) {
	type lineItem struct {
		Name        string            `json:"name"`
		AmountCents int64             `json:"amount"`
		Quantity    int               `json:"quantity"`
		Metadata    map[string]string `json:"metadata"`
	}
	body := struct {
		Currency   string            `json:"currency"`
		SuccessURL string            `json:"success_url"`
		CancelURL  string            `json:"cancel_url"`
		Metadata   map[string]string `json:"metadata"`
		LineItems  []lineItem        `json:"line_items"`
	}{
		Currency:   params.Currency,
		SuccessURL: params.SuccessURL,
		CancelURL:  params.CancelURL,
		Metadata:   map[string]string{"user_id": params.UserID},
	}
	for _, l := range params.Lines {
		body.LineItems = append(body.LineItems, lineItem{
			Name:        l.Artist + " - " + l.Title,
			AmountCents: l.PriceCents,
			Quantity:    l.Quantity,
			Metadata:    map[string]string{"record_id": l.RecordID},
		})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: encode session: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/checkout/sessions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("payments: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read session response: %v", domain.ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: create session: status %d", domain.ErrGateway, resp.StatusCode)
	}

	var session Session
	var decoded struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode session response: %v", domain.ErrGateway, err)
	}
	session.ID = decoded.ID
	session.URL = decoded.URL
	return &session, nil
}

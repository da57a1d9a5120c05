package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"order-dashboard/internal/adapter"
	"order-dashboard/internal/domain"
	"order-dashboard/internal/lifecycle"
)

// LocalAPI talks to an order API instance over HTTP (the /api/orders
// contract). Transition rules are enforced by the server, so the guard is
// not evaluated here.
type LocalAPI struct {
	base   string
	client *http.Client
}

func NewLocalAPI(baseURL string, timeout time.Duration) *LocalAPI {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LocalAPI{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (s *LocalAPI) Name() string { return "local-api" }

type apiItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Variations string `json:"variations,omitempty"`
}

type apiCreateRequest struct {
	OrderID             string             `json:"order_id,omitempty"`
	TableNumber         domain.TableNumber `json:"table_number"`
	Items               []apiItem          `json:"items"`
	SpecialInstructions string             `json:"special_instructions,omitempty"`
}

type apiError struct {
	Error string        `json:"error"`
	From  domain.Status `json:"from,omitempty"`
	To    domain.Status `json:"to,omitempty"`
}

func (s *LocalAPI) List(ctx context.Context) ([]domain.Order, error) {
	var recs []adapter.FallbackRecord
	if err := s.do(ctx, http.MethodGet, "/api/orders", nil, http.StatusOK, &recs); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(recs))
	for _, r := range recs {
		out = append(out, adapter.Normalize(adapter.FromFallback(r)))
	}
	return out, nil
}

func (s *LocalAPI) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	req := apiCreateRequest{
		OrderID:             in.DisplayID,
		TableNumber:         in.TableNumber,
		SpecialInstructions: in.SpecialInstructions,
	}
	for _, it := range in.Items {
		req.Items = append(req.Items, apiItem(it))
	}
	var rec adapter.FallbackRecord
	if err := s.do(ctx, http.MethodPost, "/api/orders", req, http.StatusCreated, &rec); err != nil {
		return domain.Order{}, err
	}
	return adapter.Normalize(adapter.FromFallback(rec)), nil
}

func (s *LocalAPI) SetStatus(ctx context.Context, id string, status domain.Status, _ Guard) (domain.Order, error) {
	var rec adapter.FallbackRecord
	body := map[string]string{"status": string(status)}
	if err := s.do(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(id), body, http.StatusOK, &rec); err != nil {
		return domain.Order{}, err
	}
	return adapter.Normalize(adapter.FromFallback(rec)), nil
}

func (s *LocalAPI) Delete(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, "/api/orders/"+url.PathEscape(id), nil, http.StatusOK, nil)
}

func (s *LocalAPI) do(ctx context.Context, method, path string, in any, want int, out any) error {
	if s.base == "" {
		return errors.New("local api: base url not configured")
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("local api: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return fmt.Errorf("local api: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("local api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var ae apiError
		_ = json.NewDecoder(resp.Body).Decode(&ae)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return domain.ErrNotFound
		case http.StatusConflict:
			return &lifecycle.TransitionError{From: ae.From, To: ae.To}
		case http.StatusBadRequest:
			return &domain.ValidationError{Reason: ae.Error}
		}
		return fmt.Errorf("local api %s %s: status %d: %s", method, path, resp.StatusCode, ae.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("local api %s %s: decode: %w", method, path, err)
	}
	return nil
}

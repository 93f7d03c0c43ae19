package inventory

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

	"github.com/vladislavdragonenkov/offers/internal/domain"
	"github.com/vladislavdragonenkov/offers/internal/version"
)

const defaultHTTPTimeout = 5 * time.Second

// HTTPClient обращается к удалённому сервису склада по REST.
//
//	POST   {base}/reservations            {"variant_id","location_id","quantity"} -> {"reservation_id"}
//	DELETE {base}/reservations/{id}
//	GET    {base}/availability?variant_id=&location_id= -> {"available"}
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient создаёт клиента; httpClient может быть nil.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

type reserveRequest struct {
	VariantID  string `json:"variant_id"`
	LocationID string `json:"location_id"`
	Quantity   int64  `json:"quantity"`
}

type reserveResponse struct {
	ReservationID string `json:"reservation_id"`
}

type availabilityResponse struct {
	Available int64 `json:"available"`
}

// Reserve создаёт резерв.
func (c *HTTPClient) Reserve(ctx context.Context, variantID, locationID string, qty int64) (string, error) {
	body, err := json.Marshal(reserveRequest{VariantID: variantID, LocationID: locationID, Quantity: qty})
	if err != nil {
		return "", fmt.Errorf("marshal reserve request: %w", err)
	}

	var out reserveResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/reservations", body, &out); err != nil {
		return "", fmt.Errorf("reserve variant %s: %w", variantID, err)
	}
	if out.ReservationID == "" {
		return "", fmt.Errorf("reserve variant %s: empty reservation id: %w", variantID, domain.ErrInventoryTemporary)
	}
	return out.ReservationID, nil
}

// Release снимает резерв; 404 считается уже снятым резервом.
func (c *HTTPClient) Release(ctx context.Context, reservationID string) error {
	err := c.do(ctx, http.MethodDelete, c.baseURL+"/reservations/"+url.PathEscape(reservationID), nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("release reservation %s: %w", reservationID, err)
	}
	return nil
}

// Available запрашивает свободный остаток.
func (c *HTTPClient) Available(ctx context.Context, variantID, locationID string) (int64, error) {
	query := url.Values{}
	query.Set("variant_id", variantID)
	query.Set("location_id", locationID)

	var out availabilityResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/availability?"+query.Encode(), nil, &out); err != nil {
		return 0, fmt.Errorf("availability of %s: %w", variantID, err)
	}
	return out.Available, nil
}

type statusError struct {
	code int
	body string
	err  error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("inventory responded %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	return e.err
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (c *HTTPClient) do(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent("inventory"))

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%v: %w", err, domain.ErrInventoryTemporary)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %v: %w", err, domain.ErrInventoryTemporary)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		se.err = domain.ErrReservationNotFound
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		se.err = domain.ErrInventoryUnavailable
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		se.err = domain.ErrInventoryTemporary
	default:
		se.err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return se
}

var _ domain.InventoryClient = (*HTTPClient)(nil)

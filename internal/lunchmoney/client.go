// Package lunchmoney is a minimal Lunch Money API client covering bulk
// transaction creation, transaction listing for de-duplication, categories
// and assets. Creation is idempotent per record via external_id and the
// endpoint reports per-record errors instead of failing the batch
// atomically.
package lunchmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mdale/monzo-lunchmoney-sync/internal/apierr"
)

const defaultBaseURL = "https://api.lunchmoney.app/v1"

// Client talks to the Lunch Money API.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	logger  *slog.Logger
}

// NewClient creates a Lunch Money client authenticated with the given
// access token.
func NewClient(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 30 * time.Second
	rc.Logger = nil
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    rc,
		logger:  logger,
	}
}

// SetBaseURL overrides the API base URL, used in tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// CreateTransactions bulk-inserts transactions. Records carrying an
// external_id the ledger has already seen are skipped server-side, so
// retries do not duplicate.
func (c *Client) CreateTransactions(ctx context.Context, txns []Transaction) (*InsertResult, error) {
	if len(txns) == 0 {
		return &InsertResult{}, nil
	}
	body := map[string]any{
		"transactions":      txns,
		"skip_duplicates":   true,
		"debit_as_negative": true,
	}
	var payload struct {
		IDs    []int64 `json:"ids"`
		Errors any     `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/transactions", nil, body, &payload); err != nil {
		return nil, err
	}
	result := &InsertResult{IDs: payload.IDs, Created: len(payload.IDs)}
	// The API returns "error" as either a string or a list of strings.
	switch errs := payload.Errors.(type) {
	case string:
		if errs != "" {
			result.Errors = []string{errs}
		}
	case []any:
		for _, e := range errs {
			if s, ok := e.(string); ok {
				result.Errors = append(result.Errors, s)
			}
		}
	}
	return result, nil
}

// ListTransactions returns transactions in the inclusive date window,
// primarily so callers can preflight existing external_ids.
func (c *Client) ListTransactions(ctx context.Context, startDate, endDate string) ([]Transaction, error) {
	params := url.Values{}
	params.Set("start_date", startDate)
	params.Set("end_date", endDate)
	params.Set("debit_as_negative", "true")
	var payload struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, "/transactions", params, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Transactions, nil
}

// ExistingExternalIDs returns the set of external_ids already present in
// the given date window.
func (c *Client) ExistingExternalIDs(ctx context.Context, startDate, endDate string) (map[string]bool, error) {
	txns, err := c.ListTransactions(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(txns))
	for _, t := range txns {
		if t.ExternalID != "" {
			out[t.ExternalID] = true
		}
	}
	return out, nil
}

// ListCategories returns all categories, groups included.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var payload CategoryList
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Categories, nil
}

// ListAssets returns manually-managed accounts.
func (c *Client) ListAssets(ctx context.Context) ([]Asset, error) {
	var payload struct {
		Assets []Asset `json:"assets"`
	}
	if err := c.do(ctx, http.MethodGet, "/assets", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Assets, nil
}

// UpdateAssetBalance sets an asset's balance in major units.
func (c *Client) UpdateAssetBalance(ctx context.Context, assetID int64, balance float64) error {
	body := map[string]any{"balance": balance}
	var payload struct {
		Error any `json:"error"`
	}
	path := "/assets/" + strconv.FormatInt(assetID, 10)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &payload); err != nil {
		return err
	}
	if payload.Error != nil {
		return &apierr.Error{
			Service: "lunchmoney",
			Kind:    apierr.KindPermanent,
			Message: fmt.Sprintf("asset update rejected: %v", payload.Error),
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Transient("lunchmoney", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.Transient("lunchmoney", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &payload)
		msg := payload.Error
		if msg == "" {
			msg = payload.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return apierr.FromStatus("lunchmoney", resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode lunchmoney response: %w", err)
		}
	}
	return nil
}

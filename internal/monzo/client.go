// Package monzo is a minimal Monzo API client covering the endpoints the
// sync needs: transactions, accounts, pots and balances. Authentication uses
// an OAuth2 token source so access tokens refresh transparently between
// calls.
package monzo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/mdale/monzo-lunchmoney-sync/internal/apierr"
)

const defaultBaseURL = "https://api.monzo.com"

// PotTransferScheme is the scheme tag Monzo puts on pot movements.
const PotTransferScheme = "uk_retail_pot"

// Client talks to the Monzo API.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	tokens  oauth2.TokenSource
	logger  *slog.Logger
}

// NewClient creates a Monzo client. The token source supplies (and
// refreshes) the OAuth access token.
func NewClient(tokens oauth2.TokenSource, logger *slog.Logger) *Client {
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
		http:    rc,
		tokens:  tokens,
		logger:  logger,
	}
}

// SetBaseURL overrides the API base URL, used in tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// ListTransactions fetches settled, non-declined transactions for an account.
// since is required (ISO-8601); before is optional.
func (c *Client) ListTransactions(ctx context.Context, accountID, since, before string) ([]Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	params := url.Values{}
	params.Set("account_id", accountID)
	if since != "" {
		params.Set("since", since)
	}
	if before != "" {
		params.Set("before", before)
	}
	params.Add("expand[]", "merchant")

	var payload struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.get(ctx, "/transactions", params, &payload); err != nil {
		return nil, err
	}

	// Upstream contract: only finalized transactions flow into the ledger.
	out := make([]Transaction, 0, len(payload.Transactions))
	for _, t := range payload.Transactions {
		if t.IsSettled() && !t.IsDeclined() {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListAccounts returns the caller's open accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var payload struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.get(ctx, "/accounts", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(payload.Accounts))
	for _, a := range payload.Accounts {
		if !a.Closed {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListPots returns the caller's pots, excluding deleted ones. Passing a
// current account id scopes the listing, which some API versions require.
func (c *Client) ListPots(ctx context.Context, currentAccountID string) ([]Pot, error) {
	params := url.Values{}
	if currentAccountID != "" {
		params.Set("current_account_id", currentAccountID)
	}
	var payload struct {
		Pots []Pot `json:"pots"`
	}
	if err := c.get(ctx, "/pots", params, &payload); err != nil {
		return nil, err
	}
	out := make([]Pot, 0, len(payload.Pots))
	for _, p := range payload.Pots {
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out, nil
}

// Balance fetches the current account balance in major units.
func (c *Client) Balance(ctx context.Context, accountID string) (Balance, error) {
	params := url.Values{}
	params.Set("account_id", accountID)
	var payload struct {
		Balance  int64  `json:"balance"`
		Currency string `json:"currency"`
	}
	if err := c.get(ctx, "/balance", params, &payload); err != nil {
		return Balance{}, err
	}
	return Balance{
		Balance:  float64(payload.Balance) / 100.0,
		Currency: payload.Currency,
	}, nil
}

// WhoAmI verifies the access token is still valid.
func (c *Client) WhoAmI(ctx context.Context) error {
	var payload struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := c.get(ctx, "/ping/whoami", nil, &payload); err != nil {
		return err
	}
	if !payload.Authenticated {
		return &apierr.Error{Service: "monzo", Kind: apierr.KindAuth, Message: "token not authenticated"}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return &apierr.Error{Service: "monzo", Kind: apierr.KindAuth, Message: "token refresh failed", Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Transient("monzo", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.Transient("monzo", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode monzo response: %w", err)
	}
	return nil
}

// classify maps an error response to the shared taxonomy. Monzo signals
// strong customer authentication with a 403 verification_required code; the
// caller should prompt for in-app approval and retry.
func classify(status int, body []byte) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	if status == http.StatusForbidden && strings.Contains(payload.Code, "verification_required") {
		return &apierr.Error{
			Service:              "monzo",
			Kind:                 apierr.KindTransient,
			Status:               status,
			Message:              msg,
			VerificationRequired: true,
		}
	}
	return apierr.FromStatus("monzo", status, msg)
}

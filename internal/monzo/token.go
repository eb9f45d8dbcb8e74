package monzo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const tokenURL = "https://api.monzo.com/oauth2/token"

// OAuthEndpoint is Monzo's OAuth2 endpoint.
var OAuthEndpoint = oauth2.Endpoint{
	AuthURL:  "https://auth.monzo.com",
	TokenURL: tokenURL,
}

// storedToken is the on-disk token layout.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// FileTokenSource persists refreshed tokens to a file so the refresh token
// survives between runs. Monzo rotates refresh tokens on every refresh;
// losing one means re-authenticating interactively.
type FileTokenSource struct {
	mu   sync.Mutex
	path string
	src  oauth2.TokenSource
	last *oauth2.Token
}

// NewFileTokenSource builds a token source from the tokens stored at path,
// refreshing through the given OAuth2 client config when expired.
func NewFileTokenSource(ctx context.Context, cfg *oauth2.Config, path string) (*FileTokenSource, error) {
	tok, err := readToken(path)
	if err != nil {
		return nil, err
	}
	return &FileTokenSource{
		path: path,
		src:  cfg.TokenSource(ctx, tok),
		last: tok,
	}, nil
}

// Token returns a valid token, persisting it when the refresh rotated it.
func (f *FileTokenSource) Token() (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tok, err := f.src.Token()
	if err != nil {
		return nil, err
	}
	if f.last == nil || tok.AccessToken != f.last.AccessToken || tok.RefreshToken != f.last.RefreshToken {
		if err := writeToken(f.path, tok); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
		f.last = tok
	}
	return tok, nil
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file %s: %w", path, err)
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	if st.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s has no refresh token", path)
	}
	return &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		Expiry:       st.Expiry,
	}, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(storedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

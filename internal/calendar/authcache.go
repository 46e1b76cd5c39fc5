package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrAuth means no usable calendar credential could be obtained.
var ErrAuth = errors.New("calendar auth failed")

// Scope requested for calendar access.
const Scope = "https://www.googleapis.com/auth/calendar"

// expirySlack refreshes slightly before the reported expiry so a token
// never dies mid-request.
const expirySlack = 30 * time.Second

// ClientSecrets holds the OAuth client registration, read from the
// Google Cloud "installed app" secrets file.
type ClientSecrets struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// LoadClientSecrets reads an installed-app client secrets file.
func LoadClientSecrets(path string) (*ClientSecrets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	var wrapper struct {
		Installed *ClientSecrets `json:"installed"`
		Web       *ClientSecrets `json:"web"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("parse client secrets %s: %w", path, err)
	}
	secrets := wrapper.Installed
	if secrets == nil {
		secrets = wrapper.Web
	}
	if secrets == nil || secrets.ClientID == "" {
		return nil, fmt.Errorf("client secrets %s: no installed/web client", path)
	}
	if secrets.TokenURI == "" {
		secrets.TokenURI = "https://oauth2.googleapis.com/token"
	}
	if secrets.AuthURI == "" {
		secrets.AuthURI = "https://accounts.google.com/o/oauth2/v2/auth"
	}
	return secrets, nil
}

// Credentials holds the cached OAuth tokens.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

func (c *Credentials) valid(now time.Time) bool {
	return c != nil && c.AccessToken != "" && now.Add(expirySlack).Before(c.Expiry)
}

// TokenSource is the guarded credential cache cell. The first caller
// with an expired token performs the refresh while holding the lock, so
// concurrent callers never race duplicate refresh flows.
type TokenSource struct {
	mu         sync.Mutex
	secrets    *ClientSecrets
	path       string
	creds      *Credentials
	httpClient *http.Client
	now        func() time.Time
}

// NewTokenSource creates a token source backed by the token cache file.
func NewTokenSource(secrets *ClientSecrets, tokenFile string) *TokenSource {
	return &TokenSource{
		secrets:    secrets,
		path:       tokenFile,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// Token returns a valid access token, refreshing the cached credential
// if it has expired. A missing cache or failed refresh surfaces ErrAuth.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds == nil {
		creds, err := loadCredentials(s.path)
		if err != nil {
			return "", fmt.Errorf("%w: %v (run voicecal-calendar-login)", ErrAuth, err)
		}
		s.creds = creds
	}

	if s.creds.valid(s.now()) {
		return s.creds.AccessToken, nil
	}

	if s.creds.RefreshToken == "" {
		return "", fmt.Errorf("%w: cached token expired and no refresh token (run voicecal-calendar-login)", ErrAuth)
	}

	if err := s.refresh(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if err := saveCredentials(s.path, s.creds); err != nil {
		return "", fmt.Errorf("%w: persist refreshed token: %v", ErrAuth, err)
	}
	return s.creds.AccessToken, nil
}

func (s *TokenSource) refresh(ctx context.Context) error {
	data := url.Values{}
	data.Set("client_id", s.secrets.ClientID)
	data.Set("client_secret", s.secrets.ClientSecret)
	data.Set("refresh_token", s.creds.RefreshToken)
	data.Set("grant_type", "refresh_token")

	result, err := postTokenForm(ctx, s.httpClient, s.secrets.TokenURI, data)
	if err != nil {
		return fmt.Errorf("token refresh: %w", err)
	}

	s.creds.AccessToken = result.AccessToken
	s.creds.Expiry = s.now().Add(time.Duration(result.ExpiresIn) * time.Second)
	if result.RefreshToken != "" {
		s.creds.RefreshToken = result.RefreshToken
	}
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func postTokenForm(ctx context.Context, client *http.Client, tokenURL string, data url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func loadCredentials(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("parse token cache %s: %w", path, err)
	}
	return &creds, nil
}

func saveCredentials(path string, creds *Credentials) error {
	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

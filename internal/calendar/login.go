package calendar

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

const loginRedirectURI = "http://localhost:8484/oauth2callback"

// Login runs the interactive OAuth flow: prints the authorization URL,
// waits for the browser redirect on a local callback server, exchanges
// the code and writes the credential cache file the TokenSource reads.
func Login(ctx context.Context, secrets *ClientSecrets, tokenFile string) error {
	verifier, challenge, err := generatePKCE()
	if err != nil {
		return fmt.Errorf("generate pkce: %w", err)
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(stateBytes)

	redirectURL, err := url.Parse(loginRedirectURI)
	if err != nil {
		return fmt.Errorf("parse redirect uri: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:"+redirectURL.Port())
	if err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}
	defer listener.Close()

	type loginResult struct {
		creds *Credentials
		err   error
	}
	resultChan := make(chan loginResult, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != redirectURL.Path {
				http.NotFound(w, r)
				return
			}
			if r.URL.Query().Get("state") != state {
				http.Error(w, "Invalid state", http.StatusBadRequest)
				resultChan <- loginResult{err: fmt.Errorf("state mismatch")}
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "No code received", http.StatusBadRequest)
				resultChan <- loginResult{err: fmt.Errorf("no code received")}
				return
			}

			creds, err := exchangeCode(r.Context(), secrets, code, verifier)
			if err != nil {
				http.Error(w, "Token exchange failed", http.StatusInternalServerError)
				resultChan <- loginResult{err: err}
				return
			}

			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprintln(w, "Authentication complete. You can close this window.")
			resultChan <- loginResult{creds: creds}
		}),
	}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	fmt.Println("Open this URL in your browser to authorize calendar access:")
	fmt.Println()
	fmt.Println(authorizeURL(secrets, state, challenge))
	fmt.Println()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			return res.err
		}
		if err := saveCredentials(tokenFile, res.creds); err != nil {
			return fmt.Errorf("save token cache: %w", err)
		}
		return nil
	}
}

func authorizeURL(secrets *ClientSecrets, state, challenge string) string {
	u, _ := url.Parse(secrets.AuthURI)
	q := u.Query()
	q.Set("client_id", secrets.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", loginRedirectURI)
	q.Set("scope", Scope)
	q.Set("state", state)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	u.RawQuery = q.Encode()
	return u.String()
}

func exchangeCode(ctx context.Context, secrets *ClientSecrets, code, verifier string) (*Credentials, error) {
	data := url.Values{}
	data.Set("client_id", secrets.ClientID)
	data.Set("client_secret", secrets.ClientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", loginRedirectURI)
	data.Set("code_verifier", verifier)

	result, err := postTokenForm(ctx, &http.Client{Timeout: 15 * time.Second}, secrets.TokenURI, data)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	return &Credentials{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

// generatePKCE creates a code verifier and challenge for OAuth PKCE.
func generatePKCE() (verifier, challenge string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(b)
	h := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(h[:])
	return verifier, challenge, nil
}

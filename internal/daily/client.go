// Package daily provides a REST client for the Daily room provider.
package daily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

// Room describes a provisioned Daily room.
type Room struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// RoomParams configures room creation. The zero value requests a room
// with the account defaults, which is what the session server uses.
type RoomParams struct {
	Name       string         `json:"name,omitempty"`
	Privacy    string         `json:"privacy,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Client talks to the Daily REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Daily REST client.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// NewClientWithHTTP creates a client with a caller-supplied http.Client.
func NewClientWithHTTP(apiKey, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreateRoom provisions a new room and returns its reference.
func (c *Client) CreateRoom(ctx context.Context, params RoomParams) (Room, error) {
	var room Room
	if err := c.post(ctx, "/rooms", params, &room); err != nil {
		return Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// GetToken issues a meeting token scoped to the given room, valid for
// expirySeconds from now.
func (c *Client) GetToken(ctx context.Context, roomURL string, expirySeconds int) (string, error) {
	name, err := roomName(roomURL)
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}

	body := map[string]any{
		"properties": map[string]any{
			"room_name": name,
			"exp":       time.Now().Add(time.Duration(expirySeconds) * time.Second).Unix(),
		},
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/meeting-tokens", body, &resp); err != nil {
		return "", fmt.Errorf("get token for room %s: %w", roomURL, err)
	}
	return resp.Token, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daily api %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// roomName extracts the room name from a Daily room URL
// (https://<domain>.daily.co/<name>).
func roomName(roomURL string) (string, error) {
	u, err := url.Parse(roomURL)
	if err != nil {
		return "", fmt.Errorf("parse room url: %w", err)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("room url %q has no room name", roomURL)
	}
	return name, nil
}

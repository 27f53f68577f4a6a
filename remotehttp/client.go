// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package remotehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Perth00/WanderPlan-sub001/tripsync"
)

// Client talks to the document server. It implements tripsync.RemoteStore and
// tripsync.AssetStore; its Session implements tripsync.Identity.
type Client struct {
	baseURL  string
	http     *http.Client
	session  *Session
	deviceID string
	logger   *slog.Logger
}

// New creates a client for the server at baseURL ("https://sync.example.com").
// httpClient may be nil for http.DefaultClient.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		session: &Session{},
		// Identifies this installation in server-side change attribution.
		deviceID: uuid.NewString(),
		logger:   logger,
	}
}

// DeviceID returns the id this client sends at login so the server can
// attribute changes to the originating device.
func (c *Client) DeviceID() string { return c.deviceID }

// Session exposes the auth state for engine wiring.
func (c *Client) Session() *Session { return c.session }

type wireDoc struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

type wireEvent struct {
	Type string  `json:"type"`
	Path string  `json:"path"`
	Doc  wireDoc `json:"doc"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
}

// Register creates an account and signs the session in.
func (c *Client) Register(ctx context.Context, email, username, password string) error {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", nil,
		map[string]string{"email": email, "username": username, "password": password, "device_id": c.deviceID}, &resp)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	c.session.set(resp.AccessToken, resp.User.ID)
	return nil
}

// Login signs the session in.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil,
		map[string]string{"email": email, "password": password, "device_id": c.deviceID}, &resp)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.session.set(resp.AccessToken, resp.User.ID)
	return nil
}

// Logout drops the session locally.
func (c *Client) Logout() {
	c.session.Clear()
}

func (c *Client) Add(ctx context.Context, path string, data map[string]any) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	q := url.Values{"path": {path}}
	if err := c.do(ctx, http.MethodPost, "/v1/docs", q, data, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Set(ctx context.Context, path, id string, data map[string]any) error {
	q := url.Values{"path": {path}, "id": {id}}
	return c.do(ctx, http.MethodPut, "/v1/docs", q, data, nil)
}

func (c *Client) Get(ctx context.Context, path, id string) (tripsync.Document, error) {
	var doc wireDoc
	q := url.Values{"path": {path}, "id": {id}}
	if err := c.do(ctx, http.MethodGet, "/v1/docs", q, nil, &doc); err != nil {
		return tripsync.Document{}, err
	}
	return tripsync.Document{ID: doc.ID, Data: doc.Data}, nil
}

func (c *Client) Delete(ctx context.Context, path, id string) error {
	q := url.Values{"path": {path}, "id": {id}}
	return c.do(ctx, http.MethodDelete, "/v1/docs", q, nil, nil)
}

func (c *Client) List(ctx context.Context, path string) ([]tripsync.Document, error) {
	var wire []wireDoc
	q := url.Values{"path": {path}}
	if err := c.do(ctx, http.MethodGet, "/v1/docs", q, nil, &wire); err != nil {
		return nil, err
	}
	docs := make([]tripsync.Document, 0, len(wire))
	for _, d := range wire {
		docs = append(docs, tripsync.Document{ID: d.ID, Data: d.Data})
	}
	return docs, nil
}

// Upload reads a local file and stores it on the server, returning its
// stable URL.
func (c *Client) Upload(ctx context.Context, localPath string) (string, error) {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	var resp struct {
		URL string `json:"url"`
	}
	q := url.Values{"name": {filepath.Base(localPath)}}
	if err := c.doRaw(ctx, http.MethodPost, "/v1/assets", q, content, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// DeleteAsset removes an uploaded asset by its URL. Named to avoid clashing
// with the document Delete; the engine-facing AssetStore adapter is below.
func (c *Client) DeleteAsset(ctx context.Context, assetURL string) error {
	q := url.Values{"url": {assetURL}}
	return c.do(ctx, http.MethodDelete, "/v1/assets", q, nil, nil)
}

// Assets returns the client's AssetStore view.
func (c *Client) Assets() tripsync.AssetStore {
	return assetStore{c}
}

type assetStore struct {
	c *Client
}

func (a assetStore) Upload(ctx context.Context, localPath string) (string, error) {
	return a.c.Upload(ctx, localPath)
}

func (a assetStore) Delete(ctx context.Context, url string) error {
	return a.c.DeleteAsset(ctx, url)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	return c.doRaw(ctx, method, path, query, payload, out)
}

func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.session.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package docserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrAssetNotFound is returned for lookups of assets that do not exist.
var ErrAssetNotFound = errors.New("asset not found")

// AssetService stores uploaded binaries (activity images) and hands out
// stable URLs for them.
type AssetService struct {
	db      Querier
	baseURL string
}

// NewAssetService creates the service. baseURL is the externally reachable
// server root embedded into returned URLs, e.g. "https://sync.example.com".
func NewAssetService(db Querier, baseURL string) *AssetService {
	return &AssetService{db: db, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Store saves the blob and returns its stable URL.
func (s *AssetService) Store(ctx context.Context, userID, name string, content []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO assets (id, user_id, name, content)
		VALUES ($1,$2,$3,$4)
	`, id, userID, name, content)
	if err != nil {
		return "", fmt.Errorf("failed to store asset: %w", err)
	}
	return s.urlFor(id), nil
}

// Load returns the blob for one asset id.
func (s *AssetService) Load(ctx context.Context, id string) (name string, content []byte, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT name, content FROM assets WHERE id=$1
	`, id).Scan(&name, &content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrAssetNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load asset: %w", err)
	}
	return name, content, nil
}

// Remove deletes the asset a URL points to. Only the owner can remove it;
// removing a missing asset succeeds.
func (s *AssetService) Remove(ctx context.Context, userID, url string) error {
	id := s.idFromURL(url)
	if id == "" {
		return fmt.Errorf("not an asset url: %q", url)
	}
	_, err := s.db.Exec(ctx, `
		DELETE FROM assets WHERE id=$1 AND user_id=$2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

func (s *AssetService) urlFor(id string) string {
	return s.baseURL + "/v1/assets/" + id
}

func (s *AssetService) idFromURL(url string) string {
	idx := strings.LastIndex(url, "/v1/assets/")
	if idx < 0 {
		return ""
	}
	return url[idx+len("/v1/assets/"):]
}

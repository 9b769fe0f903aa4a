// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package auth resolves valid Drive access tokens for owners from stored
// refresh credentials. Token issuance (the consent flow) happens elsewhere;
// this package only consumes its output.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/VT-TyR/drivemind/internal/dbinterface"
)

// ErrNoCredentials is returned when an owner has no stored refresh token.
var ErrNoCredentials = errors.New("no drive credentials for owner")

// ErrConsentRevoked is returned when the upstream provider permanently
// rejected the stored refresh token. Callers must not retry.
var ErrConsentRevoked = errors.New("drive consent revoked")

// CredentialStore persists per-owner refresh tokens.
type CredentialStore struct {
	db dbinterface.Querier
}

// NewCredentialStore creates a new CredentialStore.
func NewCredentialStore(db dbinterface.Querier) *CredentialStore {
	return &CredentialStore{db: db}
}

// Save stores or replaces the refresh token for an owner.
func (s *CredentialStore) Save(ctx context.Context, ownerID, refreshToken string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drive_credentials (owner_id, refresh_token)
		VALUES (?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			updated_at = CURRENT_TIMESTAMP
	`, ownerID, refreshToken)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Get returns the refresh token for an owner, or ErrNoCredentials.
func (s *CredentialStore) Get(ctx context.Context, ownerID string) (string, error) {
	var refreshToken string
	err := s.db.QueryRowContext(ctx, `
		SELECT refresh_token FROM drive_credentials WHERE owner_id = ?
	`, ownerID).Scan(&refreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", fmt.Errorf("get credentials: %w", err)
	}
	return refreshToken, nil
}

// Delete removes the stored credentials for an owner.
func (s *CredentialStore) Delete(ctx context.Context, ownerID string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM drive_credentials WHERE owner_id = ?
	`, ownerID); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// TokenService exchanges stored refresh tokens for short-lived access
// tokens, reusing oauth2 token sources so unexpired tokens are served from
// memory.
type TokenService struct {
	oauthConfig *oauth2.Config
	creds       *CredentialStore

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewTokenService creates a new TokenService.
func NewTokenService(oauthConfig *oauth2.Config, creds *CredentialStore) *TokenService {
	return &TokenService{
		oauthConfig: oauthConfig,
		creds:       creds,
		sources:     make(map[string]oauth2.TokenSource),
	}
}

// GetValidAccessToken resolves a currently valid bearer token for ownerID.
// ErrNoCredentials and ErrConsentRevoked are terminal; any other failure is
// transient and may be retried.
func (s *TokenService) GetValidAccessToken(ctx context.Context, ownerID string) (string, error) {
	source, err := s.tokenSource(ctx, ownerID)
	if err != nil {
		return "", err
	}

	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			log.Warn().Str("ownerID", ownerID).Msg("auth: refresh token permanently rejected")
			s.dropSource(ownerID)
			return "", fmt.Errorf("%w: %s", ErrConsentRevoked, retrieveErr.ErrorCode)
		}
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	return token.AccessToken, nil
}

func (s *TokenService) tokenSource(ctx context.Context, ownerID string) (oauth2.TokenSource, error) {
	s.mu.Lock()
	source, ok := s.sources[ownerID]
	s.mu.Unlock()
	if ok {
		return source, nil
	}

	refreshToken, err := s.creds.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	// context.Background keeps the cached source usable beyond the first
	// caller's request lifetime.
	source = s.oauthConfig.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})

	s.mu.Lock()
	s.sources[ownerID] = source
	s.mu.Unlock()
	return source, nil
}

func (s *TokenService) dropSource(ownerID string) {
	s.mu.Lock()
	delete(s.sources, ownerID)
	s.mu.Unlock()
}

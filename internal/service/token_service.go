package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// Transport is the subset of the SNAP HTTP client the services use.
type Transport interface {
	Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*snap.Response, error)
	DoAllowError(ctx context.Context, method, path string, body []byte, headers map[string]string) (*snap.Response, error)
}

// TokenCacheStore caches outbound access tokens per (tenant, product).
type TokenCacheStore interface {
	Get(ctx context.Context, tenantID, product string) (string, error)
	Set(ctx context.Context, tenantID, product, token string, expiresIn time.Duration) error
	Delete(ctx context.Context, tenantID, product string) error
}

// defaultTokenLifetime is assumed when the bank omits or garbles
// expiresIn. BRI tokens live 900 seconds.
const defaultTokenLifetime = 900 * time.Second

// TokenService obtains outbound B2B access tokens and keeps them warm in
// the cache. Concurrent callers asking for the same (tenant, product)
// share a single remote handshake through singleflight.
type TokenService struct {
	cache TokenCacheStore
	group singleflight.Group
}

// NewTokenService creates a TokenService. cache may be nil, in which
// case every call performs the handshake.
func NewTokenService(cache TokenCacheStore) *TokenService {
	return &TokenService{cache: cache}
}

// GetToken returns a valid access token for the given tenant and
// product, fetching a fresh one from the bank when the cache is cold.
func (s *TokenService) GetToken(ctx context.Context, transport Transport, signer *snap.Signer, tenantID, product string) (string, error) {
	key := tenantID + ":" + product
	v, err, _ := s.group.Do(key, func() (any, error) {
		if s.cache != nil {
			if token, err := s.cache.Get(ctx, tenantID, product); err == nil && token != "" {
				return token, nil
			}
		}
		return s.fetch(ctx, transport, signer, tenantID, product)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call performs a fresh
// handshake. Called after the bank rejects a token as expired.
func (s *TokenService) Invalidate(ctx context.Context, tenantID, product string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, tenantID, product); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Str("product", product).Msg("Failed to drop cached token")
	}
}

func (s *TokenService) fetch(ctx context.Context, transport Transport, signer *snap.Signer, tenantID, product string) (string, error) {
	timestamp := snap.ISO8601Now()
	headers, err := signer.TokenHeaders(timestamp)
	if err != nil {
		return "", err
	}

	body, err := snap.MinifyJSON(snap.TokenRequest{GrantType: "client_credentials"})
	if err != nil {
		return "", err
	}

	resp, err := transport.Do(ctx, http.MethodPost, snap.PathAccessToken, body, headers)
	if err != nil {
		return "", err
	}

	var tr snap.TokenResponse
	if err := resp.Decode(&tr); err != nil {
		return "", fmt.Errorf("malformed access-token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("access-token handshake rejected: %s %s", resp.Code(), resp.Message())
	}

	lifetime := defaultTokenLifetime
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, product, tr.AccessToken, lifetime); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Str("product", product).Msg("Failed to cache token")
		}
	}

	log.Debug().Str("tenant_id", tenantID).Str("product", product).Dur("lifetime", lifetime).Msg("Fetched access token")
	return tr.AccessToken, nil
}

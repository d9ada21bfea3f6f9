package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// Errors surfaced to the B2B token endpoint and bearer middleware. The
// handlers translate them into the SNAP response codes.
var (
	ErrUnknownClient    = errors.New("unknown client key")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidTimestamp = errors.New("invalid timestamp format")
	ErrInvalidGrantType = errors.New("grant type must be client_credentials")
	ErrInvalidB2BToken  = errors.New("invalid or expired access token")
)

// B2BTokenLifetime matches the lifetime BRI grants on its own endpoint,
// so counterparts can keep one refresh cadence for both directions.
const B2BTokenLifetime = 3600 * time.Second

// B2BTokenStore persists issued inbound tokens.
type B2BTokenStore interface {
	Create(t *models.AccessToken) error
	GetActive(token string) (*models.AccessToken, *models.Tenant, error)
}

// B2BTenantStore looks up counterpart credentials.
type B2BTenantStore interface {
	GetByClientID(clientID string) (*models.Tenant, error)
}

// B2BAuthService implements the inbound side of the SNAP handshake: it
// plays the bank's role for counterparts that authenticate against this
// deployment, issuing opaque bearer tokens and validating them later.
type B2BAuthService struct {
	tenants B2BTenantStore
	tokens  B2BTokenStore
}

// NewB2BAuthService creates a B2BAuthService.
func NewB2BAuthService(tenants B2BTenantStore, tokens B2BTokenStore) *B2BAuthService {
	return &B2BAuthService{tenants: tenants, tokens: tokens}
}

// IssueToken validates the asymmetric handshake and issues an opaque
// token. The caller signs clientKey|timestamp with its private key; we
// verify against the public key stored for that client.
func (s *B2BAuthService) IssueToken(ctx context.Context, clientKey, timestamp, signature, grantType string) (*models.AccessToken, error) {
	if grantType != "client_credentials" {
		return nil, ErrInvalidGrantType
	}
	if !snap.ValidTimestampFormat(timestamp) {
		return nil, ErrInvalidTimestamp
	}

	tenant, err := s.tenants.GetByClientID(clientKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownClient
		}
		return nil, err
	}

	verifier := snap.NewSigner(snap.KeyConfig{
		ClientID:     tenant.ClientID,
		PublicKeyPEM: deref(tenant.PublicKey),
	})
	if !verifier.VerifyToken(clientKey, timestamp, signature) {
		return nil, ErrInvalidSignature
	}

	raw, err := utils.GenerateAccessToken()
	if err != nil {
		return nil, err
	}
	token := &models.AccessToken{
		ClientRowID: tenant.ID,
		Token:       raw,
		ExpiresAt:   time.Now().Add(B2BTokenLifetime),
	}
	if err := s.tokens.Create(token); err != nil {
		return nil, err
	}

	log.Info().Str("client_id", clientKey).Msg("Issued B2B access token")
	return token, nil
}

// Authenticate resolves a bearer token to its owning tenant. Expired or
// unknown tokens fail with ErrInvalidB2BToken.
func (s *B2BAuthService) Authenticate(ctx context.Context, token string) (*models.Tenant, error) {
	if token == "" {
		return nil, ErrInvalidB2BToken
	}
	_, tenant, err := s.tokens.GetActive(token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidB2BToken
		}
		return nil, err
	}
	return tenant, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

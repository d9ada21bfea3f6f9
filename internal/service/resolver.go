package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/config"
	"github.com/elgiborsolution/bri-payments-go/internal/models"
)

// TenantStore is the subset of the tenant repository the resolver needs.
type TenantStore interface {
	GetByTenantID(tenantID string) (*models.Tenant, error)
}

// BundleCache caches resolved credential bundles.
type BundleCache interface {
	Get(ctx context.Context, tenantID string) (*config.BRIConfig, error)
	Set(ctx context.Context, tenantID string, bundle *config.BRIConfig) error
	Invalidate(ctx context.Context, tenantID string) error
}

// Resolver maps a tenant identifier to a complete credential bundle.
// Resolution never fails: tenants without their own bri_clients row fall
// back to the bundle configured through the environment, so a
// single-tenant deployment needs no database rows at all.
type Resolver struct {
	defaults config.BRIConfig
	tenants  TenantStore
	cache    BundleCache
}

// NewResolver creates a Resolver. tenants and cache may be nil; a nil
// store always resolves to the defaults.
func NewResolver(defaults config.BRIConfig, tenants TenantStore, cache BundleCache) *Resolver {
	return &Resolver{defaults: defaults, tenants: tenants, cache: cache}
}

// Resolve returns the bundle for tenantID. An empty tenantID, an unknown
// tenant, or a lookup failure all resolve to the default bundle.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) *config.BRIConfig {
	if tenantID == "" || r.tenants == nil {
		bundle := r.defaults
		return &bundle
	}

	if r.cache != nil {
		if bundle, err := r.cache.Get(ctx, tenantID); err == nil {
			return bundle
		}
	}

	row, err := r.tenants.GetByTenantID(tenantID)
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Tenant lookup failed, using default credentials")
		bundle := r.defaults
		return &bundle
	}

	bundle := r.merge(row)
	if r.cache != nil {
		if err := r.cache.Set(ctx, tenantID, bundle); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Failed to cache credential bundle")
		}
	}
	return bundle
}

// Invalidate drops the cached bundle for a tenant. Called after its
// credentials are created, updated, or deleted.
func (r *Resolver) Invalidate(ctx context.Context, tenantID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, tenantID); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Failed to invalidate credential bundle")
	}
}

// merge overlays a tenant row on top of the default bundle. Only fields
// the row actually carries replace the defaults.
func (r *Resolver) merge(row *models.Tenant) *config.BRIConfig {
	bundle := r.defaults

	if row.ClientID != "" {
		bundle.ClientID = row.ClientID
	}
	if row.ClientSecret != "" {
		bundle.ClientSecret = row.ClientSecret
	}
	override(&bundle.BaseURL, row.BaseURL)
	if override(&bundle.PrivateKeyPEM, row.PrivateKey) {
		bundle.PrivateKeyPath = ""
	}
	if override(&bundle.PublicKeyPEM, row.PublicKey) {
		bundle.PublicKeyPath = ""
	}

	override(&bundle.QRIS.PartnerID, row.QRISPartnerID)
	override(&bundle.QRIS.ChannelID, row.QRISChannelID)
	override(&bundle.QRIS.MerchantID, row.QRISMerchantID)
	override(&bundle.QRIS.TerminalID, row.QRISTerminalID)
	if override(&bundle.QRIS.PublicKeyPEM, row.QRISPublicKey) {
		bundle.QRIS.PublicKeyPath = ""
	}

	override(&bundle.Briva.PartnerServiceID, row.BrivaPartnerServiceID)
	override(&bundle.Briva.PartnerID, row.BrivaPartnerID)
	override(&bundle.Briva.ChannelID, row.BrivaChannelID)
	if override(&bundle.Briva.PublicKeyPEM, row.BrivaPublicKey) {
		bundle.Briva.PublicKeyPath = ""
	}

	return &bundle
}

func override(dst *string, src *string) bool {
	if src != nil && *src != "" {
		*dst = *src
		return true
	}
	return false
}

package models

import "time"

// Tenant is one row of bri_clients: the credential record for a tenant's
// BRI integration. Key columns hold PEM strings; secrets are excluded
// from JSON responses.
type Tenant struct {
	ID       int64   `db:"id" json:"id"`
	Name     *string `db:"name" json:"name,omitempty"`
	TenantID string  `db:"tenant_id" json:"tenantId"`

	// Common SNAP credentials
	BaseURL      *string `db:"base_url" json:"baseUrl,omitempty"`
	ClientID     string  `db:"client_id" json:"clientId"`
	ClientSecret string  `db:"client_secret" json:"-"`
	PrivateKey   *string `db:"private_key" json:"-"`
	PublicKey    *string `db:"public_key" json:"-"`

	// QRIS product
	QRISPartnerID  *string `db:"qris_partner_id" json:"qrisPartnerId,omitempty"`
	QRISChannelID  *string `db:"qris_channel_id" json:"qrisChannelId,omitempty"`
	QRISMerchantID *string `db:"qris_merchant_id" json:"qrisMerchantId,omitempty"`
	QRISTerminalID *string `db:"qris_terminal_id" json:"qrisTerminalId,omitempty"`
	QRISPublicKey  *string `db:"qris_public_key" json:"-"`

	// BRIVA product
	BrivaPartnerServiceID *string `db:"briva_partner_service_id" json:"brivaPartnerServiceId,omitempty"`
	BrivaPartnerID        *string `db:"briva_partner_id" json:"brivaPartnerId,omitempty"`
	BrivaChannelID        *string `db:"briva_channel_id" json:"brivaChannelId,omitempty"`
	BrivaPublicKey        *string `db:"briva_public_key" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// AccessToken is one row of bri_access_tokens: an opaque bearer token
// issued to a counterpart through the inbound B2B token endpoint.
type AccessToken struct {
	ID          int64     `db:"id" json:"-"`
	ClientRowID int64     `db:"client_id" json:"-"`
	Token       string    `db:"token" json:"token"`
	ExpiresAt   time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}

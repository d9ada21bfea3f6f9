package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
)

// TenantRepository provides data access methods for the bri_clients table.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, tenant_id, base_url, client_id, client_secret, private_key, public_key,
	qris_partner_id, qris_channel_id, qris_merchant_id, qris_terminal_id, qris_public_key,
	briva_partner_service_id, briva_partner_id, briva_channel_id, briva_public_key,
	created_at, updated_at`

// getBy fetches a single tenant by a specific column using a prepared statement.
func (r *TenantRepository) getBy(where string, arg any) (*models.Tenant, error) {
	stmt, err := r.db.Preparex(`SELECT ` + tenantColumns + ` FROM bri_clients WHERE ` + where + ` LIMIT 1`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var t models.Tenant
	if err := stmt.Get(&t, arg); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByTenantID finds a tenant by its public tenant identifier.
func (r *TenantRepository) GetByTenantID(tenantID string) (*models.Tenant, error) {
	return r.getBy("tenant_id = $1", tenantID)
}

// GetByClientID finds a tenant by its BRI client id.
func (r *TenantRepository) GetByClientID(clientID string) (*models.Tenant, error) {
	return r.getBy("client_id = $1", clientID)
}

// GetByID finds a tenant by numeric id.
func (r *TenantRepository) GetByID(id int64) (*models.Tenant, error) {
	return r.getBy("id = $1", id)
}

// Create inserts a new tenant record.
func (r *TenantRepository) Create(t *models.Tenant) error {
	query := `INSERT INTO bri_clients (name, tenant_id, base_url, client_id, client_secret, private_key, public_key,
			qris_partner_id, qris_channel_id, qris_merchant_id, qris_terminal_id, qris_public_key,
			briva_partner_service_id, briva_partner_id, briva_channel_id, briva_public_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowx(query,
		t.Name, t.TenantID, t.BaseURL, t.ClientID, t.ClientSecret, t.PrivateKey, t.PublicKey,
		t.QRISPartnerID, t.QRISChannelID, t.QRISMerchantID, t.QRISTerminalID, t.QRISPublicKey,
		t.BrivaPartnerServiceID, t.BrivaPartnerID, t.BrivaChannelID, t.BrivaPublicKey,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update replaces the mutable fields of an existing tenant record.
func (r *TenantRepository) Update(t *models.Tenant) error {
	query := `UPDATE bri_clients
		SET name = $1, base_url = $2, client_id = $3, client_secret = $4, private_key = $5, public_key = $6,
			qris_partner_id = $7, qris_channel_id = $8, qris_merchant_id = $9, qris_terminal_id = $10, qris_public_key = $11,
			briva_partner_service_id = $12, briva_partner_id = $13, briva_channel_id = $14, briva_public_key = $15,
			updated_at = NOW()
		WHERE id = $16
		RETURNING updated_at`

	return r.db.QueryRowx(query,
		t.Name, t.BaseURL, t.ClientID, t.ClientSecret, t.PrivateKey, t.PublicKey,
		t.QRISPartnerID, t.QRISChannelID, t.QRISMerchantID, t.QRISTerminalID, t.QRISPublicKey,
		t.BrivaPartnerServiceID, t.BrivaPartnerID, t.BrivaChannelID, t.BrivaPublicKey,
		t.ID,
	).Scan(&t.UpdatedAt)
}

// List retrieves all tenants ordered by creation time.
func (r *TenantRepository) List() ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := r.db.Select(&tenants, `SELECT `+tenantColumns+` FROM bri_clients ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// Delete removes a tenant record.
func (r *TenantRepository) Delete(id int64) error {
	_, err := r.db.Exec(`DELETE FROM bri_clients WHERE id = $1`, id)
	return err
}

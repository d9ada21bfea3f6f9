package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
)

// AccessTokenRepository provides data access methods for the
// bri_access_tokens table. These are the opaque tokens issued to
// counterparts through the inbound B2B token endpoint.
type AccessTokenRepository struct {
	db *sqlx.DB
}

// NewAccessTokenRepository creates a new AccessTokenRepository.
func NewAccessTokenRepository(db *sqlx.DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// Create inserts a newly issued token.
func (r *AccessTokenRepository) Create(t *models.AccessToken) error {
	query := `INSERT INTO bri_access_tokens (client_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowx(query, t.ClientRowID, t.Token, t.ExpiresAt).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetActive finds a non-expired token and returns it together with the
// owning tenant. Expired tokens behave as if they never existed.
func (r *AccessTokenRepository) GetActive(token string) (*models.AccessToken, *models.Tenant, error) {
	row := struct {
		models.AccessToken
		Tenant models.Tenant `db:"tenant"`
	}{}

	query := `SELECT at.id, at.client_id, at.token, at.expires_at, at.created_at, at.updated_at,
			c.id AS "tenant.id", c.tenant_id AS "tenant.tenant_id", c.client_id AS "tenant.client_id",
			c.client_secret AS "tenant.client_secret", c.created_at AS "tenant.created_at",
			c.updated_at AS "tenant.updated_at"
		FROM bri_access_tokens at
		JOIN bri_clients c ON c.id = at.client_id
		WHERE at.token = $1 AND at.expires_at > NOW()
		LIMIT 1`

	if err := r.db.Get(&row, query, token); err != nil {
		return nil, nil, err
	}
	return &row.AccessToken, &row.Tenant, nil
}

// PurgeExpired deletes tokens that expired before the cutoff and returns
// how many rows were removed.
func (r *AccessTokenRepository) PurgeExpired(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM bri_access_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

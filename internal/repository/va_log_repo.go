package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
)

// VALogRepository provides data access methods for the
// bri_va_payment_logs ledger. Rows are keyed by (client_id, customer_no)
// and are created before the remote create call is issued.
type VALogRepository struct {
	db *sqlx.DB
}

// NewVALogRepository creates a new VALogRepository.
func NewVALogRepository(db *sqlx.DB) *VALogRepository {
	return &VALogRepository{db: db}
}

const vaLogColumns = `id, client_id, tenant_id, reff_id, customer_no, customer_name, bri_va_number,
	amount, status, external_id, expired_at, request_payload, response_payload, callback_payload,
	callback_external_id, paid_at, created_at, updated_at`

// Upsert writes the pre-call snapshot of a create attempt. A retry for
// the same (client_id, customer_no) overwrites the previous attempt
// instead of inserting a second row.
func (r *VALogRepository) Upsert(log *models.VAPaymentLog) error {
	query := `INSERT INTO bri_va_payment_logs
			(client_id, tenant_id, reff_id, customer_no, customer_name, bri_va_number, amount,
			 status, external_id, expired_at, request_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (client_id, customer_no) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			reff_id = EXCLUDED.reff_id,
			customer_name = EXCLUDED.customer_name,
			bri_va_number = EXCLUDED.bri_va_number,
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			external_id = EXCLUDED.external_id,
			expired_at = EXCLUDED.expired_at,
			request_payload = EXCLUDED.request_payload,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowx(query,
		log.ClientID, log.TenantID, log.ReffID, log.CustomerNo, log.CustomerName, log.VANumber,
		log.Amount, log.Status, log.ExternalID, log.ExpiredAt, log.RequestPayload,
	).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
}

// getBy fetches a single ledger row by a specific condition.
func (r *VALogRepository) getBy(where string, args ...any) (*models.VAPaymentLog, error) {
	stmt, err := r.db.Preparex(`SELECT ` + vaLogColumns + ` FROM bri_va_payment_logs WHERE ` + where + ` LIMIT 1`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var log models.VAPaymentLog
	if err := stmt.Get(&log, args...); err != nil {
		return nil, err
	}
	return &log, nil
}

// GetByCustomerNo finds a row by its natural key.
func (r *VALogRepository) GetByCustomerNo(clientID, customerNo string) (*models.VAPaymentLog, error) {
	return r.getBy("client_id = $1 AND customer_no = $2", clientID, customerNo)
}

// GetByReffID finds the most recent row carrying the given merchant
// reference.
func (r *VALogRepository) GetByReffID(clientID, reffID string) (*models.VAPaymentLog, error) {
	return r.getBy("client_id = $1 AND reff_id = $2 ORDER BY id DESC", clientID, reffID)
}

// GetByVANumber finds a row by the full virtual account number. The
// comparison ignores whitespace because BRI pads partnerServiceId with
// leading spaces and notifications arrive padded or stripped depending
// on the channel.
func (r *VALogRepository) GetByVANumber(clientID, vaNumber string) (*models.VAPaymentLog, error) {
	return r.getBy(
		"client_id = $1 AND REPLACE(bri_va_number, ' ', '') = REPLACE($2, ' ', '')",
		clientID, vaNumber,
	)
}

// FirstPendingCustomerNo returns the customer number of the oldest row
// still in PENDING for the client, or sql.ErrNoRows when none exists.
// Pending rows mean a create attempt never completed and their number
// is safe to reuse.
func (r *VALogRepository) FirstPendingCustomerNo(clientID string) (string, error) {
	var customerNo string
	err := r.db.Get(&customerNo, `
		SELECT customer_no FROM bri_va_payment_logs
		WHERE client_id = $1 AND status = $2
		ORDER BY id ASC
		LIMIT 1
	`, clientID, models.StatusPending)
	if err != nil {
		return "", err
	}
	return customerNo, nil
}

// MaxCustomerNo returns the highest customer number ever allocated for
// the client, or 0 when the ledger is empty. customer_no is stored
// zero-padded so a numeric cast is safe.
func (r *VALogRepository) MaxCustomerNo(clientID string) (int64, error) {
	var max sql.NullInt64
	err := r.db.Get(&max, `
		SELECT MAX(customer_no::BIGINT) FROM bri_va_payment_logs WHERE client_id = $1
	`, clientID)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// SetResponse records the bank's reply to an outbound call and the
// status it implies.
func (r *VALogRepository) SetResponse(id int64, status models.PaymentStatus, response json.RawMessage) error {
	_, err := r.db.Exec(`
		UPDATE bri_va_payment_logs
		SET status = $1, response_payload = $2, updated_at = NOW()
		WHERE id = $3
	`, status, response, id)
	return err
}

// SaveCallback stores an inbound notification snapshot without touching
// the status. Invalidly signed callbacks are still recorded for audit.
func (r *VALogRepository) SaveCallback(id int64, callback json.RawMessage, externalID *string) error {
	_, err := r.db.Exec(`
		UPDATE bri_va_payment_logs
		SET callback_payload = $1,
			callback_external_id = COALESCE($2, callback_external_id),
			updated_at = NOW()
		WHERE id = $3
	`, callback, externalID, id)
	return err
}

// AdvanceStatus moves a row to a new lifecycle status. paidAt is only
// written when non-nil.
func (r *VALogRepository) AdvanceStatus(id int64, status models.PaymentStatus, paidAt *time.Time) error {
	_, err := r.db.Exec(`
		UPDATE bri_va_payment_logs
		SET status = $1, paid_at = COALESCE($2, paid_at), updated_at = NOW()
		WHERE id = $3
	`, status, paidAt, id)
	return err
}

// UpdateAmountAndExpiry refreshes the row after a successful update call.
func (r *VALogRepository) UpdateAmountAndExpiry(id int64, amount string, expiredAt *time.Time, request, response json.RawMessage) error {
	_, err := r.db.Exec(`
		UPDATE bri_va_payment_logs
		SET amount = $1, expired_at = $2, request_payload = $3, response_payload = $4, updated_at = NOW()
		WHERE id = $5
	`, amount, expiredAt, request, response, id)
	return err
}

// ExpireOverdue marks WAITING_PAYMENT rows past their expiry as EXPIRED
// and returns how many rows changed.
func (r *VALogRepository) ExpireOverdue(now time.Time) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE bri_va_payment_logs
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expired_at IS NOT NULL AND expired_at < $3
	`, models.StatusExpired, models.StatusWaitingPayment, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByDateRange returns ledger rows created inside [from, to) for
// reporting.
func (r *VALogRepository) ListByDateRange(clientID string, from, to time.Time) ([]*models.VAPaymentLog, error) {
	var logs []*models.VAPaymentLog
	err := r.db.Select(&logs, `
		SELECT `+vaLogColumns+` FROM bri_va_payment_logs
		WHERE client_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY id ASC
	`, clientID, from, to)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

package repository

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
)

// QRISLogRepository provides data access methods for the
// bri_qris_payment_logs ledger. Rows are keyed by (client_id, reff_id).
type QRISLogRepository struct {
	db *sqlx.DB
}

// NewQRISLogRepository creates a new QRISLogRepository.
func NewQRISLogRepository(db *sqlx.DB) *QRISLogRepository {
	return &QRISLogRepository{db: db}
}

const qrisLogColumns = `id, client_id, tenant_id, reff_id, qris_invoice_no, qris_content, amount,
	status, bri_reference_no, request_payload, response_payload, callback_payload,
	callback_external_id, expired_at, paid_at, created_at, updated_at`

// Upsert writes the pre-call snapshot of a generate attempt. Retrying
// the same (client_id, reff_id) overwrites the previous attempt.
func (r *QRISLogRepository) Upsert(log *models.QRISPaymentLog) error {
	query := `INSERT INTO bri_qris_payment_logs
			(client_id, tenant_id, reff_id, qris_invoice_no, amount, status, expired_at, request_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (client_id, reff_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			qris_invoice_no = EXCLUDED.qris_invoice_no,
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			expired_at = EXCLUDED.expired_at,
			request_payload = EXCLUDED.request_payload,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowx(query,
		log.ClientID, log.TenantID, log.ReffID, log.InvoiceNo, log.Amount,
		log.Status, log.ExpiredAt, log.RequestPayload,
	).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
}

// getBy fetches a single ledger row by a specific condition.
func (r *QRISLogRepository) getBy(where string, args ...any) (*models.QRISPaymentLog, error) {
	stmt, err := r.db.Preparex(`SELECT ` + qrisLogColumns + ` FROM bri_qris_payment_logs WHERE ` + where + ` LIMIT 1`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var log models.QRISPaymentLog
	if err := stmt.Get(&log, args...); err != nil {
		return nil, err
	}
	return &log, nil
}

// GetByReffID finds a row by its natural key.
func (r *QRISLogRepository) GetByReffID(clientID, reffID string) (*models.QRISPaymentLog, error) {
	return r.getBy("client_id = $1 AND reff_id = $2", clientID, reffID)
}

// GetByInvoiceNo finds a row by the invoice number sent to BRI as
// partnerReferenceNo.
func (r *QRISLogRepository) GetByInvoiceNo(clientID, invoiceNo string) (*models.QRISPaymentLog, error) {
	return r.getBy("client_id = $1 AND qris_invoice_no = $2", clientID, invoiceNo)
}

// SetResponse records the bank's reply to a generate call, along with
// the QR content and reference number it carried.
func (r *QRISLogRepository) SetResponse(id int64, status models.PaymentStatus, qrContent, referenceNo *string, response json.RawMessage) error {
	_, err := r.db.Exec(`
		UPDATE bri_qris_payment_logs
		SET status = $1, qris_content = COALESCE($2, qris_content),
			bri_reference_no = COALESCE($3, bri_reference_no),
			response_payload = $4, updated_at = NOW()
		WHERE id = $5
	`, status, qrContent, referenceNo, response, id)
	return err
}

// SaveCallback stores an inbound notification snapshot without touching
// the status. Invalidly signed callbacks are still recorded for audit.
func (r *QRISLogRepository) SaveCallback(id int64, callback json.RawMessage, externalID *string) error {
	_, err := r.db.Exec(`
		UPDATE bri_qris_payment_logs
		SET callback_payload = $1,
			callback_external_id = COALESCE($2, callback_external_id),
			updated_at = NOW()
		WHERE id = $3
	`, callback, externalID, id)
	return err
}

// AdvanceStatus moves a row to a new lifecycle status. paidAt is only
// written when non-nil.
func (r *QRISLogRepository) AdvanceStatus(id int64, status models.PaymentStatus, paidAt *time.Time) error {
	_, err := r.db.Exec(`
		UPDATE bri_qris_payment_logs
		SET status = $1, paid_at = COALESCE($2, paid_at), updated_at = NOW()
		WHERE id = $3
	`, status, paidAt, id)
	return err
}

// ExpireOverdue marks WAITING_PAYMENT rows past their expiry as EXPIRED
// and returns how many rows changed.
func (r *QRISLogRepository) ExpireOverdue(now time.Time) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE bri_qris_payment_logs
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expired_at IS NOT NULL AND expired_at < $3
	`, models.StatusExpired, models.StatusWaitingPayment, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

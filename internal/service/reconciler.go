package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// VALedger is the subset of the VA log repository the reconciler needs.
type VALedger interface {
	Upsert(log *models.VAPaymentLog) error
	GetByCustomerNo(clientID, customerNo string) (*models.VAPaymentLog, error)
	GetByVANumber(clientID, vaNumber string) (*models.VAPaymentLog, error)
	SetResponse(id int64, status models.PaymentStatus, response json.RawMessage) error
	SaveCallback(id int64, callback json.RawMessage, externalID *string) error
	AdvanceStatus(id int64, status models.PaymentStatus, paidAt *time.Time) error
}

// QRISLedger is the subset of the QRIS log repository the reconciler needs.
type QRISLedger interface {
	Upsert(log *models.QRISPaymentLog) error
	GetByInvoiceNo(clientID, invoiceNo string) (*models.QRISPaymentLog, error)
	SetResponse(id int64, status models.PaymentStatus, qrContent, referenceNo *string, response json.RawMessage) error
	SaveCallback(id int64, callback json.RawMessage, externalID *string) error
	AdvanceStatus(id int64, status models.PaymentStatus, paidAt *time.Time) error
}

// Reconciler owns the payment lifecycle. Every outbound call and every
// inbound notification flows through it so ledger rows only ever move
// along PENDING -> WAITING_PAYMENT -> {PAID, EXPIRED, FAILED, CANCELED}.
type Reconciler struct {
	vaLogs   VALedger
	qrisLogs QRISLedger
}

// NewReconciler creates a Reconciler over the two ledgers.
func NewReconciler(vaLogs VALedger, qrisLogs QRISLedger) *Reconciler {
	return &Reconciler{vaLogs: vaLogs, qrisLogs: qrisLogs}
}

// transitionAllowed reports whether a row may move from one status to
// another. Terminal rows never move; PAID requires the row to be live.
func transitionAllowed(from, to models.PaymentStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case models.StatusPending:
		return to == models.StatusWaitingPayment || to == models.StatusFailed || to == models.StatusCanceled
	case models.StatusWaitingPayment:
		return to == models.StatusPaid || to == models.StatusExpired ||
			to == models.StatusFailed || to == models.StatusCanceled
	}
	return false
}

// BeginVACreate writes the pre-call PENDING snapshot. If the row for
// (client, customerNo) already exists the attempt overwrites it, which
// is exactly the reuse path for abandoned creates.
func (r *Reconciler) BeginVACreate(entry *models.VAPaymentLog) error {
	entry.Status = models.StatusPending
	return r.vaLogs.Upsert(entry)
}

// CompleteVACreate records the bank's reply to a create call and moves
// the row forward. An accepted create waits for payment and a duplicate
// is FAILED; any other code leaves the row PENDING so its number stays
// reusable on the next attempt.
func (r *Reconciler) CompleteVACreate(id int64, responseCode string, response json.RawMessage) (models.PaymentStatus, error) {
	var status models.PaymentStatus
	switch responseCode {
	case snap.RCVACreated:
		status = models.StatusWaitingPayment
	case snap.RCVADuplicate:
		status = models.StatusFailed
	default:
		status = models.StatusPending
	}
	if err := r.vaLogs.SetResponse(id, status, response); err != nil {
		return "", err
	}
	return status, nil
}

// CancelVA marks a row CANCELED after a successful delete-va call.
func (r *Reconciler) CancelVA(entry *models.VAPaymentLog, response json.RawMessage) error {
	if !transitionAllowed(entry.Status, models.StatusCanceled) {
		return fmt.Errorf("cannot cancel %s row %d", entry.Status, entry.ID)
	}
	return r.vaLogs.SetResponse(entry.ID, models.StatusCanceled, response)
}

// ApplyVAPayment handles an inbound BRIVA payment notification for the
// given VA number. The callback snapshot is stored whether or not the
// signature checked out; the status only advances on a valid signature.
// It returns the matched row, or nil when no row carries that number.
// externalID is the sender's X-EXTERNAL-ID, kept with the snapshot.
func (r *Reconciler) ApplyVAPayment(clientID, vaNumber string, callback json.RawMessage, externalID *string, signatureValid bool, paidAt time.Time) (*models.VAPaymentLog, error) {
	entry, err := r.vaLogs.GetByVANumber(clientID, vaNumber)
	if err != nil {
		return nil, err
	}

	if err := r.vaLogs.SaveCallback(entry.ID, callback, externalID); err != nil {
		return entry, err
	}
	if !signatureValid {
		log.Warn().
			Str("client_id", clientID).
			Str("va_number", vaNumber).
			Msg("Payment notification stored with invalid signature, status untouched")
		return entry, nil
	}

	if !transitionAllowed(entry.Status, models.StatusPaid) {
		log.Warn().
			Str("client_id", clientID).
			Str("va_number", vaNumber).
			Str("status", string(entry.Status)).
			Msg("Payment notification for non-payable row, status untouched")
		return entry, nil
	}

	if err := r.vaLogs.AdvanceStatus(entry.ID, models.StatusPaid, &paidAt); err != nil {
		return entry, err
	}
	entry.Status = models.StatusPaid
	entry.PaidAt = &paidAt
	return entry, nil
}

// BeginQRGenerate writes the pre-call PENDING snapshot for a QR
// generation attempt, keyed by (client, reff).
func (r *Reconciler) BeginQRGenerate(entry *models.QRISPaymentLog) error {
	entry.Status = models.StatusPending
	return r.qrisLogs.Upsert(entry)
}

// CompleteQRGenerate records the bank's reply to a generate call.
func (r *Reconciler) CompleteQRGenerate(id int64, responseCode string, qrContent, referenceNo *string, response json.RawMessage) (models.PaymentStatus, error) {
	status := models.StatusFailed
	if responseCode == snap.RCQRGenerated {
		status = models.StatusWaitingPayment
	}
	if err := r.qrisLogs.SetResponse(id, status, qrContent, referenceNo, response); err != nil {
		return "", err
	}
	return status, nil
}

// ApplyQRPayment handles an inbound QRIS payment notification matched by
// the invoice number BRI echoes back as originalPartnerReferenceNo.
// Same audit rule as VA: snapshot always, status only on valid signature.
func (r *Reconciler) ApplyQRPayment(clientID, invoiceNo string, callback json.RawMessage, externalID *string, signatureValid bool, paidAt time.Time) (*models.QRISPaymentLog, error) {
	entry, err := r.qrisLogs.GetByInvoiceNo(clientID, invoiceNo)
	if err != nil {
		return nil, err
	}

	if err := r.qrisLogs.SaveCallback(entry.ID, callback, externalID); err != nil {
		return entry, err
	}
	if !signatureValid {
		log.Warn().
			Str("client_id", clientID).
			Str("invoice_no", invoiceNo).
			Msg("QR payment notification stored with invalid signature, status untouched")
		return entry, nil
	}

	if !transitionAllowed(entry.Status, models.StatusPaid) {
		log.Warn().
			Str("client_id", clientID).
			Str("invoice_no", invoiceNo).
			Str("status", string(entry.Status)).
			Msg("QR payment notification for non-payable row, status untouched")
		return entry, nil
	}

	if err := r.qrisLogs.AdvanceStatus(entry.ID, models.StatusPaid, &paidAt); err != nil {
		return entry, err
	}
	entry.Status = models.StatusPaid
	entry.PaidAt = &paidAt
	return entry, nil
}

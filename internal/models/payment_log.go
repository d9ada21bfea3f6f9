package models

import (
	"encoding/json"
	"time"
)

// PaymentStatus is the shared lifecycle enum for VA and QRIS ledger rows.
type PaymentStatus string

const (
	StatusPending        PaymentStatus = "PENDING"
	StatusWaitingPayment PaymentStatus = "WAITING_PAYMENT"
	StatusPaid           PaymentStatus = "PAID"
	StatusExpired        PaymentStatus = "EXPIRED"
	StatusFailed         PaymentStatus = "FAILED"
	StatusCanceled       PaymentStatus = "CANCELED"
)

// Valid reports whether s is in the recognized closed set. Only these
// values may ever be written to a ledger row.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusWaitingPayment, StatusPaid, StatusExpired, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether s is a final snapshot.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusPaid, StatusExpired, StatusCanceled:
		return true
	}
	return false
}

// VAPaymentLog is one row of the virtual-account ledger, uniquely
// identified by (client_id, customer_no). Rows are created before the
// remote create call is issued and never deleted.
type VAPaymentLog struct {
	ID              int64           `db:"id" json:"-"`
	ClientID        string          `db:"client_id" json:"clientId"`
	TenantID        string          `db:"tenant_id" json:"tenantId,omitempty"`
	ReffID          string          `db:"reff_id" json:"reffId"`
	CustomerNo      string          `db:"customer_no" json:"customerNo"`
	CustomerName    *string         `db:"customer_name" json:"customerName,omitempty"`
	VANumber        string          `db:"bri_va_number" json:"briVaNumber"`
	Amount          string          `db:"amount" json:"amount"`
	Status          PaymentStatus   `db:"status" json:"status"`
	ExternalID      *string         `db:"external_id" json:"externalId,omitempty"`
	ExpiredAt       *time.Time      `db:"expired_at" json:"expiredAt,omitempty"`
	RequestPayload  json.RawMessage `db:"request_payload" json:"requestPayload,omitempty"`
	ResponsePayload json.RawMessage `db:"response_payload" json:"responsePayload,omitempty"`
	CallbackPayload json.RawMessage `db:"callback_payload" json:"callbackPayload,omitempty"`

	// CallbackExternalID is the X-EXTERNAL-ID the notification sender
	// supplied, recorded alongside the snapshot.
	CallbackExternalID *string `db:"callback_external_id" json:"callbackExternalId,omitempty"`

	PaidAt    *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"-"`
}

// QRISPaymentLog is one row of the QRIS ledger, uniquely identified by
// (client_id, reff_id).
type QRISPaymentLog struct {
	ID              int64           `db:"id" json:"-"`
	ClientID        string          `db:"client_id" json:"clientId"`
	TenantID        string          `db:"tenant_id" json:"tenantId,omitempty"`
	ReffID          string          `db:"reff_id" json:"reffId"`
	InvoiceNo       *string         `db:"qris_invoice_no" json:"qrisInvoiceNo,omitempty"`
	QRContent       *string         `db:"qris_content" json:"qrisContent,omitempty"`
	Amount          string          `db:"amount" json:"amount"`
	Status          PaymentStatus   `db:"status" json:"status"`
	BRIReferenceNo  *string         `db:"bri_reference_no" json:"briReferenceNo,omitempty"`
	RequestPayload  json.RawMessage `db:"request_payload" json:"requestPayload,omitempty"`
	ResponsePayload json.RawMessage `db:"response_payload" json:"responsePayload,omitempty"`
	CallbackPayload json.RawMessage `db:"callback_payload" json:"callbackPayload,omitempty"`

	CallbackExternalID *string `db:"callback_external_id" json:"callbackExternalId,omitempty"`

	ExpiredAt *time.Time `db:"expired_at" json:"expiredAt,omitempty"`
	PaidAt    *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"-"`
}

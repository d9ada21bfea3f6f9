package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/config"
	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// NotificationService verifies inbound BRI callbacks and reconciles the
// ledgers. Verification never blocks persistence: the payload snapshot
// is stored either way, and only a valid signature advances the status.
type NotificationService struct {
	resolver   *Resolver
	reconciler *Reconciler
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(resolver *Resolver, reconciler *Reconciler) *NotificationService {
	return &NotificationService{resolver: resolver, reconciler: reconciler}
}

// BrivaNotification carries everything needed to verify and apply one
// inbound BRIVA payment callback. Both the SNAP and the legacy callback
// route feed this struct; only their acknowledgement formats differ.
type BrivaNotification struct {
	TenantID string

	Signature     string
	AbsoluteURL   string
	Path          string
	Verb          string
	Authorization string
	Timestamp     string
	ExternalID    string
	Body          json.RawMessage

	VANumber string
	PaidAt   time.Time
}

// HandleBrivaPayment verifies the HMAC of a BRIVA payment callback and
// applies it to the ledger. The returned flag tells the handler which
// acknowledgement to send.
func (s *NotificationService) HandleBrivaPayment(ctx context.Context, n BrivaNotification) (bool, *models.VAPaymentLog, error) {
	bundle := s.resolver.Resolve(ctx, n.TenantID)
	signer := signerFor(bundle)

	valid := signer.VerifyBusiness(n.Signature, n.AbsoluteURL, n.Path, n.Verb, n.Authorization, n.Timestamp, n.Body)
	if !valid {
		log.Warn().
			Str("tenant_id", n.TenantID).
			Str("va_number", n.VANumber).
			Msg("BRIVA callback signature mismatch")
	}

	entry, err := s.reconciler.ApplyVAPayment(bundle.ClientID, n.VANumber, n.Body, optional(n.ExternalID), valid, n.PaidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return valid, nil, utils.ErrLogNotFound
		}
		return valid, nil, err
	}
	return valid, entry, nil
}

// QRISNotification carries an inbound QRIS payment callback.
type QRISNotification struct {
	TenantID string

	ClientKey  string
	Timestamp  string
	Signature  string
	ExternalID string
	Body       json.RawMessage

	InvoiceNo string
	PaidAt    time.Time
}

// HandleQRISPayment verifies the asymmetric signature of a QRIS payment
// callback and applies it. QRIS callbacks are always acknowledged with
// success, so the returned flag is informational: an invalid signature
// only means the status did not advance.
func (s *NotificationService) HandleQRISPayment(ctx context.Context, n QRISNotification) (bool, *models.QRISPaymentLog, error) {
	bundle := s.resolver.Resolve(ctx, n.TenantID)
	verifier := qrisVerifier(bundle)

	// The signature is checked against the configured client id, not the
	// caller-supplied partner header, so a spoofed X-PARTNER-ID fails.
	valid := n.ClientKey == bundle.ClientID &&
		verifier.VerifyToken(bundle.ClientID, n.Timestamp, n.Signature)
	if !valid {
		log.Warn().
			Str("tenant_id", n.TenantID).
			Str("partner_id", n.ClientKey).
			Str("invoice_no", n.InvoiceNo).
			Msg("QRIS callback signature mismatch")
	}

	entry, err := s.reconciler.ApplyQRPayment(bundle.ClientID, n.InvoiceNo, n.Body, optional(n.ExternalID), valid, n.PaidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return valid, nil, utils.ErrLogNotFound
		}
		return valid, nil, err
	}
	return valid, entry, nil
}

// optional maps an empty string to nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// qrisVerifier builds a verification-only signer over the QRIS callback
// public key, falling back to the bundle's common key when the product
// has no dedicated one.
func qrisVerifier(bundle *config.BRIConfig) *snap.Signer {
	pubPEM, pubPath := bundle.QRIS.PublicKeyPEM, bundle.QRIS.PublicKeyPath
	if pubPEM == "" && pubPath == "" {
		pubPEM, pubPath = bundle.PublicKeyPEM, bundle.PublicKeyPath
	}
	return snap.NewSigner(snap.KeyConfig{
		ClientID:      bundle.ClientID,
		PublicKeyPEM:  pubPEM,
		PublicKeyPath: pubPath,
	})
}

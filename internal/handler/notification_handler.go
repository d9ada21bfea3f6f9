package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/service"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// NotificationHandler receives BRI's inbound callbacks. Three routes
// share the verification logic but differ in acknowledgement format:
// the SNAP BRIVA route rejects bad signatures, the legacy BRIVA route
// reports them in-band, and the QRIS route always acknowledges.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// notifyTenantID reads the tenant scope from the route. Callback URLs
// registered at BRI embed the tenant as a path segment; the bare routes
// serve single-tenant deployments.
func notifyTenantID(c *gin.Context) string {
	return c.Param("tenantId")
}

// notifyExternalID reads the sender's external id. BRI spells the
// header X-EXTRENAL-ID on some channels, so the aliases are tried in
// order and the first non-empty value wins.
func notifyExternalID(c *gin.Context) string {
	for _, name := range []string{"X-EXTERNAL-ID", "X-EXTRENAL-ID"} {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}

// absoluteURL reconstructs the URL BRI signed. Deployments behind a
// proxy surface the original scheme via X-Forwarded-Proto.
func absoluteURL(c *gin.Context) string {
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}

// brivaNotifyPayload covers both the SNAP and the legacy callback body
// shapes. Legacy senders address the account as brivaNo + custCode.
type brivaNotifyPayload struct {
	PartnerServiceID string      `json:"partnerServiceId"`
	CustomerNo       string      `json:"customerNo"`
	VirtualAccountNo string      `json:"virtualAccountNo"`
	PaidAmount       snap.Amount `json:"paidAmount"`
	TrxDateTime      string      `json:"trxDateTime"`

	BrivaNo  string `json:"brivaNo"`
	CustCode string `json:"custCode"`
}

// vaNumber resolves the notified account number from whichever fields
// the sender used.
func (p *brivaNotifyPayload) vaNumber() string {
	if p.VirtualAccountNo != "" {
		return p.VirtualAccountNo
	}
	if p.PartnerServiceID != "" && p.CustomerNo != "" {
		return p.PartnerServiceID + p.CustomerNo
	}
	return p.BrivaNo + p.CustCode
}

func (p *brivaNotifyPayload) paidAt() time.Time {
	if t, err := snap.ParseTimestamp(p.TrxDateTime); err == nil {
		return t
	}
	return time.Now()
}

func (h *NotificationHandler) handleBriva(c *gin.Context, signature, timestamp string) (bool, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return false, err
	}
	var payload brivaNotifyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, err
	}

	valid, _, err := h.notifications.HandleBrivaPayment(c.Request.Context(), service.BrivaNotification{
		TenantID:      notifyTenantID(c),
		Signature:     signature,
		AbsoluteURL:   absoluteURL(c),
		Path:          c.Request.URL.Path,
		Verb:          c.Request.Method,
		Authorization: c.GetHeader("Authorization"),
		Timestamp:     timestamp,
		ExternalID:    notifyExternalID(c),
		Body:          body,
		VANumber:      payload.vaNumber(),
		PaidAt:        payload.paidAt(),
	})
	return valid, err
}

// BrivaSnapNotify handles POST /snap/v1.0/transfer-va/payment. A bad
// signature is rejected with the SNAP unauthorized code; an unknown
// account is still acknowledged so BRI stops retrying.
func (h *NotificationHandler) BrivaSnapNotify(c *gin.Context) {
	valid, err := h.handleBriva(c, c.GetHeader("X-SIGNATURE"), c.GetHeader("X-TIMESTAMP"))
	if err != nil && !errors.Is(err, utils.ErrLogNotFound) {
		log.Error().Err(err).Msg("BRIVA notification processing failed")
		snapReply(c, http.StatusInternalServerError, "5003400", "Internal Server Error", nil)
		return
	}
	if !valid {
		snapReply(c, http.StatusUnauthorized, snap.RCVANotifyUnauthorized, "Invalid Token (B2B)", nil)
		return
	}
	snapReply(c, http.StatusOK, snap.RCVANotifySuccess, "Successful", nil)
}

// BrivaLegacyNotify handles POST /bri/briva/notification, the pre-SNAP
// callback format. The outcome is reported in-band with HTTP 200.
func (h *NotificationHandler) BrivaLegacyNotify(c *gin.Context) {
	signature := c.GetHeader("BRI-Signature")
	if signature == "" {
		signature = c.GetHeader("X-SIGNATURE")
	}
	timestamp := c.GetHeader("BRI-Timestamp")
	if timestamp == "" {
		timestamp = c.GetHeader("X-TIMESTAMP")
	}

	valid, err := h.handleBriva(c, signature, timestamp)
	if err != nil && !errors.Is(err, utils.ErrLogNotFound) {
		log.Error().Err(err).Msg("Legacy BRIVA notification processing failed")
		c.JSON(http.StatusOK, gin.H{"responseCode": "0106", "responseDescription": "Internal Error"})
		return
	}
	if !valid {
		c.JSON(http.StatusOK, gin.H{"responseCode": snap.RCLegacyInvalidSignature, "responseDescription": "Invalid Signature"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"responseCode": snap.RCLegacySuccess, "responseDescription": "Success"})
}

// qrisNotifyPayload is the QRIS MPM payment callback body.
type qrisNotifyPayload struct {
	OriginalReferenceNo        string      `json:"originalReferenceNo"`
	OriginalPartnerReferenceNo string      `json:"originalPartnerReferenceNo"`
	Amount                     snap.Amount `json:"amount"`
	TrxDateTime                string      `json:"trxDateTime"`
}

// QRISNotify handles POST /snap/v1.1/qr/qr-mpm-notify. The route is
// audit-and-acknowledge: BRI always receives success, and the signature
// outcome only decides whether the ledger advances.
func (h *NotificationHandler) QRISNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		snapReply(c, http.StatusOK, snap.RCNotifySuccess, "Successful", nil)
		return
	}
	var payload qrisNotifyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		snapReply(c, http.StatusOK, snap.RCNotifySuccess, "Successful", nil)
		return
	}

	paidAt := time.Now()
	if t, err := snap.ParseTimestamp(payload.TrxDateTime); err == nil {
		paidAt = t
	}

	_, _, err = h.notifications.HandleQRISPayment(c.Request.Context(), service.QRISNotification{
		TenantID:   notifyTenantID(c),
		ClientKey:  c.GetHeader("X-PARTNER-ID"),
		Timestamp:  c.GetHeader("X-TIMESTAMP"),
		Signature:  c.GetHeader("X-SIGNATURE"),
		ExternalID: notifyExternalID(c),
		Body:       body,
		InvoiceNo:  payload.OriginalPartnerReferenceNo,
		PaidAt:     paidAt,
	})
	if err != nil && !errors.Is(err, utils.ErrLogNotFound) {
		log.Error().Err(err).Msg("QRIS notification processing failed")
	}

	snapReply(c, http.StatusOK, snap.RCNotifySuccess, "Successful", nil)
}

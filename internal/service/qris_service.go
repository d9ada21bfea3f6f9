package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/elgiborsolution/bri-payments-go/internal/config"
	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// qrLifetime is how long a generated dynamic QR stays payable before the
// expiry worker closes it.
const qrLifetime = 15 * time.Minute

// QRISStore is the ledger surface the QRIS service needs beyond what the
// reconciler owns.
type QRISStore interface {
	GetByReffID(clientID, reffID string) (*models.QRISPaymentLog, error)
	AdvanceStatus(id int64, status models.PaymentStatus, paidAt *time.Time) error
}

// QRISService implements the outbound QRIS MPM operations: dynamic QR
// generation, payment query, and local QR rendering.
type QRISService struct {
	resolver   *Resolver
	tokens     *TokenService
	reconciler *Reconciler
	store      QRISStore
	transports TransportFactory
}

// NewQRISService creates a QRISService. transports may be nil, which
// selects the real HTTP client.
func NewQRISService(resolver *Resolver, tokens *TokenService, reconciler *Reconciler, store QRISStore, transports TransportFactory) *QRISService {
	if transports == nil {
		transports = func(baseURL string, timeout time.Duration) Transport {
			return snap.NewClient(baseURL, timeout)
		}
	}
	return &QRISService{
		resolver:   resolver,
		tokens:     tokens,
		reconciler: reconciler,
		store:      store,
		transports: transports,
	}
}

// GenerateQRInput is a merchant-facing QR generation request.
type GenerateQRInput struct {
	TenantID string
	ReffID   string
	Amount   string
}

// QRResult pairs the ledger row with the bank's decoded reply.
type QRResult struct {
	Log             *models.QRISPaymentLog
	ResponseCode    string
	ResponseMessage string
	Body            json.RawMessage
}

// GenerateQR asks BRI for a dynamic MPM QR and tracks the attempt in the
// ledger. The invoice number sent as partnerReferenceNo is unique per
// attempt so a retried reference never collides at the bank.
func (s *QRISService) GenerateQR(ctx context.Context, in GenerateQRInput) (*QRResult, error) {
	bundle := s.resolver.Resolve(ctx, in.TenantID)

	amount, err := formatAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	invoiceNo := fmt.Sprintf("%s%d", in.ReffID, time.Now().Unix())
	expiredAt := time.Now().Add(qrLifetime)

	req := snap.GenerateQRRequest{
		PartnerReferenceNo: invoiceNo,
		Amount:             snap.Amount{Value: amount, Currency: "IDR"},
		MerchantID:         bundle.QRIS.MerchantID,
		TerminalID:         bundle.QRIS.TerminalID,
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	entry := &models.QRISPaymentLog{
		ClientID:       bundle.ClientID,
		TenantID:       in.TenantID,
		ReffID:         in.ReffID,
		InvoiceNo:      &invoiceNo,
		Amount:         amount,
		ExpiredAt:      &expiredAt,
		RequestPayload: body,
	}
	if err := s.reconciler.BeginQRGenerate(entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("client_id", bundle.ClientID).
		Str("reff_id", in.ReffID).
		Str("invoice_no", invoiceNo).
		Msg("Generating dynamic QR")

	resp, err := s.call(ctx, bundle, in.TenantID, http.MethodPost, snap.PathGenerateQR, body)
	if err != nil {
		return nil, err
	}

	var qrContent, referenceNo *string
	if v := resp.String("qrContent"); v != "" {
		qrContent = &v
	}
	if v := resp.String("referenceNo"); v != "" {
		referenceNo = &v
	}

	status, err := s.reconciler.CompleteQRGenerate(entry.ID, resp.Code(), qrContent, referenceNo, resp.Body)
	if err != nil {
		return nil, err
	}
	entry.Status = status
	entry.QRContent = qrContent
	entry.BRIReferenceNo = referenceNo
	entry.ResponsePayload = resp.Body

	return &QRResult{Log: entry, ResponseCode: resp.Code(), ResponseMessage: resp.Message(), Body: resp.Body}, nil
}

// InquiryPayment queries BRI for the payment state of a generated QR and
// reconciles the ledger when the bank reports it paid.
func (s *QRISService) InquiryPayment(ctx context.Context, tenantID, reffID string) (*QRResult, error) {
	bundle := s.resolver.Resolve(ctx, tenantID)

	entry, err := s.findByReff(bundle.ClientID, reffID)
	if err != nil {
		return nil, err
	}
	if entry.BRIReferenceNo == nil || *entry.BRIReferenceNo == "" {
		return nil, &utils.ValidationError{Field: "referenceNo", Reason: "QR was never generated for this reference"}
	}

	req := snap.QueryQRRequest{
		OriginalReferenceNo: *entry.BRIReferenceNo,
		ServiceCode:         "17",
		AdditionalInfo:      snap.QRQueryAdditional{TerminalID: bundle.QRIS.TerminalID},
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.call(ctx, bundle, tenantID, http.MethodPost, snap.PathQueryQR, body)
	if err != nil {
		return nil, err
	}

	// latestTransactionStatus "00" means settled.
	if resp.Code() == snap.RCQRQueryOK && resp.String("latestTransactionStatus") == "00" &&
		transitionAllowed(entry.Status, models.StatusPaid) {
		paidAt := time.Now()
		if err := s.store.AdvanceStatus(entry.ID, models.StatusPaid, &paidAt); err != nil {
			return nil, err
		}
		entry.Status = models.StatusPaid
		entry.PaidAt = &paidAt
	}

	return &QRResult{Log: entry, ResponseCode: resp.Code(), ResponseMessage: resp.Message(), Body: resp.Body}, nil
}

// GetPaymentLog returns the local ledger row for a merchant reference.
func (s *QRISService) GetPaymentLog(ctx context.Context, tenantID, reffID string) (*models.QRISPaymentLog, error) {
	bundle := s.resolver.Resolve(ctx, tenantID)
	return s.findByReff(bundle.ClientID, reffID)
}

// RenderQRPNG renders the stored QR content as a PNG image. size is the
// edge length in pixels.
func (s *QRISService) RenderQRPNG(ctx context.Context, tenantID, reffID string, size int) ([]byte, error) {
	if size <= 0 {
		size = 512
	}
	entry, err := s.GetPaymentLog(ctx, tenantID, reffID)
	if err != nil {
		return nil, err
	}
	if entry.QRContent == nil || *entry.QRContent == "" {
		return nil, utils.ErrLogNotFound
	}
	return qrcode.Encode(*entry.QRContent, qrcode.Medium, size)
}

func (s *QRISService) call(ctx context.Context, bundle *config.BRIConfig, tenantID, method, path string, body []byte) (*snap.Response, error) {
	transport := s.transports(bundle.BaseURL, bundle.QRIS.Timeout)
	signer := signerFor(bundle)

	resp, err := s.doSigned(ctx, transport, signer, bundle, tenantID, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		s.tokens.Invalidate(ctx, tenantID, ProductQRIS)
		return s.doSigned(ctx, transport, signer, bundle, tenantID, method, path, body)
	}
	return resp, nil
}

func (s *QRISService) doSigned(ctx context.Context, transport Transport, signer *snap.Signer, bundle *config.BRIConfig, tenantID, method, path string, body []byte) (*snap.Response, error) {
	token, err := s.tokens.GetToken(ctx, transport, signer, tenantID, ProductQRIS)
	if err != nil {
		return nil, err
	}
	timestamp := snap.ISO8601Now()
	headers := signer.BusinessHeaders(method, path, token, body, timestamp, bundle.QRIS.PartnerID, bundle.QRIS.ChannelID)
	return transport.DoAllowError(ctx, method, path, body, headers)
}

func (s *QRISService) findByReff(clientID, reffID string) (*models.QRISPaymentLog, error) {
	entry, err := s.store.GetByReffID(clientID, reffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrLogNotFound
		}
		return nil, err
	}
	return entry, nil
}

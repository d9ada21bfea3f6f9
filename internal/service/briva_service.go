package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/config"
	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// Token cache product keys.
const (
	ProductBriva = "briva"
	ProductQRIS  = "qris"
)

// BrivaStore is the ledger surface the BRIVA service needs beyond what
// the reconciler owns.
type BrivaStore interface {
	GetByReffID(clientID, reffID string) (*models.VAPaymentLog, error)
	GetByCustomerNo(clientID, customerNo string) (*models.VAPaymentLog, error)
	UpdateAmountAndExpiry(id int64, amount string, expiredAt *time.Time, request, response json.RawMessage) error
	ListByDateRange(clientID string, from, to time.Time) ([]*models.VAPaymentLog, error)
}

// TransportFactory builds a SNAP transport for one base URL. Tests
// substitute a fake; production wiring uses snap.NewClient.
type TransportFactory func(baseURL string, timeout time.Duration) Transport

// BrivaService implements the outbound BRIVA operations: create, update,
// status flip, inquiry, delete, status check and report, plus local
// ledger lookups.
type BrivaService struct {
	resolver   *Resolver
	tokens     *TokenService
	allocator  *Allocator
	reconciler *Reconciler
	store      BrivaStore
	transports TransportFactory
}

// NewBrivaService creates a BrivaService. transports may be nil, which
// selects the real HTTP client.
func NewBrivaService(resolver *Resolver, tokens *TokenService, allocator *Allocator, reconciler *Reconciler, store BrivaStore, transports TransportFactory) *BrivaService {
	if transports == nil {
		transports = func(baseURL string, timeout time.Duration) Transport {
			return snap.NewClient(baseURL, timeout)
		}
	}
	return &BrivaService{
		resolver:   resolver,
		tokens:     tokens,
		allocator:  allocator,
		reconciler: reconciler,
		store:      store,
		transports: transports,
	}
}

// CreateVAInput is a merchant-facing create request.
type CreateVAInput struct {
	TenantID     string
	ReffID       string
	CustomerName string
	Amount       string
	ExpiredAt    string // SNAP timestamp; empty means 24 hours from now
	Description  string
}

// VAResult pairs the ledger row with the bank's decoded reply.
type VAResult struct {
	Log             *models.VAPaymentLog
	ResponseCode    string
	ResponseMessage string
	Body            json.RawMessage
}

func signerFor(bundle *config.BRIConfig) *snap.Signer {
	return snap.NewSigner(snap.KeyConfig{
		ClientID:       bundle.ClientID,
		ClientSecret:   bundle.ClientSecret,
		PrivateKeyPEM:  bundle.PrivateKeyPEM,
		PrivateKeyPath: bundle.PrivateKeyPath,
		PublicKeyPEM:   bundle.PublicKeyPEM,
		PublicKeyPath:  bundle.PublicKeyPath,
	})
}

// CreateVA allocates a customer number, registers the virtual account at
// BRI and tracks the attempt in the ledger. When BRI reports the number
// as already registered, the sequence cursor is rebuilt and the call is
// retried once with a fresh number.
func (s *BrivaService) CreateVA(ctx context.Context, in CreateVAInput) (*VAResult, error) {
	bundle := s.resolver.Resolve(ctx, in.TenantID)

	amount, err := formatAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	expiredDate := in.ExpiredAt
	if expiredDate == "" {
		expiredDate = snap.ISO8601At(time.Now().Add(24 * time.Hour))
	}
	expiredAt, err := snap.ValidateExpiredDate(expiredDate, time.Now())
	if err != nil {
		return nil, &utils.ValidationError{Field: "expiredDate", Reason: err.Error()}
	}

	result, err := s.createOnce(ctx, bundle, in, amount, expiredDate, expiredAt)
	if err != nil {
		return nil, err
	}
	if result.ResponseCode == snap.RCVADuplicate {
		// The bank knows a registration the ledger does not. Drop the
		// cursor and retry exactly once with a freshly derived number.
		log.Warn().
			Str("client_id", bundle.ClientID).
			Str("reff_id", in.ReffID).
			Msg("VA number already registered at BRI, retrying with a fresh number")
		s.allocator.InvalidateCursor(ctx, bundle.ClientID)

		result, err = s.createOnce(ctx, bundle, in, amount, expiredDate, expiredAt)
		if err != nil {
			return nil, err
		}
	}

	if result.ResponseCode != snap.RCVACreated && result.ResponseCode != snap.RCVADuplicate {
		// Transient rejection: the row stays PENDING and the cursor is
		// dropped so the next allocation recomputes from the ledger.
		s.allocator.InvalidateCursor(ctx, bundle.ClientID)
	}
	return result, nil
}

func (s *BrivaService) createOnce(ctx context.Context, bundle *config.BRIConfig, in CreateVAInput, amount, expiredDate string, expiredAt time.Time) (*VAResult, error) {
	customerNo, reused, err := s.allocator.Next(ctx, bundle.ClientID)
	if err != nil {
		return nil, err
	}

	partnerServiceID := snap.PadField(bundle.Briva.PartnerServiceID)
	vaNumber := snap.PadField(snap.StripSpaces(partnerServiceID) + customerNo)

	req := snap.CreateVARequest{
		PartnerServiceID:   partnerServiceID,
		CustomerNo:         customerNo,
		VirtualAccountNo:   vaNumber,
		VirtualAccountName: in.CustomerName,
		TotalAmount:        snap.Amount{Value: amount, Currency: "IDR"},
		ExpiredDate:        expiredDate,
		TrxID:              in.ReffID,
		AdditionalInfo:     snap.AdditionalInfo{Description: in.Description},
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	transport := s.transports(bundle.BaseURL, bundle.Briva.Timeout)
	signer := signerFor(bundle)
	token, err := s.tokens.GetToken(ctx, transport, signer, in.TenantID, ProductBriva)
	if err != nil {
		return nil, err
	}

	timestamp := snap.ISO8601Now()
	headers := signer.BusinessHeaders(http.MethodPost, snap.PathCreateVA, token, body, timestamp, bundle.Briva.PartnerID, bundle.Briva.ChannelID)
	externalID := headers["X-EXTERNAL-ID"]

	entry := &models.VAPaymentLog{
		ClientID:       bundle.ClientID,
		TenantID:       in.TenantID,
		ReffID:         in.ReffID,
		CustomerNo:     customerNo,
		CustomerName:   &in.CustomerName,
		VANumber:       vaNumber,
		Amount:         amount,
		ExternalID:     &externalID,
		ExpiredAt:      &expiredAt,
		RequestPayload: body,
	}
	if err := s.reconciler.BeginVACreate(entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("client_id", bundle.ClientID).
		Str("reff_id", in.ReffID).
		Str("customer_no", customerNo).
		Bool("reused", reused).
		Msg("Creating virtual account")

	resp, err := transport.DoAllowError(ctx, http.MethodPost, snap.PathCreateVA, body, headers)
	if err != nil {
		return nil, err
	}

	status, err := s.reconciler.CompleteVACreate(entry.ID, resp.Code(), resp.Body)
	if err != nil {
		return nil, err
	}
	entry.Status = status
	entry.ResponsePayload = resp.Body

	return &VAResult{
		Log:             entry,
		ResponseCode:    resp.Code(),
		ResponseMessage: resp.Message(),
		Body:            resp.Body,
	}, nil
}

// UpdateVAInput is a merchant-facing update request, addressed by the
// original reference.
type UpdateVAInput struct {
	TenantID     string
	ReffID       string
	CustomerName string
	Amount       string
	ExpiredAt    string
	Description  string
}

// UpdateVA changes the amount, name or expiry of a registered virtual
// account.
func (s *BrivaService) UpdateVA(ctx context.Context, in UpdateVAInput) (*VAResult, error) {
	bundle := s.resolver.Resolve(ctx, in.TenantID)

	entry, err := s.findByReff(bundle.ClientID, in.ReffID)
	if err != nil {
		return nil, err
	}

	amount, err := formatAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	expiredDate := in.ExpiredAt
	if expiredDate == "" {
		expiredDate = snap.ISO8601At(time.Now().Add(24 * time.Hour))
	}
	expiredAt, err := snap.ValidateExpiredDate(expiredDate, time.Now())
	if err != nil {
		return nil, &utils.ValidationError{Field: "expiredDate", Reason: err.Error()}
	}

	name := in.CustomerName
	if name == "" && entry.CustomerName != nil {
		name = *entry.CustomerName
	}

	req := snap.UpdateVARequest{
		PartnerServiceID:   snap.PadField(bundle.Briva.PartnerServiceID),
		CustomerNo:         entry.CustomerNo,
		VirtualAccountNo:   snap.PadField(entry.VANumber),
		VirtualAccountName: name,
		TrxID:              in.ReffID,
		TotalAmount:        snap.Amount{Value: amount, Currency: "IDR"},
		ExpiredDate:        expiredDate,
		AdditionalInfo:     snap.AdditionalInfo{Description: in.Description},
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.call(ctx, bundle, in.TenantID, http.MethodPut, snap.PathUpdateVA, body)
	if err != nil {
		return nil, err
	}

	if resp.Code() == snap.RCVAUpdated {
		if err := s.store.UpdateAmountAndExpiry(entry.ID, amount, &expiredAt, body, resp.Body); err != nil {
			return nil, err
		}
		entry.Amount = amount
		entry.ExpiredAt = &expiredAt
	}

	return &VAResult{Log: entry, ResponseCode: resp.Code(), ResponseMessage: resp.Message(), Body: resp.Body}, nil
}

// UpdateVAStatus flips the paid flag of a virtual account ("Y" or "N").
func (s *BrivaService) UpdateVAStatus(ctx context.Context, tenantID, reffID, paidStatus string) (*VAResult, error) {
	if paidStatus != "Y" && paidStatus != "N" {
		return nil, &utils.ValidationError{Field: "paidStatus", Reason: `must be "Y" or "N"`}
	}
	bundle := s.resolver.Resolve(ctx, tenantID)

	entry, err := s.findByReff(bundle.ClientID, reffID)
	if err != nil {
		return nil, err
	}

	req := snap.UpdateVAStatusRequest{
		PartnerServiceID: snap.PadField(bundle.Briva.PartnerServiceID),
		CustomerNo:       entry.CustomerNo,
		VirtualAccountNo: snap.PadField(entry.VANumber),
		TrxID:            reffID,
		PaidStatus:       paidStatus,
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.call(ctx, bundle, tenantID, http.MethodPut, snap.PathUpdateVAStatus, body)
	if err != nil {
		return nil, err
	}
	return &VAResult{Log: entry, ResponseCode: resp.Code(), ResponseMessage: resp.Message(), Body: resp.Body}, nil
}

// InquiryVA asks BRI for the registered state of a virtual account.
func (s *BrivaService) InquiryVA(ctx context.Context, tenantID, reffID string) (*VAResult, error) {
	bundle := s.resolver.Resolve(ctx, tenantID)

	entry, err := s.findByReff(bundle.ClientID, reffID)
	if err != nil {
		return nil, err
	}

	req := snap.InquiryVARequest{
		PartnerServiceID: snap.PadField(bundle.Briva.PartnerServiceID),
		CustomerNo:       entry.CustomerNo,
		VirtualAccountNo: snap.PadField(entry.VANumber),
		TrxID:            reffID,
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.call(ctx, bundle, tenantID, http.MethodPost, snap.PathInquiryVA, body)
	if err != nil {
		return nil, err
	}
	return &VAResult{Log: entry, ResponseCode: resp.Code(), ResponseMessage: resp.Message(), Body: resp.Body}, nil
}

// DeleteVA removes a virtual account at BRI and cancels the ledger row.
func (s *BrivaService) DeleteVA(ctx context.Context, tenantID, reffID string) (*VAResult, error) {
	bundle := s.resolver.Resolve(ctx, tenantID)

	entry, err := s.findByReff(bundle.ClientID, reffID)
	if err != nil {
		return nil, err
	}

	req := snap.DeleteVARequest{
		PartnerServiceID: snap.PadField(bundle.Briva.PartnerServiceID),
		CustomerNo:       entry.CustomerNo,
		VirtualAccountNo: snap.PadField(entry.VANumber),
		TrxID:            reffID,
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.call(ctx, bundle, tenantID, http.MethodDelete, snap.PathDeleteVA, body)
	if err != nil {
		return nil, err
	}

	if resp.Code() == snap.RCVADeleted {
		if err := s.reconciler.CancelVA(entry, resp.Body); err != nil {
			log.Warn().Err(err).Str("reff_id", reffID).Msg("Delete accepted but ledger row could not be canceled")
		} else {
			entry.Status = models.StatusCanceled
		}
	}

	return &VAResult{Log: entry, ResponseCode: resp.Code(), ResponseMessage: resp.Message(), Body: resp.Body}, nil
}

// InquiryStatus asks BRI whether a virtual account has been paid.
func (s *BrivaService) InquiryStatus(ctx context.Context, tenantID, reffID string) (*VAResult, error) {
	bundle := s.resolver.Resolve(ctx, tenantID)

	entry, err := s.findByReff(bundle.ClientID, reffID)
	if err != nil {
		return nil, err
	}

	req := snap.VAStatusRequest{
		PartnerServiceID: snap.PadField(bundle.Briva.PartnerServiceID),
		CustomerNo:       entry.CustomerNo,
		VirtualAccountNo: snap.PadField(entry.VANumber),
		InquiryRequestID: fmt.Sprintf("%05d", rand.Intn(100000)),
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.call(ctx, bundle, tenantID, http.MethodPost, snap.PathVAStatus, body)
	if err != nil {
		return nil, err
	}
	return &VAResult{Log: entry, ResponseCode: resp.Code(), ResponseMessage: resp.Message(), Body: resp.Body}, nil
}

// GetReport fetches BRI's settlement report for one calendar date.
// startTime and endTime default to the whole day.
func (s *BrivaService) GetReport(ctx context.Context, tenantID, date, startTime, endTime string) (*VAResult, error) {
	if err := snap.ValidateReportDate(date); err != nil {
		return nil, &utils.ValidationError{Field: "startDate", Reason: err.Error()}
	}
	if startTime == "" {
		startTime = "00:00:00"
	}
	if endTime == "" {
		endTime = "23:59:59"
	}
	bundle := s.resolver.Resolve(ctx, tenantID)

	req := snap.VAReportRequest{
		PartnerServiceID: snap.PadField(bundle.Briva.PartnerServiceID),
		StartDate:        date,
		StartTime:        startTime,
		EndTime:          endTime,
	}
	body, err := snap.MinifyJSON(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.call(ctx, bundle, tenantID, http.MethodPost, snap.PathVAReport, body)
	if err != nil {
		return nil, err
	}
	return &VAResult{ResponseCode: resp.Code(), ResponseMessage: resp.Message(), Body: resp.Body}, nil
}

// GetPaymentLog returns the local ledger row for a merchant reference.
func (s *BrivaService) GetPaymentLog(ctx context.Context, tenantID, reffID string) (*models.VAPaymentLog, error) {
	bundle := s.resolver.Resolve(ctx, tenantID)
	return s.findByReff(bundle.ClientID, reffID)
}

// call signs and executes one business request, refreshing the token and
// retrying once when the bank rejects the cached token.
func (s *BrivaService) call(ctx context.Context, bundle *config.BRIConfig, tenantID, method, path string, body []byte) (*snap.Response, error) {
	transport := s.transports(bundle.BaseURL, bundle.Briva.Timeout)
	signer := signerFor(bundle)

	resp, err := s.doSigned(ctx, transport, signer, bundle, tenantID, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		s.tokens.Invalidate(ctx, tenantID, ProductBriva)
		return s.doSigned(ctx, transport, signer, bundle, tenantID, method, path, body)
	}
	return resp, nil
}

func (s *BrivaService) doSigned(ctx context.Context, transport Transport, signer *snap.Signer, bundle *config.BRIConfig, tenantID, method, path string, body []byte) (*snap.Response, error) {
	token, err := s.tokens.GetToken(ctx, transport, signer, tenantID, ProductBriva)
	if err != nil {
		return nil, err
	}
	timestamp := snap.ISO8601Now()
	headers := signer.BusinessHeaders(method, path, token, body, timestamp, bundle.Briva.PartnerID, bundle.Briva.ChannelID)
	return transport.DoAllowError(ctx, method, path, body, headers)
}

func (s *BrivaService) findByReff(clientID, reffID string) (*models.VAPaymentLog, error) {
	entry, err := s.store.GetByReffID(clientID, reffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrLogNotFound
		}
		return nil, err
	}
	return entry, nil
}

// formatAmount normalizes a merchant amount into the fixed two-decimal
// string SNAP requires, e.g. "10000" -> "10000.00".
func formatAmount(raw string) (string, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return "", &utils.ValidationError{Field: "amount", Reason: "must be a positive number"}
	}
	return strconv.FormatFloat(v, 'f', 2, 64), nil
}

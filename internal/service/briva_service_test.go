package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/elgiborsolution/bri-payments-go/internal/config"
	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// brivaLedger backs both the allocator and the BRIVA store with the same
// in-memory rows, so retries see the numbers earlier attempts burned.
type brivaLedger struct {
	*fakeVALedger
}

func newBrivaLedger() *brivaLedger {
	return &brivaLedger{fakeVALedger: newFakeVALedger()}
}

func (l *brivaLedger) FirstPendingCustomerNo(clientID string) (string, error) {
	var best *models.VAPaymentLog
	for _, r := range l.rows {
		if r.Status != models.StatusPending {
			continue
		}
		if best == nil || r.ID < best.ID {
			best = r
		}
	}
	if best == nil {
		return "", sql.ErrNoRows
	}
	return best.CustomerNo, nil
}

func (l *brivaLedger) MaxCustomerNo(clientID string) (int64, error) {
	var max int64
	for no := range l.rows {
		if n, err := strconv.ParseInt(no, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

func (l *brivaLedger) GetByReffID(clientID, reffID string) (*models.VAPaymentLog, error) {
	var best *models.VAPaymentLog
	for _, r := range l.rows {
		if r.ReffID != reffID {
			continue
		}
		if best == nil || r.ID > best.ID {
			best = r
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	cp := *best
	return &cp, nil
}

func (l *brivaLedger) UpdateAmountAndExpiry(id int64, amount string, expiredAt *time.Time, request, response json.RawMessage) error {
	r := l.byID(id)
	r.Amount = amount
	r.ExpiredAt = expiredAt
	r.RequestPayload = request
	r.ResponsePayload = response
	return nil
}

func (l *brivaLedger) ListByDateRange(clientID string, from, to time.Time) ([]*models.VAPaymentLog, error) {
	out := make([]*models.VAPaymentLog, 0, len(l.rows))
	for _, r := range l.rows {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// scriptedTransport serves the token handshake from a canned reply and
// pops business replies from a queue, recording every business call.
type scriptedTransport struct {
	mu      sync.Mutex
	queue   []*snap.Response
	methods []string
	paths   []string
	headers []map[string]string
	bodies  [][]byte
}

func (s *scriptedTransport) push(statusCode int, body string) {
	s.queue = append(s.queue, snap.NewResponse(statusCode, []byte(body)))
}

func (s *scriptedTransport) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*snap.Response, error) {
	if path == snap.PathAccessToken {
		return snap.NewResponse(http.StatusOK, []byte(tokenReplyJSON)), nil
	}
	return s.DoAllowError(ctx, method, path, body, headers)
}

func (s *scriptedTransport) DoAllowError(ctx context.Context, method, path string, body []byte, headers map[string]string) (*snap.Response, error) {
	if path == snap.PathAccessToken {
		return snap.NewResponse(http.StatusOK, []byte(tokenReplyJSON)), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods = append(s.methods, method)
	s.paths = append(s.paths, path)
	s.headers = append(s.headers, headers)
	s.bodies = append(s.bodies, body)
	if len(s.queue) == 0 {
		return snap.NewResponse(http.StatusOK, []byte(`{}`)), nil
	}
	resp := s.queue[0]
	s.queue = s.queue[1:]
	return resp, nil
}

func testBundle(t *testing.T) config.BRIConfig {
	t.Helper()
	kc := testKeyConfig(t)
	return config.BRIConfig{
		BaseURL:       "https://sandbox.partner.api.bri.co.id",
		ClientID:      kc.ClientID,
		ClientSecret:  kc.ClientSecret,
		PrivateKeyPEM: kc.PrivateKeyPEM,
		PublicKeyPEM:  kc.PublicKeyPEM,
		Briva: config.BrivaConfig{
			PartnerServiceID: "12345",
			PartnerID:        kc.ClientID,
			ChannelID:        "00001",
			Timeout:          30 * time.Second,
		},
	}
}

func newTestBrivaService(t *testing.T, transport *scriptedTransport) (*BrivaService, *brivaLedger, *fakeCursor) {
	t.Helper()
	ledger := newBrivaLedger()
	cursor := newFakeCursor()
	resolver := NewResolver(testBundle(t), nil, nil)
	tokens := NewTokenService(newFakeTokenCache())
	allocator := NewAllocator(ledger, cursor)
	reconciler := NewReconciler(ledger.fakeVALedger, newFakeQRISLedger())
	factory := func(baseURL string, timeout time.Duration) Transport { return transport }
	return NewBrivaService(resolver, tokens, allocator, reconciler, ledger, factory), ledger, cursor
}

const createdReplyJSON = `{"responseCode":"2002700","responseMessage":"Successful"}`

func TestCreateVARegistersAndWaitsForPayment(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, createdReplyJSON)
	svc, ledger, _ := newTestBrivaService(t, transport)

	result, err := svc.CreateVA(context.Background(), CreateVAInput{
		ReffID:       "INV-001",
		CustomerName: "Budi Santoso",
		Amount:       "150000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ResponseCode != snap.RCVACreated {
		t.Fatalf("responseCode = %s", result.ResponseCode)
	}
	if result.Log.Status != models.StatusWaitingPayment {
		t.Fatalf("status = %s, want WAITING_PAYMENT", result.Log.Status)
	}
	if result.Log.CustomerNo != "0000000000001" {
		t.Fatalf("customerNo = %q", result.Log.CustomerNo)
	}
	if want := "   " + "12345" + "0000000000001"; result.Log.VANumber != want {
		t.Fatalf("vaNumber = %q, want %q", result.Log.VANumber, want)
	}
	if result.Log.Amount != "150000.00" {
		t.Fatalf("amount = %q, want two-decimal form", result.Log.Amount)
	}

	if len(transport.paths) != 1 || transport.paths[0] != snap.PathCreateVA {
		t.Fatalf("business calls = %v", transport.paths)
	}
	hdrs := transport.headers[0]
	if hdrs["Authorization"] != "Bearer tok-abc123" {
		t.Fatalf("Authorization = %q", hdrs["Authorization"])
	}
	if hdrs["X-EXTERNAL-ID"] == "" || hdrs["X-EXTRENAL-ID"] != hdrs["X-EXTERNAL-ID"] {
		t.Fatalf("external id alias mismatch: %q vs %q", hdrs["X-EXTERNAL-ID"], hdrs["X-EXTRENAL-ID"])
	}
	if stored := ledger.rows["0000000000001"]; stored.ExternalID == nil || *stored.ExternalID != hdrs["X-EXTERNAL-ID"] {
		t.Fatal("external id was not persisted on the ledger row")
	}

	var sent snap.CreateVARequest
	if err := json.Unmarshal(transport.bodies[0], &sent); err != nil {
		t.Fatal(err)
	}
	if sent.PartnerServiceID != "   12345" {
		t.Fatalf("partnerServiceId = %q, want field-width padding", sent.PartnerServiceID)
	}
	if sent.TotalAmount.Value != "150000.00" || sent.TotalAmount.Currency != "IDR" {
		t.Fatalf("totalAmount = %+v", sent.TotalAmount)
	}
}

func TestCreateVADuplicateRetriesWithFreshNumber(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusConflict, `{"responseCode":"4042712","responseMessage":"Conflict"}`)
	transport.push(http.StatusOK, createdReplyJSON)
	svc, ledger, _ := newTestBrivaService(t, transport)

	result, err := svc.CreateVA(context.Background(), CreateVAInput{
		ReffID: "INV-002",
		Amount: "50000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(transport.paths) != 2 {
		t.Fatalf("create attempted %d times, want 2", len(transport.paths))
	}
	if result.ResponseCode != snap.RCVACreated {
		t.Fatalf("final responseCode = %s", result.ResponseCode)
	}
	if result.Log.CustomerNo != "0000000000002" {
		t.Fatalf("retry customerNo = %q, want a fresh number", result.Log.CustomerNo)
	}
	if burned := ledger.rows["0000000000001"]; burned == nil || burned.Status != models.StatusFailed {
		t.Fatalf("first attempt not recorded as FAILED: %+v", burned)
	}
	if ledger.rows["0000000000002"].Status != models.StatusWaitingPayment {
		t.Fatal("retry row is not WAITING_PAYMENT")
	}
}

func TestCreateVATransientErrorKeepsRowPendingAndDropsCursor(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, createdReplyJSON)
	transport.push(http.StatusInternalServerError, `{"responseCode":"5002700","responseMessage":"Internal Server Error"}`)
	svc, ledger, cursor := newTestBrivaService(t, transport)

	// Warm the cursor with a successful create first.
	if _, err := svc.CreateVA(context.Background(), CreateVAInput{ReffID: "INV-010", Amount: "10000"}); err != nil {
		t.Fatal(err)
	}

	result, err := svc.CreateVA(context.Background(), CreateVAInput{ReffID: "INV-011", Amount: "20000"})
	if err != nil {
		t.Fatal(err)
	}
	if result.ResponseCode != "5002700" {
		t.Fatalf("responseCode = %s", result.ResponseCode)
	}
	if result.Log.Status != models.StatusPending {
		t.Fatalf("status = %s, want PENDING so the number stays reusable", result.Log.Status)
	}
	if ledger.rows["0000000000002"].Status != models.StatusPending {
		t.Fatal("ledger row moved off PENDING after a transient rejection")
	}
	if len(transport.paths) != 2 {
		t.Fatalf("create attempted %d times, want no retry on a transient rejection", len(transport.paths))
	}

	cursor.mu.Lock()
	cached := len(cursor.vals)
	cursor.mu.Unlock()
	if cached != 0 {
		t.Fatal("sequence cursor still cached after a transient rejection")
	}

	// The next attempt picks the abandoned number back up.
	transport.push(http.StatusOK, createdReplyJSON)
	retry, err := svc.CreateVA(context.Background(), CreateVAInput{ReffID: "INV-011", Amount: "20000"})
	if err != nil {
		t.Fatal(err)
	}
	if retry.Log.CustomerNo != "0000000000002" {
		t.Fatalf("retry customerNo = %q, want the PENDING number reused", retry.Log.CustomerNo)
	}
	if retry.Log.Status != models.StatusWaitingPayment {
		t.Fatalf("retry status = %s, want WAITING_PAYMENT", retry.Log.Status)
	}
}

func TestCreateVAReusesAbandonedPendingNumber(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, createdReplyJSON)
	svc, ledger, _ := newTestBrivaService(t, transport)
	seedVA(t, ledger.fakeVALedger, "0000000000007", models.StatusPending)

	result, err := svc.CreateVA(context.Background(), CreateVAInput{
		ReffID: "INV-003",
		Amount: "25000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Log.CustomerNo != "0000000000007" {
		t.Fatalf("customerNo = %q, want the abandoned number reused", result.Log.CustomerNo)
	}
}

func TestCreateVARejectsBadAmount(t *testing.T) {
	svc, _, _ := newTestBrivaService(t, &scriptedTransport{})

	for _, amount := range []string{"", "abc", "-5", "0"} {
		_, err := svc.CreateVA(context.Background(), CreateVAInput{ReffID: "INV-004", Amount: amount})
		var ve *utils.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("amount %q: got %v, want ValidationError", amount, err)
		}
	}
}

func TestCreateVARejectsNearExpiry(t *testing.T) {
	svc, _, _ := newTestBrivaService(t, &scriptedTransport{})

	_, err := svc.CreateVA(context.Background(), CreateVAInput{
		ReffID:    "INV-005",
		Amount:    "10000",
		ExpiredAt: snap.ISO8601At(time.Now().Add(5 * time.Minute)),
	})
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError for near expiry", err)
	}
}

func TestDeleteVACancelsLedgerRow(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, createdReplyJSON)
	transport.push(http.StatusOK, `{"responseCode":"2003100","responseMessage":"Successful"}`)
	svc, ledger, _ := newTestBrivaService(t, transport)

	if _, err := svc.CreateVA(context.Background(), CreateVAInput{ReffID: "INV-006", Amount: "10000"}); err != nil {
		t.Fatal(err)
	}
	result, err := svc.DeleteVA(context.Background(), "", "INV-006")
	if err != nil {
		t.Fatal(err)
	}
	if result.ResponseCode != snap.RCVADeleted {
		t.Fatalf("responseCode = %s", result.ResponseCode)
	}
	if ledger.rows["0000000000001"].Status != models.StatusCanceled {
		t.Fatal("ledger row not CANCELED after delete")
	}
}

func TestGetPaymentLogUnknownReff(t *testing.T) {
	svc, _, _ := newTestBrivaService(t, &scriptedTransport{})

	_, err := svc.GetPaymentLog(context.Background(), "", "NO-SUCH-REFF")
	if err != utils.ErrLogNotFound {
		t.Fatalf("got %v, want ErrLogNotFound", err)
	}
}

func TestCallRetriesOnceOnExpiredToken(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, createdReplyJSON)
	transport.push(http.StatusUnauthorized, `{"responseCode":"4010001","responseMessage":"Unauthorized"}`)
	transport.push(http.StatusOK, `{"responseCode":"2003000","responseMessage":"Successful"}`)
	svc, _, _ := newTestBrivaService(t, transport)

	if _, err := svc.CreateVA(context.Background(), CreateVAInput{ReffID: "INV-007", Amount: "10000"}); err != nil {
		t.Fatal(err)
	}
	result, err := svc.InquiryVA(context.Background(), "", "INV-007")
	if err != nil {
		t.Fatal(err)
	}
	if result.ResponseCode != "2003000" {
		t.Fatalf("responseCode after retry = %s", result.ResponseCode)
	}
	// create + rejected inquiry + retried inquiry
	if len(transport.paths) != 3 {
		t.Fatalf("business calls = %v", transport.paths)
	}
}

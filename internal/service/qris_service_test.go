package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/elgiborsolution/bri-payments-go/internal/config"
	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

func newTestQRISService(t *testing.T, transport *scriptedTransport) (*QRISService, *fakeQRISLedger) {
	t.Helper()
	ledger := newFakeQRISLedger()
	bundle := testBundle(t)
	bundle.QRIS = config.QRISConfig{
		PartnerID:  bundle.ClientID,
		ChannelID:  "95221",
		MerchantID: "000001987205",
		TerminalID: "10049258",
		Timeout:    30 * time.Second,
	}
	resolver := NewResolver(bundle, nil, nil)
	tokens := NewTokenService(newFakeTokenCache())
	reconciler := NewReconciler(newFakeVALedger(), ledger)
	factory := func(baseURL string, timeout time.Duration) Transport { return transport }
	return NewQRISService(resolver, tokens, reconciler, ledger, factory), ledger
}

const qrGeneratedReplyJSON = `{"responseCode":"2004700","responseMessage":"Successful","referenceNo":"BRI-REF-9001","qrContent":"00020101021226660014ID.CO.BRI.WWW"}`

func TestGenerateQRStoresContentAndReference(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, qrGeneratedReplyJSON)
	svc, ledger := newTestQRISService(t, transport)

	result, err := svc.GenerateQR(context.Background(), GenerateQRInput{
		ReffID: "INV-100",
		Amount: "75000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ResponseCode != snap.RCQRGenerated {
		t.Fatalf("responseCode = %s", result.ResponseCode)
	}
	if result.Log.Status != models.StatusWaitingPayment {
		t.Fatalf("status = %s, want WAITING_PAYMENT", result.Log.Status)
	}
	if result.Log.QRContent == nil || *result.Log.QRContent == "" {
		t.Fatal("qrContent not stored")
	}
	if result.Log.BRIReferenceNo == nil || *result.Log.BRIReferenceNo != "BRI-REF-9001" {
		t.Fatal("referenceNo not stored")
	}
	if result.Log.InvoiceNo == nil || !strings.HasPrefix(*result.Log.InvoiceNo, "INV-100") || *result.Log.InvoiceNo == "INV-100" {
		t.Fatalf("invoiceNo = %v, want reference plus uniqueness suffix", result.Log.InvoiceNo)
	}

	var sent snap.GenerateQRRequest
	if err := json.Unmarshal(transport.bodies[0], &sent); err != nil {
		t.Fatal(err)
	}
	if sent.MerchantID != "000001987205" || sent.TerminalID != "10049258" {
		t.Fatalf("merchant fields = %+v", sent)
	}
	if sent.PartnerReferenceNo != *result.Log.InvoiceNo {
		t.Fatal("partnerReferenceNo does not match the stored invoice number")
	}
	if ledger.rows["INV-100"] == nil {
		t.Fatal("ledger row missing")
	}
}

func TestGenerateQRFailureMarksRowFailed(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusInternalServerError, `{"responseCode":"5004700","responseMessage":"General Error"}`)
	svc, ledger := newTestQRISService(t, transport)

	result, err := svc.GenerateQR(context.Background(), GenerateQRInput{ReffID: "INV-101", Amount: "10000"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Log.Status != models.StatusFailed {
		t.Fatalf("status = %s, want FAILED", result.Log.Status)
	}
	if ledger.rows["INV-101"].Status != models.StatusFailed {
		t.Fatal("ledger row not FAILED")
	}
}

func TestInquiryPaymentSettlesPaidQR(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, qrGeneratedReplyJSON)
	transport.push(http.StatusOK, `{"responseCode":"2005100","responseMessage":"Successful","latestTransactionStatus":"00"}`)
	svc, ledger := newTestQRISService(t, transport)

	if _, err := svc.GenerateQR(context.Background(), GenerateQRInput{ReffID: "INV-102", Amount: "10000"}); err != nil {
		t.Fatal(err)
	}
	result, err := svc.InquiryPayment(context.Background(), "", "INV-102")
	if err != nil {
		t.Fatal(err)
	}
	if result.Log.Status != models.StatusPaid || result.Log.PaidAt == nil {
		t.Fatalf("status = %s, want PAID with paid_at set", result.Log.Status)
	}
	if ledger.rows["INV-102"].Status != models.StatusPaid {
		t.Fatal("ledger row not PAID")
	}

	var sent snap.QueryQRRequest
	if err := json.Unmarshal(transport.bodies[1], &sent); err != nil {
		t.Fatal(err)
	}
	if sent.OriginalReferenceNo != "BRI-REF-9001" || sent.ServiceCode != "17" {
		t.Fatalf("query payload = %+v", sent)
	}
}

func TestInquiryPaymentUnsettledLeavesRowAlone(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, qrGeneratedReplyJSON)
	transport.push(http.StatusOK, `{"responseCode":"2005100","responseMessage":"Successful","latestTransactionStatus":"03"}`)
	svc, ledger := newTestQRISService(t, transport)

	if _, err := svc.GenerateQR(context.Background(), GenerateQRInput{ReffID: "INV-103", Amount: "10000"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.InquiryPayment(context.Background(), "", "INV-103"); err != nil {
		t.Fatal(err)
	}
	if ledger.rows["INV-103"].Status != models.StatusWaitingPayment {
		t.Fatalf("pending query advanced status to %s", ledger.rows["INV-103"].Status)
	}
}

func TestInquiryPaymentWithoutGeneratedQR(t *testing.T) {
	svc, ledger := newTestQRISService(t, &scriptedTransport{})
	if err := ledger.Upsert(&models.QRISPaymentLog{
		ClientID: "test-client",
		ReffID:   "INV-104",
		Amount:   "10000.00",
		Status:   models.StatusFailed,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.InquiryPayment(context.Background(), "", "INV-104"); err == nil {
		t.Fatal("inquiry on a never-generated QR must fail")
	}
}

func TestRenderQRPNGProducesImage(t *testing.T) {
	transport := &scriptedTransport{}
	transport.push(http.StatusOK, qrGeneratedReplyJSON)
	svc, _ := newTestQRISService(t, transport)

	if _, err := svc.GenerateQR(context.Background(), GenerateQRInput{ReffID: "INV-105", Amount: "10000"}); err != nil {
		t.Fatal(err)
	}
	png, err := svc.RenderQRPNG(context.Background(), "", "INV-105", 256)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("rendered bytes are not a PNG")
	}
}

func TestRenderQRPNGWithoutContent(t *testing.T) {
	svc, ledger := newTestQRISService(t, &scriptedTransport{})
	if err := ledger.Upsert(&models.QRISPaymentLog{
		ClientID: "test-client",
		ReffID:   "INV-106",
		Amount:   "10000.00",
		Status:   models.StatusFailed,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.RenderQRPNG(context.Background(), "", "INV-106", 0); err != utils.ErrLogNotFound {
		t.Fatalf("got %v, want ErrLogNotFound", err)
	}
}

package service

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

type fakeVALedger struct {
	rows   map[string]*models.VAPaymentLog // keyed by customer_no
	nextID int64
}

func newFakeVALedger() *fakeVALedger {
	return &fakeVALedger{rows: map[string]*models.VAPaymentLog{}}
}

func (f *fakeVALedger) Upsert(entry *models.VAPaymentLog) error {
	if existing, ok := f.rows[entry.CustomerNo]; ok {
		entry.ID = existing.ID
	} else {
		f.nextID++
		entry.ID = f.nextID
	}
	cp := *entry
	f.rows[entry.CustomerNo] = &cp
	return nil
}

func (f *fakeVALedger) byID(id int64) *models.VAPaymentLog {
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeVALedger) GetByCustomerNo(clientID, customerNo string) (*models.VAPaymentLog, error) {
	r, ok := f.rows[customerNo]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f *fakeVALedger) GetByVANumber(clientID, vaNumber string) (*models.VAPaymentLog, error) {
	for _, r := range f.rows {
		if snap.StripSpaces(r.VANumber) == snap.StripSpaces(vaNumber) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeVALedger) SetResponse(id int64, status models.PaymentStatus, response json.RawMessage) error {
	r := f.byID(id)
	r.Status = status
	r.ResponsePayload = response
	return nil
}

func (f *fakeVALedger) SaveCallback(id int64, callback json.RawMessage, externalID *string) error {
	r := f.byID(id)
	r.CallbackPayload = callback
	if externalID != nil {
		r.CallbackExternalID = externalID
	}
	return nil
}

func (f *fakeVALedger) AdvanceStatus(id int64, status models.PaymentStatus, paidAt *time.Time) error {
	r := f.byID(id)
	r.Status = status
	if paidAt != nil {
		r.PaidAt = paidAt
	}
	return nil
}

type fakeQRISLedger struct {
	rows   map[string]*models.QRISPaymentLog // keyed by reff_id
	nextID int64
}

func newFakeQRISLedger() *fakeQRISLedger {
	return &fakeQRISLedger{rows: map[string]*models.QRISPaymentLog{}}
}

func (f *fakeQRISLedger) Upsert(entry *models.QRISPaymentLog) error {
	if existing, ok := f.rows[entry.ReffID]; ok {
		entry.ID = existing.ID
	} else {
		f.nextID++
		entry.ID = f.nextID
	}
	cp := *entry
	f.rows[entry.ReffID] = &cp
	return nil
}

func (f *fakeQRISLedger) byID(id int64) *models.QRISPaymentLog {
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeQRISLedger) GetByReffID(clientID, reffID string) (*models.QRISPaymentLog, error) {
	r, ok := f.rows[reffID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f *fakeQRISLedger) GetByInvoiceNo(clientID, invoiceNo string) (*models.QRISPaymentLog, error) {
	for _, r := range f.rows {
		if r.InvoiceNo != nil && *r.InvoiceNo == invoiceNo {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeQRISLedger) SetResponse(id int64, status models.PaymentStatus, qrContent, referenceNo *string, response json.RawMessage) error {
	r := f.byID(id)
	r.Status = status
	if qrContent != nil {
		r.QRContent = qrContent
	}
	if referenceNo != nil {
		r.BRIReferenceNo = referenceNo
	}
	r.ResponsePayload = response
	return nil
}

func (f *fakeQRISLedger) SaveCallback(id int64, callback json.RawMessage, externalID *string) error {
	r := f.byID(id)
	r.CallbackPayload = callback
	if externalID != nil {
		r.CallbackExternalID = externalID
	}
	return nil
}

func (f *fakeQRISLedger) AdvanceStatus(id int64, status models.PaymentStatus, paidAt *time.Time) error {
	r := f.byID(id)
	r.Status = status
	if paidAt != nil {
		r.PaidAt = paidAt
	}
	return nil
}

func (f *fakeQRISLedger) ExpireOverdue(now time.Time) (int64, error) { return 0, nil }

func seedVA(t *testing.T, ledger *fakeVALedger, customerNo string, status models.PaymentStatus) *models.VAPaymentLog {
	t.Helper()
	entry := &models.VAPaymentLog{
		ClientID:   "client-1",
		ReffID:     "INV-" + customerNo,
		CustomerNo: customerNo,
		VANumber:   "   12345" + customerNo,
		Amount:     "10000.00",
		Status:     status,
	}
	if err := ledger.Upsert(entry); err != nil {
		t.Fatal(err)
	}
	ledger.rows[customerNo].Status = status
	entry.Status = status
	return entry
}

func TestCompleteVACreateTransitions(t *testing.T) {
	cases := []struct {
		rc   string
		want models.PaymentStatus
	}{
		{snap.RCVACreated, models.StatusWaitingPayment},
		{snap.RCVADuplicate, models.StatusFailed},
		// Other codes leave the row PENDING so the number stays reusable.
		{"5002700", models.StatusPending},
		{"4002702", models.StatusPending},
	}
	for _, tc := range cases {
		ledger := newFakeVALedger()
		r := NewReconciler(ledger, newFakeQRISLedger())
		entry := seedVA(t, ledger, "0000000000001", models.StatusPending)

		got, err := r.CompleteVACreate(entry.ID, tc.rc, json.RawMessage(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("CompleteVACreate(%s) = %s, want %s", tc.rc, got, tc.want)
		}
	}
}

func TestApplyVAPaymentValidSignatureAdvances(t *testing.T) {
	ledger := newFakeVALedger()
	r := NewReconciler(ledger, newFakeQRISLedger())
	entry := seedVA(t, ledger, "0000000000001", models.StatusWaitingPayment)

	paidAt := time.Now()
	externalID := "EXT-20240101-0001"
	got, err := r.ApplyVAPayment("client-1", entry.VANumber, json.RawMessage(`{"paidAmount":{"value":"10000.00"}}`), &externalID, true, paidAt)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPaid {
		t.Fatalf("status = %s, want PAID", got.Status)
	}
	stored := ledger.rows[entry.CustomerNo]
	if stored.Status != models.StatusPaid || stored.CallbackPayload == nil || stored.PaidAt == nil {
		t.Fatalf("stored row not fully reconciled: %+v", stored)
	}
	if stored.CallbackExternalID == nil || *stored.CallbackExternalID != externalID {
		t.Fatal("sender external id was not kept with the snapshot")
	}
}

func TestApplyVAPaymentInvalidSignatureOnlyAudits(t *testing.T) {
	ledger := newFakeVALedger()
	r := NewReconciler(ledger, newFakeQRISLedger())
	entry := seedVA(t, ledger, "0000000000001", models.StatusWaitingPayment)

	if _, err := r.ApplyVAPayment("client-1", entry.VANumber, json.RawMessage(`{"forged":true}`), nil, false, time.Now()); err != nil {
		t.Fatal(err)
	}
	stored := ledger.rows[entry.CustomerNo]
	if stored.Status != models.StatusWaitingPayment {
		t.Fatalf("invalid signature advanced status to %s", stored.Status)
	}
	if stored.CallbackPayload == nil {
		t.Fatal("callback snapshot was not stored")
	}
}

func TestApplyVAPaymentMatchesStrippedNumber(t *testing.T) {
	ledger := newFakeVALedger()
	r := NewReconciler(ledger, newFakeQRISLedger())
	entry := seedVA(t, ledger, "0000000000001", models.StatusWaitingPayment)

	stripped := snap.StripSpaces(entry.VANumber)
	got, err := r.ApplyVAPayment("client-1", stripped, json.RawMessage(`{}`), nil, true, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPaid {
		t.Fatalf("stripped VA number did not match, status = %s", got.Status)
	}
}

func TestApplyVAPaymentTerminalRowUntouched(t *testing.T) {
	ledger := newFakeVALedger()
	r := NewReconciler(ledger, newFakeQRISLedger())
	entry := seedVA(t, ledger, "0000000000001", models.StatusCanceled)

	if _, err := r.ApplyVAPayment("client-1", entry.VANumber, json.RawMessage(`{}`), nil, true, time.Now()); err != nil {
		t.Fatal(err)
	}
	if ledger.rows[entry.CustomerNo].Status != models.StatusCanceled {
		t.Fatal("terminal row was moved by a payment notification")
	}
}

func TestCancelVAFromPaidRejected(t *testing.T) {
	ledger := newFakeVALedger()
	r := NewReconciler(ledger, newFakeQRISLedger())
	entry := seedVA(t, ledger, "0000000000001", models.StatusPaid)

	if err := r.CancelVA(entry, json.RawMessage(`{}`)); err == nil {
		t.Fatal("canceling a PAID row must fail")
	}
}

func TestApplyQRPaymentValidSignatureAdvances(t *testing.T) {
	qris := newFakeQRISLedger()
	r := NewReconciler(newFakeVALedger(), qris)

	invoice := "INV-11700000000"
	entry := &models.QRISPaymentLog{
		ClientID:  "client-1",
		ReffID:    "INV-1",
		InvoiceNo: &invoice,
		Amount:    "25000.00",
	}
	if err := r.BeginQRGenerate(entry); err != nil {
		t.Fatal(err)
	}
	qris.rows["INV-1"].Status = models.StatusWaitingPayment

	got, err := r.ApplyQRPayment("client-1", invoice, json.RawMessage(`{}`), nil, true, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPaid {
		t.Fatalf("status = %s, want PAID", got.Status)
	}
}

package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elgiborsolution/bri-payments-go/internal/config"
	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/service"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

type memTenantStore struct {
	rows map[string]*models.Tenant
}

func (m *memTenantStore) GetByClientID(clientID string) (*models.Tenant, error) {
	row, ok := m.rows[clientID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

type memTokenStore struct {
	created []*models.AccessToken
}

func (m *memTokenStore) Create(t *models.AccessToken) error {
	m.created = append(m.created, t)
	return nil
}

func (m *memTokenStore) GetActive(token string) (*models.AccessToken, *models.Tenant, error) {
	for _, t := range m.created {
		if t.Token == token && t.ExpiresAt.After(time.Now()) {
			return t, &models.Tenant{ID: t.ClientRowID}, nil
		}
	}
	return nil, nil, sql.ErrNoRows
}

type tokenFixture struct {
	router *gin.Engine
	bundle config.BRIConfig
	tokens *memTokenStore
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	bundle := testCredentials(t)
	pub := bundle.PublicKeyPEM
	tenants := &memTenantStore{rows: map[string]*models.Tenant{
		bundle.ClientID: {ID: 1, TenantID: "tenant-1", ClientID: bundle.ClientID, PublicKey: &pub},
	}}
	tokens := &memTokenStore{}
	b2bAuth := service.NewB2BAuthService(tenants, tokens)
	resolver := service.NewResolver(bundle, nil, nil)
	h := NewTokenHandler(b2bAuth, resolver)

	router := gin.New()
	router.POST("/snap/v1.0/access-token/b2b", h.IssueToken)
	router.POST("/v1/bri/helper/sign-token", h.SignToken)
	router.POST("/v1/bri/helper/sign-business", h.SignBusiness)
	return &tokenFixture{router: router, bundle: bundle, tokens: tokens}
}

func (f *tokenFixture) post(t *testing.T, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *tokenFixture) handshakeHeaders(t *testing.T) map[string]string {
	t.Helper()
	ts := snap.ISO8601Now()
	signer := snap.NewSigner(snap.KeyConfig{
		ClientID:      f.bundle.ClientID,
		PrivateKeyPEM: f.bundle.PrivateKeyPEM,
	})
	sig, err := signer.SignToken(ts)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]string{
		"X-CLIENT-KEY": f.bundle.ClientID,
		"X-TIMESTAMP":  ts,
		"X-SIGNATURE":  sig,
	}
}

func TestIssueTokenEndpointSuccess(t *testing.T) {
	f := newTokenFixture(t)

	w := f.post(t, "/snap/v1.0/access-token/b2b",
		gin.H{"grantType": "client_credentials"}, f.handshakeHeaders(t))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	reply := decodeReply(t, w)
	if token, _ := reply["accessToken"].(string); token == "" || reply["tokenType"] != "Bearer" || reply["expiresIn"] != "3600" {
		t.Fatalf("reply = %v", reply)
	}
	if len(f.tokens.created) != 1 {
		t.Fatalf("%d tokens persisted", len(f.tokens.created))
	}
}

func TestIssueTokenEndpointMissingHeaders(t *testing.T) {
	f := newTokenFixture(t)

	w := f.post(t, "/snap/v1.0/access-token/b2b", gin.H{"grantType": "client_credentials"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if reply := decodeReply(t, w); reply["responseCode"] != snap.RCTokenBadRequest {
		t.Fatalf("reply = %v", reply)
	}
}

func TestIssueTokenEndpointRejections(t *testing.T) {
	f := newTokenFixture(t)
	good := f.handshakeHeaders(t)

	cases := []struct {
		name       string
		mutate     func(h map[string]string)
		grantType  string
		wantStatus int
		wantCode   string
	}{
		{"wrong grant type", func(h map[string]string) {}, "password", http.StatusBadRequest, snap.RCTokenBadRequest},
		{"malformed timestamp", func(h map[string]string) { h["X-TIMESTAMP"] = "yesterday" }, "client_credentials", http.StatusBadRequest, snap.RCTokenInvalidField},
		{"unknown client", func(h map[string]string) { h["X-CLIENT-KEY"] = "nobody" }, "client_credentials", http.StatusUnauthorized, snap.RCTokenUnauthorized},
		{"forged signature", func(h map[string]string) { h["X-SIGNATURE"] = "Zm9yZ2Vk" }, "client_credentials", http.StatusUnauthorized, snap.RCTokenInvalid},
	}
	for _, tc := range cases {
		headers := map[string]string{}
		for k, v := range good {
			headers[k] = v
		}
		tc.mutate(headers)

		w := f.post(t, "/snap/v1.0/access-token/b2b", gin.H{"grantType": tc.grantType}, headers)
		if w.Code != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.wantStatus)
			continue
		}
		if reply := decodeReply(t, w); reply["responseCode"] != tc.wantCode {
			t.Errorf("%s: responseCode = %v, want %s", tc.name, reply["responseCode"], tc.wantCode)
		}
	}
}

func TestSignTokenHelperRoundTrips(t *testing.T) {
	f := newTokenFixture(t)

	ts := snap.ISO8601Now()
	w := f.post(t, "/v1/bri/helper/sign-token", gin.H{"timestamp": ts}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var reply struct {
		Data struct {
			ClientID  string `json:"clientId"`
			Timestamp string `json:"timestamp"`
			Signature string `json:"signature"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatal(err)
	}

	verifier := snap.NewSigner(snap.KeyConfig{PublicKeyPEM: f.bundle.PublicKeyPEM})
	if !verifier.VerifyToken(reply.Data.ClientID, reply.Data.Timestamp, reply.Data.Signature) {
		t.Fatal("helper signature does not verify against the tenant public key")
	}
}

func TestSignBusinessHelperMatchesStrategy(t *testing.T) {
	f := newTokenFixture(t)

	ts := snap.ISO8601Now()
	w := f.post(t, "/v1/bri/helper/sign-business", gin.H{
		"method":      "POST",
		"path":        snap.PathCreateVA,
		"accessToken": "tok-1",
		"timestamp":   ts,
		"body":        gin.H{"trxId": "INV-1"},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var reply struct {
		Data struct {
			StringToSign string `json:"stringToSign"`
			Signature    string `json:"signature"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatal(err)
	}

	body, _ := snap.MinifyJSON(gin.H{"trxId": "INV-1"})
	want := snap.SnapHMAC{}.Sign(f.bundle.ClientSecret, "POST", snap.PathCreateVA, "tok-1", body, ts)
	if reply.Data.Signature != want {
		t.Fatalf("signature = %s, want %s", reply.Data.Signature, want)
	}
	if reply.Data.StringToSign == "" {
		t.Fatal("stringToSign missing")
	}
}

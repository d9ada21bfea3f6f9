package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/service"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// TokenHandler implements the inbound side of the SNAP handshake: the
// B2B access-token endpoint counterparts call before sending
// notifications, plus signature helper endpoints for integration
// debugging.
type TokenHandler struct {
	b2bAuth  *service.B2BAuthService
	resolver *service.Resolver
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(b2bAuth *service.B2BAuthService, resolver *service.Resolver) *TokenHandler {
	return &TokenHandler{b2bAuth: b2bAuth, resolver: resolver}
}

// snapReply writes a bare SNAP response envelope. SNAP-facing endpoints
// use the bank's wire format, not the internal API envelope.
func snapReply(c *gin.Context, status int, code, message string, extra gin.H) {
	body := gin.H{"responseCode": code, "responseMessage": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// IssueToken handles POST /snap/v1.0/access-token/b2b.
func (h *TokenHandler) IssueToken(c *gin.Context) {
	clientKey := c.GetHeader("X-CLIENT-KEY")
	timestamp := c.GetHeader("X-TIMESTAMP")
	signature := c.GetHeader("X-SIGNATURE")
	if clientKey == "" || timestamp == "" || signature == "" {
		snapReply(c, http.StatusBadRequest, snap.RCTokenBadRequest, "Missing Mandatory Field", nil)
		return
	}

	var req snap.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		snapReply(c, http.StatusBadRequest, snap.RCTokenBadRequest, "Invalid Field Format grantType", nil)
		return
	}

	token, err := h.b2bAuth.IssueToken(c.Request.Context(), clientKey, timestamp, signature, req.GrantType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidGrantType):
			snapReply(c, http.StatusBadRequest, snap.RCTokenBadRequest, "Invalid Field Format grantType", nil)
		case errors.Is(err, service.ErrInvalidTimestamp):
			snapReply(c, http.StatusBadRequest, snap.RCTokenInvalidField, "Invalid Field Format X-TIMESTAMP", nil)
		case errors.Is(err, service.ErrUnknownClient):
			snapReply(c, http.StatusUnauthorized, snap.RCTokenUnauthorized, "Unauthorized. Unknown Client", nil)
		case errors.Is(err, service.ErrInvalidSignature):
			snapReply(c, http.StatusUnauthorized, snap.RCTokenInvalid, "Unauthorized. Invalid Signature", nil)
		default:
			log.Error().Err(err).Msg("Token issuance failed")
			snapReply(c, http.StatusInternalServerError, "5007300", "Internal Server Error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken": token.Token,
		"tokenType":   "Bearer",
		"expiresIn":   strconv.Itoa(int(service.B2BTokenLifetime / time.Second)),
	})
}

// SignToken handles POST /bri/helper/sign-token. It produces the
// X-SIGNATURE a counterpart would send for the given timestamp, using
// the tenant's configured private key.
func (h *TokenHandler) SignToken(c *gin.Context) {
	var req struct {
		TenantID  string `json:"tenantId"`
		Timestamp string `json:"timestamp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Timestamp == "" {
		req.Timestamp = snap.ISO8601Now()
	}

	bundle := h.resolver.Resolve(c.Request.Context(), req.TenantID)
	signer := snap.NewSigner(snap.KeyConfig{
		ClientID:       bundle.ClientID,
		PrivateKeyPEM:  bundle.PrivateKeyPEM,
		PrivateKeyPath: bundle.PrivateKeyPath,
	})
	sig, err := signer.SignToken(req.Timestamp)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "SIGNING_FAILED", err.Error())
		return
	}

	utils.Success(c, http.StatusOK, "Signature generated", gin.H{
		"clientId":  bundle.ClientID,
		"timestamp": req.Timestamp,
		"signature": sig,
	})
}

// SignBusiness handles POST /bri/helper/sign-business. It computes the
// symmetric business signature over the supplied request parts.
func (h *TokenHandler) SignBusiness(c *gin.Context) {
	var req struct {
		TenantID    string `json:"tenantId"`
		Method      string `json:"method" binding:"required"`
		Path        string `json:"path" binding:"required"`
		AccessToken string `json:"accessToken" binding:"required"`
		Timestamp   string `json:"timestamp"`
		Body        any    `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Timestamp == "" {
		req.Timestamp = snap.ISO8601Now()
	}

	body, err := snap.MinifyJSON(req.Body)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Body is not valid JSON")
		return
	}

	bundle := h.resolver.Resolve(c.Request.Context(), req.TenantID)
	sig := snap.SnapHMAC{}.Sign(bundle.ClientSecret, req.Method, req.Path, req.AccessToken, body, req.Timestamp)

	utils.Success(c, http.StatusOK, "Signature generated", gin.H{
		"stringToSign": snap.SnapHMAC{}.StringToSign(req.Method, req.Path, req.AccessToken, body, req.Timestamp),
		"timestamp":    req.Timestamp,
		"signature":    sig,
	})
}

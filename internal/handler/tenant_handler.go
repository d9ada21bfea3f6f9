package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elgiborsolution/bri-payments-go/internal/models"
	"github.com/elgiborsolution/bri-payments-go/internal/service"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
)

// TenantHandler exposes the admin API for managing tenant credentials.
// All routes sit behind the admin JWT middleware.
type TenantHandler struct {
	tenants *service.TenantService
}

// NewTenantHandler constructs a TenantHandler.
func NewTenantHandler(tenants *service.TenantService) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// tenantRequest is the admin-facing write shape. The Tenant model hides
// secret columns from JSON, so mutations bind through this DTO.
type tenantRequest struct {
	Name         *string `json:"name"`
	TenantID     string  `json:"tenantId"`
	BaseURL      *string `json:"baseUrl"`
	ClientID     string  `json:"clientId"`
	ClientSecret string  `json:"clientSecret"`
	PrivateKey   *string `json:"privateKey"`
	PublicKey    *string `json:"publicKey"`

	QRISPartnerID  *string `json:"qrisPartnerId"`
	QRISChannelID  *string `json:"qrisChannelId"`
	QRISMerchantID *string `json:"qrisMerchantId"`
	QRISTerminalID *string `json:"qrisTerminalId"`
	QRISPublicKey  *string `json:"qrisPublicKey"`

	BrivaPartnerServiceID *string `json:"brivaPartnerServiceId"`
	BrivaPartnerID        *string `json:"brivaPartnerId"`
	BrivaChannelID        *string `json:"brivaChannelId"`
	BrivaPublicKey        *string `json:"brivaPublicKey"`
}

func (r *tenantRequest) model() *models.Tenant {
	return &models.Tenant{
		Name:         r.Name,
		TenantID:     r.TenantID,
		BaseURL:      r.BaseURL,
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		PrivateKey:   r.PrivateKey,
		PublicKey:    r.PublicKey,

		QRISPartnerID:  r.QRISPartnerID,
		QRISChannelID:  r.QRISChannelID,
		QRISMerchantID: r.QRISMerchantID,
		QRISTerminalID: r.QRISTerminalID,
		QRISPublicKey:  r.QRISPublicKey,

		BrivaPartnerServiceID: r.BrivaPartnerServiceID,
		BrivaPartnerID:        r.BrivaPartnerID,
		BrivaChannelID:        r.BrivaChannelID,
		BrivaPublicKey:        r.BrivaPublicKey,
	}
}

func writeTenantError(c *gin.Context, err error) {
	var ve *utils.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", ve.Error())
	case errors.Is(err, utils.ErrTenantNotFound):
		utils.Error(c, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found")
	default:
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Operation failed")
	}
}

// List handles GET /admin/tenants.
func (h *TenantHandler) List(c *gin.Context) {
	tenants, err := h.tenants.List(c.Request.Context())
	if err != nil {
		writeTenantError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Tenants", tenants)
}

// Get handles GET /admin/tenants/:tenantId.
func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.tenants.Get(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		writeTenantError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Tenant", tenant)
}

// Create handles POST /admin/tenants.
func (h *TenantHandler) Create(c *gin.Context) {
	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	tenant := req.model()
	if err := h.tenants.Create(c.Request.Context(), tenant); err != nil {
		writeTenantError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, "Tenant created", tenant)
}

// Update handles PUT /admin/tenants/:tenantId.
func (h *TenantHandler) Update(c *gin.Context) {
	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	tenant := req.model()
	if err := h.tenants.Update(c.Request.Context(), c.Param("tenantId"), tenant); err != nil {
		writeTenantError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Tenant updated", tenant)
}

// Delete handles DELETE /admin/tenants/:tenantId.
func (h *TenantHandler) Delete(c *gin.Context) {
	if err := h.tenants.Delete(c.Request.Context(), c.Param("tenantId")); err != nil {
		writeTenantError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Tenant deleted", nil)
}

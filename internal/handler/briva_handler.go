package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/elgiborsolution/bri-payments-go/internal/service"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// BrivaHandler exposes the merchant-facing virtual account API.
type BrivaHandler struct {
	briva *service.BrivaService
}

// NewBrivaHandler constructs a BrivaHandler.
func NewBrivaHandler(briva *service.BrivaService) *BrivaHandler {
	return &BrivaHandler{briva: briva}
}

// tenantID reads the tenant scope of a merchant request. Single-tenant
// deployments simply omit the header.
func tenantID(c *gin.Context) string {
	return c.GetHeader("X-TENANT-ID")
}

// writeServiceError maps service failures onto the API envelope.
func writeServiceError(c *gin.Context, err error) {
	var ve *utils.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", ve.Error())
	case errors.Is(err, utils.ErrLogNotFound):
		utils.Error(c, http.StatusNotFound, "NOT_FOUND", utils.ErrLogNotFound.Error())
	default:
		log.Error().Err(err).Msg("BRI operation failed")
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Operation failed")
	}
}

// vaPayload shapes a VAResult for the envelope.
func vaPayload(res *service.VAResult) gin.H {
	out := gin.H{
		"responseCode":    res.ResponseCode,
		"responseMessage": res.ResponseMessage,
		"raw":             res.Body,
	}
	if res.Log != nil {
		out["payment"] = res.Log
	}
	return out
}

// CreateVA handles POST /bri/briva.
func (h *BrivaHandler) CreateVA(c *gin.Context) {
	var req struct {
		ReffID       string `json:"reffId" binding:"required"`
		CustomerName string `json:"customerName" binding:"required"`
		Amount       string `json:"amount" binding:"required"`
		ExpiredAt    string `json:"expiredAt"`
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := h.briva.CreateVA(c.Request.Context(), service.CreateVAInput{
		TenantID:     tenantID(c),
		ReffID:       req.ReffID,
		CustomerName: req.CustomerName,
		Amount:       req.Amount,
		ExpiredAt:    req.ExpiredAt,
		Description:  req.Description,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if res.ResponseCode != snap.RCVACreated {
		utils.Error(c, http.StatusBadGateway, res.ResponseCode, res.ResponseMessage)
		return
	}
	utils.Success(c, http.StatusCreated, "Virtual account created", vaPayload(res))
}

// UpdateVA handles PUT /bri/briva/:reffId.
func (h *BrivaHandler) UpdateVA(c *gin.Context) {
	var req struct {
		CustomerName string `json:"customerName"`
		Amount       string `json:"amount" binding:"required"`
		ExpiredAt    string `json:"expiredAt"`
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := h.briva.UpdateVA(c.Request.Context(), service.UpdateVAInput{
		TenantID:     tenantID(c),
		ReffID:       c.Param("reffId"),
		CustomerName: req.CustomerName,
		Amount:       req.Amount,
		ExpiredAt:    req.ExpiredAt,
		Description:  req.Description,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Virtual account updated", vaPayload(res))
}

// UpdateVAStatus handles PUT /bri/briva/:reffId/status.
func (h *BrivaHandler) UpdateVAStatus(c *gin.Context) {
	var req struct {
		PaidStatus string `json:"paidStatus" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := h.briva.UpdateVAStatus(c.Request.Context(), tenantID(c), c.Param("reffId"), req.PaidStatus)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Virtual account status updated", vaPayload(res))
}

// InquiryVA handles GET /bri/briva/:reffId/inquiry.
func (h *BrivaHandler) InquiryVA(c *gin.Context) {
	res, err := h.briva.InquiryVA(c.Request.Context(), tenantID(c), c.Param("reffId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Virtual account inquiry", vaPayload(res))
}

// DeleteVA handles DELETE /bri/briva/:reffId.
func (h *BrivaHandler) DeleteVA(c *gin.Context) {
	res, err := h.briva.DeleteVA(c.Request.Context(), tenantID(c), c.Param("reffId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Virtual account deleted", vaPayload(res))
}

// InquiryStatus handles GET /bri/briva/:reffId/payment-status.
func (h *BrivaHandler) InquiryStatus(c *gin.Context) {
	res, err := h.briva.InquiryStatus(c.Request.Context(), tenantID(c), c.Param("reffId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Payment status", vaPayload(res))
}

// GetReport handles GET /bri/briva/report?date=YYYY-MM-DD.
func (h *BrivaHandler) GetReport(c *gin.Context) {
	res, err := h.briva.GetReport(c.Request.Context(), tenantID(c),
		c.Query("date"), c.Query("startTime"), c.Query("endTime"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Settlement report", vaPayload(res))
}

// GetPaymentLog handles GET /bri/briva/:reffId.
func (h *BrivaHandler) GetPaymentLog(c *gin.Context) {
	entry, err := h.briva.GetPaymentLog(c.Request.Context(), tenantID(c), c.Param("reffId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Payment log", entry)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/elgiborsolution/bri-payments-go/internal/service"
	"github.com/elgiborsolution/bri-payments-go/internal/utils"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// QRISHandler exposes the merchant-facing QRIS API.
type QRISHandler struct {
	qris *service.QRISService
}

// NewQRISHandler constructs a QRISHandler.
func NewQRISHandler(qris *service.QRISService) *QRISHandler {
	return &QRISHandler{qris: qris}
}

func qrPayload(res *service.QRResult) gin.H {
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

// GenerateQR handles POST /bri/qris.
func (h *QRISHandler) GenerateQR(c *gin.Context) {
	var req struct {
		ReffID string `json:"reffId" binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := h.qris.GenerateQR(c.Request.Context(), service.GenerateQRInput{
		TenantID: tenantID(c),
		ReffID:   req.ReffID,
		Amount:   req.Amount,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if res.ResponseCode != snap.RCQRGenerated {
		utils.Error(c, http.StatusBadGateway, res.ResponseCode, res.ResponseMessage)
		return
	}
	utils.Success(c, http.StatusCreated, "QR generated", qrPayload(res))
}

// InquiryPayment handles GET /bri/qris/:reffId/payment-status.
func (h *QRISHandler) InquiryPayment(c *gin.Context) {
	res, err := h.qris.InquiryPayment(c.Request.Context(), tenantID(c), c.Param("reffId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Payment status", qrPayload(res))
}

// GetPaymentLog handles GET /bri/qris/:reffId.
func (h *QRISHandler) GetPaymentLog(c *gin.Context) {
	entry, err := h.qris.GetPaymentLog(c.Request.Context(), tenantID(c), c.Param("reffId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Payment log", entry)
}

// RenderQR handles GET /bri/qris/:reffId/image. It streams the QR as a
// PNG so merchant frontends can embed it directly.
func (h *QRISHandler) RenderQR(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "512"))

	png, err := h.qris.RenderQRPNG(c.Request.Context(), tenantID(c), c.Param("reffId"), size)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

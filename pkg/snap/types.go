package snap

// Request bodies for the SNAP endpoints. Field order matters: the HMAC is
// computed over the marshalled bytes, and Go marshals struct fields in
// declaration order.

// Amount is a fixed-point money value with 2 decimals, e.g. "10000.00".
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// AdditionalInfo is the free-form echo object BRI attaches to VA calls.
type AdditionalInfo struct {
	Description string `json:"description"`
}

// TokenRequest is the body of the B2B access-token call.
type TokenRequest struct {
	GrantType string `json:"grantType"`
}

// TokenResponse is the B2B access-token response.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   string `json:"expiresIn"`
}

// CreateVARequest is the create-va body. PartnerServiceID and
// VirtualAccountNo carry the three-space padding.
type CreateVARequest struct {
	PartnerServiceID   string         `json:"partnerServiceId"`
	CustomerNo         string         `json:"customerNo"`
	VirtualAccountNo   string         `json:"virtualAccountNo"`
	VirtualAccountName string         `json:"virtualAccountName"`
	TotalAmount        Amount         `json:"totalAmount"`
	ExpiredDate        string         `json:"expiredDate"`
	TrxID              string         `json:"trxId"`
	AdditionalInfo     AdditionalInfo `json:"additionalInfo"`
}

// UpdateVARequest is the update-va body.
type UpdateVARequest struct {
	PartnerServiceID   string         `json:"partnerServiceId"`
	CustomerNo         string         `json:"customerNo"`
	VirtualAccountNo   string         `json:"virtualAccountNo"`
	VirtualAccountName string         `json:"virtualAccountName"`
	TrxID              string         `json:"trxId"`
	TotalAmount        Amount         `json:"totalAmount"`
	ExpiredDate        string         `json:"expiredDate"`
	AdditionalInfo     AdditionalInfo `json:"additionalInfo"`
}

// UpdateVAStatusRequest flips the paid flag on a VA ("Y" or "N").
type UpdateVAStatusRequest struct {
	PartnerServiceID string `json:"partnerServiceId"`
	CustomerNo       string `json:"customerNo"`
	VirtualAccountNo string `json:"virtualAccountNo"`
	TrxID            string `json:"trxId"`
	PaidStatus       string `json:"paidStatus"`
}

// InquiryVARequest is the inquiry-va body.
type InquiryVARequest struct {
	PartnerServiceID string `json:"partnerServiceId"`
	CustomerNo       string `json:"customerNo"`
	VirtualAccountNo string `json:"virtualAccountNo"`
	TrxID            string `json:"trxId"`
}

// DeleteVARequest is the delete-va body.
type DeleteVARequest struct {
	PartnerServiceID string `json:"partnerServiceId"`
	CustomerNo       string `json:"customerNo"`
	VirtualAccountNo string `json:"virtualAccountNo"`
	TrxID            string `json:"trxId"`
}

// VAStatusRequest is the transfer-va/status body. InquiryRequestID is a
// zero-padded 5-digit random numeric, not a UUID.
type VAStatusRequest struct {
	PartnerServiceID string `json:"partnerServiceId"`
	CustomerNo       string `json:"customerNo"`
	VirtualAccountNo string `json:"virtualAccountNo"`
	InquiryRequestID string `json:"inquiryRequestId"`
}

// VAReportRequest is the transfer-va/report body.
type VAReportRequest struct {
	PartnerServiceID string `json:"partnerServiceId"`
	StartDate        string `json:"startDate"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
}

// GenerateQRRequest is the qr-mpm-generate body.
type GenerateQRRequest struct {
	PartnerReferenceNo string `json:"partnerReferenceNo"`
	Amount             Amount `json:"amount"`
	MerchantID         string `json:"merchantId"`
	TerminalID         string `json:"terminalId"`
}

// QueryQRRequest is the qr-mpm-query body.
type QueryQRRequest struct {
	OriginalReferenceNo string           `json:"originalReferenceNo"`
	ServiceCode         string           `json:"serviceCode"`
	AdditionalInfo      QRQueryAdditional `json:"additionalInfo"`
}

// QRQueryAdditional scopes a QR query to one terminal.
type QRQueryAdditional struct {
	TerminalID string `json:"terminalId"`
}

package snap

// BRI response codes. The 7-digit SNAP codes embed the HTTP status in the
// first three digits and the service code after that.
const (
	// Outbound BRIVA SNAP
	RCVACreated        = "2002700" // create-va accepted
	RCVADuplicate      = "4042712" // create-va conflict: VA number already registered
	RCVAUpdated        = "2002800" // update-va accepted
	RCVAUpdateNotFound = "4042812" // update-va: VA not found
	RCVADeleted        = "2003100" // delete-va accepted

	// Outbound QRIS SNAP
	RCQRGenerated = "2004700" // qr-mpm-generate accepted
	RCQRQueryOK   = "2005100" // qr-mpm-query accepted

	// Inbound QRIS payment notification ack
	RCNotifySuccess = "2005200"

	// Inbound BRIVA SNAP payment notification ack
	RCVANotifySuccess      = "2003400"
	RCVANotifyUnauthorized = "4013401"

	// Inbound legacy BRIVA notification ack
	RCLegacySuccess          = "0000"
	RCLegacyInvalidSignature = "0102"

	// B2B access-token endpoint
	RCTokenBadRequest   = "4007300"
	RCTokenInvalidField = "4007301"
	RCTokenUnauthorized = "4017300"
	RCTokenInvalid      = "4017301"

	// B2B bearer middleware
	RCAuthInvalidField      = "4003401"
	RCAuthUnauthorizedToken = "4013400"
)

// Paths of the SNAP endpoints this package talks to.
const (
	PathAccessToken    = "/snap/v1.0/access-token/b2b"
	PathCreateVA       = "/snap/v1.0/transfer-va/create-va"
	PathUpdateVA       = "/snap/v1.0/transfer-va/update-va"
	PathUpdateVAStatus = "/snap/v1.0/transfer-va/update-status"
	PathInquiryVA      = "/snap/v1.0/transfer-va/inquiry-va"
	PathDeleteVA       = "/snap/v1.0/transfer-va/delete-va"
	PathVAStatus       = "/snap/v1.0/transfer-va/status"
	PathVAReport       = "/snap/v1.0/transfer-va/report"
	PathGenerateQR     = "/snap/v1.1/qr/qr-mpm-generate"
	PathQueryQR        = "/snap/v1.1/qr/qr-mpm-query"
)

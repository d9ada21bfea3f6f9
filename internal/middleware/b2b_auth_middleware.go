package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/elgiborsolution/bri-payments-go/internal/service"
	"github.com/elgiborsolution/bri-payments-go/pkg/snap"
)

// B2BAuthMiddleware guards the inbound SNAP notification routes. It
// validates the bearer token issued by the access-token endpoint and
// answers with the SNAP response codes the protocol prescribes.
type B2BAuthMiddleware struct {
	b2bAuth     *service.B2BAuthService
	rateLimiter *InvalidAuthRateLimiter
}

// NewB2BAuthMiddleware constructs a B2BAuthMiddleware.
func NewB2BAuthMiddleware(b2bAuth *service.B2BAuthService) *B2BAuthMiddleware {
	return &B2BAuthMiddleware{
		b2bAuth:     b2bAuth,
		rateLimiter: NewInvalidAuthRateLimiter(),
	}
}

func (m *B2BAuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"responseCode":    snap.RCAuthInvalidField,
				"responseMessage": "Invalid Mandatory Field Authorization",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.rejectToken(c)
			return
		}

		tenant, err := m.b2bAuth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			m.rejectToken(c)
			return
		}

		c.Set("tenant_id", tenant.TenantID)
		c.Set("client_id", tenant.ClientID)
		c.Next()
	}
}

// rejectToken answers an invalid bearer, throttling repeated guesses per
// source IP.
func (m *B2BAuthMiddleware) rejectToken(c *gin.Context) {
	if !m.rateLimiter.Allow(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"responseCode":    snap.RCAuthUnauthorizedToken,
			"responseMessage": "Too Many Requests",
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"responseCode":    snap.RCAuthUnauthorizedToken,
		"responseMessage": "Unauthorized. Invalid Token (B2B)",
	})
}

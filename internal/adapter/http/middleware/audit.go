package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuditLog writes an audit record for every successful state-changing request.
func AuditLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		event := log.Info().
			Str("action", action).
			Str("resource_type", resourceType).
			Str("request_id", c.GetString(CtxRequestID)).
			Str("ip", c.ClientIP()).
			Int("status", status)
		if id, ok := UserID(c); ok {
			event = event.Str("user_id", id.String())
		}
		if rid := c.Param("id"); rid != "" {
			event = event.Str("resource_id", rid)
		}
		event.Msg("audit")
	}
}

func mapRouteToAction(route, method string) (action, resourceType string) {
	switch {
	case route == "/api/v1/auth/register" && method == http.MethodPost:
		return "user.register", "user"
	case route == "/api/v1/auth/login" && method == http.MethodPost:
		return "session.login", "session"
	case route == "/api/v1/wallet/deposit" && method == http.MethodPost:
		return "wallet.deposit", "transaction"
	case route == "/api/v1/wallet/withdraw" && method == http.MethodPost:
		return "wallet.withdraw", "transaction"
	case route == "/api/v1/wallet/transfer" && method == http.MethodPost:
		return "wallet.transfer", "transaction"
	case route == "/api/v1/admin/transactions/:id" && method == http.MethodDelete:
		return "transaction.soft_delete", "transaction"
	}
	return "", ""
}

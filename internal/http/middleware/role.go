package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RoleAdmin may repair bookings and audit any wallet.
const RoleAdmin = "admin"

// RequireRoles only lets through callers whose token role is one of
// allowedRoles. It must run after Auth.
//
//	r.GET("/admin/x", RequireRoles(RoleAdmin), handler)
func RequireRoles(allowedRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[normalizeRole(r)] = struct{}{}
	}

	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		if _, ok := allowed[normalizeRole(u.Role)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":      "role not allowed",
				"code":       "forbidden",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}

// HasRole reports whether the authenticated caller carries role.
func HasRole(c *gin.Context, role string) bool {
	u, ok := CurrentUser(c)
	return ok && normalizeRole(u.Role) == normalizeRole(role)
}

func normalizeRole(r string) string {
	return strings.ToLower(strings.TrimSpace(r))
}

package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"campusride/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userKey = "auth_user"

// Claims carries the identity issued by the external identity provider.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Auth requires a bearer token signed with secret (HS256) and stores the
// caller in the gin context. The email claim is the ledger owner key.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abortUnauthorized(c, "authorization header required")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		email := domain.NormalizeEmail(claims.Email)
		if email == "" {
			abortUnauthorized(c, "token has no email claim")
			return
		}
		c.Set(userKey, domain.RequestContext{Email: email, Role: claims.Role})
		c.Next()
	}
}

// CurrentUser returns the authenticated caller set by Auth.
func CurrentUser(c *gin.Context) (domain.RequestContext, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	u, ok := v.(domain.RequestContext)
	return u, ok && u.Email != ""
}

// IssueToken signs a token for email. Used by tooling and tests; production
// tokens come from the identity provider.
func IssueToken(secret, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      msg,
		"code":       "unauthorized",
		"request_id": GetRequestID(c),
	})
}

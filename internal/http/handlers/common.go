package handlers

import (
	"net/http"

	"campusride/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "empty_body", "request body is empty", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid payload", err.Error())
		return false
	}
	return true
}

// currentUser returns the caller's email, answering 401 when it is missing.
func currentUser(c *gin.Context) (string, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return "", false
	}
	return u.Email, true
}

func sendPDF(c *gin.Context, filename string, pdf []byte) {
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

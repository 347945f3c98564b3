package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-casebook/internal/response"
	"github.com/stemsi/exstem-casebook/internal/session"
)

// ProctorHeader carries the proctor password on monitor requests.
const ProctorHeader = "X-Proctor-Password"

// RequireProctor admits requests that present the proctor password.
func RequireProctor(verifier session.PasswordVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		pw := c.GetHeader(ProctorHeader)
		if pw == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrProctorRequired)
			return
		}
		if !verifier.Verify(pw) {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrWrongPassword)
			return
		}
		c.Next()
	}
}

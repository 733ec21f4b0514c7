package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"SpinPull/internal/service/ratelimit"
	xhttp "SpinPull/pkg/http"
	applogger "SpinPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

const SignatureHeader = "X-Signature"

// Sign returns the hex HMAC-SHA256 of body under secret, as expected in
// the X-Signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// requireSignature rejects requests whose body is not signed with secret.
// An empty secret disables the check.
func requireSignature(secret string, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(c echo.Context) error {
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return xhttp.BadRequestResponse(c, nil)
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))

			got := strings.TrimPrefix(c.Request().Header.Get(SignatureHeader), "sha256=")
			want := Sign(secret, body)
			if !hmac.Equal([]byte(got), []byte(want)) {
				if l != nil {
					l.Warn("signature rejected", applogger.String("remote", c.RealIP()))
				}
				return xhttp.UnauthorizedResponse(c, "invalid signature")
			}
			return next(c)
		}
	}
}

// rateLimited applies a per-client token bucket. A nil limiter lets
// everything through.
func rateLimited(rl *ratelimit.Limiter, route string, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rl == nil {
			return next
		}
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP() + ":" + route) {
				if l != nil {
					l.Warn("rate limited", applogger.String("route", route), applogger.String("remote", c.RealIP()))
				}
				return xhttp.TooManyRequestsResponse(c, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

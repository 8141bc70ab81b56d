package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/surgidocs/opreport-tracker/internal/common"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return common.InvalidArgumentError("malformed login request")
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.auth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.auth.Password)) == 1
	if !userOK || !passOK {
		s.logger.Warn("auth.login_rejected", "username", req.Username)
		return common.UnauthorizedError("invalid credentials")
	}

	ttl := s.auth.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expires := time.Now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.Username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		return common.InternalError("sign token")
	}

	s.logger.Info("auth.login_ok", "username", req.Username)
	return c.JSON(http.StatusOK, loginResponse{Token: signed, ExpiresAt: expires})
}

func (s *Server) jwtMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return common.UnauthorizedError("missing bearer token")
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(s.auth.JWTSecret), nil
			})
			if err != nil || !token.Valid {
				return common.UnauthorizedError("invalid token")
			}

			ctx := common.WithUserID(c.Request().Context(), claims.Subject)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

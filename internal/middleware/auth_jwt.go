package middleware

import (
	"net/http"
	"strings"

	"github.com/exclusiveng/server/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // string
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
	CtxUserEmailKey    = "user_email"    // string
)

// アクセストークンのclaims（subはユーザーID）
type accessClaims struct {
	Role  string `json:"role"`
	TV    *int   `json:"tv"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (c *accessClaims) ok() bool {
	return c.Subject != "" && c.Role != "" && c.TV != nil && *c.TV >= 0
}

// bearerAuth用のJWT検証ミドルウェア。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(cfg.JWTSecret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, found := bearerToken(c.Request())
			if !found {
				return c.JSON(http.StatusUnauthorized, errorJSON("Not authorized, no token"))
			}

			//署名・exp・algを検証
			var claims accessClaims
			token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid || !claims.ok() {
				return c.JSON(http.StatusUnauthorized, errorJSON("Not authorized, token failed"))
			}

			c.Set(CtxUserIDKey, claims.Subject)
			c.Set(CtxUserRoleKey, claims.Role)
			c.Set(CtxTokenVersionKey, *claims.TV)
			c.Set(CtxUserEmailKey, claims.Email)

			return next(c)
		}
	}
}

// "Authorization: Bearer <token>" からtokenを抜く
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthJWTが入れたuser_idを読む
func UserID(c echo.Context) (string, bool) {
	id, ok := c.Get(CtxUserIDKey).(string)
	return id, ok && id != ""
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

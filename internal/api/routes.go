package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/internal/auth"
)

// TokenPath is where the coaching client requests its agent credential
const TokenPath = "/api/v1/agent/token"

// TokenConfig holds the secrets the token endpoint hands out or checks
type TokenConfig struct {
	APIKey    string
	ProjectID string

	// OperatorSecret enables bearer-token protection when non-empty
	OperatorSecret []byte
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, cfg TokenConfig, logger *zap.Logger) {
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voicecoach-token",
		})
	})

	var middlewares []echo.MiddlewareFunc
	if len(cfg.OperatorSecret) > 0 {
		middlewares = append(middlewares, operatorAuth(cfg.OperatorSecret, logger))
	}

	e.POST(TokenPath, func(c echo.Context) error {
		return issueToken(c, cfg, logger)
	}, middlewares...)
}

func issueToken(c echo.Context, cfg TokenConfig, logger *zap.Logger) error {
	if cfg.APIKey == "" || cfg.ProjectID == "" {
		logger.Error("Token request failed: server credentials not configured",
			zap.Bool("api_key_set", cfg.APIKey != ""),
			zap.Bool("project_id_set", cfg.ProjectID != ""))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   ErrorCodeServerMisconfigured,
			Message: "Server configuration error",
			Details: "DEEPGRAM_API_KEY and DEEPGRAM_PROJECT_ID must be set",
		})
	}

	logger.Info("Agent credential issued", zap.String("remote_ip", c.RealIP()))

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     cfg.APIKey,
		ProjectID: cfg.ProjectID,
		Note:      "Use this token as the voice agent socket credential",
	})
}

// operatorAuth requires an operator JWT in the Authorization header
func operatorAuth(secret []byte, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			if token == "" {
				logger.Warn("Token request rejected: missing bearer token")
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   ErrorCodeMissingToken,
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := auth.ValidateToken(secret, token)
			if err != nil {
				logger.Warn("Token request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   ErrorCodeInvalidToken,
					Message: "Invalid or expired JWT token",
				})
			}

			if claims.Role != auth.RoleOperator {
				logger.Warn("Token request rejected: invalid role",
					zap.String("role", claims.Role))
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   ErrorCodeInvalidRole,
					Message: "Only operator tokens may request agent credentials",
				})
			}

			return next(c)
		}
	}
}

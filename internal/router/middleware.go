package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/teamledger/internal/authz"
	"github.com/teamledger/internal/config"
	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Content-Type", "Authorization", requestIDHeader}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials); allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", requestIDHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	for _, allowed := range allowedOrigins {
		if allowed != "*" {
			continue
		}
		if allowCredentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(shared.ContextKeyRequestID, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Z()
	}
	sugar := log.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"request_id", c.GetString(shared.ContextKeyRequestID),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if operator := c.GetString(shared.ContextKeyOperator); operator != "" {
			fields = append(fields, "operator", operator)
		}
		if len(c.Errors) > 0 {
			sugar.Errorw("request", append(fields, "errors", c.Errors.String())...)
			return
		}
		sugar.Infow("request", fields...)
	}
}

// OperatorAuthMiddleware 运营人员 Bearer 令牌鉴权
func OperatorAuthMiddleware(tokens *service.OperatorTokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			response.Unauthorized(c, "鉴权服务未配置")
			c.Abort()
			return
		}
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Unauthorized(c, "缺少 Authorization 请求头")
			c.Abort()
			return
		}
		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || strings.TrimSpace(tokenString) == "" {
			response.Unauthorized(c, "Authorization 格式错误")
			c.Abort()
			return
		}
		claims, err := tokens.Parse(strings.TrimSpace(tokenString))
		if err != nil {
			response.Unauthorized(c, "无效的 token")
			c.Abort()
			return
		}
		c.Set(shared.ContextKeyOperator, claims.Operator)
		c.Set(shared.ContextKeyClaims, claims)
		c.Next()
	}
}

// SiteScopeMiddleware 校验令牌的站点范围是否覆盖路径中的 :site_id
func SiteScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		siteID, err := shared.ParseParamUint(c, "site_id")
		if err != nil || siteID == 0 {
			response.BadRequest(c, "站点ID无效")
			c.Abort()
			return
		}
		claims := shared.Claims(c)
		if !claims.CanAccessSite(siteID) {
			logger.Warnw("operator_site_forbidden",
				"operator", c.GetString(shared.ContextKeyOperator),
				"site_id", siteID,
				"path", c.Request.URL.Path,
			)
			response.Forbidden(c, "无权访问该站点")
			c.Abort()
			return
		}
		c.Set(shared.ContextKeySiteID, siteID)
		c.Next()
	}
}

// SuperOperatorMiddleware 仅允许全站点令牌访问
func SuperOperatorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := shared.Claims(c)
		if claims == nil || claims.SiteID != 0 {
			response.Forbidden(c, "需要全站点权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

// OperatorRBACMiddleware 站点级令牌按角色策略鉴权，全站点令牌直接放行
func OperatorRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := shared.Claims(c)
		if claims == nil {
			response.Unauthorized(c, "未登录")
			c.Abort()
			return
		}
		if claims.SiteID == 0 {
			c.Next()
			return
		}
		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}
		allowed, err := authzService.EnforceOperator(claims.Operator, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("operator_rbac_enforce_failed",
				"operator", claims.Operator,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Forbidden(c, "无权限")
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("operator_rbac_permission_denied",
				"operator", claims.Operator,
				"site_id", claims.SiteID,
				"method", c.Request.Method,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, "无权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

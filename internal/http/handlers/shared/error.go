package shared

import (
	"errors"

	"github.com/teamledger/internal/authz"
	"github.com/teamledger/internal/cache"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/logger"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if id := c.GetString(ContextKeyRequestID); id != "" {
		return logger.SW("request_id", id)
	}
	return logger.S()
}

var serviceErrorCodes = []struct {
	target error
	code   int
}{
	{service.ErrSiteNotFound, response.CodeNotFound},
	{service.ErrTierNotFound, response.CodeNotFound},
	{service.ErrUserNotFound, response.CodeNotFound},
	{service.ErrCardNotFound, response.CodeNotFound},
	{service.ErrCardOrderNotFound, response.CodeNotFound},
	{service.ErrMonthNotFound, response.CodeNotFound},
	{service.ErrPaymentNotFound, response.CodeNotFound},
	{service.ErrImportNotFound, response.CodeNotFound},
	{service.ErrMonthAlreadyClosed, response.CodeConflict},
	{service.ErrMonthClosing, response.CodeConflict},
	{service.ErrPaymentStateInvalid, response.CodeConflict},
	{service.ErrPaymentNotOpen, response.CodeConflict},
	{service.ErrCardOrderExpedited, response.CodeConflict},
	{service.ErrCardOrderRejected, response.CodeConflict},
	{service.ErrCardOrderNotExpedited, response.CodeConflict},
	{service.ErrCardOrderLocked, response.CodeConflict},
	{service.ErrCardAlreadyOwned, response.CodeConflict},
	{service.ErrSellerWithoutCard, response.CodeUnprocessableEntity},
	{service.ErrTierCatalogEmpty, response.CodeUnprocessableEntity},
	{service.ErrImportColumnMissing, response.CodeUnprocessableEntity},
	{service.ErrImportRowInvalid, response.CodeUnprocessableEntity},
	{service.ErrRateVectorInvalid, response.CodeBadRequest},
	{service.ErrInvalidInput, response.CodeBadRequest},
	{cache.ErrLeaseHeld, response.CodeConflict},
	{authz.ErrUnknownRole, response.CodeUnprocessableEntity},
	{authz.ErrInvalidName, response.CodeBadRequest},
}

// MapServiceError 将业务错误映射为带状态码的 AppError，未知错误返回 nil
func MapServiceError(err error) *response.AppError {
	if err == nil {
		return nil
	}
	for _, item := range serviceErrorCodes {
		if errors.Is(err, item.target) {
			// 导入校验错误带有行号等细节，直接透出完整信息
			return response.WrapError(item.code, err.Error(), err)
		}
	}
	return nil
}

// RespondServiceError 输出业务错误；未识别的错误记录日志并返回内部错误
func RespondServiceError(c *gin.Context, err error) {
	if appErr := MapServiceError(err); appErr != nil {
		response.Error(c, appErr.Code, appErr.Message)
		return
	}
	RespondErrorWithMsg(c, response.CodeInternal, "服务器内部错误", err)
}

// RespondErrorWithMsg 返回自定义消息错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

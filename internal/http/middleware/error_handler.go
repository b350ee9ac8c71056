package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/pkg/apperror"
)

const internalMessage = "внутренняя ошибка сервера"

// ErrorHandler обрабатывает ошибки, добавленные через c.Error, если ответ ещё не отправлен.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		status, message := StatusOf(c.Errors.Last().Err)
		if status >= http.StatusInternalServerError {
			logger.Log.WithFields(logrus.Fields{
				"error":  c.Errors.Last().Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("ошибка запроса")
		}
		c.JSON(status, gin.H{"error": message})
	}
}

// StatusOf переводит ошибку в HTTP статус и сообщение для клиента.
// Ошибки без AppError и внутренние ошибки маскируются.
func StatusOf(err error) (int, string) {
	appErr, ok := apperror.As(err)
	if !ok || appErr.HTTPStatus == 0 {
		return http.StatusInternalServerError, internalMessage
	}
	if appErr.Code == apperror.ErrCodeInternal {
		return appErr.HTTPStatus, internalMessage
	}
	return appErr.HTTPStatus, appErr.Message
}

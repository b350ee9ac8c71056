package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cutflow/cutflow-backend/internal/storage"
)

// SignedFiles проверяет подписанные ссылки локального хранилища.
type SignedFiles interface {
	Open(relativePath, expires, signature string) (string, error)
}

// UploadsHandler отдаёт материалы только по действующей подписанной ссылке.
type UploadsHandler struct {
	files SignedFiles
}

// NewUploadsHandler создаёт раздачу материалов.
func NewUploadsHandler(files SignedFiles) *UploadsHandler {
	return &UploadsHandler{files: files}
}

// Serve обрабатывает GET /uploads/*filepath?expires=...&signature=...
func (h *UploadsHandler) Serve(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("filepath"), "/")
	target, err := h.files.Open(path, c.Query("expires"), c.Query("signature"))
	switch {
	case errors.Is(err, storage.ErrLinkExpired):
		c.JSON(http.StatusForbidden, gin.H{"error": "срок ссылки истёк"})
		return
	case err != nil:
		// без подписи не раскрываем, существует ли файл
		c.JSON(http.StatusNotFound, gin.H{"error": "файл не найден"})
		return
	}

	c.Header("Cache-Control", "private, no-store")
	c.File(target)
}

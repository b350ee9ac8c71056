package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cutflow/cutflow-backend/internal/http/handlers/common"
	"github.com/cutflow/cutflow-backend/internal/logger"
	"github.com/cutflow/cutflow-backend/internal/http/middleware"
	"github.com/cutflow/cutflow-backend/internal/service"
)

// youtubeReturnPath страница фронтенда, куда возвращается пользователь после OAuth.
const youtubeReturnPath = "/settings/youtube"

// YouTubeLinker подключение канала YouTube.
type YouTubeLinker interface {
	ConnectURL(userID uuid.UUID) (string, error)
	Callback(ctx context.Context, code, state string) (uuid.UUID, error)
	Status(ctx context.Context, userID uuid.UUID) (*service.YouTubeStatus, error)
	Disconnect(ctx context.Context, userID uuid.UUID) error
}

// YouTubeHandler ведёт OAuth подключение канала.
type YouTubeHandler struct {
	youtube     YouTubeLinker
	frontendURL string
	log         *logrus.Entry
}

func NewYouTubeHandler(youtube YouTubeLinker, frontendURL string) *YouTubeHandler {
	return &YouTubeHandler{
		youtube:     youtube,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         logger.Component("youtube_handler"),
	}
}

// Connect обрабатывает GET /youtube/connect. С ?mode=json отдаёт ссылку вместо редиректа,
// чтобы SPA могла перейти по ней сама.
func (h *YouTubeHandler) Connect(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	consentURL, err := h.youtube.ConnectURL(userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	if c.Query("mode") == "json" {
		c.JSON(http.StatusOK, gin.H{"url": consentURL})
		return
	}
	c.Redirect(http.StatusFound, consentURL)
}

// Callback обрабатывает GET /youtube/callback. Пользователь определяется по state, а не по заголовку.
func (h *YouTubeHandler) Callback(c *gin.Context) {
	if denied := c.Query("error"); denied != "" {
		h.redirect(c, url.Values{"status": {"error"}, "reason": {denied}})
		return
	}

	userID, err := h.youtube.Callback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		_, message := middleware.StatusOf(err)
		h.log.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("подключение YouTube не удалось")
		h.redirect(c, url.Values{"status": {"error"}, "reason": {message}})
		return
	}
	h.redirect(c, url.Values{"status": {"connected"}})
}

// Status обрабатывает GET /youtube/status.
func (h *YouTubeHandler) Status(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	status, err := h.youtube.Status(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Disconnect обрабатывает DELETE /youtube.
func (h *YouTubeHandler) Disconnect(c *gin.Context) {
	userID, _, ok := common.CurrentUser(c)
	if !ok {
		return
	}

	if err := h.youtube.Disconnect(c.Request.Context(), userID); err != nil {
		common.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *YouTubeHandler) redirect(c *gin.Context, query url.Values) {
	c.Redirect(http.StatusFound, h.frontendURL+youtubeReturnPath+"?"+query.Encode())
}

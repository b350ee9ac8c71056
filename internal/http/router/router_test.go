package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutflow/cutflow-backend/internal/config"
	"github.com/cutflow/cutflow-backend/internal/http/handlers"
	"github.com/cutflow/cutflow-backend/internal/storage"
)

func newUploadsRouter(t *testing.T) (*gin.Engine, *storage.LocalStorage, uuid.UUID, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	files, err := storage.NewLocalStorage(t.TempDir(), UploadsPrefix, 1, "router-test-key")
	require.NoError(t, err)
	orderID := uuid.New()
	obj, err := files.Save(context.Background(), orderID, "cut.mp4", "video/mp4", bytes.NewReader([]byte("video-bytes")))
	require.NoError(t, err)

	cfg := &config.Config{Env: "test", RateLimitLimit: 10, RateLimitPeriod: time.Minute}
	r := SetupRouter(cfg, Handlers{Uploads: handlers.NewUploadsHandler(files)}, nil)
	return r, files, orderID, obj.Path
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestUploads_NoDirectoryListing(t *testing.T) {
	r, _, orderID, _ := newUploadsRouter(t)

	for _, target := range []string{"/uploads/", "/uploads", "/uploads/" + orderID.String() + "/"} {
		w := get(r, target)
		assert.NotEqual(t, http.StatusOK, w.Code, target)
		assert.NotContains(t, w.Body.String(), "cut.mp4", target)
	}
}

func TestUploads_RequiresSignedLink(t *testing.T) {
	r, files, _, path := newUploadsRouter(t)

	link, err := files.Link(context.Background(), path, time.Minute)
	require.NoError(t, err)

	w := get(r, link)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video-bytes", w.Body.String())

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, get(r, parsed.Path).Code)

	query := parsed.Query()
	query.Set("signature", strings.Repeat("0", len(query.Get("signature"))))
	assert.Equal(t, http.StatusNotFound, get(r, parsed.Path+"?"+query.Encode()).Code)

	query = parsed.Query()
	query.Set("expires", "4102444800")
	assert.Equal(t, http.StatusNotFound, get(r, parsed.Path+"?"+query.Encode()).Code)
}

func TestUploads_NotMountedForRemoteStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: "test", RateLimitLimit: 10, RateLimitPeriod: time.Minute}
	r := SetupRouter(cfg, Handlers{}, nil)

	assert.Equal(t, http.StatusNotFound, get(r, "/uploads/any/file.mp4").Code)
}

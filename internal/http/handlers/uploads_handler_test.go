package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutflow/cutflow-backend/internal/storage"
)

type stubSignedFiles struct {
	target string
	err    error
	path   string
}

func (s *stubSignedFiles) Open(relativePath, expires, signature string) (string, error) {
	s.path = relativePath
	return s.target, s.err
}

func TestUploadsHandler_Serve(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cut.mp4")
	require.NoError(t, os.WriteFile(target, []byte("video"), 0o644))

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"valid", nil, http.StatusOK},
		{"expired", storage.ErrLinkExpired, http.StatusForbidden},
		{"invalid", storage.ErrInvalidLink, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			files := &stubSignedFiles{target: target, err: tc.err}
			r := newRouter(uuid.Nil, "")
			r.GET("/uploads/*filepath", NewUploadsHandler(files).Serve)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/order/cut.mp4?expires=1&signature=ab", nil))

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "order/cut.mp4", files.path)
			if tc.err == nil {
				assert.Equal(t, "video", w.Body.String())
				assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
			}
		})
	}
}

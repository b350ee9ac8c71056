package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutflow/cutflow-backend/internal/models"
	"github.com/cutflow/cutflow-backend/internal/service"
)

// captureDeliveries запоминает последний вход Submit вместе с содержимым файла.
type captureDeliveries struct {
	in      service.DeliveryInput
	content string
	err     error
}

func (c *captureDeliveries) Submit(_ context.Context, _, orderID uuid.UUID, in service.DeliveryInput) (*models.Delivery, *models.Order, error) {
	c.in = in
	if in.File != nil {
		raw, _ := io.ReadAll(in.File)
		c.content = string(raw)
	}
	if c.err != nil {
		return nil, nil, c.err
	}
	return &models.Delivery{ID: uuid.New(), OrderID: orderID, Kind: strings.ToUpper(in.Kind)}, &models.Order{ID: orderID}, nil
}

func (c *captureDeliveries) List(context.Context, uuid.UUID, string, uuid.UUID) ([]models.Delivery, error) {
	return []models.Delivery{}, nil
}

func (c *captureDeliveries) Link(context.Context, uuid.UUID, string, uuid.UUID) (*service.DeliveryLink, error) {
	return &service.DeliveryLink{URL: "https://cdn.example.com/v.mp4"}, nil
}

func TestDeliveryHandler_SubmitMultipartFile(t *testing.T) {
	deliveries := &captureDeliveries{}
	h := NewDeliveryHandler(deliveries)
	r := newRouter(uuid.New(), models.RoleEditor)
	r.POST("/orders/:id/deliveries", h.Submit)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("kind", "preview"))
	require.NoError(t, form.WriteField("note", "первая версия"))
	part, err := form.CreateFormFile("file", "cut.mp4")
	require.NoError(t, err)
	_, _ = part.Write([]byte("video-bytes"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/deliveries", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "preview", deliveries.in.Kind)
	assert.Equal(t, "первая версия", deliveries.in.Note)
	assert.Equal(t, "cut.mp4", deliveries.in.FileName)
	assert.Equal(t, "video-bytes", deliveries.content)
}

func TestDeliveryHandler_SubmitLinkAsForm(t *testing.T) {
	deliveries := &captureDeliveries{}
	h := NewDeliveryHandler(deliveries)
	r := newRouter(uuid.New(), models.RoleEditor)
	r.POST("/orders/:id/deliveries", h.Submit)

	form := url.Values{"kind": {"final"}, "url": {"https://drive.example.com/final"}}
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/deliveries", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Nil(t, deliveries.in.File)
	assert.Equal(t, "https://drive.example.com/final", deliveries.in.URL)
}

func TestDeliveryHandler_Link(t *testing.T) {
	h := NewDeliveryHandler(&captureDeliveries{})
	r := newRouter(uuid.New(), models.RoleCreator)
	r.GET("/deliveries/:id/link", h.Link)

	w := doJSON(r, http.MethodGet, "/deliveries/"+uuid.NewString()+"/link", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://cdn.example.com/v.mp4", decode(t, w)["url"])
}

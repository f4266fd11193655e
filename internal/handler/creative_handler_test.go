package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvm-platform/cvm-admin-api/internal/middleware"
	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/internal/service"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

type creativeServiceMock struct {
	created   *models.OfferCreative
	createErr error
	rendered  *service.RenderedCreative
	stats     *models.CreativeStats
	lastReq   interface{}
}

func (m *creativeServiceMock) List(ctx context.Context, filter models.CreativeFilter) ([]models.OfferCreative, *models.Pagination, error) {
	m.lastReq = filter
	return []models.OfferCreative{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (m *creativeServiceMock) Get(ctx context.Context, id int64) (*models.OfferCreative, error) {
	if m.created != nil && m.created.ID == id {
		return m.created, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "creative not found")
}

func (m *creativeServiceMock) Create(ctx context.Context, req service.CreateCreativeRequest, userID int64) (*models.OfferCreative, error) {
	m.lastReq = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.created, nil
}

func (m *creativeServiceMock) Update(ctx context.Context, id int64, req service.UpdateCreativeRequest, userID int64) (*models.OfferCreative, error) {
	m.lastReq = req
	return m.created, nil
}

func (m *creativeServiceMock) Delete(ctx context.Context, id int64, userID int64) error {
	return nil
}

func (m *creativeServiceMock) Versions(ctx context.Context, id int64) ([]models.OfferCreative, error) {
	return []models.OfferCreative{}, nil
}

func (m *creativeServiceMock) Clone(ctx context.Context, id int64, req service.CloneCreativeRequest, userID int64) (*models.OfferCreative, error) {
	m.lastReq = req
	return m.created, nil
}

func (m *creativeServiceMock) Rollback(ctx context.Context, id int64, version int, userID int64) (*models.OfferCreative, error) {
	return m.created, nil
}

func (m *creativeServiceMock) Stats(ctx context.Context) (*models.CreativeStats, error) {
	return m.stats, nil
}

func (m *creativeServiceMock) Render(ctx context.Context, req service.RenderCreativeRequest) (*service.RenderedCreative, error) {
	m.lastReq = req
	return m.rendered, nil
}

func newTestContext(t *testing.T, method, path string, payload interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 9, Role: models.RoleMarketer})
	return c, w
}

func TestCreativeHandlerCreate(t *testing.T) {
	mock := &creativeServiceMock{created: &models.OfferCreative{ID: 1, OfferID: 42, Version: 1}}
	handler := NewCreativeHandler(mock, nil)

	c, w := newTestContext(t, http.MethodPost, "/creatives", service.CreateCreativeRequest{
		OfferID: 42, Channel: "SMS", Locale: "en", TextBody: "Hi {{name}}",
	})
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	req := mock.lastReq.(service.CreateCreativeRequest)
	assert.Equal(t, int64(42), req.OfferID)
}

func TestCreativeHandlerCreateInvalidBody(t *testing.T) {
	handler := NewCreativeHandler(&creativeServiceMock{}, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/creatives", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreativeHandlerCreateConflict(t *testing.T) {
	mock := &creativeServiceMock{createErr: appErrors.Clone(appErrors.ErrConflict, "creative version already exists")}
	handler := NewCreativeHandler(mock, nil)

	c, w := newTestContext(t, http.MethodPost, "/creatives", service.CreateCreativeRequest{
		OfferID: 42, Channel: "SMS", Locale: "en",
	})
	handler.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreativeHandlerGetInvalidID(t *testing.T) {
	handler := NewCreativeHandler(&creativeServiceMock{}, nil)

	c, w := newTestContext(t, http.MethodGet, "/creatives/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.Get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreativeHandlerRender(t *testing.T) {
	mock := &creativeServiceMock{rendered: &service.RenderedCreative{TextBody: "Hi Ama"}}
	handler := NewCreativeHandler(mock, service.NewMetricsService())

	c, w := newTestContext(t, http.MethodPost, "/creatives/render", service.RenderCreativeRequest{
		TextBody:  "Hi {{name}}",
		Variables: models.JSONMap{"name": "Ama"},
	})
	handler.Render(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			TextBody string `json:"text_body"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "Hi Ama", envelope.Data.TextBody)
}

func TestCreativeHandlerListParsesFilters(t *testing.T) {
	mock := &creativeServiceMock{}
	handler := NewCreativeHandler(mock, nil)

	c, w := newTestContext(t, http.MethodGet, "/creatives?offer_id=42&channel=SMS&latest=true&page=2&page_size=10", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	filter := mock.lastReq.(models.CreativeFilter)
	require.NotNil(t, filter.OfferID)
	assert.Equal(t, int64(42), *filter.OfferID)
	assert.Equal(t, models.ChannelSMS, filter.Channel)
	assert.True(t, filter.LatestOnly)
	assert.Equal(t, 2, filter.Page)
	assert.Equal(t, 10, filter.PageSize)
}

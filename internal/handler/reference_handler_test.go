package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvm-platform/cvm-admin-api/internal/configstore"
	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/internal/service"
)

func newReferenceHandler() *ReferenceHandler {
	store := configstore.New(nil, nil)
	svc := service.NewReferenceService(store, nil, nil)
	return NewReferenceHandler(svc)
}

func TestReferenceHandlerTypes(t *testing.T) {
	handler := newReferenceHandler()

	c, w := newTestContext(t, http.MethodGet, "/reference", nil)
	handler.Types(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.ReferenceTypeCreativeTemplates)
}

func TestReferenceHandlerCreateAndGet(t *testing.T) {
	handler := newReferenceHandler()

	c, w := newTestContext(t, http.MethodPost, "/reference/departments", service.ReferenceItemInput{
		Name:        "Marketing",
		Description: "Campaign planning",
	})
	c.Params = gin.Params{{Key: "type", Value: models.ReferenceTypeDepartments}}
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext(t, http.MethodGet, "/reference/departments/1", nil)
	c.Params = gin.Params{
		{Key: "type", Value: models.ReferenceTypeDepartments},
		{Key: "id", Value: "1"},
	}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Marketing")
}

func TestReferenceHandlerCreateValidationError(t *testing.T) {
	handler := newReferenceHandler()

	c, w := newTestContext(t, http.MethodPost, "/reference/departments", service.ReferenceItemInput{
		Description: "missing name",
	})
	c.Params = gin.Params{{Key: "type", Value: models.ReferenceTypeDepartments}}
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Name is required")
}

func TestReferenceHandlerUnknownType(t *testing.T) {
	handler := newReferenceHandler()

	c, w := newTestContext(t, http.MethodGet, "/reference/noSuchList", nil)
	c.Params = gin.Params{{Key: "type", Value: "noSuchList"}}
	handler.List(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReferenceHandlerPreview(t *testing.T) {
	handler := newReferenceHandler()

	c, w := newTestContext(t, http.MethodPost, "/reference/preview", service.PreviewRequest{
		TextBody:  "Hello {{name}}",
		Variables: `{"name":"Kojo"}`,
	})
	handler.Preview(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello Kojo")
}

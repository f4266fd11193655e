package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvm-platform/cvm-admin-api/internal/configstore"
	"github.com/cvm-platform/cvm-admin-api/internal/models"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

type auditorStub struct {
	entries []string
}

func (a *auditorStub) Record(action, resource, resourceID string, userID int64, oldValue, newValue interface{}) {
	a.entries = append(a.entries, action+":"+resource+":"+resourceID)
}

func newReferenceService(t *testing.T) (*ReferenceService, *auditorStub) {
	t.Helper()
	store := configstore.New(nil, nil)
	auditor := &auditorStub{}
	return NewReferenceService(store, auditor, nil), auditor
}

func TestReferenceServiceCreateAndSearch(t *testing.T) {
	svc, auditor := newReferenceService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.ReferenceTypeDepartments, ReferenceItemInput{
		Name:        "Marketing",
		Description: "Campaign planning and execution",
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	_, err = svc.Create(ctx, models.ReferenceTypeDepartments, ReferenceItemInput{
		Name:        "Sales",
		Description: "Field and telesales teams",
	}, 1)
	require.NoError(t, err)

	items, err := svc.List(ctx, models.ReferenceTypeDepartments, "telesales")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Sales", items[0].Name)

	items, err = svc.List(ctx, models.ReferenceTypeDepartments, "")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	assert.Len(t, auditor.entries, 2)
}

func TestReferenceServiceUnknownType(t *testing.T) {
	svc, _ := newReferenceService(t)
	_, err := svc.List(context.Background(), "noSuchList", "")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReferenceServiceNameLengthBoundary(t *testing.T) {
	svc, _ := newReferenceService(t)
	ctx := context.Background()
	desc, err := svc.Descriptor(models.ReferenceTypeDepartments)
	require.NoError(t, err)

	atLimit := strings.Repeat("a", desc.Name.MaxLength)
	_, err = svc.Create(ctx, models.ReferenceTypeDepartments, ReferenceItemInput{
		Name:        atLimit,
		Description: "within bounds",
	}, 1)
	assert.NoError(t, err)

	overLimit := atLimit + "a"
	_, err = svc.Create(ctx, models.ReferenceTypeDepartments, ReferenceItemInput{
		Name:        overLimit,
		Description: "one char too many",
	}, 1)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, desc.Name.TooLongMessage, appErr.Message)
}

func TestReferenceServiceRequiredFields(t *testing.T) {
	svc, _ := newReferenceService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.ReferenceTypeDepartments, ReferenceItemInput{
		Name: "   ",
	}, 1)
	require.Error(t, err)
	assert.Equal(t, "Name is required", appErrors.FromError(err).Message)

	_, err = svc.Create(ctx, models.ReferenceTypeDepartments, ReferenceItemInput{
		Name: "Finance",
	}, 1)
	require.Error(t, err)
	assert.Equal(t, "Description is required", appErrors.FromError(err).Message)
}

func TestReferenceServiceVariablesMustBeJSONObject(t *testing.T) {
	svc, _ := newReferenceService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.ReferenceTypeCreativeTemplates, ReferenceItemInput{
		Name:      "Welcome SMS",
		TextBody:  "Hi {{name}}",
		Variables: "[1,2,3]",
	}, 1)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "JSON object")

	_, err = svc.Create(ctx, models.ReferenceTypeCreativeTemplates, ReferenceItemInput{
		Name:      "Welcome SMS",
		TextBody:  "Hi {{name}}",
		Variables: "{not json",
	}, 1)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "valid JSON")

	created, err := svc.Create(ctx, models.ReferenceTypeCreativeTemplates, ReferenceItemInput{
		Name:      "Welcome SMS",
		TextBody:  "Hi {{name}}",
		Variables: `{"a":1}`,
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), created.Variables["a"])
}

func TestReferenceServiceUpdateMissingItem(t *testing.T) {
	svc, _ := newReferenceService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, models.ReferenceTypeOfferTypes, 999, ReferenceItemInput{
		Name: "Voice Bundle",
	}, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReferenceServiceDelete(t *testing.T) {
	svc, auditor := newReferenceService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.ReferenceTypeOfferTypes, ReferenceItemInput{Name: "Data Bundle"}, 7)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, models.ReferenceTypeOfferTypes, created.ID, 7))
	assert.Error(t, svc.Delete(ctx, models.ReferenceTypeOfferTypes, created.ID, 7))
	assert.Len(t, auditor.entries, 2)
}

func TestReferenceServicePreview(t *testing.T) {
	svc, _ := newReferenceService(t)

	out, err := svc.Preview(context.Background(), PreviewRequest{
		TextBody:  "Dear {{name}}, enjoy {{gb}}GB free!",
		Variables: `{"name":"Amina","gb":5}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear Amina, enjoy 5GB free!", out)

	_, err = svc.Preview(context.Background(), PreviewRequest{
		TextBody:  "Hi",
		Variables: `"just a string"`,
	})
	assert.Error(t, err)
}

package configstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
)

type snapshotStub struct {
	lists   map[string][]models.ReferenceItem
	loadErr error
	saveErr error
	saves   int
}

func (s *snapshotStub) Load() (map[string][]models.ReferenceItem, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.lists, nil
}

func (s *snapshotStub) Save(lists map[string][]models.ReferenceItem) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.lists = lists
	return nil
}

func newTestStore(t *testing.T) (*Store, *snapshotStub) {
	t.Helper()
	snap := &snapshotStub{lists: map[string][]models.ReferenceItem{}}
	return New(snap, nil), snap
}

func TestAddAssignsMaxPlusOne(t *testing.T) {
	store, _ := newTestStore(t)
	store.Set("departments", []models.ReferenceItem{{ID: 1}, {ID: 3}, {ID: 5}})

	item := store.Add("departments", models.ReferenceItem{Name: "Ops"})
	assert.Equal(t, int64(6), item.ID)
}

func TestAddOnEmptyListStartsAtOne(t *testing.T) {
	store, _ := newTestStore(t)
	item := store.Add("departments", models.ReferenceItem{Name: "Sales"})
	assert.Equal(t, int64(1), item.ID)
	assert.False(t, item.CreatedAt.IsZero())
	assert.False(t, item.UpdatedAt.IsZero())
}

func TestUpdateMissingIDReturnsNilWithoutSideEffects(t *testing.T) {
	store, snap := newTestStore(t)
	store.Add("departments", models.ReferenceItem{Name: "Sales"})

	notified := 0
	store.Subscribe("departments", func([]models.ReferenceItem) { notified++ })
	savesBefore := snap.saves

	name := "Changed"
	result := store.Update("departments", 9999, models.ReferencePatch{Name: &name})
	assert.Nil(t, result)
	assert.Equal(t, 0, notified)
	assert.Equal(t, savesBefore, snap.saves)
	assert.Equal(t, "Sales", store.Get("departments")[0].Name)
}

func TestDeleteMissingIDReturnsFalse(t *testing.T) {
	store, _ := newTestStore(t)
	store.Add("departments", models.ReferenceItem{Name: "Sales"})

	assert.False(t, store.Delete("departments", 9999))
	assert.Len(t, store.Get("departments"), 1)
}

func TestCreateUpdateDeleteLifecycle(t *testing.T) {
	store, _ := newTestStore(t)

	created := store.Add("departments", models.ReferenceItem{Name: "Sales", Description: "desc"})
	list := store.Get("departments")
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, "Sales", list[0].Name)
	assert.False(t, list[0].CreatedAt.IsZero())

	name := "Sales Team"
	updated := store.Update("departments", 1, models.ReferencePatch{Name: &name})
	require.NotNil(t, updated)
	list = store.Get("departments")
	assert.Equal(t, "Sales Team", list[0].Name)
	assert.True(t, list[0].UpdatedAt.After(created.UpdatedAt))

	assert.True(t, store.Delete("departments", 1))
	assert.Empty(t, store.Get("departments"))
}

func TestSubscribeNotifiesWithCopy(t *testing.T) {
	store, _ := newTestStore(t)

	var seen []models.ReferenceItem
	unsubscribe := store.Subscribe("departments", func(items []models.ReferenceItem) {
		seen = items
	})

	store.Add("departments", models.ReferenceItem{Name: "Sales"})
	require.Len(t, seen, 1)

	// Mutating what the listener received must not leak into the store.
	seen[0].Name = "Hacked"
	assert.Equal(t, "Sales", store.Get("departments")[0].Name)

	unsubscribe()
	store.Add("departments", models.ReferenceItem{Name: "Ops"})
	assert.Len(t, seen, 1)
}

func TestSubscribersScopedToType(t *testing.T) {
	store, _ := newTestStore(t)

	calls := 0
	store.Subscribe("departments", func([]models.ReferenceItem) { calls++ })

	store.Add("lineOfBusiness", models.ReferenceItem{Name: "Prepaid"})
	assert.Equal(t, 0, calls)

	store.Add("departments", models.ReferenceItem{Name: "Sales"})
	assert.Equal(t, 1, calls)
}

func TestFirstRunSeedsDefaults(t *testing.T) {
	snap := &snapshotStub{}
	store := New(snap, nil)

	assert.NotEmpty(t, store.Get(models.ReferenceTypeDepartments))
	assert.Equal(t, 0, snap.saves)
}

func TestLoadFailureFallsBackToDefaults(t *testing.T) {
	snap := &snapshotStub{loadErr: errors.New("corrupt blob")}
	store := New(snap, nil)

	departments := store.Get(models.ReferenceTypeDepartments)
	assert.NotEmpty(t, departments)
	assert.NotEmpty(t, store.Get(models.ReferenceTypeLineOfBusiness))
	assert.NotEmpty(t, store.Get(models.ReferenceTypeCampaignObjectives))
}

func TestSaveFailureIsLoggedNotFatal(t *testing.T) {
	snap := &snapshotStub{lists: map[string][]models.ReferenceItem{}, saveErr: errors.New("disk full")}
	store := New(snap, nil)

	item := store.Add("departments", models.ReferenceItem{Name: "Sales"})
	assert.Equal(t, int64(1), item.ID)
	assert.Len(t, store.Get("departments"), 1)
}

func TestUpdatedAtStrictlyIncreasesWithFrozenClock(t *testing.T) {
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := &snapshotStub{lists: map[string][]models.ReferenceItem{}}
	store := New(snap, nil, WithClock(func() time.Time { return frozen }))

	created := store.Add("departments", models.ReferenceItem{Name: "Sales"})
	name := "Sales Team"
	updated := store.Update("departments", created.ID, models.ReferencePatch{Name: &name})
	require.NotNil(t, updated)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

// Package configstore holds the small reference-data lists (departments,
// lines of business, campaign objectives, ...) that back the admin
// dashboard's configuration screens. The store keeps everything in
// memory, writes the whole map to a snapshot on every mutation, and
// notifies subscribers synchronously so list views stay current.
package configstore

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
)

// Snapshot persists the full configuration map wholesale. Lists are
// small (well under a thousand entries), so no incremental writes.
type Snapshot interface {
	Load() (map[string][]models.ReferenceItem, error)
	Save(map[string][]models.ReferenceItem) error
}

// Listener receives the new list contents after a mutation.
type Listener func(items []models.ReferenceItem)

// Option customises store construction.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the observable reference-data cache. All mutations are
// serialized behind a single mutex; snapshot writes happen inside the
// mutating call, listener callbacks right after it.
type Store struct {
	mu        sync.Mutex
	lists     map[string][]models.ReferenceItem
	listeners map[string]map[int64]Listener
	nextSub   int64

	snapshot Snapshot
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a store seeded from the snapshot. A failed load is logged
// and replaced by the built-in default lists; a nil snapshot result
// (first run) seeds the defaults silently.
func New(snapshot Snapshot, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		lists:     make(map[string][]models.ReferenceItem),
		listeners: make(map[string]map[int64]Listener),
		snapshot:  snapshot,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if snapshot != nil {
		loaded, err := snapshot.Load()
		switch {
		case err != nil:
			logger.Warn("reference snapshot load failed, using defaults", zap.Error(err))
			s.lists = DefaultLists(s.now())
		case loaded == nil:
			s.lists = DefaultLists(s.now())
		default:
			s.lists = loaded
		}
	}
	return s
}

// Get returns the current list for a type; an empty slice when the
// type has never been written.
func (s *Store) Get(listType string) []models.ReferenceItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.lists[listType])
}

// Set replaces the list, persists the snapshot and notifies
// subscribers for the type.
func (s *Store) Set(listType string, items []models.ReferenceItem) {
	s.mu.Lock()
	s.lists[listType] = copyItems(items)
	listeners := s.collectListeners(listType)
	snapshot := s.copyAllLocked()
	current := copyItems(s.lists[listType])
	s.mu.Unlock()

	s.persist(snapshot)
	for _, notify := range listeners {
		notify(copyItems(current))
	}
}

// Add assigns the next id (max existing + 1), stamps timestamps,
// appends, persists and notifies. Returns the stored item.
func (s *Store) Add(listType string, item models.ReferenceItem) models.ReferenceItem {
	s.mu.Lock()
	items := s.lists[listType]
	var maxID int64
	for _, existing := range items {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	now := s.now()
	item.ID = maxID + 1
	item.CreatedAt = now
	item.UpdatedAt = now
	s.lists[listType] = append(items, item)

	listeners := s.collectListeners(listType)
	snapshot := s.copyAllLocked()
	current := copyItems(s.lists[listType])
	s.mu.Unlock()

	s.persist(snapshot)
	for _, notify := range listeners {
		notify(copyItems(current))
	}
	return item
}

// Update merges the patch into the item with the given id and restamps
// updated_at. Returns nil when the id is absent; the list is then left
// untouched and no subscriber fires.
func (s *Store) Update(listType string, id int64, patch models.ReferencePatch) *models.ReferenceItem {
	s.mu.Lock()
	items := s.lists[listType]
	idx := -1
	for i := range items {
		if items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	item := &items[idx]
	applyPatch(item, patch)
	now := s.now()
	// updated_at must move strictly forward even on coarse clocks.
	if !now.After(item.UpdatedAt) {
		now = item.UpdatedAt.Add(time.Microsecond)
	}
	item.UpdatedAt = now
	updated := *item

	listeners := s.collectListeners(listType)
	snapshot := s.copyAllLocked()
	current := copyItems(items)
	s.mu.Unlock()

	s.persist(snapshot)
	for _, notify := range listeners {
		notify(copyItems(current))
	}
	return &updated
}

// Delete removes the item with the given id. Returns false when
// nothing was removed.
func (s *Store) Delete(listType string, id int64) bool {
	s.mu.Lock()
	items := s.lists[listType]
	filtered := items[:0:0]
	for _, item := range items {
		if item.ID != id {
			filtered = append(filtered, item)
		}
	}
	if len(filtered) == len(items) {
		s.mu.Unlock()
		return false
	}
	s.lists[listType] = filtered

	listeners := s.collectListeners(listType)
	snapshot := s.copyAllLocked()
	current := copyItems(filtered)
	s.mu.Unlock()

	s.persist(snapshot)
	for _, notify := range listeners {
		notify(copyItems(current))
	}
	return true
}

// Subscribe registers a listener fired after every mutation of the
// type. The returned func removes the listener.
func (s *Store) Subscribe(listType string, listener Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners[listType] == nil {
		s.listeners[listType] = make(map[int64]Listener)
	}
	s.nextSub++
	id := s.nextSub
	s.listeners[listType][id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[listType], id)
	}
}

// Types returns the list type names currently held by the store.
func (s *Store) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.lists))
	for name := range s.lists {
		names = append(names, name)
	}
	return names
}

func (s *Store) collectListeners(listType string) []Listener {
	registered := s.listeners[listType]
	listeners := make([]Listener, 0, len(registered))
	for _, l := range registered {
		listeners = append(listeners, l)
	}
	return listeners
}

func (s *Store) copyAllLocked() map[string][]models.ReferenceItem {
	out := make(map[string][]models.ReferenceItem, len(s.lists))
	for name, items := range s.lists {
		out[name] = copyItems(items)
	}
	return out
}

func (s *Store) persist(snapshot map[string][]models.ReferenceItem) {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.Save(snapshot); err != nil {
		s.logger.Warn("reference snapshot write failed", zap.Error(err))
	}
}

func applyPatch(item *models.ReferenceItem, patch models.ReferencePatch) {
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.IsActive != nil {
		active := *patch.IsActive
		item.IsActive = &active
	}
	if patch.MetadataValue != nil {
		item.MetadataValue = *patch.MetadataValue
	}
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.TextBody != nil {
		item.TextBody = *patch.TextBody
	}
	if patch.HTMLBody != nil {
		item.HTMLBody = *patch.HTMLBody
	}
	if patch.Variables != nil {
		item.Variables = patch.Variables
	}
	if patch.Locale != nil {
		item.Locale = *patch.Locale
	}
}

func copyItems(items []models.ReferenceItem) []models.ReferenceItem {
	out := make([]models.ReferenceItem, len(items))
	copy(out, items)
	return out
}

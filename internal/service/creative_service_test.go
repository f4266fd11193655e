package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

type creativeRepoStub struct {
	creatives map[int64]*models.OfferCreative
	versions  []models.OfferCreative
	nextID    int64
	createErr error
	stats     *models.CreativeStats
	statsErr  error
	statCalls int
	listCalls int
}

func (s *creativeRepoStub) List(ctx context.Context, filter models.CreativeFilter) ([]models.OfferCreative, int, error) {
	s.listCalls++
	out := []models.OfferCreative{}
	for _, c := range s.creatives {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (s *creativeRepoStub) FindByID(ctx context.Context, id int64) (*models.OfferCreative, error) {
	if c, ok := s.creatives[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *creativeRepoStub) FindVersion(ctx context.Context, offerID int64, channel models.Channel, locale string, version int) (*models.OfferCreative, error) {
	for i := range s.versions {
		v := s.versions[i]
		if v.OfferID == offerID && v.Channel == channel && v.Locale == locale && v.Version == version {
			clone := v
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *creativeRepoStub) ListVersions(ctx context.Context, offerID int64, channel models.Channel, locale string) ([]models.OfferCreative, error) {
	out := []models.OfferCreative{}
	for _, v := range s.versions {
		if v.OfferID == offerID && v.Channel == channel && v.Locale == locale {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *creativeRepoStub) Create(ctx context.Context, creative *models.OfferCreative) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	creative.ID = s.nextID
	maxVersion := 0
	for _, v := range s.versions {
		if v.OfferID == creative.OfferID && v.Channel == creative.Channel && v.Locale == creative.Locale && v.Version > maxVersion {
			maxVersion = v.Version
		}
	}
	creative.Version = maxVersion + 1
	creative.IsLatest = true
	if s.creatives == nil {
		s.creatives = map[int64]*models.OfferCreative{}
	}
	stored := *creative
	s.creatives[creative.ID] = &stored
	s.versions = append(s.versions, stored)
	return nil
}

func (s *creativeRepoStub) Update(ctx context.Context, creative *models.OfferCreative) error {
	if _, ok := s.creatives[creative.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *creative
	s.creatives[creative.ID] = &stored
	return nil
}

func (s *creativeRepoStub) Delete(ctx context.Context, id int64) error {
	if _, ok := s.creatives[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.creatives, id)
	return nil
}

func (s *creativeRepoStub) Stats(ctx context.Context) (*models.CreativeStats, error) {
	s.statCalls++
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return s.stats, nil
}

type offerRepoStub struct {
	offers map[int64]*models.Offer
}

func (s *offerRepoStub) FindByID(ctx context.Context, id int64) (*models.Offer, error) {
	if o, ok := s.offers[id]; ok {
		return o, nil
	}
	return nil, sql.ErrNoRows
}

type cacheStub struct {
	values map[string][]byte
	hits   int
	sets   int
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.values == nil {
		c.values = map[string][]byte{}
	}
	c.values[key] = raw
	c.sets++
	return nil
}

func (c *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	return nil
}

type metricsStub struct {
	cacheHits   int
	cacheMisses int
}

func (m *metricsStub) RecordCacheOperation(hit bool) {
	if hit {
		m.cacheHits++
		return
	}
	m.cacheMisses++
}

func newCreativeService(repo *creativeRepoStub, offers *offerRepoStub) (*CreativeService, *auditorStub) {
	auditor := &auditorStub{}
	svc := NewCreativeService(repo, offers, nil, nil, CreativeServiceConfig{Auditor: auditor})
	return svc, auditor
}

func TestCreativeServiceCreate(t *testing.T) {
	repo := &creativeRepoStub{}
	offers := &offerRepoStub{offers: map[int64]*models.Offer{42: {ID: 42, Name: "Double Data"}}}
	svc, auditor := newCreativeService(repo, offers)

	created, err := svc.Create(context.Background(), CreateCreativeRequest{
		OfferID:  42,
		Channel:  "SMS",
		Locale:   "en",
		Title:    "Welcome",
		TextBody: "Hi {{name}}",
	}, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, int64(9), created.CreatedBy)
	assert.True(t, created.IsActive)
	assert.Len(t, auditor.entries, 1)
}

func TestCreativeServiceCreateValidation(t *testing.T) {
	repo := &creativeRepoStub{}
	offers := &offerRepoStub{offers: map[int64]*models.Offer{42: {ID: 42}}}
	svc, _ := newCreativeService(repo, offers)

	cases := []CreateCreativeRequest{
		{OfferID: 42, Channel: "Telegram", Locale: "en"},
		{OfferID: 42, Channel: "SMS", Locale: "english"},
		{OfferID: 42, Channel: "SMS", Locale: "EN"},
		{Channel: "SMS", Locale: "en"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req, 1)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestCreativeServiceCreateUnknownOffer(t *testing.T) {
	repo := &creativeRepoStub{}
	svc, _ := newCreativeService(repo, &offerRepoStub{})

	_, err := svc.Create(context.Background(), CreateCreativeRequest{
		OfferID: 7, Channel: "SMS", Locale: "en",
	}, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreativeServiceCreateConflict(t *testing.T) {
	repo := &creativeRepoStub{createErr: &pq.Error{Code: "23505"}}
	offers := &offerRepoStub{offers: map[int64]*models.Offer{42: {ID: 42}}}
	svc, _ := newCreativeService(repo, offers)

	_, err := svc.Create(context.Background(), CreateCreativeRequest{
		OfferID: 42, Channel: "SMS", Locale: "en",
	}, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreativeServiceRenderDraft(t *testing.T) {
	svc, _ := newCreativeService(&creativeRepoStub{}, &offerRepoStub{})

	rendered, err := svc.Render(context.Background(), RenderCreativeRequest{
		Persisted: false,
		TextBody:  "Hi {{name}}, {{gb}}GB awaits. Bye {{name}}!",
		Variables: models.JSONMap{"name": "Kofi", "gb": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Kofi, 10GB awaits. Bye Kofi!", rendered.TextBody)
	assert.Empty(t, rendered.UnresolvedTokens)
}

func TestCreativeServiceRenderPersistedMergesDefaults(t *testing.T) {
	repo := &creativeRepoStub{creatives: map[int64]*models.OfferCreative{
		5: {
			ID:            5,
			OfferID:       42,
			Channel:       models.ChannelSMS,
			Locale:        "en",
			TextBody:      "Hello {{name}}, enjoy {{gb}}GB",
			DefaultValues: models.JSONMap{"name": "Customer", "gb": 1},
			Variables:     models.JSONMap{"gb": 5},
		},
	}}
	svc, _ := newCreativeService(repo, &offerRepoStub{})

	rendered, err := svc.Render(context.Background(), RenderCreativeRequest{
		Persisted: true,
		ID:        5,
		Variables: models.JSONMap{"name": "Ama"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ama, enjoy 5GB", rendered.TextBody)
}

func TestCreativeServiceRenderPersistedRequiresID(t *testing.T) {
	svc, _ := newCreativeService(&creativeRepoStub{}, &offerRepoStub{})

	_, err := svc.Render(context.Background(), RenderCreativeRequest{Persisted: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreativeServiceRenderUnknownTokensStayLiteral(t *testing.T) {
	svc, _ := newCreativeService(&creativeRepoStub{}, &offerRepoStub{})

	rendered, err := svc.Render(context.Background(), RenderCreativeRequest{
		TextBody:  "Hi {{name}}, your code is {{code}}",
		Variables: models.JSONMap{"name": "Esi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Esi, your code is {{code}}", rendered.TextBody)
	assert.Equal(t, []string{"code"}, rendered.UnresolvedTokens)
}

func TestCreativeServiceRenderCollectsHTMLTokens(t *testing.T) {
	svc, _ := newCreativeService(&creativeRepoStub{}, &offerRepoStub{})

	rendered, err := svc.Render(context.Background(), RenderCreativeRequest{
		TextBody:  "Hi {{name}}, see {{offer}}",
		HTMLBody:  "<p>Hi {{name}}, use {{code}} for {{offer}}</p>",
		Variables: models.JSONMap{"name": "Yaw"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Yaw, see {{offer}}", rendered.TextBody)
	assert.Equal(t, "<p>Hi Yaw, use {{code}} for {{offer}}</p>", rendered.HTMLBody)
	assert.Equal(t, []string{"offer", "code"}, rendered.UnresolvedTokens)
}

func TestCreativeServiceRollback(t *testing.T) {
	head := models.OfferCreative{
		ID: 2, OfferID: 42, Channel: models.ChannelSMS, Locale: "en",
		TextBody: "new copy", Version: 2, IsLatest: true,
	}
	old := models.OfferCreative{
		ID: 1, OfferID: 42, Channel: models.ChannelSMS, Locale: "en",
		TextBody: "old copy", Version: 1,
	}
	repo := &creativeRepoStub{
		creatives: map[int64]*models.OfferCreative{1: &old, 2: &head},
		versions:  []models.OfferCreative{old, head},
		nextID:    2,
	}
	svc, auditor := newCreativeService(repo, &offerRepoStub{})

	restored, err := svc.Rollback(context.Background(), 2, 1, 9)
	require.NoError(t, err)
	assert.Equal(t, "old copy", restored.TextBody)
	assert.Equal(t, 3, restored.Version)
	assert.Len(t, auditor.entries, 1)
}

func TestCreativeServiceRollbackVersionGone(t *testing.T) {
	head := models.OfferCreative{
		ID: 2, OfferID: 42, Channel: models.ChannelSMS, Locale: "en", Version: 2, IsLatest: true,
	}
	repo := &creativeRepoStub{
		creatives: map[int64]*models.OfferCreative{2: &head},
		versions:  []models.OfferCreative{head},
	}
	svc, _ := newCreativeService(repo, &offerRepoStub{})

	_, err := svc.Rollback(context.Background(), 2, 1, 9)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrVersionGone.Code, appErrors.FromError(err).Code)
}

func TestCreativeServiceClone(t *testing.T) {
	source := models.OfferCreative{
		ID: 1, OfferID: 42, Channel: models.ChannelEmail, Locale: "en",
		Title: "Promo", TextBody: "{{discount}} off", Version: 1, IsLatest: true, IsActive: true,
	}
	repo := &creativeRepoStub{
		creatives: map[int64]*models.OfferCreative{1: &source},
		versions:  []models.OfferCreative{source},
		nextID:    1,
	}
	offers := &offerRepoStub{offers: map[int64]*models.Offer{42: {ID: 42}, 77: {ID: 77}}}
	svc, _ := newCreativeService(repo, offers)

	clone, err := svc.Clone(context.Background(), 1, CloneCreativeRequest{TargetOfferID: 77}, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(77), clone.OfferID)
	assert.Equal(t, "Promo", clone.Title)
	assert.Equal(t, 1, clone.Version)

	_, err = svc.Clone(context.Background(), 1, CloneCreativeRequest{TargetOfferID: 42}, 9)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreativeServiceStatsUsesCache(t *testing.T) {
	repo := &creativeRepoStub{stats: &models.CreativeStats{Total: 3, Active: 2}}
	cache := &cacheStub{}
	svc := NewCreativeService(repo, &offerRepoStub{}, nil, nil, CreativeServiceConfig{Cache: cache})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, repo.statCalls)

	stats, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, repo.statCalls)
	assert.Equal(t, 1, cache.hits)
}

func TestCreativeServiceListUsesCache(t *testing.T) {
	repo := &creativeRepoStub{creatives: map[int64]*models.OfferCreative{
		1: {ID: 1, OfferID: 42, Channel: models.ChannelSMS, Locale: "en", Version: 1},
	}}
	cache := &cacheStub{}
	svc := NewCreativeService(repo, &offerRepoStub{}, nil, nil, CreativeServiceConfig{Cache: cache})

	filter := models.CreativeFilter{Page: 1, PageSize: 10}
	items, pagination, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, repo.listCalls)

	items, pagination, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, repo.listCalls)

	// A different filter is a different cache entry.
	_, _, err = svc.List(context.Background(), models.CreativeFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestCreativeServiceRecordsCacheMetrics(t *testing.T) {
	repo := &creativeRepoStub{stats: &models.CreativeStats{Total: 1, Active: 1}}
	cache := &cacheStub{}
	metrics := &metricsStub{}
	svc := NewCreativeService(repo, &offerRepoStub{}, nil, nil, CreativeServiceConfig{Cache: cache, Metrics: metrics})

	_, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.cacheMisses)
	assert.Equal(t, 0, metrics.cacheHits)

	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.cacheMisses)
	assert.Equal(t, 1, metrics.cacheHits)

	filter := models.CreativeFilter{Page: 1, PageSize: 10}
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.cacheMisses)
	assert.Equal(t, 2, metrics.cacheHits)
}

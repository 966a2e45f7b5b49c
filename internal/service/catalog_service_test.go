package service

import (
	"context"
	"errors"
	"testing"

	"slotbook/internal/database"
	"slotbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestCatalogService(repo *mockRepo) *CatalogService {
	return NewCatalogService(repo, nil, testBookingConfig(), discardLogger())
}

func newCachedCatalogService(repo *mockRepo, cache *mockCache) *CatalogService {
	return NewCatalogService(repo, cache, testBookingConfig(), discardLogger())
}

func TestCatalogService_CreateBusiness(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	s := newTestCatalogService(repo)

	err := s.CreateBusiness(ctx, &models.Business{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	repo.On("CreateBusiness", ctx, mock.Anything).Return(nil).Once()
	b := &models.Business{Name: " Salon "}
	require.NoError(t, s.CreateBusiness(ctx, b))
	assert.Equal(t, "Salon", b.Name)
	repo.AssertExpectations(t)
}

func TestCatalogService_SetOperatingHours(t *testing.T) {
	ctx := context.Background()

	invalid := []struct {
		name  string
		hours *models.OperatingHours
	}{
		{"Nil", nil},
		{"WeekdayTooLarge", &models.OperatingHours{BusinessID: 1, Weekday: 7, OpenTime: 540, CloseTime: 720, MaxConcurrentPerSlot: 1}},
		{"NegativeWeekday", &models.OperatingHours{BusinessID: 1, Weekday: -1, OpenTime: 540, CloseTime: 720, MaxConcurrentPerSlot: 1}},
		{"OpenAfterClose", &models.OperatingHours{BusinessID: 1, Weekday: 0, OpenTime: 720, CloseTime: 540, MaxConcurrentPerSlot: 1}},
		{"EmptyWindow", &models.OperatingHours{BusinessID: 1, Weekday: 0, OpenTime: 540, CloseTime: 540, MaxConcurrentPerSlot: 1}},
		{"ZeroCapacity", &models.OperatingHours{BusinessID: 1, Weekday: 0, OpenTime: 540, CloseTime: 720}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRepo)
			err := newTestCatalogService(repo).SetOperatingHours(ctx, tt.hours)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
			repo.AssertNotCalled(t, "UpsertOperatingHours", mock.Anything, mock.Anything)
		})
	}

	t.Run("UnknownBusiness", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetBusiness", ctx, int64(5)).Return(nil, database.ErrNotFound)
		h := mondayHours(1)
		h.BusinessID = 5
		err := newTestCatalogService(repo).SetOperatingHours(ctx, h)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("Upserts", func(t *testing.T) {
		repo := new(mockRepo)
		h := mondayHours(3)
		repo.On("GetBusiness", ctx, int64(1)).Return(&models.Business{ID: 1}, nil)
		repo.On("UpsertOperatingHours", ctx, h).Return(nil).Once()
		require.NoError(t, newTestCatalogService(repo).SetOperatingHours(ctx, h))
		repo.AssertExpectations(t)
	})
}

func TestCatalogService_CloseWeekday(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	s := newTestCatalogService(repo)

	assert.ErrorIs(t, s.CloseWeekday(ctx, 1, 9), ErrInvalidCatalog)

	repo.On("DeleteOperatingHours", ctx, int64(1), 2).Return(nil).Once()
	assert.NoError(t, s.CloseWeekday(ctx, 1, 2))
	repo.AssertExpectations(t)
}

func TestCatalogService_GetWeek(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	s := newTestCatalogService(repo)

	repo.On("GetBusiness", ctx, int64(1)).Return(&models.Business{ID: 1}, nil)
	repo.On("GetOperatingHours", ctx, int64(1), 0).Return(mondayHours(1), nil)
	repo.On("GetOperatingHours", ctx, int64(1), mock.AnythingOfType("int")).Return(nil, nil)

	week, err := s.GetWeek(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, week[0])
	for wd := 1; wd < 7; wd++ {
		assert.Nil(t, week[wd])
	}
}

func TestCatalogService_Services(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsDuration", func(t *testing.T) {
		repo := new(mockRepo)
		err := newTestCatalogService(repo).CreateService(ctx, &models.Service{BusinessID: 1, Name: "Cut", DurationMinutes: 45})
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})

	t.Run("RejectsEmptyName", func(t *testing.T) {
		repo := new(mockRepo)
		err := newTestCatalogService(repo).CreateService(ctx, &models.Service{BusinessID: 1, DurationMinutes: 30})
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})

	t.Run("Creates", func(t *testing.T) {
		repo := new(mockRepo)
		svc := &models.Service{BusinessID: 1, Name: "Cut", DurationMinutes: 30, CompetesWithOthers: true}
		repo.On("GetBusiness", ctx, int64(1)).Return(&models.Business{ID: 1}, nil)
		repo.On("CreateService", ctx, svc).Return(nil).Once()
		require.NoError(t, newTestCatalogService(repo).CreateService(ctx, svc))
		repo.AssertExpectations(t)
	})

	t.Run("UpdateKeepsBusiness", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetService", ctx, int64(4)).Return(&models.Service{ID: 4, BusinessID: 2, Name: "Old", DurationMinutes: 30}, nil)
		repo.On("UpdateService", ctx, mock.Anything).Return(nil).Once()

		svc := &models.Service{ID: 4, BusinessID: 9, Name: "New", DurationMinutes: 60}
		require.NoError(t, newTestCatalogService(repo).UpdateService(ctx, svc))
		assert.Equal(t, int64(2), svc.BusinessID)
	})
}

func TestCatalogService_ImportCatalog(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	s := newTestCatalogService(repo)

	private := false
	catalog := &models.Catalog{Businesses: []models.CatalogBusiness{{
		Name: "Salon",
		Hours: []models.CatalogHours{
			{Weekday: 0, Open: "09:00", Close: "17:00", MaxPerSlot: 2},
		},
		Services: []models.CatalogService{
			{Name: "Cut", DurationMinutes: 30},
			{Name: "Color", DurationMinutes: 60, CompetesWithOthers: &private},
		},
	}}}

	repo.On("CreateBusiness", ctx, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Business).ID = 1
	}).Return(nil)
	repo.On("GetBusiness", ctx, int64(1)).Return(&models.Business{ID: 1}, nil)
	repo.On("UpsertOperatingHours", ctx, mock.MatchedBy(func(h *models.OperatingHours) bool {
		return h.BusinessID == 1 && h.OpenTime == models.NewTimeOfDay(9, 0) && h.MaxConcurrentPerSlot == 2
	})).Return(nil).Once()

	var created []*models.Service
	repo.On("CreateService", ctx, mock.Anything).Run(func(args mock.Arguments) {
		created = append(created, args.Get(1).(*models.Service))
	}).Return(nil)

	n, err := s.ImportCatalog(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, created, 2)
	assert.True(t, created[0].CompetesWithOthers)
	assert.False(t, created[1].CompetesWithOthers)
	repo.AssertExpectations(t)

	t.Run("BadTime", func(t *testing.T) {
		bad := &models.Catalog{Businesses: []models.CatalogBusiness{{
			Name:  "Salon",
			Hours: []models.CatalogHours{{Weekday: 0, Open: "9am", Close: "17:00", MaxPerSlot: 1}},
		}}}
		n, err := s.ImportCatalog(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidCatalog)
		assert.Equal(t, 0, n)
	})
}

func TestCatalogService_InvalidatesSlotCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetOperatingHours", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		h := mondayHours(2)
		repo.On("GetBusiness", ctx, int64(1)).Return(&models.Business{ID: 1}, nil)
		repo.On("UpsertOperatingHours", ctx, h).Return(nil).Once()
		cache.On("InvalidateBusiness", ctx, int64(1)).Return(nil).Once()

		require.NoError(t, newCachedCatalogService(repo, cache).SetOperatingHours(ctx, h))
		cache.AssertExpectations(t)
	})

	t.Run("CloseWeekday", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		repo.On("DeleteOperatingHours", ctx, int64(1), 3).Return(nil).Once()
		cache.On("InvalidateBusiness", ctx, int64(1)).Return(nil).Once()

		require.NoError(t, newCachedCatalogService(repo, cache).CloseWeekday(ctx, 1, 3))
		cache.AssertExpectations(t)
	})

	t.Run("UpdateServiceUsesStoredBusiness", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		repo.On("GetService", ctx, int64(4)).Return(&models.Service{ID: 4, BusinessID: 2, Name: "Cut", DurationMinutes: 30, CompetesWithOthers: true}, nil)
		repo.On("UpdateService", ctx, mock.Anything).Return(nil).Once()
		cache.On("InvalidateBusiness", ctx, int64(2)).Return(nil).Once()

		svc := &models.Service{ID: 4, BusinessID: 7, Name: "Cut", DurationMinutes: 60, CompetesWithOthers: false}
		require.NoError(t, newCachedCatalogService(repo, cache).UpdateService(ctx, svc))
		cache.AssertExpectations(t)
	})

	t.Run("CacheErrorDoesNotFail", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		repo.On("DeleteOperatingHours", ctx, int64(1), 4).Return(nil).Once()
		cache.On("InvalidateBusiness", ctx, int64(1)).Return(errors.New("redis down")).Once()

		assert.NoError(t, newCachedCatalogService(repo, cache).CloseWeekday(ctx, 1, 4))
	})

	t.Run("FailedWriteKeepsCache", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		repo.On("DeleteOperatingHours", ctx, int64(1), 5).Return(database.ErrNotFound).Once()

		assert.ErrorIs(t, newCachedCatalogService(repo, cache).CloseWeekday(ctx, 1, 5), database.ErrNotFound)
		cache.AssertNotCalled(t, "InvalidateBusiness", mock.Anything, mock.Anything)
	})
}

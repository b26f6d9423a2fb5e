package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tbroekhuis/grondplan/internal/config"
	"github.com/tbroekhuis/grondplan/internal/geometry"
	"github.com/tbroekhuis/grondplan/internal/logger"
	"github.com/tbroekhuis/grondplan/internal/models"
	"github.com/tbroekhuis/grondplan/internal/repository"
	"github.com/tbroekhuis/grondplan/internal/store"
)

// MockFootprintRepository is a mock implementation of FootprintRepository
// for testing
type MockFootprintRepository struct {
	mock.Mock
}

func (m *MockFootprintRepository) Create(ctx context.Context, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error) {
	args := m.Called(ctx, ring, attrs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Footprint), args.Error(1)
}

func (m *MockFootprintRepository) Get(ctx context.Context, id string) (*models.Footprint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Footprint), args.Error(1)
}

func (m *MockFootprintRepository) Update(ctx context.Context, id string, ring geometry.Ring, attrs models.Attributes) (*models.Footprint, error) {
	args := m.Called(ctx, id, ring, attrs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Footprint), args.Error(1)
}

func (m *MockFootprintRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFootprintRepository) QueryBoundingBox(ctx context.Context, box geometry.BoundingBox, mode repository.QueryMode) ([]*models.Footprint, error) {
	args := m.Called(ctx, box, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Footprint), args.Error(1)
}

func (m *MockFootprintRepository) ListByAttribute(ctx context.Context, key, value string, limit, offset int) ([]*models.Footprint, int, error) {
	args := m.Called(ctx, key, value, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Footprint), args.Int(1), args.Error(2)
}

func (m *MockFootprintRepository) Collections(ctx context.Context, key string) ([]store.CollectionCount, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.CollectionCount), args.Error(1)
}

func (m *MockFootprintRepository) Rebuild(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testQueryConfig() config.QueryConfig {
	return config.QueryConfig{
		LimitDefault:        50,
		LimitMax:            1000,
		CollectionAttribute: "municipality",
	}
}

func newService(repo repository.FootprintRepository) FootprintService {
	return NewFootprintService(repo, logger.New("test"), testQueryConfig())
}

func sampleFootprint(id string) *models.Footprint {
	return &models.Footprint{
		ID:   id,
		Ring: geometry.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		Attributes: models.Attributes{
			"municipality": models.String("Delft"),
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestGetFootprint_Success(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	expected := sampleFootprint("fp-1")
	mockRepo.On("Get", ctx, "fp-1").Return(expected, nil)

	fp, err := service.GetFootprint(ctx, "fp-1")

	require.NoError(t, err)
	assert.Equal(t, expected.ID, fp.ID)
	mockRepo.AssertExpectations(t)
}

func TestGetFootprint_NotFound(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	mockRepo.On("Get", ctx, "ghost").Return(nil, store.ErrNotFound)

	fp, err := service.GetFootprint(ctx, "ghost")

	assert.Nil(t, fp)
	assert.ErrorIs(t, err, ErrFootprintNotFound)
	mockRepo.AssertExpectations(t)
}

func TestCreateFootprint_GeometryErrorPassesThrough(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	bowtie := geometry.Ring{{0, 0}, {10, 10}, {10, 0}, {0, 10}}
	mockRepo.On("Create", ctx, bowtie, models.Attributes(nil)).
		Return(nil, geometry.ErrSelfIntersecting)

	fp, err := service.CreateFootprint(ctx, bowtie, nil)

	assert.Nil(t, fp)
	assert.ErrorIs(t, err, geometry.ErrSelfIntersecting)
	mockRepo.AssertExpectations(t)
}

func TestDeleteFootprint_NotFound(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	mockRepo.On("Delete", ctx, "ghost").Return(store.ErrNotFound)

	err := service.DeleteFootprint(ctx, "ghost")

	assert.ErrorIs(t, err, ErrFootprintNotFound)
	mockRepo.AssertExpectations(t)
}

func TestQueryBoundingBox_InvalidBox(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	box := geometry.BoundingBox{MinX: 10, MinY: 0, MaxX: 0, MaxY: 10}
	page, err := service.QueryBoundingBox(context.Background(), box, "", 0, 0)

	assert.Nil(t, page)
	assert.ErrorIs(t, err, ErrInvalidBoundingBox)
	mockRepo.AssertNotCalled(t, "QueryBoundingBox")
}

func TestQueryBoundingBox_InvalidMode(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	box := geometry.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	page, err := service.QueryBoundingBox(context.Background(), box, "within", 0, 0)

	assert.Nil(t, page)
	assert.ErrorIs(t, err, ErrInvalidQueryMode)
	mockRepo.AssertNotCalled(t, "QueryBoundingBox")
}

func TestQueryBoundingBox_LimitBounds(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	box := geometry.BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	_, err := service.QueryBoundingBox(context.Background(), box, "", 5000, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = service.QueryBoundingBox(context.Background(), box, "", 0, -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)

	mockRepo.AssertNotCalled(t, "QueryBoundingBox")
}

func TestQueryBoundingBox_Pagination(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	box := geometry.BoundingBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}

	matched := []*models.Footprint{
		sampleFootprint("a"), sampleFootprint("b"),
		sampleFootprint("c"), sampleFootprint("d"),
	}
	mockRepo.On("QueryBoundingBox", ctx, box, repository.ModeIntersects).Return(matched, nil)

	page, err := service.QueryBoundingBox(ctx, box, "intersects", 2, 1)

	require.NoError(t, err)
	assert.Equal(t, 4, page.NumberMatched)
	assert.Equal(t, 2, page.NumberReturned)
	require.Len(t, page.Footprints, 2)
	assert.Equal(t, "b", page.Footprints[0].ID)
	assert.Equal(t, "c", page.Footprints[1].ID)
	mockRepo.AssertExpectations(t)
}

func TestQueryBoundingBox_OffsetBeyondMatches(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	box := geometry.BoundingBox{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
	mockRepo.On("QueryBoundingBox", ctx, box, repository.ModeIntersects).
		Return([]*models.Footprint{sampleFootprint("a")}, nil)

	page, err := service.QueryBoundingBox(ctx, box, "", 0, 10)

	require.NoError(t, err)
	assert.Equal(t, 1, page.NumberMatched)
	assert.Equal(t, 0, page.NumberReturned)
	assert.Empty(t, page.Footprints)
}

func TestListCollections(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	mockRepo.On("Collections", ctx, "municipality").Return([]store.CollectionCount{
		{Value: "Delft", Count: 42},
		{Value: "Rijswijk", Count: 7},
	}, nil)

	collections, err := service.ListCollections(ctx)

	require.NoError(t, err)
	require.Len(t, collections, 2)
	assert.Equal(t, "Delft", collections[0].ID)
	assert.Equal(t, 42, collections[0].Count)
	mockRepo.AssertExpectations(t)
}

func TestCollectionItems_DefaultLimit(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	mockRepo.On("ListByAttribute", ctx, "municipality", "Delft", 50, 0).
		Return([]*models.Footprint{sampleFootprint("a")}, 1, nil)

	page, err := service.CollectionItems(ctx, "Delft", 0, 0)

	require.NoError(t, err)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 1, page.NumberMatched)
	mockRepo.AssertExpectations(t)
}

func TestCollectionItem_WrongCollection(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	mockRepo.On("Get", ctx, "fp-1").Return(sampleFootprint("fp-1"), nil)

	fp, err := service.CollectionItem(ctx, "Rijswijk", "fp-1")

	assert.Nil(t, fp)
	assert.ErrorIs(t, err, ErrFootprintNotFound)
}

func TestCollectionItem_MissingAttributeNeverMatches(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	fp := sampleFootprint("fp-1")
	fp.Attributes = models.Attributes{"height": models.Number(4)}
	mockRepo.On("Get", ctx, "fp-1").Return(fp, nil)

	// A footprint without the collection attribute is not a member of any
	// collection, including the empty-string one.
	got, err := service.CollectionItem(ctx, "", "fp-1")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrFootprintNotFound)
}

func TestCollectionItem_Match(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	mockRepo.On("Get", ctx, "fp-1").Return(sampleFootprint("fp-1"), nil)

	fp, err := service.CollectionItem(ctx, "Delft", "fp-1")

	require.NoError(t, err)
	assert.Equal(t, "fp-1", fp.ID)
}

func TestUpdateFootprint_StoreError(t *testing.T) {
	mockRepo := new(MockFootprintRepository)
	service := newService(mockRepo)

	ctx := context.Background()
	ioErr := errors.New("connection reset")
	mockRepo.On("Update", ctx, "fp-1", geometry.Ring(nil), models.Attributes(nil)).
		Return(nil, ioErr)

	fp, err := service.UpdateFootprint(ctx, "fp-1", nil, nil)

	assert.Nil(t, fp)
	assert.ErrorIs(t, err, ioErr)
	assert.NotErrorIs(t, err, ErrFootprintNotFound)
}

package lookups

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListYieldCurves(ctx context.Context, filter Filter) ([]CurveRow, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CurveRow), args.Error(1)
}

func (m *MockRepository) ListCostTemplates(ctx context.Context, filter Filter) ([]CostTemplateRow, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CostTemplateRow), args.Error(1)
}

func (m *MockRepository) ListCostCurves(ctx context.Context, filter Filter) ([]CurveRow, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CurveRow), args.Error(1)
}

func TestRepositoryProvider_Lookups(t *testing.T) {
	repo := new(MockRepository)
	filter := Filter{CropIDs: []string{"oil_palm"}, Region: "Meta"}

	repo.On("ListYieldCurves", mock.Anything, filter).Return([]CurveRow{
		{ID: "palm-oxg", CurveData: []byte(`{"3": 4500, "4": 9000}`)},
		{ID: "broken", CurveData: []byte(`{"x": 1}`)},
	}, nil)
	repo.On("ListCostTemplates", mock.Anything, filter).Return([]CostTemplateRow{
		{ID: "palm-basic", LaborCOPPerHa: sql.NullFloat64{Float64: 1200, Valid: true}},
	}, nil)
	repo.On("ListCostCurves", mock.Anything, filter).Return([]CurveRow{
		{ID: "oil_palm_cost_oxg", CurveData: []byte(`[{"age": 3, "cop_per_ha": 800}]`)},
	}, nil)

	provider := NewProvider(repo, zap.NewNop())
	got, err := provider.Lookups(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, map[string]valuation.Curve{"palm-oxg": {3: 4500, 4: 9000}}, got.YieldCurves)
	assert.Equal(t, 1200.0, got.CostTemplates["palm-basic"].Total())
	assert.Equal(t, valuation.Curve{3: 800}, got.CostCurves["oil_palm_cost_oxg"])
	repo.AssertExpectations(t)
}

func TestRepositoryProvider_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListYieldCurves", mock.Anything, Filter{}).Return(nil, errors.New("db down"))

	provider := NewProvider(repo, zap.NewNop())
	_, err := provider.Lookups(context.Background(), Filter{})

	assert.EqualError(t, err, "db down")
	repo.AssertNotCalled(t, "ListCostTemplates", mock.Anything, mock.Anything)
}

func TestStaticProvider(t *testing.T) {
	fixed := &valuation.Lookups{YieldCurves: map[string]valuation.Curve{"a": {1: 1}}}

	got, err := NewStaticProvider(fixed).Lookups(context.Background(), Filter{Region: "any"})
	require.NoError(t, err)
	assert.Same(t, fixed, got)

	empty, err := NewStaticProvider(nil).Lookups(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestFilterForParcel(t *testing.T) {
	parcel := valuation.ParcelData{
		Region: "Meta",
		Blocks: []valuation.BlockData{{Crop: "oil_palm"}, {Crop: "cacao"}, {Crop: "oil_palm"}, {}},
	}

	f := FilterForParcel(parcel)

	assert.Equal(t, Filter{CropIDs: []string{"cacao", "oil_palm"}, Region: "Meta"}, f)
	assert.Equal(t, "lookups:Meta:cacao,oil_palm", f.CacheKey())
}

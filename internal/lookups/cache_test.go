package lookups

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockProvider is a mock implementation of the Provider interface
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Lookups(ctx context.Context, filter Filter) (*valuation.Lookups, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.Lookups), args.Error(1)
}

func TestCachedProvider_HitsAndExpiry(t *testing.T) {
	next := new(MockProvider)
	filter := Filter{Region: "Meta"}
	first := &valuation.Lookups{}
	second := &valuation.Lookups{CostCurves: map[string]valuation.Curve{"c": {1: 1}}}
	next.On("Lookups", mock.Anything, filter).Return(first, nil).Once()
	next.On("Lookups", mock.Anything, filter).Return(second, nil).Once()

	cache := NewCachedProvider(next, time.Hour)
	defer cache.Close()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	got, err := cache.Lookups(context.Background(), filter)
	require.NoError(t, err)
	assert.Same(t, first, got)

	got, err = cache.Lookups(context.Background(), filter)
	require.NoError(t, err)
	assert.Same(t, first, got, "second call is served from cache")
	assert.Equal(t, 1, cache.Size())

	clock = clock.Add(2 * time.Hour)
	got, err = cache.Lookups(context.Background(), filter)
	require.NoError(t, err)
	assert.Same(t, second, got, "expired entry is reloaded")

	next.AssertExpectations(t)
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	next := new(MockProvider)
	next.On("Lookups", mock.Anything, Filter{}).Return(nil, errors.New("boom")).Once()
	next.On("Lookups", mock.Anything, Filter{}).Return(&valuation.Lookups{}, nil).Once()

	cache := NewCachedProvider(next, time.Hour)
	defer cache.Close()

	_, err := cache.Lookups(context.Background(), Filter{})
	assert.Error(t, err)
	assert.Zero(t, cache.Size())

	_, err = cache.Lookups(context.Background(), Filter{})
	assert.NoError(t, err)
	next.AssertExpectations(t)
}

func TestCachedProvider_InvalidateAndClose(t *testing.T) {
	next := new(MockProvider)
	next.On("Lookups", mock.Anything, mock.Anything).Return(&valuation.Lookups{}, nil)

	cache := NewCachedProvider(next, time.Hour)

	_, err := cache.Lookups(context.Background(), Filter{Region: "a"})
	require.NoError(t, err)
	_, err = cache.Lookups(context.Background(), Filter{Region: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Size())

	cache.Invalidate()
	assert.Zero(t, cache.Size())

	cache.Close()
	cache.Close()
}

func TestCachedProvider_RemoveExpired(t *testing.T) {
	next := new(MockProvider)
	next.On("Lookups", mock.Anything, mock.Anything).Return(&valuation.Lookups{}, nil)

	cache := NewCachedProvider(next, time.Hour)
	defer cache.Close()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	_, err := cache.Lookups(context.Background(), Filter{Region: "a"})
	require.NoError(t, err)

	clock = clock.Add(30 * time.Minute)
	_, err = cache.Lookups(context.Background(), Filter{Region: "b"})
	require.NoError(t, err)

	clock = clock.Add(45 * time.Minute)
	cache.removeExpired()
	assert.Equal(t, 1, cache.Size())
}

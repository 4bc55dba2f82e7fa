package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	errBackend = errors.New("backend down")
	errMissing = errors.New("missing")
)

func testSettings() Settings {
	s := DefaultSettings("test")
	s.MinRequests = 2
	s.FailureRatio = 0.5
	s.Timeout = time.Hour
	return s
}

func TestBreaker_TripsOnFailures(t *testing.T) {
	b := New[int](testSettings(), zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errBackend })
		require.ErrorIs(t, err, errBackend)
	}

	called := false
	_, err := b.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	b := New[int](testSettings(), zap.NewNop(), errMissing)

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errMissing })
		assert.ErrorIs(t, err, errMissing)
	}

	v, err := b.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, "closed", b.State())
}

package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errDown     = errors.New("dependency down")
	errRejected = errors.New("bad request")
)

func newTestBreaker() *Breaker[int] {
	return New[int](Settings{
		Name:                "test",
		ConsecutiveFailures: 2,
		OpenTimeout:         time.Hour,
		Permanent:           func(err error) bool { return errors.Is(err, errRejected) },
	}, zerolog.Nop())
}

func TestBreaker_PassesResult(t *testing.T) {
	b := newTestBreaker()

	v, err := b.Execute(func() (int, error) { return 42, nil })

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := newTestBreaker()
	fail := func() (int, error) { return 0, errDown }

	_, err := b.Execute(fail)
	assert.ErrorIs(t, err, errDown)
	_, err = b.Execute(fail)
	assert.ErrorIs(t, err, errDown)

	called := false
	_, err = b.Execute(func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b := newTestBreaker()

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errRejected })
		assert.ErrorIs(t, err, errRejected)
	}

	assert.Equal(t, "closed", b.State())
}

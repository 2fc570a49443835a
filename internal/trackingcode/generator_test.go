package trackingcode

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/stretchr/testify/require"
)

type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) Intn(n int) int {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

type fakeChecker struct {
	taken map[string]bool
	err   error
	calls int
}

func (c *fakeChecker) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	c.calls++
	return c.taken[code], c.err
}

var codeRe = regexp.MustCompile(`^LT\d{9}$`)

func TestGenerate_Format(t *testing.T) {
	g := New(&fakeChecker{}, nil)
	for i := 0; i < 50; i++ {
		code, err := g.Generate(context.Background())
		require.NoError(t, err)
		require.Regexp(t, codeRe, code)
	}
}

func TestGenerate_Bounds(t *testing.T) {
	g := New(&fakeChecker{}, &seqRand{vals: []int{0}})
	code, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "LT100000000", code)

	g = New(&fakeChecker{}, &seqRand{vals: []int{maxSuffix - minSuffix}})
	code, err = g.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "LT999999999", code)
}

func TestGenerate_RerollsOnCollision(t *testing.T) {
	ch := &fakeChecker{taken: map[string]bool{"LT100000001": true, "LT100000002": true}}
	g := New(ch, &seqRand{vals: []int{1, 2, 3}})

	code, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "LT100000003", code)
	require.Equal(t, 3, ch.calls)
}

func TestGenerate_GivesUpAfterMaxAttempts(t *testing.T) {
	ch := &fakeChecker{taken: map[string]bool{"LT100000007": true}}
	g := New(ch, &seqRand{vals: []int{7}}).WithLimits(4, 0)

	_, err := g.Generate(context.Background())
	require.ErrorIs(t, err, models.ErrPersistence)
	require.Equal(t, 4, ch.calls)
}

func TestGenerate_StoreErrorPropagates(t *testing.T) {
	down := errors.New("db down")
	g := New(&fakeChecker{err: down}, nil)

	_, err := g.Generate(context.Background())
	require.ErrorIs(t, err, models.ErrPersistence)
	require.ErrorIs(t, err, down)
}

func TestAssign_RetriesDuplicateOnInsert(t *testing.T) {
	g := New(&fakeChecker{}, &seqRand{vals: []int{10, 11}})

	var tried []string
	code, err := g.Assign(context.Background(), func(code string) error {
		tried = append(tried, code)
		if len(tried) == 1 {
			return models.ErrDuplicateTrackingCode
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "LT100000011", code)
	require.Equal(t, []string{"LT100000010", "LT100000011"}, tried)
}

func TestAssign_DuplicateExhaustsAttempts(t *testing.T) {
	g := New(&fakeChecker{}, nil).WithLimits(0, 2)

	calls := 0
	_, err := g.Assign(context.Background(), func(string) error {
		calls++
		return models.ErrDuplicateTrackingCode
	})
	require.ErrorIs(t, err, models.ErrPersistence)
	require.NotErrorIs(t, err, models.ErrDuplicateTrackingCode)
	require.Equal(t, 2, calls)
}

func TestAssign_OtherErrorsNotRetried(t *testing.T) {
	g := New(&fakeChecker{}, nil)
	boom := errors.New("boom")

	calls := 0
	_, err := g.Assign(context.Background(), func(string) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

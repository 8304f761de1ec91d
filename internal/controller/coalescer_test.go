package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashboard-core/internal/models"
)

func cellsAt(y int) []models.LayoutCell {
	return []models.LayoutCell{{WidgetID: "a", X: 0, Y: y, W: 6, H: 3}}
}

func TestLayoutCoalescer_OneWritePerBurst(t *testing.T) {
	var mu sync.Mutex
	var applied []int
	var written []int
	current := 0

	lc := NewLayoutCoalescer(30*time.Millisecond,
		func(cells []models.LayoutCell) error {
			mu.Lock()
			defer mu.Unlock()
			applied = append(applied, cells[0].Y)
			current = cells[0].Y
			return nil
		},
		func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			written = append(written, current)
			return nil
		}, nil)
	defer lc.Stop()

	for y := 1; y <= 10; y++ {
		require.NoError(t, lc.Submit(cellsAt(y)))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(written) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, applied, "changes apply in submission order")
	assert.Equal(t, []int{10}, written, "only the final layout is written")
}

func TestLayoutCoalescer_RejectedLayoutSchedulesNothing(t *testing.T) {
	var writes atomic.Int32
	lc := NewLayoutCoalescer(10*time.Millisecond,
		func([]models.LayoutCell) error { return &models.LayoutMismatchError{Missing: []string{"a"}} },
		func(context.Context) error { writes.Add(1); return nil }, nil)
	defer lc.Stop()

	err := lc.Submit(nil)
	assert.ErrorIs(t, err, models.ErrLayoutMismatch)
	assert.False(t, lc.Pending())
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, writes.Load())
}

func TestLayoutCoalescer_FlushAndCancel(t *testing.T) {
	var writes atomic.Int32
	lc := NewLayoutCoalescer(time.Hour,
		func([]models.LayoutCell) error { return nil },
		func(context.Context) error { writes.Add(1); return nil }, nil)
	defer lc.Stop()

	require.NoError(t, lc.Flush(context.Background()), "nothing pending is a no-op")
	assert.Zero(t, writes.Load())

	require.NoError(t, lc.Submit(cellsAt(1)))
	assert.True(t, lc.Pending())
	require.NoError(t, lc.Flush(context.Background()))
	assert.EqualValues(t, 1, writes.Load())
	assert.False(t, lc.Pending())

	require.NoError(t, lc.Submit(cellsAt(2)))
	assert.True(t, lc.Cancel())
	require.NoError(t, lc.Flush(context.Background()))
	assert.EqualValues(t, 1, writes.Load())
}

func TestLayoutCoalescer_ReportsWriteErrors(t *testing.T) {
	errCh := make(chan error, 1)
	boom := errors.New("store down")
	lc := NewLayoutCoalescer(5*time.Millisecond,
		func([]models.LayoutCell) error { return nil },
		func(context.Context) error { return boom },
		func(err error) { errCh <- err })
	defer lc.Stop()

	require.NoError(t, lc.Submit(cellsAt(1)))
	select {
	case err := <-errCh:
		assert.Equal(t, boom, err)
	case <-time.After(time.Second):
		t.Fatal("write error not reported")
	}
}

func TestLayoutCoalescer_StopDropsPending(t *testing.T) {
	var writes atomic.Int32
	lc := NewLayoutCoalescer(10*time.Millisecond,
		func([]models.LayoutCell) error { return nil },
		func(context.Context) error { writes.Add(1); return nil }, nil)

	require.NoError(t, lc.Submit(cellsAt(1)))
	lc.Stop()
	require.NoError(t, lc.Submit(cellsAt(2)))
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, writes.Load())
}

func TestLayoutCoalescer_WithController(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.ctrl.Open(ctx, "d"))
	w, _, err := e.ctrl.AddChartWidget("market-share")
	require.NoError(t, err)
	require.NoError(t, e.ctrl.Save(ctx))
	_, err = e.ctrl.ToggleEditMode()
	require.NoError(t, err)

	var mu sync.Mutex // serializes controller access like the API does
	lc := NewLayoutCoalescer(time.Hour,
		func(cells []models.LayoutCell) error { return e.ctrl.ApplyLayoutChange(cells) },
		func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			return e.ctrl.Persist(ctx)
		}, nil)
	defer lc.Stop()

	for x := 0; x <= 6; x += 2 {
		mu.Lock()
		err := lc.Submit([]models.LayoutCell{{WidgetID: w.ID, X: x, Y: 0, W: 6, H: 3}})
		mu.Unlock()
		require.NoError(t, err)
	}
	require.NoError(t, lc.Flush(ctx))

	stored, err := e.repo.Get(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 6, stored.Layout[0].X)
	assert.True(t, e.ctrl.EditMode(), "background writes keep the session editing")
}

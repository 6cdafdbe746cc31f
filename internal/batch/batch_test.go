package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dirs := []string{"c", "a", "b", "d"}
	var calls atomic.Int32
	var progress atomic.Int32

	sum := Run(context.Background(), dirs, 2, func(_ context.Context, dir string) (int, bool, error) {
		calls.Add(1)
		switch dir {
		case "b":
			return 0, false, errors.New("boom")
		case "d":
			return 0, true, nil
		}
		return len(dir), false, nil
	}, func(string) { progress.Add(1) })

	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int32(4), progress.Load())
	require.Len(t, sum.Reports, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{
		sum.Reports[0].App, sum.Reports[1].App, sum.Reports[2].App, sum.Reports[3].App,
	})
	assert.Equal(t, 2, sum.Count(Built))
	assert.Equal(t, 1, sum.Count(Skipped))
	assert.Equal(t, 1, sum.Count(Failed))
	assert.False(t, sum.AllFailed())
	assert.Equal(t, 1, sum.Errors.Len())
	assert.Contains(t, sum.Errors.Error(), "b: boom")
}

func TestRunAllFailed(t *testing.T) {
	sum := Run(context.Background(), []string{"x", "y"}, 0, func(context.Context, string) (struct{}, bool, error) {
		return struct{}{}, false, errors.New("nope")
	}, nil)

	assert.True(t, sum.AllFailed())
	assert.Contains(t, sum.Errors.Error(), "2 apps failed")
}

func TestRunRecoversPanic(t *testing.T) {
	sum := Run(context.Background(), []string{"bad", "good"}, 2, func(_ context.Context, dir string) (int, bool, error) {
		if dir == "bad" {
			var m map[string]*int
			return *m["x"], false, nil
		}
		return 1, false, nil
	}, nil)

	require.Len(t, sum.Reports, 2)
	assert.Equal(t, Failed, sum.Reports[0].Outcome)
	assert.ErrorIs(t, sum.Reports[0].Err, ErrPanic)
	assert.Equal(t, Built, sum.Reports[1].Outcome)
	assert.Equal(t, 1, sum.Reports[1].Result)
	assert.False(t, sum.AllFailed())
	assert.Equal(t, 1, sum.Errors.Len())
}

func TestRunEmpty(t *testing.T) {
	sum := Run(context.Background(), nil, 4, func(context.Context, string) (int, bool, error) {
		t.Fatal("should not be called")
		return 0, false, nil
	}, nil)

	assert.Empty(t, sum.Reports)
	assert.False(t, sum.AllFailed())
	assert.False(t, sum.Errors.HasErrors())
	assert.Equal(t, "no errors", sum.Errors.Error())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	sum := Run(ctx, []string{"a", "b"}, 1, func(context.Context, string) (int, bool, error) {
		calls.Add(1)
		return 0, false, nil
	}, nil)

	assert.Zero(t, calls.Load())
	assert.True(t, sum.AllFailed())
	for _, e := range sum.Errors.Errors {
		assert.ErrorIs(t, e, context.Canceled)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"app2", "app1", ".hidden"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	dirs, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "app1"), filepath.Join(root, "app2")}, dirs)

	_, err = Discover(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

// Package batch runs the per-application pipeline over many work directories
// concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// ErrPanic marks an application whose processing panicked.
var ErrPanic = errors.New("runtime error")

// AppError represents an error that occurred while processing one application.
type AppError struct {
	App string
	Err error
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %v", e.App, e.Err)
}

func (e AppError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects per-application failures.
type ProcessingErrors struct {
	Errors []AppError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(app string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, AppError{App: app, Err: err})
	e.mu.Unlock()
}

// Len returns the number of collected errors.
func (e *ProcessingErrors) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	return e.Len() > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d apps failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkers is used when the configured worker count is not positive.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// Outcome is the per-application result kind.
type Outcome string

const (
	Built   Outcome = "built"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Report is the result of one application run.
type Report[T any] struct {
	App     string
	Outcome Outcome
	Result  T
	Err     error
}

// Summary aggregates a batch run.
type Summary[T any] struct {
	Reports []Report[T]
	Errors  *ProcessingErrors
}

// Count returns the number of reports with the given outcome.
func (s *Summary[T]) Count(o Outcome) int {
	n := 0
	for _, r := range s.Reports {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// AllFailed reports whether every application failed. An empty batch has not
// failed.
func (s *Summary[T]) AllFailed() bool {
	return len(s.Reports) > 0 && s.Count(Failed) == len(s.Reports)
}

// Func processes one application work directory. Returning skip=true marks
// the application as up to date.
type Func[T any] func(ctx context.Context, workDir string) (result T, skip bool, err error)

// ProgressFunc is called after each application completes.
type ProgressFunc func(app string)

// Run processes work directories with at most workers goroutines. Failures are
// isolated per application; the returned reports are sorted by directory.
func Run[T any](ctx context.Context, dirs []string, workers int, fn Func[T], onProgress ProgressFunc) *Summary[T] {
	sum := &Summary[T]{Errors: &ProcessingErrors{}}
	if len(dirs) == 0 {
		return sum
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(workers)
	for _, dir := range dirs {
		p.Go(func() {
			rep := Report[T]{App: dir}
			if err := ctx.Err(); err != nil {
				rep.Outcome, rep.Err = Failed, err
			} else {
				res, skip, err := call(ctx, dir, fn)
				rep.Result = res
				switch {
				case err != nil:
					rep.Outcome, rep.Err = Failed, err
				case skip:
					rep.Outcome = Skipped
				default:
					rep.Outcome = Built
				}
			}
			if rep.Err != nil {
				sum.Errors.Add(dir, rep.Err)
			}
			if onProgress != nil {
				onProgress(dir)
			}
			mu.Lock()
			sum.Reports = append(sum.Reports, rep)
			mu.Unlock()
		})
	}
	p.Wait()

	sort.Slice(sum.Reports, func(i, j int) bool {
		return sum.Reports[i].App < sum.Reports[j].App
	})
	return sum
}

// call runs fn and turns a panic into an ErrPanic failure so one application
// cannot take down the batch.
func call[T any](ctx context.Context, dir string, fn Func[T]) (res T, skip bool, err error) {
	var pc panics.Catcher
	pc.Try(func() { res, skip, err = fn(ctx, dir) })
	if r := pc.Recovered(); r != nil {
		var zero T
		return zero, false, fmt.Errorf("%w: %v", ErrPanic, r.Value)
	}
	return res, skip, err
}

// Discover lists the application work directories under root: every direct
// subdirectory, sorted. Hidden directories are ignored.
func Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read apps root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		dirs = append(dirs, filepath.Join(root, e.Name()))
	}
	return dirs, nil
}

// Package hooks defines the narrow contract the engine consumes for
// health checks, the one documented exception to single-thread execution
// (spec §5: "health checks in the hooks collaborator may execute in
// parallel, with results joined before the subsystem returns").
package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// DefaultTimeout is the per-check wall-clock bound applied when a Check
// declares no Timeout, per spec §5.
const DefaultTimeout = 60 * time.Second

// Check is one named health probe. Run is handed a context that is
// cancelled once Timeout elapses; a well-behaved Run returns promptly on
// ctx.Done() rather than relying solely on the caller's poll.
type Check struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

func (c Check) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// RunAll executes every check concurrently and joins the results, per
// spec §5's parallelism exception. It returns the first failure
// encountered in check-declaration order (not first-to-finish), so a
// given HostConfiguration always reports the same failing check first
// regardless of goroutine scheduling.
func RunAll(checks []Check) error {
	results := make([]error, len(checks))
	var wg sync.WaitGroup
	wg.Add(len(checks))

	for i, c := range checks {
		go func(i int, c Check) {
			defer wg.Done()
			results[i] = runOne(c)
		}(i, c)
	}
	wg.Wait()

	for i, err := range results {
		if err != nil {
			return enginerr.Wrap(enginerr.Servicing, "hooks.RunAll",
				fmt.Sprintf("health check %q failed", checks[i].Name), err)
		}
	}
	return nil
}

func runOne(c Check) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timed out after %s", c.timeout())
	}
}

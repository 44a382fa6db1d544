// Package shutdown runs registered cleanup functions once, in reverse order,
// when the process is asked to stop.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
)

// Handler manages graceful shutdown of the application
type Handler struct {
	shutdownFuncs []namedFunc
	mu            sync.Mutex
	once          sync.Once
	done          chan struct{}
	err           error
	logger        *logger.Logger
}

type namedFunc struct {
	name string
	fn   func() error
}

func NewHandler(log *logger.Logger) *Handler {
	return &Handler{
		done:   make(chan struct{}),
		logger: log.WithComponent("shutdown"),
	}
}

// RegisterShutdownFunc registers fn to run on shutdown. Functions run in
// reverse registration order, so register dependencies first.
func (h *Handler) RegisterShutdownFunc(name string, fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdownFuncs = append(h.shutdownFuncs, namedFunc{name: name, fn: fn})
}

// SignalContext returns a context cancelled on SIGINT, SIGTERM or when parent
// is done. The returned stop func releases the signal subscription.
func (h *Handler) SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			h.logger.Infow("Received signal, starting graceful shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// Shutdown executes every registered function once. Later calls return the
// first call's result.
func (h *Handler) Shutdown() error {
	h.once.Do(func() {
		h.mu.Lock()
		funcs := h.shutdownFuncs
		h.mu.Unlock()

		var errs *multierror.Error
		for i := len(funcs) - 1; i >= 0; i-- {
			if err := funcs[i].fn(); err != nil {
				h.logger.Errorw("Error during shutdown", "step", funcs[i].name, "error", err)
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", funcs[i].name, err))
			}
		}
		h.err = errs.ErrorOrNil()
		close(h.done)
	})
	return h.err
}

// Done returns a channel that's closed when shutdown is complete
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// ShutdownWithTimeout executes shutdown with a timeout
func (h *Handler) ShutdownWithTimeout(timeout time.Duration) error {
	result := make(chan error, 1)
	go func() {
		result <- h.Shutdown()
	}()

	select {
	case err := <-result:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// Package afsession runs one BFT session with crash-safe backups.
//
// The BFT engine itself is opaque here:
// it is any [Runner] that consumes a [LocalIO]
// and returns once its context is canceled.
package afsession

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fruitbox12/validator-azero/afbackup"
	"github.com/spf13/afero"
)

// DataProvider supplies the data this node proposes for ordering.
type DataProvider interface {
	GetData(ctx context.Context) ([]byte, error)
}

// FinalizationHandler receives data once the session has agreed on it.
type FinalizationHandler interface {
	DataFinalized(ctx context.Context, data []byte)
}

// LocalIO is everything a session runner reads from or writes to locally.
type LocalIO struct {
	DataProvider        DataProvider
	FinalizationHandler FinalizationHandler

	// Saver receives the session's log as it grows.
	Saver io.Writer

	// Loader yields the log recovered from earlier runs of this session.
	Loader io.Reader
}

// Runner runs a session until ctx is canceled.
// Returning is the acknowledgment that it has stopped writing to the saver.
type Runner interface {
	RunSession(ctx context.Context, io LocalIO)
}

// Config is the configuration for [Start].
type Config struct {
	SessionID uint32

	// Backups are disabled when BackupRoot is empty.
	BackupRoot string

	// Defaults to the OS filesystem.
	Fs afero.Fs

	Runner Runner

	DataProvider        DataProvider
	FinalizationHandler FinalizationHandler
}

// Task is a running session.
type Task struct {
	cancel context.CancelFunc

	done chan struct{}

	mu  sync.Mutex
	err error
}

// Start loads the session's backup and runs the session in the background.
// The session stops when ctx is canceled or [Task.Stop] is called.
//
// If the backup cannot be loaded the session never starts;
// the failure is logged and reported by [Task.Err].
// If ctx is already done, no backup segment is opened.
func Start(ctx context.Context, log *slog.Logger, cfg Config) *Task {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.run(ctx, log.With("session_id", cfg.SessionID), cfg)
	return t
}

func (t *Task) run(ctx context.Context, log *slog.Logger, cfg Config) {
	defer close(t.done)

	if ctx.Err() != nil {
		// Opening the backup would create a new segment for nothing.
		log.Debug("Session stopped before start", "cause", context.Cause(ctx))
		return
	}

	log.Debug("Loading session backup")
	saver, loader, err := afbackup.OpenSession(log, cfg.Fs, cfg.BackupRoot, cfg.SessionID)
	if err != nil {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		return
	}

	log.Debug("Running session")
	cfg.Runner.RunSession(ctx, LocalIO{
		DataProvider:        cfg.DataProvider,
		FinalizationHandler: cfg.FinalizationHandler,
		Saver:               saver,
		Loader:              loader,
	})
	log.Debug("Session stopped")

	if err := saver.Close(); err != nil {
		log.Error("Failed to close backup segment", "err", err)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}
}

// Stop signals the session to stop. It does not wait; see [Task.Wait].
// Calling Stop more than once is harmless.
func (t *Task) Stop() {
	t.cancel()
}

// Wait blocks until the runner has returned and the backup segment is closed,
// or until startup has failed.
func (t *Task) Wait() {
	<-t.done
}

// Done is closed when Wait would return.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err reports why the session failed to start or shut down cleanly.
// It is only meaningful after Wait returns.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/errors"
)

var (
	mu            sync.Mutex
	shutdownHooks []func()
	reloadHooks   []func()
	cancel        context.CancelFunc
	shutdownOnce  sync.Once
)

// RegisterShutdownHook adds a hook run on SIGINT/SIGTERM. Hooks run in
// reverse registration order.
func RegisterShutdownHook(hook func()) {
	mu.Lock()
	defer mu.Unlock()
	shutdownHooks = append(shutdownHooks, hook)
}

// RegisterReloadHook adds a hook run on SIGHUP
func RegisterReloadHook(hook func()) {
	mu.Lock()
	defer mu.Unlock()
	reloadHooks = append(reloadHooks, hook)
}

// RegisterContextCanceller sets the cancel func invoked before the hooks
func RegisterContextCanceller(c context.CancelFunc) {
	mu.Lock()
	defer mu.Unlock()
	cancel = c
}

// HandleSignals blocks until SIGINT/SIGTERM or ctx ends. A termination
// signal runs Shutdown before returning.
func HandleSignals(ctx context.Context, l logger.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(stop)

	for {
		select {
		case sig := <-stop:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				l.Info("Received termination signal", "signal", sig.String())
				Shutdown()
				return
			case syscall.SIGHUP:
				l.Info("Received SIGHUP, running reload hooks")
				reload()
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown cancels the registered context and runs the shutdown hooks once
func Shutdown() {
	shutdownOnce.Do(func() {
		mu.Lock()
		c := cancel
		hooks := append([]func(){}, shutdownHooks...)
		mu.Unlock()

		if c != nil {
			c()
		}
		for i := len(hooks) - 1; i >= 0; i-- {
			hooks[i]()
		}
	})
}

func reload() {
	mu.Lock()
	hooks := append([]func(){}, reloadHooks...)
	mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// EnsureSingleInstance writes the current PID to pidPath, failing if
// another live process already holds it. Stale or empty PID files are
// replaced. The file is removed on Shutdown.
func EnsureSingleInstance(pidPath string) error {
	if pidPath == "" {
		return errors.New(errors.LifecyclePID, "empty PID file path")
	}

	if pidBytes, err := os.ReadFile(pidPath); err == nil {
		content := strings.TrimSpace(string(pidBytes))
		if content != "" {
			pid, err := strconv.Atoi(content)
			if err != nil {
				return errors.Wrap(err, errors.LifecyclePID).
					WithMetadata("path", pidPath)
			}
			if pid != os.Getpid() && processAlive(pid) {
				return errors.New(errors.LifecyclePID,
					fmt.Sprintf("another instance is already running (PID: %d)", pid)).
					WithMetadata("path", pidPath)
			}
		}
		_ = os.Remove(pidPath)
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, errors.LifecyclePID).WithMetadata("path", pidPath)
	}

	if err := os.MkdirAll(filepath.Dir(pidPath), 0755); err != nil {
		return errors.Wrap(err, errors.LifecyclePID).WithMetadata("path", pidPath)
	}
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return errors.Wrap(err, errors.LifecyclePID).WithMetadata("path", pidPath)
	}

	RegisterShutdownHook(func() {
		_ = os.Remove(pidPath)
	})
	return nil
}

// ReadPID returns the PID recorded at pidPath and whether that process is
// alive
func ReadPID(pidPath string) (int, bool, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.LifecyclePID).WithMetadata("path", pidPath)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false, errors.Wrap(err, errors.LifecyclePID).WithMetadata("path", pidPath)
	}
	return pid, processAlive(pid), nil
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

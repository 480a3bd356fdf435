package watch

import (
	"context"
	"os"
	"time"

	"github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"
	"github.com/stratastor/tether/cmd/cmdutil"
	"github.com/stratastor/tether/config"
	"github.com/stratastor/tether/pkg/lifecycle"
	"github.com/stratastor/tether/pkg/server"
)

var detached bool

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the backend connection alive and serve the local status API",
		Run:   runWatch,
	}

	cmd.Flags().BoolVarP(&detached, "detach", "d", false, "Run as a daemon")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) {
	log := cmdutil.Logger("watch")
	cfg := config.GetConfig()

	if err := config.EnsureDirectories(); err != nil {
		log.Error("Failed to prepare directories", "error", err)
		os.Exit(1)
	}

	pidFile := config.PIDFilePath()

	if detached {
		dctx := &daemon.Context{
			PidFileName: pidFile,
			PidFilePerm: 0644,
			LogFileName: cfg.Logs.Path,
			LogFilePerm: 0640,
			WorkDir:     "/",
			Umask:       027,
			Args:        append([]string{os.Args[0], "watch"}, configArgs()...),
		}

		d, err := dctx.Reborn()
		if err != nil {
			log.Error("Failed to start daemon", "error", err)
			os.Exit(1)
		}
		if d != nil {
			log.Info("Tether is running as a daemon", "pid", d.Pid)
			return
		}
		defer dctx.Release()
	} else if err := lifecycle.EnsureSingleInstance(pidFile); err != nil {
		log.Error("Failed to start", "error", err)
		os.Exit(1)
	}

	if err := run(); err != nil {
		log.Error("Watch exited with error", "error", err)
		os.Exit(1)
	}
}

// configArgs forwards an explicit --config flag to the daemon child
func configArgs() []string {
	if path := config.GetLoadedConfigPath(); path != "" {
		return []string{"--config", path}
	}
	return nil
}

func run() error {
	log := cmdutil.Logger("watch")
	cfg := config.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lifecycle.RegisterContextCanceller(cancel)

	svc, err := cmdutil.Service(log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	lifecycle.RegisterShutdownHook(func() {
		log.Info("Stopping tether service")
		if err := svc.Close(); err != nil {
			log.Error("Error stopping service", "error", err)
		}
	})
	lifecycle.RegisterReloadHook(func() {
		log.Info("Probing backend on reload")
		snap := svc.TestConnection(ctx)
		log.Info("Connection state", "phase", snap.Phase, "attempt", snap.Attempt)
	})

	go lifecycle.HandleSignals(ctx, log)

	if !cfg.Server.Enabled {
		<-ctx.Done()
		return nil
	}

	srv := server.New(svc, cfg.Server.Port, cfg.Environment, cmdutil.Logger("server"))
	lifecycle.RegisterShutdownHook(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during server shutdown", "error", err)
		}
	})

	err = srv.Start(ctx)
	lifecycle.Shutdown()
	return err
}

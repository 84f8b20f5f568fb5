package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/warestage/loadsheet-client/pkg/appcontext"
	"github.com/warestage/loadsheet-client/pkg/bdkeeper"
	"github.com/warestage/loadsheet-client/pkg/cache"
	"github.com/warestage/loadsheet-client/pkg/client"
	"github.com/warestage/loadsheet-client/pkg/config"
	"github.com/warestage/loadsheet-client/pkg/connectivity"
	"github.com/warestage/loadsheet-client/pkg/dispatcher"
	"github.com/warestage/loadsheet-client/pkg/encription"
	"github.com/warestage/loadsheet-client/pkg/logger"
	"github.com/warestage/loadsheet-client/pkg/notifier"
	"github.com/warestage/loadsheet-client/pkg/remote"
	"github.com/warestage/loadsheet-client/pkg/services"
	"github.com/warestage/loadsheet-client/pkg/syncer"
	"github.com/warestage/loadsheet-client/pkg/syncinfo"
)

// app is the composition root: every dependency is built here and injected
// explicitly, including the queue store shared by the dispatcher and the
// sync engine.
type app struct {
	keeper  *bdkeeper.Keeper
	monitor *connectivity.Monitor
	engine  *syncer.Engine
	svc     *services.Services
	info    *syncinfo.SyncManager
	log     logger.LoggerInterface
}

func buildApp(opts *config.Options, toasts notifier.Notifier) (*app, error) {
	appLog, err := logger.NewLogger(opts.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	var codec bdkeeper.Codec
	if opts.Passphrase != "" {
		enc, err := encription.NewEnc(opts.Passphrase)
		if err != nil {
			return nil, err
		}
		codec = enc
	}

	keeper, err := bdkeeper.New(opts.DatabaseFile, opts.MigrationsDir, codec)
	if err != nil {
		return nil, err
	}

	rc, err := remote.NewClient(opts.ServerURL, remote.WithRequestEditorFn(remote.TokenEditor()))
	if err != nil {
		keeper.Close()
		return nil, err
	}

	monitor := connectivity.NewMonitor(rc, opts.ProbeInterval, appLog)

	info, err := syncinfo.NewSyncManager(opts.SyncInfoFile)
	if err != nil {
		keeper.Close()
		return nil, err
	}
	if _, err := info.LoadSyncInfoFromFile(); err != nil {
		appLog.Printf("failed to load last sync info: %v", err)
	}

	c := cache.New(rc)
	engine := syncer.New(keeper, rc, monitor, c, toasts, appLog, info, syncer.Options{
		RetryLimit:   opts.RetryLimit,
		PollInterval: opts.PollInterval,
	})
	engine.SetEventSource(rc)
	// The engine owns the queue; offline writes enqueue through it.
	disp := dispatcher.New(rc, engine, monitor, toasts)
	disp.SetSyncNudge(engine.TriggerSync)

	return &app{
		keeper:  keeper,
		monitor: monitor,
		engine:  engine,
		svc:     services.New(disp, c, keeper),
		info:    info,
		log:     appLog,
	}, nil
}

func (a *app) Close() {
	a.keeper.Close()
}

func baseContext(opts *config.Options) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if opts.Token != "" {
		ctx = appcontext.WithToken(ctx, opts.Token)
	}
	return ctx, cancel
}

func runCmd(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the interactive shell with background sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Toasts go to the terminal where the supervisor is working.
			a, err := buildApp(opts, notifier.NewLogNotifier(logger.NewWithWriter(os.Stdout)))
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := baseContext(opts)
			defer cancel()

			go a.monitor.Run(ctx)
			go a.engine.Run(ctx)

			shell, err := client.NewShell(a.svc, a.engine, a.monitor, a.info)
			if err != nil {
				return err
			}
			defer shell.Close()

			shell.Start(ctx)
			return nil
		},
	}
}

func syncCmd(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, notifier.NewLogNotifier(logger.NewWithWriter(os.Stdout)))
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := baseContext(opts)
			defer cancel()

			a.monitor.Probe(ctx)
			if !a.monitor.Online() {
				return fmt.Errorf("server unreachable at %s", opts.ServerURL)
			}

			before, err := a.svc.PendingCount(ctx)
			if err != nil {
				return err
			}
			a.engine.Drain(ctx)
			after, err := a.svc.PendingCount(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("synced %d of %d pending mutation(s), %d remaining\n", before-after, before, after)
			return nil
		},
	}
}

func queueCmd(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Print the pending offline mutation queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts, notifier.NewLogNotifier(logger.NewWithWriter(os.Stderr)))
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := baseContext(opts)
			defer cancel()

			pending, err := a.svc.Pending(ctx)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("queue is empty")
				return nil
			}
			for _, m := range pending {
				fmt.Printf("%s  %-40s enqueued %s  retries %d\n",
					m.ID, m.Describe(), m.EnqueuedAt.Format("2006-01-02 15:04:05"), m.RetryCount)
			}
			return nil
		},
	}
}

func main() {
	opts, err := config.Default()
	if err != nil {
		log.Fatal(err)
	}

	root := &cobra.Command{
		Use:           "loadsheet",
		Short:         "Offline-resilient client for the warehouse staging/loading tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	opts.RegisterFlags(root.PersistentFlags())
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		opts.ApplyEnv()
	}
	root.AddCommand(runCmd(opts), syncCmd(opts), queueCmd(opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

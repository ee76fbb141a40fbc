package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	runadapter "github.com/bnema/autoseed-cli/internal/adapters/render/run"
	"github.com/bnema/autoseed-cli/internal/engine"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(app *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent bridge and start scheduled campaigns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				app.cfg.Bridge.Listen = listen
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "bridge listening on %s, checking schedules every %s\n", app.cfg.Bridge.Listen, app.cfg.Scheduler.Interval)

			app.scheduler.WithObserver(runLogPrinter(out))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return app.server.ListenAndServe(ctx, app.cfg.Bridge.Listen)
			})
			g.Go(func() error {
				return app.scheduler.Run(ctx)
			})

			err := g.Wait()

			if app.runs.Active() {
				_ = app.runs.Cancel()
				waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				_, _ = app.runs.Wait(waitCtx)
				cancel()
			}

			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from bridge.listen)")

	return cmd
}

func runLogPrinter(out io.Writer) func(engine.Event) {
	var mu sync.Mutex
	return func(ev engine.Event) {
		if ev.Kind != engine.EventLogAppended {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintln(out, runadapter.FormatEntry(ev.Entry, time.Local))
	}
}

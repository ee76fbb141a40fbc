package cmd

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	runadapter "github.com/bnema/autoseed-cli/internal/adapters/render/run"
	"github.com/bnema/autoseed-cli/internal/application"
	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/engine"
)

func newRunCmd(app *app) *cobra.Command {
	var (
		plain          bool
		count          int
		accountQueries []string
	)

	cmd := &cobra.Command{
		Use:   "run <campaign-id>",
		Short: "Run a campaign through the connected agent",
		Long: "Run a campaign item by item, switching the agent to each item's account first. " +
			"The live view accepts p (pause/resume), s (skip the current wait) and q (cancel).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			campaign, err := app.campaigns.Get(ctx, domain.CampaignID(args[0]))
			if err != nil {
				return err
			}

			var accounts []domain.Account
			if len(accountQueries) > 0 {
				accounts, err = resolveAccounts(ctx, app, accountQueries)
				if err != nil {
					return err
				}
			}
			if count <= 0 {
				count = app.cfg.Content.Count
			}

			req := application.StartRequest{
				Campaign: campaign,
				Accounts: accounts,
				Count:    count,
			}

			return app.withAgent(ctx, cmd.ErrOrStderr(), func(ctx context.Context) error {
				var (
					final engine.Snapshot
					err   error
				)
				if plain {
					final, err = runPlain(ctx, app, req, cmd.OutOrStdout())
				} else {
					final, err = runLive(ctx, app, req, cmd.InOrStdin(), cmd.OutOrStdout())
				}
				if err != nil {
					return err
				}

				opts := runadapter.RenderOptions{Title: campaign.Title, LogLines: 5}
				if plain {
					opts.LogLines = -1
				}
				summary, err := app.runRenderer(final, opts)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprint(cmd.OutOrStdout(), summary)

				if final.Status != engine.StatusCompleted {
					return fmt.Errorf("campaign %s ended %s", campaign.ID, final.Status)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print log lines instead of the live view")
	cmd.Flags().IntVar(&count, "count", 0, "Items to generate when the campaign has none (default from content.count)")
	cmd.Flags().StringArrayVar(&accountQueries, "account", nil, "Override the campaign accounts (repeatable, id or name)")

	return cmd
}

func runPlain(ctx context.Context, app *app, req application.StartRequest, out io.Writer) (engine.Snapshot, error) {
	req.Observe = runLogPrinter(out)

	if _, err := app.runs.Start(ctx, req); err != nil {
		return engine.Snapshot{}, err
	}

	if _, err := app.runs.Wait(context.WithoutCancel(ctx)); err != nil {
		return engine.Snapshot{}, err
	}

	snap, _ := app.runs.Snapshot()
	return snap, nil
}

func runLive(ctx context.Context, app *app, req application.StartRequest, in io.Reader, out io.Writer) (engine.Snapshot, error) {
	feed := runadapter.NewFeed()
	req.Observe = feed.Observe

	if _, err := app.runs.Start(ctx, req); err != nil {
		return engine.Snapshot{}, err
	}

	initial, _ := app.runs.Snapshot()
	model := runadapter.NewLiveModel(app.runs, feed.Updates(), initial, runadapter.RenderOptions{Title: req.Campaign.Title})
	program := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out), tea.WithContext(ctx))

	if _, err := program.Run(); err != nil {
		_ = app.runs.Cancel()
	}

	if _, err := app.runs.Wait(context.WithoutCancel(ctx)); err != nil {
		return engine.Snapshot{}, err
	}

	snap, _ := app.runs.Snapshot()
	return snap, nil
}

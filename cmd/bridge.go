package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/autoseed-cli/internal/bridge"
	"github.com/bnema/autoseed-cli/internal/version"
)

const defaultBridgeTimeout = 10 * time.Second

func newBridgeCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Talk to the browser agent directly",
	}

	cmd.AddCommand(
		newBridgePingCmd(app),
		newBridgeTestTargetCmd(app),
	)

	return cmd
}

func newBridgePingCmd(app *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the agent answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withAgent(cmd.Context(), cmd.ErrOrStderr(), func(ctx context.Context) error {
				started := app.now()
				resp := app.client.Request(ctx, bridge.Ping{Version: version.Version}, bridge.KindPong, timeout)
				if !resp.OK() {
					return fmt.Errorf("ping agent: %s", resp.Outcome)
				}

				agentVersion := "unknown"
				if pong, ok := resp.Message.(bridge.Pong); ok && pong.Version != "" {
					agentVersion = pong.Version
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pong from agent %s in %s\n", agentVersion, app.now().Sub(started).Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultBridgeTimeout, "How long to wait for the answer")

	return cmd
}

func newBridgeTestTargetCmd(app *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "test-target <url>",
		Short: "Ask the agent whether it can reach a destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withAgent(cmd.Context(), cmd.ErrOrStderr(), func(ctx context.Context) error {
				resp := app.client.Request(ctx, bridge.TestTarget{URL: args[0]}, bridge.KindTargetResult, timeout)
				if !resp.OK() {
					return fmt.Errorf("test target: %s", resp.Outcome)
				}

				result, ok := resp.Message.(bridge.TargetResult)
				if !ok || !result.Found {
					return fmt.Errorf("target %s not found by agent", args[0])
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "target %s found\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the answer")

	return cmd
}

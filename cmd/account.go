package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/autoseed-cli/internal/application"
	"github.com/bnema/autoseed-cli/internal/domain"
)

const defaultCheckTimeout = 20 * time.Second

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage seeding accounts",
	}

	cmd.AddCommand(
		newAccountListCmd(app),
		newAccountAddCmd(app),
		newAccountImportCmd(app),
		newAccountRemoveCmd(app),
		newAccountRenameCmd(app),
		newAccountCredentialCmd(app),
		newAccountSyncCmd(app),
		newAccountCheckCmd(app),
	)

	return cmd
}

type accountView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar,omitempty"`
	Status     string `json:"status"`
	Credential bool   `json:"credential"`
}

func newAccountListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.accounts.List(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]accountView, 0, len(accounts))
			for _, account := range accounts {
				views = append(views, accountView{
					ID:         string(account.ID),
					Name:       account.DisplayName(),
					Avatar:     account.Avatar,
					Status:     string(account.Liveness),
					Credential: account.HasCredential(),
				})
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(views)
			}

			if len(views) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no accounts configured")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCREDENTIAL")
			for _, view := range views {
				credential := "no"
				if view.Credential {
					credential = "yes"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", view.ID, view.Name, view.Status, credential)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print accounts as JSON")

	return cmd
}

func newAccountAddCmd(app *app) *cobra.Command {
	var (
		id              string
		name            string
		avatar          string
		credential      string
		credentialStdin bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account or replace its credential",
		Long:  "Add an account. The id defaults to the c_user value of the session cookie.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if credentialStdin {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read credential from stdin: %w", err)
				}
				credential = strings.TrimSpace(string(raw))
			}

			account, err := app.accounts.Add(cmd.Context(), application.AddAccountCommand{
				ID:         domain.AccountID(id),
				Name:       name,
				Avatar:     avatar,
				Credential: credential,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "account %s saved (%s)\n", account.ID, account.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Account ID")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar URL")
	cmd.Flags().StringVar(&credential, "credential", "", "Session cookie string")
	cmd.Flags().BoolVar(&credentialStdin, "credential-stdin", false, "Read the session cookie from stdin")
	cmd.MarkFlagsMutuallyExclusive("credential", "credential-stdin")

	return cmd
}

// importedAccount matches the JSON backup written by the web dashboard.
type importedAccount struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Cookie string `json:"cookie"`
}

func newAccountImportCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import accounts from a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			var entries []importedAccount
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("decode account backup: %w", err)
			}

			cmds := make([]application.AddAccountCommand, 0, len(entries))
			for _, entry := range entries {
				cmds = append(cmds, application.AddAccountCommand{
					ID:         domain.AccountID(entry.ID),
					Name:       entry.Name,
					Avatar:     entry.Avatar,
					Credential: entry.Cookie,
				})
			}

			result, err := app.accounts.Import(cmd.Context(), cmds)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d accounts, skipped %d\n", len(result.Added), len(result.Skipped))
			return nil
		},
	}
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account>",
		Short: "Remove an account and its stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := resolveAccounts(cmd.Context(), app, args)
			if err != nil {
				return err
			}

			if err := app.accounts.Delete(cmd.Context(), accounts[0].ID); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "account %s removed\n", accounts[0].ID)
			return nil
		},
	}
}

func newAccountRenameCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <account> <name>",
		Short: "Change an account's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[1])
			if name == "" {
				return errors.New("account name is empty")
			}

			accounts, err := resolveAccounts(cmd.Context(), app, args[:1])
			if err != nil {
				return err
			}
			if err := app.accounts.SetAccountName(cmd.Context(), accounts[0].ID, name); err != nil {
				return err
			}

			account, err := app.accounts.Get(cmd.Context(), accounts[0].ID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "account %s renamed to %s\n", account.ID, account.DisplayName())
			return nil
		},
	}
}

func newAccountCredentialCmd(app *app) *cobra.Command {
	var clearCredential bool

	cmd := &cobra.Command{
		Use:   "credential <account> [cookie|-]",
		Short: "Replace or clear an account's session cookie",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := resolveAccounts(cmd.Context(), app, args[:1])
			if err != nil {
				return err
			}
			id := accounts[0].ID

			if clearCredential {
				if len(args) > 1 {
					return errors.New("--clear takes no cookie")
				}
				if err := app.accounts.RemoveCredential(cmd.Context(), id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "credential for %s cleared\n", id)
				return nil
			}

			if len(args) < 2 {
				return errors.New("cookie is required, pass - to read it from stdin")
			}
			raw := args[1]
			if raw == "-" {
				data, err := readInput(cmd, raw)
				if err != nil {
					return err
				}
				raw = string(data)
			}
			if err := app.accounts.SetCredential(cmd.Context(), id, strings.TrimSpace(raw)); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "credential for %s updated\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearCredential, "clear", false, "Remove the stored credential")

	return cmd
}

func newAccountSyncCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push accounts with credentials to the connected agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withAgent(cmd.Context(), cmd.ErrOrStderr(), func(ctx context.Context) error {
				count, err := app.accounts.SyncToAgent(ctx, app.client)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "synced %d accounts\n", count)
				return nil
			})
		},
	}
}

func newAccountCheckCmd(app *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check [account...]",
		Short: "Ask the agent whether account sessions are still alive",
		Long:  "Check the given accounts, or every account with a credential. Accounts may be given by id or by name.",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := resolveAccounts(cmd.Context(), app, args)
			if err != nil {
				return err
			}

			return app.withAgent(cmd.Context(), cmd.ErrOrStderr(), func(ctx context.Context) error {
				var failures []error
				for _, account := range accounts {
					if len(args) == 0 && !account.HasCredential() {
						continue
					}

					liveness, err := app.accounts.CheckAlive(ctx, app.client, account.ID, timeout)
					if err != nil {
						failures = append(failures, fmt.Errorf("check %s: %w", account.ID, err))
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\terror\n", account.ID, account.DisplayName())
						continue
					}

					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", account.ID, account.DisplayName(), liveness)
				}

				return errors.Join(failures...)
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultCheckTimeout, "How long to wait for each answer")

	return cmd
}

// resolveAccounts maps ids or fuzzy names to accounts. No queries selects all.
func resolveAccounts(ctx context.Context, app *app, queries []string) ([]domain.Account, error) {
	accounts, err := app.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		if len(accounts) == 0 {
			return nil, domain.ErrNoAccounts
		}
		return accounts, nil
	}

	return application.MatchAccounts(accounts, queries)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

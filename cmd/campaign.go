package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/autoseed-cli/internal/application"
	"github.com/bnema/autoseed-cli/internal/domain"
)

const scheduleLayout = "2006-01-02 15:04"

func newCampaignCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Create and inspect seeding campaigns",
	}

	cmd.AddCommand(
		newCampaignCreateCmd(app),
		newCampaignListCmd(app),
		newCampaignShowCmd(app),
		newCampaignScheduleCmd(app),
		newCampaignDeleteCmd(app),
	)

	return cmd
}

func newCampaignCreateCmd(app *app) *cobra.Command {
	var (
		title          string
		targetURL      string
		content        string
		platform       string
		sentiment      string
		style          string
		lines          []string
		linesFile      string
		count          int
		accountQueries []string
		randomAccounts int
		trust          bool
		delay          time.Duration
		idle           time.Duration
		noPost         bool
		humanize       bool
		at             string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign from manual lines or generated content",
		Long: "Create a campaign. Items come from --line/--lines-file verbatim, or are generated from --content " +
			"when neither is given. Accounts may be given by id or by name.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if linesFile != "" {
				data, err := readInput(cmd, linesFile)
				if err != nil {
					return err
				}
				lines = append(lines, strings.Split(string(data), "\n")...)
			}

			var selected []domain.AccountID
			if len(accountQueries) > 0 {
				accounts, err := resolveAccounts(ctx, app, accountQueries)
				if err != nil {
					return err
				}
				for _, account := range accounts {
					selected = append(selected, account.ID)
				}
			}

			toggles := app.cfg.Run.Toggles()
			if cmd.Flags().Changed("delay") {
				toggles.InterItemDelay = delay
			}
			if idle > 0 {
				toggles.IdleInteractionEnabled = true
				toggles.IdleDuration = idle
			}
			if noPost {
				toggles.PostingEnabled = false
			}
			if cmd.Flags().Changed("humanize") {
				toggles.Humanize.Enabled = humanize
			}

			var scheduledAt time.Time
			if at != "" {
				parsed, err := parseSchedule(at, app.now())
				if err != nil {
					return err
				}
				scheduledAt = parsed
			}

			if count <= 0 {
				count = app.cfg.Content.Count
			}

			campaign, err := app.campaigns.Create(ctx, application.CreateCampaignCommand{
				Title:          title,
				TargetURL:      targetURL,
				PostContent:    content,
				Platform:       domain.Platform(platform),
				Sentiment:      domain.Sentiment(sentiment),
				Style:          domain.ContentStyle(style),
				Lines:          lines,
				Count:          count,
				Accounts:       selected,
				RandomAccounts: randomAccounts,
				Trust:          trust,
				Toggles:        toggles,
				ScheduledAt:    scheduledAt,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "campaign %s created: %q, %d items, status %s\n",
				campaign.ID, campaign.Title, len(campaign.Items), campaign.Status)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "Campaign title")
	flags.StringVar(&targetURL, "url", "", "Destination URL the agent opens")
	flags.StringVar(&content, "content", "", "Post content used to generate items")
	flags.StringVar(&platform, "platform", string(domain.PlatformFacebookPage), "facebook_page, facebook_group, facebook_profile, tiktok or instagram")
	flags.StringVar(&sentiment, "sentiment", string(domain.SentimentPositive), "positive, neutral, controversial, funny, sales or daily_life")
	flags.StringVar(&style, "style", string(domain.StyleMixed), "mixed, short, detailed, questions or status")
	flags.StringArrayVar(&lines, "line", nil, "Manual item text (repeatable)")
	flags.StringVar(&linesFile, "lines-file", "", "File with one item per line, or - for stdin")
	flags.IntVar(&count, "count", 0, "Number of items to generate (default from content.count)")
	flags.StringArrayVar(&accountQueries, "account", nil, "Account id or name (repeatable)")
	flags.IntVar(&randomAccounts, "random-accounts", 0, "Pick this many random accounts with credentials")
	flags.BoolVar(&trust, "trust", false, "Post items as profile statuses")
	flags.DurationVar(&delay, "delay", 0, "Delay between items (default from run.delay_seconds)")
	flags.DurationVar(&idle, "idle", 0, "Let each account browse idly for this long before posting")
	flags.BoolVar(&noPost, "no-post", false, "Only browse, never post")
	flags.BoolVar(&humanize, "humanize", false, "Ask the agent to act like a human")
	flags.StringVar(&at, "at", "", "Schedule time: RFC3339, \"2006-01-02 15:04\" or +duration")
	_ = cmd.MarkFlagRequired("url")
	cmd.MarkFlagsMutuallyExclusive("account", "random-accounts")

	return cmd
}

type campaignSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Platform    string    `json:"platform,omitempty"`
	Items       int       `json:"items"`
	CreatedAt   time.Time `json:"createdAt"`
	ScheduledAt time.Time `json:"scheduledAt,omitzero"`
}

func newCampaignListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			campaigns, err := app.campaigns.List(cmd.Context())
			if err != nil {
				return err
			}

			summaries := make([]campaignSummary, 0, len(campaigns))
			for _, campaign := range campaigns {
				summaries = append(summaries, campaignSummary{
					ID:          string(campaign.ID),
					Title:       campaign.Title,
					Status:      string(campaign.Status),
					Platform:    string(campaign.Platform),
					Items:       len(campaign.Items),
					CreatedAt:   campaign.CreatedAt,
					ScheduledAt: campaign.ScheduledAt,
				})
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(summaries)
			}

			if len(summaries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no campaigns")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tSTATUS\tITEMS\tSCHEDULED\tTITLE")
			for _, s := range summaries {
				scheduled := "-"
				if !s.ScheduledAt.IsZero() {
					scheduled = s.ScheduledAt.Local().Format(scheduleLayout)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Status, s.Items, scheduled, s.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print campaigns as JSON")

	return cmd
}

func newCampaignShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Show a campaign and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaign, err := app.campaigns.Get(cmd.Context(), domain.CampaignID(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "id:        %s\n", campaign.ID)
			_, _ = fmt.Fprintf(out, "title:     %s\n", campaign.Title)
			_, _ = fmt.Fprintf(out, "status:    %s\n", campaign.Status)
			_, _ = fmt.Fprintf(out, "url:       %s\n", campaign.TargetURL)
			_, _ = fmt.Fprintf(out, "platform:  %s\n", campaign.Platform)
			_, _ = fmt.Fprintf(out, "action:    %s\n", campaign.ActionKind())
			if !campaign.ScheduledAt.IsZero() {
				_, _ = fmt.Fprintf(out, "scheduled: %s\n", campaign.ScheduledAt.Local().Format(scheduleLayout))
			}
			_, _ = fmt.Fprintf(out, "delay:     %s\n", campaign.Toggles.InterItemDelay)
			if campaign.Toggles.IdleInteractionEnabled {
				_, _ = fmt.Fprintf(out, "idle:      %s\n", campaign.Toggles.IdleDuration)
			}
			_, _ = fmt.Fprintf(out, "items:     %d\n", len(campaign.Items))

			for i, item := range campaign.Items {
				account := "-"
				if item.Account != nil {
					account = string(item.Account.ID)
				}
				_, _ = fmt.Fprintf(out, "  %2d. [%s] %s\n", i+1, account, item.Text)
			}
			return nil
		},
	}
}

func newCampaignScheduleCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <campaign-id> <time>",
		Short: "Schedule a campaign for `seed serve` to start",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseSchedule(args[1], app.now())
			if err != nil {
				return err
			}

			campaign, err := app.campaigns.Schedule(cmd.Context(), domain.CampaignID(args[0]), at)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "campaign %s scheduled for %s\n", campaign.ID, campaign.ScheduledAt.Local().Format(scheduleLayout))
			return nil
		},
	}
}

func newCampaignDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <campaign-id>",
		Short: "Delete a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.campaigns.Delete(cmd.Context(), domain.CampaignID(args[0])); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "campaign %s deleted\n", args[0])
			return nil
		},
	}
}

// parseSchedule accepts RFC3339, a local "2006-01-02 15:04" time, or a
// +duration relative to now.
func parseSchedule(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(value, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse schedule offset %q: %w", value, err)
		}
		return now.Add(d).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(scheduleLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule time %q: expected RFC3339, %q or +duration", value, scheduleLayout)
	}
	return t.UTC(), nil
}

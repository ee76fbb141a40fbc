// Package config loads ~/.autoseed/config.toml and AUTOSEED_* overrides into a
// typed Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/autoseed-cli/internal/domain"
	"github.com/bnema/autoseed-cli/internal/engine"
)

const (
	EnvPrefix     = "AUTOSEED"
	DirName       = ".autoseed"
	fileName      = "config"
	fileType      = "toml"
	DefaultListen = "127.0.0.1:7878"

	SecretsAuto = "auto"
	SecretsPass = "pass"
	SecretsFile = "file"
)

type Config struct {
	Accounts  PathConfig      `mapstructure:"accounts"`
	Campaigns PathConfig      `mapstructure:"campaigns"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Content   ContentConfig   `mapstructure:"content"`
	Run       RunConfig       `mapstructure:"run"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Timing    TimingConfig    `mapstructure:"timing"`
}

type PathConfig struct {
	Path string `mapstructure:"path"`
}

type SecretsConfig struct {
	// Backend is auto (pass, then files), pass, or file.
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	PassBinary string `mapstructure:"pass_binary"`
	PassDir    string `mapstructure:"pass_dir"`
}

type BridgeConfig struct {
	Listen         string        `mapstructure:"listen"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	// AgentWait bounds how long one-shot commands wait for an agent to connect.
	AgentWait time.Duration `mapstructure:"agent_wait"`
}

type ContentConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	Count  int    `mapstructure:"count"`
}

type RunConfig struct {
	DelaySeconds int            `mapstructure:"delay_seconds"`
	Humanize     HumanizeConfig `mapstructure:"humanize"`
}

type HumanizeConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TypingSpeed  string `mapstructure:"typing_speed"`
	RandomScroll bool   `mapstructure:"random_scroll"`
	ReadMore     bool   `mapstructure:"read_more"`
	RandomDelay  bool   `mapstructure:"random_delay"`
	Typos        bool   `mapstructure:"typos"`
	LikeCount    int    `mapstructure:"like_count"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type TimingConfig struct {
	PausePoll        time.Duration `mapstructure:"pause_poll"`
	PingSettle       time.Duration `mapstructure:"ping_settle"`
	SwitchSettle     time.Duration `mapstructure:"switch_settle"`
	IdentityAttempts int           `mapstructure:"identity_attempts"`
	IdentityTimeout  time.Duration `mapstructure:"identity_timeout"`
	IdentityBackoff  time.Duration `mapstructure:"identity_backoff"`
	ReadyDelay       time.Duration `mapstructure:"ready_delay"`
	ActionDeadline   time.Duration `mapstructure:"action_deadline"`
	IdleMargin       time.Duration `mapstructure:"idle_margin"`
	SkipGrace        time.Duration `mapstructure:"skip_grace"`
	Tick             time.Duration `mapstructure:"tick"`
}

// Load reads configuration. Precedence, highest first: values set on
// v directly (flags), AUTOSEED_* environment, the config file, defaults.
// A missing config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("content.api_key", EnvPrefix+"_CONTENT_API_KEY", "GEMINI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind content api key: %w", err)
	}

	explicit := v.ConfigFileUsed() != ""
	if !explicit {
		v.SetConfigName(fileName)
		v.SetConfigType(fileType)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, DirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Accounts.Path = expandHome(cfg.Accounts.Path)
	cfg.Campaigns.Path = expandHome(cfg.Campaigns.Path)
	cfg.Secrets.Dir = expandHome(cfg.Secrets.Dir)
	cfg.Secrets.PassDir = expandHome(cfg.Secrets.PassDir)
	v.Set("accounts.path", cfg.Accounts.Path)
	v.Set("campaigns.path", cfg.Campaigns.Path)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	timing := engine.DefaultTiming()

	v.SetDefault("accounts.path", "")
	v.SetDefault("campaigns.path", "")
	v.SetDefault("secrets.backend", SecretsAuto)
	v.SetDefault("secrets.dir", filepath.Join("~", DirName, "secrets"))
	v.SetDefault("secrets.pass_binary", "pass")
	v.SetDefault("secrets.pass_dir", "")

	v.SetDefault("bridge.listen", DefaultListen)
	v.SetDefault("bridge.heartbeat", 15*time.Second)
	v.SetDefault("bridge.allowed_origins", []string{})
	v.SetDefault("bridge.agent_wait", 30*time.Second)

	v.SetDefault("content.api_key", "")
	v.SetDefault("content.model", "gemini-2.5-flash")
	v.SetDefault("content.count", 5)

	v.SetDefault("run.delay_seconds", 3)
	v.SetDefault("run.humanize.enabled", false)
	v.SetDefault("run.humanize.typing_speed", string(domain.TypingNormal))
	v.SetDefault("run.humanize.random_scroll", false)
	v.SetDefault("run.humanize.read_more", false)
	v.SetDefault("run.humanize.random_delay", false)
	v.SetDefault("run.humanize.typos", false)
	v.SetDefault("run.humanize.like_count", 0)

	v.SetDefault("scheduler.interval", 30*time.Second)

	v.SetDefault("timing.pause_poll", timing.PausePoll)
	v.SetDefault("timing.ping_settle", timing.PingSettle)
	v.SetDefault("timing.switch_settle", timing.SwitchSettle)
	v.SetDefault("timing.identity_attempts", timing.IdentityAttempts)
	v.SetDefault("timing.identity_timeout", timing.IdentityTimeout)
	v.SetDefault("timing.identity_backoff", timing.IdentityBackoff)
	v.SetDefault("timing.ready_delay", timing.ReadyDelay)
	v.SetDefault("timing.action_deadline", timing.ActionDeadline)
	v.SetDefault("timing.idle_margin", timing.IdleMargin)
	v.SetDefault("timing.skip_grace", timing.SkipGrace)
	v.SetDefault("timing.tick", timing.Tick)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Bridge.Listen) == "" {
		return fmt.Errorf("bridge.listen is required")
	}
	switch c.Secrets.Backend {
	case SecretsAuto, SecretsPass, SecretsFile:
	default:
		return fmt.Errorf("unsupported secrets.backend %q", c.Secrets.Backend)
	}
	if c.Run.DelaySeconds < 0 {
		return fmt.Errorf("run.delay_seconds must not be negative")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Content.Count < 0 {
		return fmt.Errorf("content.count must not be negative")
	}
	if err := c.Run.Toggles().Validate(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// Toggles returns the default workflow toggles for new campaigns.
func (r RunConfig) Toggles() domain.WorkflowToggles {
	toggles := domain.DefaultToggles()
	toggles.InterItemDelay = time.Duration(r.DelaySeconds) * time.Second
	toggles.Humanize = domain.HumanizeConfig{
		Enabled:      r.Humanize.Enabled,
		TypingSpeed:  domain.TypingSpeed(r.Humanize.TypingSpeed),
		RandomScroll: r.Humanize.RandomScroll,
		ReadMore:     r.Humanize.ReadMore,
		RandomDelay:  r.Humanize.RandomDelay,
		Typos:        r.Humanize.Typos,
		LikeCount:    r.Humanize.LikeCount,
	}
	return toggles
}

func (t TimingConfig) Engine() engine.Timing {
	return engine.Timing{
		PausePoll:        t.PausePoll,
		PingSettle:       t.PingSettle,
		SwitchSettle:     t.SwitchSettle,
		IdentityAttempts: t.IdentityAttempts,
		IdentityTimeout:  t.IdentityTimeout,
		IdentityBackoff:  t.IdentityBackoff,
		ReadyDelay:       t.ReadyDelay,
		ActionDeadline:   t.ActionDeadline,
		IdleMargin:       t.IdleMargin,
		SkipGrace:        t.SkipGrace,
		Tick:             t.Tick,
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Package config loads the bridge configuration from a YAML file with
// environment overrides. Unknown file keys are tolerated; missing required
// keys abort startup.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// LoadEnv loads a .env file from the working directory if present.
func LoadEnv() error {
	return godotenv.Load()
}

// Config is the full bridge configuration.
type Config struct {
	// GuildID is the remote guild the bridge provisions channels in.
	GuildID string `yaml:"guild_id"`
	// CategoryID is the channel category new voice channels are created
	// under. Accepts a string or a number in the file.
	CategoryID FlexibleID `yaml:"category_id"`
	// BotTokens are the credentials handed to the bot pool, one session
	// per token at most.
	BotTokens []string `yaml:"bot_tokens"`
	// BotUserIDs are the bot accounts' own user ids, used to ignore
	// bot-authored messages on the text relay.
	BotUserIDs []uint64 `yaml:"bot_user_ids"`
	// AllowedCreators is the allow-list of players whose groups get a
	// remote channel. Empty means every creator is allowed.
	AllowedCreators []uuid.UUID `yaml:"allowed_creators"`
	// DebugLevel: 0 = info, 1 = debug, >=2 = debug including per-frame
	// paths.
	DebugLevel int `yaml:"debug_level"`
}

// InvalidError is a fatal configuration problem found at startup.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

var _ error = (*InvalidError)(nil)

// FlexibleID is an id that may appear as a string or a number in YAML.
type FlexibleID string

func (f *FlexibleID) UnmarshalYAML(value *yaml.Node) error {
	var asString string
	if err := value.Decode(&asString); err == nil {
		*f = FlexibleID(asString)
		return nil
	}
	var asNumber uint64
	if err := value.Decode(&asNumber); err != nil {
		return fmt.Errorf("must be a string or a number: %w", err)
	}
	*f = FlexibleID(fmt.Sprintf("%d", asNumber))
	return nil
}

// envOverrides are the environment knobs layered on top of the file.
type envOverrides struct {
	ConfigPath string `env:"VOICEBRIDGE_CONFIG, default=voicebridge.yml"`
	GuildID    string `env:"VOICEBRIDGE_GUILD_ID"`
	CategoryID string `env:"VOICEBRIDGE_CATEGORY_ID"`
	DebugLevel *int   `env:"VOICEBRIDGE_DEBUG_LEVEL"`
}

// Load reads the config file named by VOICEBRIDGE_CONFIG (default
// voicebridge.yml), applies environment overrides, and validates.
func Load(ctx context.Context) (*Config, error) {
	var env envOverrides
	if err := envconfig.Process(ctx, &env); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	raw, err := os.ReadFile(env.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", env.ConfigPath, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if env.GuildID != "" {
		cfg.GuildID = env.GuildID
	}
	if env.CategoryID != "" {
		cfg.CategoryID = FlexibleID(env.CategoryID)
	}
	if env.DebugLevel != nil {
		cfg.DebugLevel = *env.DebugLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without validating, so overrides can fill gaps.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &InvalidError{Field: "(file)", Reason: err.Error()}
	}
	return &cfg, nil
}

// Validate checks the required keys.
func (c *Config) Validate() error {
	if c.GuildID == "" {
		return &InvalidError{Field: "guild_id", Reason: "required"}
	}
	if c.CategoryID == "" {
		return &InvalidError{Field: "category_id", Reason: "required"}
	}
	if len(c.BotTokens) == 0 {
		return &InvalidError{Field: "bot_tokens", Reason: "at least one token is required"}
	}
	for i, token := range c.BotTokens {
		if token == "" {
			return &InvalidError{Field: "bot_tokens", Reason: fmt.Sprintf("token %d is empty", i)}
		}
	}
	return nil
}

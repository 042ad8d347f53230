// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (TOKEN_SWAP_LISTEN_ADDR...).
const EnvPrefix = "TOKEN_SWAP"

type Config struct {
	ProgramID     string       `mapstructure:"program_id"`
	ListenAddr    string       `mapstructure:"listen_addr"`
	Ledger        LedgerConfig `mapstructure:"ledger"`
	Pool          PoolConfig   `mapstructure:"pool"`
	FaucetEnabled bool         `mapstructure:"faucet_enabled"`
	APIKey        string       `mapstructure:"api_key"`
	RateLimitRPS  float64      `mapstructure:"rate_limit_rps"`
	RateBurst     int          `mapstructure:"rate_burst"`
	EventBuffer   int          `mapstructure:"event_buffer"`
	JournalSize   int          `mapstructure:"journal_size"`   // swaps kept per pool for /swaps
	SwapTapeFile  string       `mapstructure:"swap_tape_file"` // пусто = без CSV-ленты сделок
	DebugLogging  bool         `mapstructure:"debug_logging"`
	LogFile       string       `mapstructure:"log_file"`
	LogPretty     bool         `mapstructure:"log_pretty"`
}

type LedgerConfig struct {
	Backend     string `mapstructure:"backend"` // memory | redis | postgres
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
	PostgresURL string `mapstructure:"postgres_url"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

type PoolConfig struct {
	MaxFeeRateBps              uint16 `mapstructure:"max_fee_rate_bps"`
	DefaultFeeRateBps          uint16 `mapstructure:"default_fee_rate_bps"`
	DefaultProtocolFeeShareBps uint16 `mapstructure:"default_protocol_fee_share_bps"`
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	DefaultProgramID     = "SwapsVeCiPHMUAtzQWZw7RjsKjgCPFwS7TmGgeCALpo"
	DefaultListenAddr    = ":8080"
	DefaultMaxFeeRateBps = 1000
	DefaultFeeRateBps    = 30
	DefaultMaxRetries    = 10
	DefaultRateLimitRPS  = 20
	DefaultRateBurst     = 40
	DefaultEventBuffer   = 256
	DefaultJournalSize   = 1000
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"program_id":                          DefaultProgramID,
		"listen_addr":                         DefaultListenAddr,
		"ledger.backend":                      BackendMemory,
		"ledger.redis_addr":                   "localhost:6379",
		"ledger.redis_db":                     0,
		"ledger.postgres_url":                 "",
		"ledger.max_retries":                  DefaultMaxRetries,
		"pool.max_fee_rate_bps":               DefaultMaxFeeRateBps,
		"pool.default_fee_rate_bps":           DefaultFeeRateBps,
		"pool.default_protocol_fee_share_bps": 0,
		"faucet_enabled":                      false,
		"api_key":                             "",
		"rate_limit_rps":                      DefaultRateLimitRPS,
		"rate_burst":                          DefaultRateBurst,
		"event_buffer":                        DefaultEventBuffer,
		"journal_size":                        DefaultJournalSize,
		"swap_tape_file":                      "",
		"debug_logging":                       false,
		"log_file":                            "swapd.log",
		"log_pretty":                          false,
	}
}

// Load reads configuration from path (optional), the environment and flags,
// in increasing order of precedence. Flags are bound by replacing '-' with
// '_' and '.' in their names, e.g. --listen-addr, --ledger.backend.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, cfg.Validate()
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	known := defaults()
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, ok := known[key]; !ok {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = fmt.Errorf("failed to bind flag --%s: %w", f.Name, bindErr)
		}
	})
	return err
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if _, err := c.Program(); err != nil {
		return err
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr is empty")
	}
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	if err := c.Pool.validate(); err != nil {
		return err
	}
	if c.RateLimitRPS < 0 {
		return errors.New("invalid rate_limit_rps")
	}
	if c.RateBurst < 0 {
		return errors.New("invalid rate_burst")
	}
	if c.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	if c.JournalSize <= 0 {
		return errors.New("invalid journal_size")
	}
	return nil
}

// Program returns the parsed program id.
func (c *Config) Program() (solana.PublicKey, error) {
	id, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program_id %q: %w", c.ProgramID, err)
	}
	return id, nil
}

func (l *LedgerConfig) validate() error {
	switch l.Backend {
	case BackendMemory:
	case BackendRedis:
		if l.RedisAddr == "" {
			return errors.New("ledger.redis_addr is required for the redis backend")
		}
		if l.RedisDB < 0 {
			return errors.New("invalid ledger.redis_db")
		}
	case BackendPostgres:
		if l.PostgresURL == "" {
			return errors.New("ledger.postgres_url is required for the postgres backend")
		}
		parsed, err := url.Parse(l.PostgresURL)
		if err != nil || !strings.HasPrefix(parsed.Scheme, "postgres") {
			return errors.New("ledger.postgres_url must be a postgres:// URL")
		}
	default:
		return fmt.Errorf("unknown ledger.backend %q", l.Backend)
	}
	if l.MaxRetries <= 0 {
		return errors.New("invalid ledger.max_retries")
	}
	return nil
}

func (p *PoolConfig) validate() error {
	if p.MaxFeeRateBps > 10_000 {
		return errors.New("pool.max_fee_rate_bps exceeds 10000")
	}
	if p.DefaultFeeRateBps > p.MaxFeeRateBps {
		return errors.New("pool.default_fee_rate_bps exceeds pool.max_fee_rate_bps")
	}
	if p.DefaultProtocolFeeShareBps > 10_000 {
		return errors.New("pool.default_protocol_fee_share_bps exceeds 10000")
	}
	return nil
}

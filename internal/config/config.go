// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	token := cfg.LunchMoney.AccessToken
//	accounts := cfg.Monzo.AccountIDs
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Monzo         MonzoConfig         `yaml:"monzo"`
	LunchMoney    LunchMoneyConfig    `yaml:"lunchmoney"`
	Interest      InterestConfig      `yaml:"interest"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// MonzoConfig holds Monzo API configuration
type MonzoConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// TokenFile holds the OAuth access/refresh token pair between runs.
	TokenFile string `yaml:"token_file"`
	// AccountIDs are the home accounts participating in the sync. Transactions
	// whose counterparty is one of these are treated as internal transfers.
	AccountIDs []string `yaml:"account_ids"`
	// SavingsPotID enables pot-transfer mirroring when set together with
	// LunchMoney.SavingsAssetID.
	SavingsPotID string `yaml:"savings_pot_id"`
	// AccountLabels optionally names accounts for mirror notes,
	// e.g. acc_personal: personal
	AccountLabels map[string]string `yaml:"account_labels"`
}

// LunchMoneyConfig holds Lunch Money API configuration
type LunchMoneyConfig struct {
	AccessToken string `yaml:"access_token"`
	// TransferCategoryID is the category assigned to internal and pot
	// transfers. Zero means unconfigured.
	TransferCategoryID int64 `yaml:"transfer_category_id"`
	// SavingsAssetID is the asset the pot-mirror leg is routed to.
	SavingsAssetID int64 `yaml:"savings_asset_id"`
	// AssetMap maps Monzo account ids to Lunch Money asset ids. Every
	// configured account must have an entry.
	AssetMap map[string]int64 `yaml:"asset_map"`
	// FlipSign flips the amount sign convention; Lunch Money treats debits
	// as positive unless told otherwise.
	FlipSign bool `yaml:"flip_sign"`
	// CategoryMapPath points at the Monzo -> Lunch Money category map JSON.
	CategoryMapPath string `yaml:"category_map_path"`
}

// InterestConfig controls how savings interest entries are posted
type InterestConfig struct {
	// PositiveIncome posts interest as positive income when true, negative
	// when false. Historical exports disagree on the convention, so it is
	// an explicit choice.
	PositiveIncome bool `yaml:"positive_income"`
	DataPath       string `yaml:"data_path"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${LUNCHMONEY_ACCESS_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	return &Config{
		Monzo: MonzoConfig{
			ClientID:      os.Getenv("MONZO_CLIENT_ID"),
			ClientSecret:  os.Getenv("MONZO_CLIENT_SECRET"),
			TokenFile:     getEnv("MONZO_TOKEN_FILE", "data/monzo_tokens.json"),
			AccountIDs:    ParseList(os.Getenv("MONZO_ACCOUNT_IDS")),
			SavingsPotID:  os.Getenv("MONZO_SAVINGS_POT_ID"),
			AccountLabels: ParseLabelMap(os.Getenv("MONZO_ACCOUNT_LABELS")),
		},
		LunchMoney: LunchMoneyConfig{
			AccessToken:        os.Getenv("LUNCHMONEY_ACCESS_TOKEN"),
			TransferCategoryID: getEnvInt64("LM_CATEGORY_BANK_TRANSFER_ID", 0),
			SavingsAssetID:     getEnvInt64("LM_SAVINGS_ASSET_ID", 0),
			AssetMap:           ParseAssetMap(os.Getenv("LM_ASSET_IDS_MAP")),
			FlipSign:           getEnvBool("LM_FLIP_SIGN", true),
			CategoryMapPath:    getEnv("LM_CATEGORY_MAP_PATH", "category_map.json"),
		},
		Interest: InterestConfig{
			PositiveIncome: getEnvBool("LM_INTEREST_POSITIVE", true),
			DataPath:       getEnv("LM_INTEREST_PATH", "data/interest.json"),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("SYNC_DB_PATH", "data/sync.db"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate checks that the configuration is complete enough to sync.
// Every configured account must map to a Lunch Money asset so transactions
// never post as unassigned cash.
func (c *Config) Validate() error {
	if len(c.Monzo.AccountIDs) == 0 {
		return fmt.Errorf("no Monzo account ids configured (MONZO_ACCOUNT_IDS)")
	}
	if c.LunchMoney.AccessToken == "" {
		return fmt.Errorf("missing Lunch Money access token (LUNCHMONEY_ACCESS_TOKEN)")
	}
	var missing []string
	for _, acc := range c.Monzo.AccountIDs {
		if _, ok := c.LunchMoney.AssetMap[acc]; !ok {
			missing = append(missing, acc)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("asset map is missing entries for accounts: %s", strings.Join(missing, ", "))
	}
	return nil
}

// PotMirrorEnabled reports whether both halves of the pot-mirror
// configuration are present. One without the other deactivates the feature.
func (c *Config) PotMirrorEnabled() bool {
	return c.Monzo.SavingsPotID != "" && c.LunchMoney.SavingsAssetID != 0
}

// ParseList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseAssetMap parses "acc_1:123,acc_2:456" into a map. Malformed pairs
// are skipped rather than treated as errors.
func ParseAssetMap(raw string) map[string]int64 {
	out := make(map[string]int64)
	for _, pair := range strings.Split(raw, ",") {
		acc, id, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		acc = strings.TrimSpace(acc)
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil || acc == "" {
			continue
		}
		out[acc] = n
	}
	return out
}

// ParseLabelMap parses "acc_1:personal,acc_2:joint" into a map.
func ParseLabelMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		acc, label, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		acc = strings.TrimSpace(acc)
		label = strings.TrimSpace(label)
		if acc == "" || label == "" {
			continue
		}
		out[acc] = label
	}
	return out
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt64 retrieves an integer environment variable with a fallback default
func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, fallback bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "1", "true", "yes", "on", "y":
		return true
	case "0", "false", "no", "off", "n":
		return false
	}
	return fallback
}

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ErrInvalid marks configuration problems detected at startup.
var ErrInvalid = errors.New("invalid config")

// Loader assembles a Config from, in order of precedence (later wins):
// built-in defaults, the optional config file, the optional dotenv file
// and the process environment.
type Loader struct {
	// Path is a .json/.yaml/.yml config file. Empty skips the file layer.
	Path string
	// EnvFile is a dotenv file. A missing file is not an error.
	EnvFile string

	lookup func(string) (string, bool)
}

func NewLoader(path, envFile string) Loader {
	return Loader{Path: path, EnvFile: envFile, lookup: os.LookupEnv}
}

// Load builds and validates the config.
func (l Loader) Load() (*Config, error) {
	cfg, err := l.parseFile()
	if err != nil {
		return nil, err
	}
	dotenv, err := l.readEnvFile()
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, l.layeredLookup(dotenv)); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l Loader) parseFile() (*Config, error) {
	cfg := &Config{}
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}
	jb, format, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode %s (%s): %v", ErrInvalid, path, format, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%w: %s: trailing data", ErrInvalid, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return cfg, nil
}

// readEnvFile parses the dotenv file without touching the process environment.
func (l Loader) readEnvFile() (map[string]string, error) {
	path := strings.TrimSpace(l.EnvFile)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	m, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: env file %s: %v", ErrInvalid, path, err)
	}
	return m, nil
}

// layeredLookup prefers the real environment over dotenv values.
func (l Loader) layeredLookup(dotenv map[string]string) func(string) (string, bool) {
	lookup := l.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("NOTION_API_KEY", &cfg.Notion.Token)
	str("NOTION_DATABASE_ID", &cfg.Notion.DatabaseID)
	str("NOTION_BASE_URL", &cfg.Notion.BaseURL)
	str("NOTION_VERSION", &cfg.Notion.Version)
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.Token)
	str("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	str("TELEGRAM_BASE_URL", &cfg.Telegram.BaseURL)
	str("SENT_IDS_FILE", &cfg.Ledger.Path)
	str("LEDGER_DRIVER", &cfg.Ledger.Driver)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("ORDERBOT_SCHEDULE", &cfg.Schedule)
	str("ORDERBOT_TIMEZONE", &cfg.Notifier.Timezone)
	str("METRICS_TEXTFILE", &cfg.Metrics.Textfile)
	str("METRICS_ADDR", &cfg.Metrics.Addr)

	if v, ok := lookup("LOG_FILE"); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.File = LoggingFile{Enabled: true, Path: strings.TrimSpace(v)}
	}
	if v, ok := lookup("TELEGRAM_THREAD_ID"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: TELEGRAM_THREAD_ID: %v", ErrInvalid, err)
		}
		cfg.Telegram.ThreadID = n
	}
	return nil
}

// Validate checks required fields and parseable values.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Notion.Token) == "" {
		missing = append(missing, "notion.token (NOTION_API_KEY)")
	}
	if strings.TrimSpace(c.Notion.DatabaseID) == "" {
		missing = append(missing, "notion.database_id (NOTION_DATABASE_ID)")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		missing = append(missing, "telegram.token (TELEGRAM_BOT_TOKEN)")
	}
	if strings.TrimSpace(c.Telegram.ChatID) == "" {
		missing = append(missing, "telegram.chat_id (TELEGRAM_CHAT_ID)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}

	if _, err := c.NotionTimeout(); err != nil {
		return err
	}
	if _, err := c.TelegramTimeout(); err != nil {
		return err
	}
	if _, err := c.LedgerBusyTimeout(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Ledger.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("%w: ledger.driver: unknown driver %q", ErrInvalid, c.Ledger.Driver)
	}
	if _, err := c.Notifier.Location(); err != nil {
		return err
	}
	if c.Notifier.RatePerSec < 0 {
		return fmt.Errorf("%w: notifier.rate_per_sec must be >= 0", ErrInvalid)
	}
	return nil
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

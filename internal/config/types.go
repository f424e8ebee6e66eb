package config

// Config is the whole runtime configuration. It is built once at startup
// (Load) and handed to each component's constructor; nothing reads ambient
// globals after that.
type Config struct {
	Notion   NotionConfig   `json:"notion"`
	Telegram TelegramConfig `json:"telegram"`
	Fields   FieldsConfig   `json:"fields"`
	Notifier NotifierConfig `json:"notifier"`
	Ledger   LedgerConfig   `json:"ledger"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`

	// Schedule enables daemon mode (e.g. "5m", "02:30", "*/5 * * * *").
	// Empty means one pass per invocation.
	Schedule string `json:"schedule,omitempty"`
}

// NotionConfig points the record source at one database.
type NotionConfig struct {
	Token      string `json:"token"` // never logged
	DatabaseID string `json:"database_id"`
	BaseURL    string `json:"base_url,omitempty"` // default: https://api.notion.com
	Version    string `json:"version,omitempty"`  // Notion-Version header
	// Timeout is a Go duration string (e.g. "20s").
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"` // never logged
	ChatID   string `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	BaseURL  string `json:"base_url,omitempty"` // default: https://api.telegram.org
	Timeout  string `json:"timeout,omitempty"`
}

// FieldsConfig names the database columns read by the extractor.
type FieldsConfig struct {
	Identity    string `json:"identity,omitempty"`
	Customer    string `json:"customer,omitempty"`
	Agent       string `json:"agent,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

type NotifierConfig struct {
	ParseMode      string `json:"parse_mode,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
	DisablePreview bool   `json:"disable_preview,omitempty"`
}

// LedgerConfig controls where delivered identities are persisted.
//
// Example:
//
//	"ledger": { "driver": "file", "path": "./sent_ids.json" }
type LedgerConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// MarkOnFailure keeps the historical behaviour of recording an identity
	// even when its notification failed. Pointer so "omitted" can default to true.
	MarkOnFailure *bool `json:"mark_on_failure,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// MetricsConfig controls the optional Prometheus outputs.
//
// Textfile is meant for one-shot runs (node_exporter textfile collector);
// Addr serves /metrics while running in daemon mode.
type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty"`
	Addr     string `json:"addr,omitempty"`
}

package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultNotionBaseURL   = "https://api.notion.com"
	DefaultNotionVersion   = "2022-06-28"
	DefaultTelegramBaseURL = "https://api.telegram.org"
	DefaultHTTPTimeout     = 20 * time.Second
	DefaultParseMode       = "Markdown"
	DefaultLedgerDriver    = "file"
	DefaultLedgerPath      = "./sent_ids.json"
	DefaultPlaceholder     = "no data available"

	DefaultIdentityField = "- Id Pesanan"
	DefaultCustomerField = "- Pelanggan"
	DefaultAgentField    = "- Admin Sales"
)

// Default returns a config with every optional knob filled in.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Notion.BaseURL) == "" {
		c.Notion.BaseURL = DefaultNotionBaseURL
	}
	if strings.TrimSpace(c.Notion.Version) == "" {
		c.Notion.Version = DefaultNotionVersion
	}
	if strings.TrimSpace(c.Telegram.BaseURL) == "" {
		c.Telegram.BaseURL = DefaultTelegramBaseURL
	}
	if strings.TrimSpace(c.Fields.Identity) == "" {
		c.Fields.Identity = DefaultIdentityField
	}
	if strings.TrimSpace(c.Fields.Customer) == "" {
		c.Fields.Customer = DefaultCustomerField
	}
	if strings.TrimSpace(c.Fields.Agent) == "" {
		c.Fields.Agent = DefaultAgentField
	}
	if c.Fields.Placeholder == "" {
		c.Fields.Placeholder = DefaultPlaceholder
	}
	if strings.TrimSpace(c.Notifier.ParseMode) == "" {
		c.Notifier.ParseMode = DefaultParseMode
	}
	if strings.TrimSpace(c.Ledger.Driver) == "" {
		c.Ledger.Driver = DefaultLedgerDriver
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = DefaultLedgerPath
	}
	if c.Ledger.MarkOnFailure == nil {
		v := true
		c.Ledger.MarkOnFailure = &v
	}
	if c.Logging.Console == nil {
		v := true
		c.Logging.Console = &v
	}
}

// MarkOnFailureEnabled reports the effective ledger mark policy.
func (c LedgerConfig) MarkOnFailureEnabled() bool {
	return c.MarkOnFailure == nil || *c.MarkOnFailure
}

// ConsoleEnabled reports whether console logging is on (default true).
func (c LoggingConfig) ConsoleEnabled() bool {
	return c.Console == nil || *c.Console
}

// NotionTimeout returns the source request timeout.
func (c Config) NotionTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("notion.timeout", c.Notion.Timeout, DefaultHTTPTimeout)
}

// TelegramTimeout returns the send request timeout.
func (c Config) TelegramTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.timeout", c.Telegram.Timeout, DefaultHTTPTimeout)
}

// LedgerBusyTimeout returns the sqlite busy timeout (0 keeps the driver default).
func (c Config) LedgerBusyTimeout() (time.Duration, error) {
	return ParseDurationField("ledger.busy_timeout", c.Ledger.BusyTimeout)
}

// Location resolves notifier.timezone. Empty or "Local" means the host zone.
func (c NotifierConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: notifier.timezone: %v", ErrInvalid, err)
	}
	return loc, nil
}

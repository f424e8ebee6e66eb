package config

import (
	"strings"

	logx "orderbot/pkg/logx"
)

// SummarizeConfigChange returns the names of changed sections and safe
// structured attrs describing their new values. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	// Notion (never log token)
	on, nn := oldCfg.Notion, newCfg.Notion
	if on.Token != nn.Token || on.DatabaseID != nn.DatabaseID || on.BaseURL != nn.BaseURL ||
		on.Version != nn.Version || strings.TrimSpace(on.Timeout) != strings.TrimSpace(nn.Timeout) {
		changed = append(changed, "notion")
		attrs = append(attrs,
			logx.String("notion.database_id", nn.DatabaseID),
			logx.Bool("notion.token_changed", on.Token != nn.Token),
		)
	}

	// Telegram (never log token)
	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.ChatID != nt.ChatID || ot.ThreadID != nt.ThreadID ||
		ot.BaseURL != nt.BaseURL || strings.TrimSpace(ot.Timeout) != strings.TrimSpace(nt.Timeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.chat_id", nt.ChatID),
			logx.Int("telegram.thread_id", nt.ThreadID),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if oldCfg.Fields != newCfg.Fields {
		changed = append(changed, "fields")
		attrs = append(attrs, logx.String("fields.identity", newCfg.Fields.Identity))
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.String("notifier.parse_mode", newCfg.Notifier.ParseMode),
			logx.String("notifier.timezone", newCfg.Notifier.Timezone),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
		)
	}

	ol, nl := oldCfg.Ledger, newCfg.Ledger
	if ol.Driver != nl.Driver || ol.Path != nl.Path || ol.BusyTimeout != nl.BusyTimeout ||
		ol.MarkOnFailureEnabled() != nl.MarkOnFailureEnabled() {
		changed = append(changed, "ledger")
		attrs = append(attrs,
			logx.String("ledger.driver", nl.Driver),
			logx.String("ledger.path", nl.Path),
			logx.Bool("ledger.mark_on_failure", nl.MarkOnFailureEnabled()),
		)
	}

	og, ng := oldCfg.Logging, newCfg.Logging
	if og.Level != ng.Level || og.ConsoleEnabled() != ng.ConsoleEnabled() || og.File != ng.File {
		changed = append(changed, "logging")
		attrs = append(attrs, logx.String("logging.level", ng.Level))
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
	}

	if strings.TrimSpace(oldCfg.Schedule) != strings.TrimSpace(newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.String("schedule", newCfg.Schedule))
	}

	return changed, attrs
}

package app

import (
	"fmt"
	"strings"

	"orderbot/internal/config"
	"orderbot/internal/extract"
	"orderbot/internal/ledger"
	"orderbot/internal/notifier"
	"orderbot/internal/pipeline"
	"orderbot/internal/source"
	"orderbot/internal/storage"
	kit "orderbot/internal/transport"
	"orderbot/internal/transport/telegram"
	logx "orderbot/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := cfg.LedgerBusyTimeout()
	if err != nil {
		return storage.Config{}, err
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Ledger.Driver))
	path := strings.TrimSpace(cfg.Ledger.Path)
	if path == "" {
		return storage.Config{}, fmt.Errorf("%w: ledger.path is required", config.ErrInvalid)
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// components is everything one pass needs. It is rebuilt as a whole when
// the config changes.
type components struct {
	pipe  *pipeline.Pipeline
	store storage.Store
}

func (c *components) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

func buildComponents(cfg *config.Config, log logx.Logger, rec pipeline.Recorder) (*components, error) {
	notionTimeout, err := cfg.NotionTimeout()
	if err != nil {
		return nil, err
	}
	tgTimeout, err := cfg.TelegramTimeout()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Notifier.Location()
	if err != nil {
		return nil, err
	}

	src, err := source.New(source.Config{
		BaseURL:    cfg.Notion.BaseURL,
		Token:      cfg.Notion.Token,
		DatabaseID: cfg.Notion.DatabaseID,
		Version:    cfg.Notion.Version,
		Timeout:    notionTimeout,
	})
	if err != nil {
		return nil, err
	}

	sender, err := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		BaseURL: cfg.Telegram.BaseURL,
		Timeout: tgTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	pipe, err := pipeline.New(pipeline.Deps{
		Source: src,
		Extractor: extract.New(extract.Columns{
			Identity: cfg.Fields.Identity,
			Customer: cfg.Fields.Customer,
			Agent:    cfg.Fields.Agent,
		}, cfg.Fields.Placeholder),
		Ledger: ledger.New(store, log.With(logx.String("comp", "ledger"))),
		Notifier: notifier.New(notifier.Config{
			ParseMode:      cfg.Notifier.ParseMode,
			DisablePreview: cfg.Notifier.DisablePreview,
			Location:       loc,
			RatePerSec:     cfg.Notifier.RatePerSec,
			Placeholder:    cfg.Fields.Placeholder,
		}, sender, log),
		Recorder: rec,
		Log:      log,
		Target:   kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID},
		Policy:   pipeline.PolicyFor(cfg.Ledger.MarkOnFailureEnabled()),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("components ready",
		logx.String("ledger_driver", sc.Driver),
		logx.String("ledger_path", sc.Path),
		logx.String("chat_id", cfg.Telegram.ChatID),
		logx.String("mark_policy", pipeline.PolicyFor(cfg.Ledger.MarkOnFailureEnabled()).String()),
	)
	return &components{pipe: pipe, store: store}, nil
}

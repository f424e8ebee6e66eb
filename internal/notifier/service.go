package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"orderbot/internal/extract"
	kit "orderbot/internal/transport"
	logx "orderbot/pkg/logx"

	"golang.org/x/time/rate"
)

// Service renders and sends one notification per call.
type Service struct {
	sender  kit.Sender
	log     logx.Logger
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time
}

type Option func(*Service)

// WithClock overrides the render-time clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(cfg Config, sender kit.Sender, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if strings.TrimSpace(cfg.Placeholder) == "" {
		cfg.Placeholder = "no data available"
	}
	s := &Service{
		sender: sender,
		log:    log.With(logx.String("comp", "notifier")),
		cfg:    cfg,
		now:    time.Now,
	}
	if cfg.RatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Render builds the message text for n.
func (s *Service) Render(n extract.Normalized) string {
	field := func(v string) string {
		if strings.TrimSpace(v) == "" {
			v = s.cfg.Placeholder
		}
		return s.escape(v)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📌 *Order ID:* %s\n", s.escape(n.Identity))
	fmt.Fprintf(&b, "👤 *Customer:* %s\n", field(n.Field(extract.FieldCustomer)))
	fmt.Fprintf(&b, "🧑‍💼 *Sales Admin:* %s\n\n", field(n.Field(extract.FieldAgent)))
	fmt.Fprintf(&b, "📅 *Time:* %s", s.now().In(s.cfg.Location).Format(TimeLayout))
	return b.String()
}

// Notify sends the rendered record to the destination. Any failure,
// including a cancelled rate-limit wait, is returned wrapped in ErrDelivery.
func (s *Service) Notify(ctx context.Context, to kit.ChatTarget, n extract.Normalized) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.sender == nil {
		return fmt.Errorf("%w: no sender configured", ErrDelivery)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrDelivery, err)
		}
	}

	text := s.Render(n)
	ref, err := s.sender.SendText(ctx, to, text, &kit.SendOptions{
		ParseMode:      s.cfg.ParseMode,
		DisablePreview: s.cfg.DisablePreview,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDelivery, n.Identity, err)
	}
	s.log.Info("notification sent",
		logx.String("identity", n.Identity),
		logx.String("chat_id", to.ChatID),
		logx.Int("message_id", ref.MessageID),
	)
	return nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

func (s *Service) escape(v string) string {
	if !strings.EqualFold(s.cfg.ParseMode, "Markdown") {
		return v
	}
	return markdownEscaper.Replace(v)
}

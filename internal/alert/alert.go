// Package alert forwards failed and cancelled firings to a Telegram chat.
package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"onfly/internal/eventbus"
	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

var ErrDisabled = errors.New("alerts disabled")

// Sender delivers one rendered alert.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type Config struct {
	Token      string
	ChatID     int64
	ThreadID   int
	RatePerSec float64
}

// telegramSender posts to one chat (and optional forum thread).
type telegramSender struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
}

// NewTelegram builds a Sender backed by the Bot API. The bot is send-only:
// no poller is started.
func NewTelegram(cfg Config) (Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, errors.Wrap(err, "telegram bot")
	}
	return &telegramSender{bot: b, chat: &tele.Chat{ID: cfg.ChatID}, threadID: cfg.ThreadID}, nil
}

func (t *telegramSender) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(t.chat, text, &tele.SendOptions{
		ThreadID:              t.threadID,
		DisableWebPagePreview: true,
	})
	return err
}

// Notifier renders job outcome events and hands them to a Sender, dropping
// alerts above the configured rate. Dropped alerts are counted and reported
// with the next one that gets through.
type Notifier struct {
	sender  Sender
	log     logx.Logger
	limiter *rate.Limiter

	mu         sync.Mutex
	suppressed int
}

func NewNotifier(sender Sender, ratePerSec float64, log logx.Logger) *Notifier {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	burst := max(int(ratePerSec), 1)
	return &Notifier{
		sender:  sender,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Run consumes bus events until ctx is done.
func (n *Notifier) Run(ctx context.Context, bus eventbus.Bus) error {
	if n == nil || n.sender == nil {
		return ErrDisabled
	}
	return eventbus.Consume(ctx, bus, 64, func(e eventbus.Event) {
		n.Handle(ctx, e)
	}, job.EventFailed, job.EventCancelled)
}

// Handle sends an alert for failed and cancelled firings.
func (n *Notifier) Handle(ctx context.Context, e eventbus.Event) {
	ev, ok := e.Data.(job.Event)
	if !ok {
		return
	}
	if ev.Kind != job.EventFailed && ev.Kind != job.EventCancelled {
		return
	}
	if !n.limiter.Allow() {
		n.mu.Lock()
		n.suppressed++
		n.mu.Unlock()
		return
	}
	n.mu.Lock()
	dropped := n.suppressed
	n.suppressed = 0
	n.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := n.sender.Send(sctx, Render(ev, dropped)); err != nil {
		n.log.Warn("alert send failed", logx.String("job", ev.Job), logx.Err(err))
	}
}

// Render formats one alert as plain text.
func Render(ev job.Event, dropped int) string {
	var b strings.Builder
	switch ev.Kind {
	case job.EventCancelled:
		fmt.Fprintf(&b, "⏱ %s cancelled", ev.Job)
	default:
		fmt.Fprintf(&b, "❌ %s failed", ev.Job)
	}
	if !ev.Started.IsZero() {
		fmt.Fprintf(&b, " at %s", ev.Started.Format("2006-01-02 15:04:05"))
	}
	if ev.Duration > 0 {
		fmt.Fprintf(&b, " after %s", ev.Duration.Round(time.Millisecond))
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, "\n%s", ev.Error)
	}
	if dropped > 0 {
		fmt.Fprintf(&b, "\n(%d earlier alerts suppressed)", dropped)
	}
	return b.String()
}

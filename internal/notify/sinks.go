package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/pcdogyu/trader-clock/internal/metrics"
)

// Log writes every event to the structured log.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

func (l *Log) Notify(_ context.Context, ev Event) error {
	l.log.Info("notification",
		zap.String("kind", string(ev.Kind)),
		zap.String("title", ev.Title),
		zap.String("body", ev.Body),
		zap.String("ref", ev.Ref),
		zap.Time("at", ev.At),
	)
	return nil
}

// Sender is the part of the bot API the Telegram sink needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot    Sender
	chatID int64
}

// NewTelegram logs in with token. It fails if the token is rejected.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return NewTelegramWithSender(bot, chatID), nil
}

func NewTelegramWithSender(bot Sender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID}
}

func (t *Telegram) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, ev.Title+"\n"+ev.Body)
	msg.DisableNotification = ev.Kind != KindCustomAlert
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Sink is a named notifier inside a Multi.
type Sink struct {
	Name string
	Notifier
}

// Multi delivers each event to every sink. A failing sink is logged and counted; the
// remaining sinks still receive the event.
type Multi struct {
	sinks []Sink
	log   *zap.Logger
	rec   metrics.Recorder
}

func NewMulti(log *zap.Logger, rec metrics.Recorder, sinks ...Sink) *Multi {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Multi{sinks: sinks, log: log, rec: rec}
}

func (m *Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := m.deliver(ctx, s, ev); err != nil {
			m.rec.RecordSinkFailure(s.Name)
			m.log.Warn("notify sink failed", zap.String("sink", s.Name), zap.String("kind", string(ev.Kind)), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) deliver(ctx context.Context, s Sink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Notify(ctx, ev)
}

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/germesbot/germes/internal/config"
	"github.com/germesbot/germes/internal/service"
)

// ImageStorage archives generated artifacts. Optional; failures are
// logged and never reach the user.
type ImageStorage interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// TextProvider is the slow external collaborator for the text path.
type TextProvider interface {
	Complete(ctx context.Context, userMessage string) (string, error)
}

type Bot struct {
	cfg        config.Config
	api        *tgbotapi.BotAPI
	log        *slog.Logger
	users      *service.UserService
	access     *service.AccessService
	credits    *service.CreditService
	generation *service.GenerationService
	completer  TextProvider
	modes      *ModeStore
	archive    ImageStorage
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, users *service.UserService, access *service.AccessService, credits *service.CreditService, generation *service.GenerationService, completer TextProvider, archive ImageStorage) *Bot {
	return &Bot{
		cfg:        cfg,
		api:        api,
		log:        log,
		users:      users,
		access:     access,
		credits:    credits,
		generation: generation,
		completer:  completer,
		modes:      NewModeStore(),
		archive:    archive,
	}
}

// Run long-polls for updates until the context is cancelled. Updates
// are dispatched concurrently; a chat may have several in flight at
// once, so all shared state lives behind the mode store and the ledger.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	log := b.log.With("request_id", uuid.NewString())
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic recovered in update handler",
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, log, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, log, update.CallbackQuery)
	default:
		log.Debug("ignoring update without message or callback")
	}
}

func (b *Bot) sendText(log *slog.Logger, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error("send text", "err", err)
	}
}

// sendChatAction emits a liveness signal. Failures are swallowed: a
// lost chat action must never abort the enclosing request.
func (b *Bot) sendChatAction(log *slog.Logger, chatID int64, action string) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		log.Warn("send chat action", "action", action, "err", err)
	}
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/germesbot/germes/internal/heartbeat"
	"github.com/germesbot/germes/internal/models"
	"github.com/germesbot/germes/internal/service"
)

const (
	callbackSwitchToImage = "switch_to_image"
	callbackSwitchToText  = "switch_to_text"

	msgNotAllowed = "Alas, you are not permitted to access image mode functions at this time."
	msgCapReached = "You have exceeded your credit limit. Please contact support for assistance."
	msgImageError = "Sorry, there was an error generating your image."
	msgTextError  = "My apologies, mortal. At this moment, I am unable to decipher your message. Could you provide more clarity in your inquiry?"

	msgImageMode = "The realm has shifted to Image mode. Show me your vision, and I shall conjure forth a response of visual delight, mortal."
	msgTextMode  = "The realm has shifted to Text mode. Speak your thoughts, and I shall weave a response for you, mortal."
)

func switchKeyboard(mode models.Mode) tgbotapi.InlineKeyboardMarkup {
	label, data := "Switch to Image Mode", callbackSwitchToImage
	if mode == models.ModeImage {
		label, data = "Switch to Text Mode", callbackSwitchToText
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data),
		),
	)
}

func (b *Bot) handleMessage(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	log = log.With("chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	if msg.IsCommand() {
		b.handleCommand(ctx, log, msg)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		log.Debug("ignoring non-text message")
		return
	}
	b.handleChat(ctx, log, msg)
}

func (b *Bot) handleCommand(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	log.Info("command received", "command", msg.Command())

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, log, msg)
	case "balance":
		b.handleBalance(ctx, log, msg)
	case "allow":
		b.handleAllow(ctx, log, msg)
	case "disable":
		b.handleDisable(ctx, log, msg)
	case "setbalance":
		b.handleSetBalance(ctx, log, msg)
	case "resetbalance":
		b.handleResetBalance(ctx, log, msg)
	default:
		b.sendText(log, msg.Chat.ID, "Unknown command. Speak plainly, mortal, or send /start to begin anew.")
	}
}

func (b *Bot) handleStart(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	if _, err := b.users.Ensure(ctx, userFromMessage(msg)); err != nil {
		log.Error("ensure user", "err", err)
	}
	b.modes.Set(msg.Chat.ID, models.ModeText)

	name := msg.From.FirstName
	if name == "" {
		name = msg.From.UserName
	}
	greeting := fmt.Sprintf("Ah, greetings, %s! You currently find yourself in the realm of text. If you seek visual splendor, simply press the button to transition into the enchanting world of images.", name)

	reply := tgbotapi.NewMessage(msg.Chat.ID, greeting)
	reply.ReplyMarkup = switchKeyboard(models.ModeText)
	sent, err := b.api.Send(reply)
	if err != nil {
		log.Error("send greeting", "err", err)
		return
	}

	// Pinning is cosmetic; the bot may lack the right in some chats.
	pin := tgbotapi.PinChatMessageConfig{
		ChatID:              msg.Chat.ID,
		MessageID:           sent.MessageID,
		DisableNotification: true,
	}
	if _, err := b.api.Request(pin); err != nil {
		log.Warn("pin greeting", "err", err)
	}
}

func (b *Bot) handleBalance(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	if b.access.IsAdmin(msg.From.ID) {
		b.sendText(log, msg.Chat.ID, "Behold, as the master of this bot, you wield an infinite credit limit, granting you boundless power within its realms.")
		return
	}

	credit, err := b.credits.Balance(ctx, msg.From.ID)
	if err != nil {
		log.Error("lookup balance", "err", err)
		b.sendText(log, msg.Chat.ID, msgTextError)
		return
	}
	if credit == nil {
		b.sendText(log, msg.Chat.ID, "Alas, no records of credit balance grace your account as of now. Craft your first masterpiece to activate your balance.")
		return
	}
	b.sendText(log, msg.Chat.ID, fmt.Sprintf(
		"Behold, mortal! Your credit balance stands at $%.2f/$%.2f, with %d images already conjured forth from the depths of imagination.",
		credit.Balance, b.credits.Cap(), credit.ImagesGenerated))
}

// requireAdmin replies and returns false when the sender is not the
// super-user. Admin commands are silent no-ops for everyone else
// beyond the refusal text.
func (b *Bot) requireAdmin(log *slog.Logger, msg *tgbotapi.Message) bool {
	if b.access.IsAdmin(msg.From.ID) {
		return true
	}
	log.Info("admin command refused")
	b.sendText(log, msg.Chat.ID, "Only the master of this bot may invoke that command.")
	return false
}

func (b *Bot) handleAllow(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	if !b.requireAdmin(log, msg) {
		return
	}
	userID, ok := parseUserID(msg.CommandArguments())
	if !ok {
		b.sendText(log, msg.Chat.ID, "Usage: /allow <user_id>")
		return
	}
	added, err := b.access.Allow(ctx, userID)
	if err != nil {
		log.Error("allow user", "target", userID, "err", err)
		b.sendText(log, msg.Chat.ID, "Failed to update the allow list.")
		return
	}
	if !added {
		b.sendText(log, msg.Chat.ID, fmt.Sprintf("User %d already has access to image mode.", userID))
		return
	}
	b.sendText(log, msg.Chat.ID, fmt.Sprintf("User %d has been granted access to image mode.", userID))
}

func (b *Bot) handleDisable(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	if !b.requireAdmin(log, msg) {
		return
	}
	userID, ok := parseUserID(msg.CommandArguments())
	if !ok {
		b.sendText(log, msg.Chat.ID, "Usage: /disable <user_id>")
		return
	}
	removed, err := b.access.Disable(ctx, userID)
	if err != nil {
		log.Error("disable user", "target", userID, "err", err)
		b.sendText(log, msg.Chat.ID, "Failed to update the allow list.")
		return
	}
	if !removed {
		b.sendText(log, msg.Chat.ID, fmt.Sprintf("User %d was not on the allow list.", userID))
		return
	}
	b.sendText(log, msg.Chat.ID, fmt.Sprintf("User %d no longer has access to image mode.", userID))
}

func (b *Bot) handleSetBalance(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	if !b.requireAdmin(log, msg) {
		return
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.sendText(log, msg.Chat.ID, "Usage: /setbalance <user_id> <amount>")
		return
	}
	userID, ok := parseUserID(args[0])
	if !ok {
		b.sendText(log, msg.Chat.ID, "Usage: /setbalance <user_id> <amount>")
		return
	}
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil || amount < 0 {
		b.sendText(log, msg.Chat.ID, "Usage: /setbalance <user_id> <amount>")
		return
	}
	if err := b.credits.SetBalance(ctx, userID, amount); err != nil {
		log.Error("set balance", "target", userID, "err", err)
		b.sendText(log, msg.Chat.ID, "Failed to set the balance.")
		return
	}
	b.sendText(log, msg.Chat.ID, fmt.Sprintf("Balance for user %d set to $%.2f.", userID, amount))
}

func (b *Bot) handleResetBalance(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	if !b.requireAdmin(log, msg) {
		return
	}
	userID, ok := parseUserID(msg.CommandArguments())
	if !ok {
		b.sendText(log, msg.Chat.ID, "Usage: /resetbalance <user_id>")
		return
	}
	if err := b.credits.ResetBalance(ctx, userID); err != nil {
		log.Error("reset balance", "target", userID, "err", err)
		b.sendText(log, msg.Chat.ID, "Failed to reset the balance.")
		return
	}
	b.sendText(log, msg.Chat.ID, fmt.Sprintf("Balance for user %d has been reset to $0.00.", userID))
}

func (b *Bot) handleChat(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	if _, err := b.users.Ensure(ctx, userFromMessage(msg)); err != nil {
		log.Error("ensure user", "err", err)
	}

	mode := b.modes.Get(msg.Chat.ID)
	log.Info("chat message", "mode", string(mode), "length", len(msg.Text))

	if mode == models.ModeImage {
		b.handleImagePrompt(ctx, log, msg)
		return
	}
	b.handleTextPrompt(ctx, log, msg)
}

func (b *Bot) handleTextPrompt(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	task := heartbeat.Start(func() {
		b.sendChatAction(log, msg.Chat.ID, tgbotapi.ChatTyping)
	}, b.cfg.TypingInterval)
	answer, err := b.completer.Complete(ctx, msg.Text)
	task.Stop()

	if err != nil {
		log.Error("chat completion", "err", err)
		b.sendText(log, msg.Chat.ID, msgTextError)
		return
	}
	b.sendText(log, msg.Chat.ID, answer)
}

func (b *Bot) handleImagePrompt(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	progress := func() {
		b.sendChatAction(log, msg.Chat.ID, tgbotapi.ChatUploadPhoto)
	}

	result, err := b.generation.Generate(ctx, msg.From.ID, msg.Text, progress)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAllowed):
			log.Info("image request denied")
			b.sendText(log, msg.Chat.ID, msgNotAllowed)
		case errors.Is(err, service.ErrCapExceeded):
			log.Info("image request over credit cap")
			b.sendText(log, msg.Chat.ID, msgCapReached)
		default:
			log.Error("image generation", "err", err)
			b.sendText(log, msg.Chat.ID, msgImageError)
		}
		return
	}

	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  "generation.png",
		Bytes: result.Image.Bytes,
	})
	if _, err := b.api.Send(photo); err != nil {
		log.Error("send photo", "err", err)
		return
	}
	log.Info("image delivered", "charged", result.Charged, "balance", result.Balance)

	if b.archive != nil {
		data, mime := result.Image.Bytes, result.Image.Mime
		go func() {
			url, err := b.archive.Upload(context.Background(), data, mime)
			if err != nil {
				log.Warn("archive image", "err", err)
				return
			}
			log.Info("image archived", "url", url)
		}()
	}
}

func (b *Bot) handleCallback(ctx context.Context, log *slog.Logger, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		log.Debug("ignoring callback without message")
		return
	}
	log = log.With("chat_id", cb.Message.Chat.ID, "user_id", cb.From.ID)

	switch cb.Data {
	case callbackSwitchToImage, callbackSwitchToText:
	default:
		log.Debug("ignoring unknown callback", "data", cb.Data)
		return
	}

	mode := b.modes.Toggle(cb.Message.Chat.ID)
	log.Info("mode toggled", "mode", string(mode))

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Warn("answer callback", "err", err)
	}

	text := msgTextMode
	if mode == models.ModeImage {
		text = msgImageMode
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, text, switchKeyboard(mode))
	if _, err := b.api.Send(edit); err != nil {
		log.Error("edit mode message", "err", err)
	}
}

func userFromMessage(msg *tgbotapi.Message) *models.User {
	return &models.User{
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
}

func parseUserID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

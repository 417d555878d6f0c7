package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/config"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/logger"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/store"
)

// Pending state keys used in conversational flows.
const (
	pendingPincode = "await_pincode_text"
)

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot      *tgbotapi.BotAPI
	log      *zap.Logger
	activity *zap.Logger
	repo     store.Repo
	cfg      config.Config
	loc      *time.Location
	state    map[int64]string // chatID -> pending state
	mu       sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, cfg config.Config) *Router {
	return &Router{
		bot:      bot,
		log:      log,
		activity: logger.Activity(log),
		repo:     repo,
		cfg:      cfg,
		loc:      cfg.Location(),
		state:    make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to the appropriate handler. Commands
// arriving in the admin group get the admin command set; everything else is
// treated as a private user chat.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		if chatID == r.cfg.AdminGroupID {
			r.handleAdminCommand(ctx, msg, text)
			return
		}

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, msg)
		case strings.HasPrefix(text, "/add"):
			r.handleAdd(ctx, msg, text)
		case strings.HasPrefix(text, "/subscription"):
			r.handleSubscription(ctx, chatID)
		case strings.HasPrefix(text, "/products"):
			r.handleProducts(ctx, chatID)
		case strings.HasPrefix(text, "/cadence"):
			r.handleCadence(ctx, chatID, text)
		case strings.HasPrefix(text, "/quiet"):
			r.handleQuiet(ctx, chatID, text)
		case strings.HasPrefix(text, "/pause"):
			r.handlePause(ctx, chatID, text)
		case strings.HasPrefix(text, "/resume"):
			r.handleResume(ctx, chatID)
		case strings.HasPrefix(text, "/rules"):
			r.sendText(chatID, rulesText)
		case strings.HasPrefix(text, "/dm"):
			r.handleDM(ctx, msg, text)
		case strings.HasPrefix(text, "/help"):
			r.sendText(chatID, helpText)
		default:
			r.handleFreeForm(ctx, msg, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case data == "menu_pincode":
			_ = r.answerCallback(cb.ID, "")
			r.sendText(chatID, "Send your 6-digit pincode:")
			r.setPending(chatID, pendingPincode)
		case data == "menu_subscription":
			_ = r.answerCallback(cb.ID, "")
			r.handleSubscription(ctx, chatID)
		case data == "menu_products":
			_ = r.answerCallback(cb.ID, "")
			r.handleProducts(ctx, chatID)
		case data == "menu_rules":
			_ = r.answerCallback(cb.ID, "")
			r.sendText(chatID, rulesText)
		case data == "pref_clear":
			r.handleClearPreferences(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "pref:"):
			r.handleProductToggle(ctx, chatID, data, cb.ID)
		default:
			// Unknown callback — ignore silently
		}
	}
}

// SendMessage sends a Markdown message to the given chat. This makes Router
// satisfy alert.Sender, so the matcher and digest deliver through the same
// path as command replies.
func (r *Router) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	_, err := r.bot.Send(msg)
	return err
}

// sendText sends a plain reply, ignoring delivery errors (command replies are
// best-effort; alert delivery goes through SendMessage, which reports them).
func (r *Router) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, _ = r.bot.Send(msg)
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

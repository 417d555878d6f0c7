package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/store"
)

// handleAdminCommand dispatches commands arriving in the admin group. Anything
// that is not a known command is ignored so normal group chatter passes through.
func (r *Router) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	switch {
	case strings.HasPrefix(text, "/approve"):
		r.handleApprove(ctx, msg, text)
	case strings.HasPrefix(text, "/extend"):
		r.handleExtend(ctx, msg, text)
	case strings.HasPrefix(text, "/block"):
		r.handleSetBlocked(ctx, msg, text, true)
	case strings.HasPrefix(text, "/unblock"):
		r.handleSetBlocked(ctx, msg, text, false)
	case strings.HasPrefix(text, "/autoapprove"):
		r.handleAutoApprove(ctx, msg, text)
	case strings.HasPrefix(text, "/stats"):
		r.handleStats(ctx, msg)
	case strings.HasPrefix(text, "/broadcast"):
		r.handleBroadcast(ctx, msg, text)
	case strings.HasPrefix(text, "/reply"):
		r.handleReply(ctx, msg, text)
	case strings.HasPrefix(text, "/adminhelp"), strings.HasPrefix(text, "/help"):
		r.sendText(msg.Chat.ID, adminHelpText)
	}
}

// parseChatArg parses the first argument as a target chat ID.
func parseChatArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("missing chat ID")
	}
	return strconv.ParseInt(args[0], 10, 64)
}

func (r *Router) handleApprove(ctx context.Context, msg *tgbotapi.Message, text string) {
	args := commandArgs(text)
	chatID, err := parseChatArg(args)
	if err != nil {
		r.sendText(msg.Chat.ID, "Usage: `/approve <chat_id> [days]`")
		return
	}
	days := r.cfg.TrialDays
	if len(args) >= 2 {
		days, err = domain.ParseDays(args[1], 3650)
		if err != nil {
			r.sendText(msg.Chat.ID, "Days must be a positive number.")
			return
		}
	}

	end, err := r.repo.Approve(ctx, chatID, time.Now().UTC(), days)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(msg.Chat.ID, fmt.Sprintf("User `%d` not found.", chatID))
		return
	}
	if err != nil {
		r.log.Error("approve failed", zap.Error(err), zap.Int64("target", chatID))
		r.sendText(msg.Chat.ID, "Approve failed: "+err.Error())
		return
	}
	r.activity.Info("subscription approved",
		zap.Int64("target", chatID), zap.Int("days", days), zap.String("by", msg.From.UserName))

	r.sendText(msg.Chat.ID, fmt.Sprintf("✅ Approved `%d` for %d days (until %s).", chatID, days, end.Format(dateFormat)))
	_ = r.SendMessage(chatID, fmt.Sprintf(
		"🎉 Your subscription is active until %s!\nPick products with /products.", end.Format(dateFormat)))
}

func (r *Router) handleExtend(ctx context.Context, msg *tgbotapi.Message, text string) {
	args := commandArgs(text)
	chatID, err := parseChatArg(args)
	if err != nil || len(args) != 2 {
		r.sendText(msg.Chat.ID, "Usage: `/extend <chat_id> <days>`")
		return
	}
	days, err := domain.ParseDays(args[1], 3650)
	if err != nil {
		r.sendText(msg.Chat.ID, "Days must be a positive number.")
		return
	}

	end, err := r.repo.Extend(ctx, chatID, time.Now().UTC(), days)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.sendText(msg.Chat.ID, fmt.Sprintf("User `%d` not found.", chatID))
		return
	case errors.Is(err, domain.ErrNotActive):
		r.sendText(msg.Chat.ID, fmt.Sprintf("User `%d` has no active subscription; use /approve instead.", chatID))
		return
	case err != nil:
		r.log.Error("extend failed", zap.Error(err), zap.Int64("target", chatID))
		r.sendText(msg.Chat.ID, "Extend failed: "+err.Error())
		return
	}
	r.activity.Info("subscription extended",
		zap.Int64("target", chatID), zap.Int("days", days), zap.String("by", msg.From.UserName))

	r.sendText(msg.Chat.ID, fmt.Sprintf("✅ Extended `%d` by %d days (until %s).", chatID, days, end.Format(dateFormat)))
	_ = r.SendMessage(chatID, fmt.Sprintf("🎉 Your subscription was extended until %s.", end.Format(dateFormat)))
}

func (r *Router) handleSetBlocked(ctx context.Context, msg *tgbotapi.Message, text string, blocked bool) {
	args := commandArgs(text)
	chatID, err := parseChatArg(args)
	if err != nil {
		verb := "/block"
		if !blocked {
			verb = "/unblock"
		}
		r.sendText(msg.Chat.ID, fmt.Sprintf("Usage: `%s <chat_id>`", verb))
		return
	}

	found, err := r.repo.SetBlocked(ctx, chatID, blocked)
	if err != nil {
		r.log.Error("set blocked failed", zap.Error(err), zap.Int64("target", chatID))
		r.sendText(msg.Chat.ID, "Operation failed: "+err.Error())
		return
	}
	if !found {
		r.sendText(msg.Chat.ID, fmt.Sprintf("User `%d` not found.", chatID))
		return
	}
	r.activity.Info("block flag changed",
		zap.Int64("target", chatID), zap.Bool("blocked", blocked), zap.String("by", msg.From.UserName))

	if blocked {
		r.sendText(msg.Chat.ID, fmt.Sprintf("🚫 User `%d` blocked.", chatID))
	} else {
		r.sendText(msg.Chat.ID, fmt.Sprintf("✅ User `%d` unblocked.", chatID))
	}
}

func (r *Router) handleAutoApprove(ctx context.Context, msg *tgbotapi.Message, text string) {
	args := commandArgs(text)
	if len(args) != 1 {
		r.sendText(msg.Chat.ID, "Usage: `/autoapprove <on|off>`")
		return
	}
	var value string
	switch strings.ToLower(args[0]) {
	case "on":
		value = "1"
	case "off":
		value = "0"
	default:
		r.sendText(msg.Chat.ID, "Usage: `/autoapprove <on|off>`")
		return
	}

	if err := r.repo.SetSetting(ctx, "auto_approve", value); err != nil {
		r.log.Error("set auto_approve failed", zap.Error(err))
		r.sendText(msg.Chat.ID, "Failed to update the setting.")
		return
	}
	r.activity.Info("auto_approve changed",
		zap.String("value", value), zap.String("by", msg.From.UserName))

	if value == "1" {
		r.sendText(msg.Chat.ID, "✅ Auto-approve is ON: new users get a trial as soon as they set a pincode.")
	} else {
		r.sendText(msg.Chat.ID, "Auto-approve is OFF: new users wait for /approve.")
	}
}

func (r *Router) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	counts, err := r.repo.CountByStatus(ctx)
	if err != nil {
		r.log.Error("stats failed", zap.Error(err))
		r.sendText(msg.Chat.ID, "Failed to collect stats.")
		return
	}

	r.sendText(msg.Chat.ID, fmt.Sprintf(
		"*Subscribers*\n\nTotal: %d\nActive: %d\nPending: %d\nExpired: %d\nBlocked: %d",
		counts["total"],
		counts[string(domain.StatusActive)],
		counts[string(domain.StatusPending)],
		counts[string(domain.StatusExpired)],
		counts["blocked"]))
}

func (r *Router) handleBroadcast(ctx context.Context, msg *tgbotapi.Message, text string) {
	args := commandArgs(text)
	if len(args) == 0 {
		r.sendText(msg.Chat.ID, "Usage: `/broadcast <message>`")
		return
	}
	body := strings.Join(args, " ")

	chatIDs, err := r.repo.ActiveChatIDs(ctx)
	if err != nil {
		r.log.Error("broadcast recipient lookup failed", zap.Error(err))
		r.sendText(msg.Chat.ID, "Failed to list recipients.")
		return
	}
	if len(chatIDs) == 0 {
		r.sendText(msg.Chat.ID, "No active subscribers to broadcast to.")
		return
	}

	sent, failed := 0, 0
	for _, chatID := range chatIDs {
		if err := r.SendMessage(chatID, "📢 "+body); err != nil {
			failed++
			r.log.Warn("broadcast delivery failed", zap.Error(err), zap.Int64("chatID", chatID))
			continue
		}
		sent++
		// Stay under the Telegram per-second send limit.
		time.Sleep(50 * time.Millisecond)
	}
	r.activity.Info("broadcast sent",
		zap.Int("delivered", sent), zap.Int("failed", failed), zap.String("by", msg.From.UserName))

	r.sendText(msg.Chat.ID, fmt.Sprintf("📢 Broadcast done: %d delivered, %d failed.", sent, failed))
}

func (r *Router) handleReply(ctx context.Context, msg *tgbotapi.Message, text string) {
	args := commandArgs(text)
	if len(args) < 2 {
		r.sendText(msg.Chat.ID, "Usage: `/reply <chat_id> <message>`")
		return
	}
	chatID, err := parseChatArg(args)
	if err != nil {
		r.sendText(msg.Chat.ID, "Usage: `/reply <chat_id> <message>`")
		return
	}
	body := strings.Join(args[1:], " ")

	if err := r.SendMessage(chatID, "💬 *Admin:* "+body); err != nil {
		r.log.Error("reply delivery failed", zap.Error(err), zap.Int64("target", chatID))
		r.sendText(msg.Chat.ID, fmt.Sprintf("Could not deliver to `%d`: %s", chatID, err.Error()))
		return
	}
	r.activity.Info("admin reply sent",
		zap.Int64("target", chatID), zap.String("by", msg.From.UserName))
	r.sendText(msg.Chat.ID, fmt.Sprintf("✅ Delivered to `%d`.", chatID))
}

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

const dateFormat = "02 Jan 2006"

// commandArgs returns the whitespace-separated arguments after the command.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	username := msg.From.UserName

	if err := r.repo.UpsertUser(ctx, chatID, username); err != nil {
		r.log.Error("register user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	r.activity.Info("user started the bot",
		zap.Int64("chatID", chatID), zap.String("username", username))

	reply := tgbotapi.NewMessage(chatID, fmt.Sprintf(welcomeFmt, msg.From.FirstName))
	reply.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(reply)
}

func (r *Router) handleAdd(ctx context.Context, msg *tgbotapi.Message, text string) {
	args := commandArgs(text)
	if len(args) != 1 {
		r.sendText(msg.Chat.ID, "Usage: `/add <pincode>`")
		return
	}
	r.applyPincode(ctx, msg.Chat.ID, msg.From.UserName, args[0])
}

// applyPincode validates and stores a pincode, activating a trial when
// auto-approve is on. Shared by /add and the menu-driven pincode flow.
func (r *Router) applyPincode(ctx context.Context, chatID int64, username, raw string) {
	pincode, err := domain.ParsePincode(raw)
	if err != nil {
		r.sendText(chatID, "Invalid pincode. Please provide a 6-digit number.")
		return
	}

	// First contact through /add without /start still registers the user.
	if err := r.repo.UpsertUser(ctx, chatID, username); err != nil {
		r.log.Error("register user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "An unexpected error occurred. Please try again.")
		return
	}
	if err := r.repo.SetPincode(ctx, chatID, pincode); err != nil {
		r.log.Error("set pincode failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save your pincode. Please try again.")
		return
	}

	u, err := r.repo.GetUser(ctx, chatID)
	if err != nil {
		r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "An unexpected error occurred. Please try again.")
		return
	}
	r.activity.Info("pincode set",
		zap.Int64("chatID", chatID), zap.String("pincode", pincode), zap.String("status", string(u.Status)))

	if u.Status == domain.StatusActive {
		r.sendText(chatID, fmt.Sprintf("✅ Your pincode has been updated to %s.", pincode))
		return
	}

	autoApprove, err := r.repo.GetSetting(ctx, "auto_approve")
	if err != nil {
		r.log.Error("read auto_approve failed", zap.Error(err))
	}
	if autoApprove == "1" {
		end, err := r.repo.Approve(ctx, chatID, time.Now().UTC(), r.cfg.TrialDays)
		if err != nil {
			r.log.Error("trial activation failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, "Could not activate your trial. Please contact the admin.")
			return
		}
		r.activity.Info("trial auto-approved", zap.Int64("chatID", chatID))
		r.sendText(chatID, fmt.Sprintf(
			"✅ Welcome! Your free %d-day trial for pincode %s is active until %s.\nPick products with /products.",
			r.cfg.TrialDays, pincode, end.Format(dateFormat)))
		return
	}

	r.sendText(chatID, fmt.Sprintf(
		"✅ Your pincode has been set to %s.\nYour subscription is awaiting approval; an admin will activate it shortly.",
		pincode))
}

func (r *Router) handleSubscription(ctx context.Context, chatID int64) {
	u, err := r.repo.GetUser(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, "No data found. Use /start to begin.")
		return
	}
	if err != nil {
		r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Error reading your subscription.")
		return
	}

	emoji := map[domain.Status]string{
		domain.StatusActive:  "✅",
		domain.StatusPending: "⏳",
		domain.StatusExpired: "❌",
	}
	status := displayStatus(u, time.Now().UTC())
	expires := "N/A"
	if u.EndDate != nil {
		expires = u.EndDate.Format(dateFormat)
	}
	paused := "no"
	if u.Paused {
		paused = "yes"
		if u.PauseUntil != nil {
			paused = "until " + u.PauseUntil.Format(dateFormat)
		}
	}
	quiet := "off"
	if u.QuietEnabled() {
		quiet = fmt.Sprintf("%02d:00–%02d:00", u.QuietStart, u.QuietEnd)
	}
	pincode := u.Pincode
	if pincode == "" {
		pincode = "not set"
	}

	r.sendText(chatID, fmt.Sprintf(subscriptionFmt,
		string(status), emoji[status],
		pincode, expires, paused, string(u.Cadence), quiet))
}

// displayStatus folds an overdue end date into the shown status, since the
// nightly sweep may not have flipped the row yet.
func displayStatus(u *domain.User, now time.Time) domain.Status {
	if u.Expired(now) {
		return domain.StatusExpired
	}
	return u.Status
}

// --- Product preferences ---

func (r *Router) handleProducts(ctx context.Context, chatID int64) {
	products, err := r.repo.KnownProducts(ctx)
	if err != nil {
		r.log.Error("known products failed", zap.Error(err))
		r.sendText(chatID, "Error loading the product list.")
		return
	}
	if len(products) == 0 {
		r.sendText(chatID, "No products discovered yet. Please check back after the next stock check.")
		return
	}

	tracked, err := r.repo.ListPreferences(ctx, chatID)
	if err != nil {
		r.log.Error("list preferences failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Error loading your selection.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Tap a product to start or stop tracking it:")
	msg.ReplyMarkup = productKeyboard(products, tracked)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleProductToggle(ctx context.Context, chatID int64, data, cbID string) {
	idx, err := strconv.Atoi(strings.TrimPrefix(data, "pref:"))
	if err != nil {
		_ = r.answerCallback(cbID, "")
		return
	}
	// The keyboard indexes into the sorted product list, which is stable
	// between the render and the tap unless a brand-new product appeared.
	products, err := r.repo.KnownProducts(ctx)
	if err != nil || idx < 0 || idx >= len(products) {
		_ = r.answerCallback(cbID, "Product list changed, reopen /products")
		return
	}
	name := products[idx]

	on, err := r.repo.TogglePreference(ctx, chatID, name)
	if err != nil {
		r.log.Error("toggle preference failed", zap.Error(err), zap.Int64("chatID", chatID))
		_ = r.answerCallback(cbID, "Could not update your selection")
		return
	}
	if on {
		_ = r.answerCallback(cbID, "Tracking "+name)
	} else {
		_ = r.answerCallback(cbID, "Stopped tracking "+name)
	}
}

func (r *Router) handleClearPreferences(ctx context.Context, chatID int64, cbID string) {
	if err := r.repo.ClearPreferences(ctx, chatID); err != nil {
		r.log.Error("clear preferences failed", zap.Error(err), zap.Int64("chatID", chatID))
		_ = r.answerCallback(cbID, "Could not clear your selection")
		return
	}
	_ = r.answerCallback(cbID, "Selection cleared, nothing is tracked now")
}

// --- Alert settings ---

func (r *Router) handleCadence(ctx context.Context, chatID int64, text string) {
	args := commandArgs(text)
	if len(args) != 1 {
		r.sendText(chatID, "Usage: `/cadence <instant|hourly|daily>`")
		return
	}
	c, err := domain.ParseCadence(args[0])
	if err != nil {
		r.sendText(chatID, "Unknown cadence. Choose instant, hourly or daily.")
		return
	}
	if err := r.repo.SetCadence(ctx, chatID, c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.sendText(chatID, "No data found. Use /start to begin.")
			return
		}
		r.log.Error("set cadence failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save the cadence.")
		return
	}
	r.sendText(chatID, "Alert cadence updated: "+string(c))
}

func (r *Router) handleQuiet(ctx context.Context, chatID int64, text string) {
	args := commandArgs(text)
	switch {
	case len(args) == 1 && strings.EqualFold(args[0], "off"):
		if err := r.repo.SetQuietHours(ctx, chatID, 0, 0); err != nil {
			r.sendText(chatID, "Could not clear quiet hours.")
			return
		}
		r.sendText(chatID, "Quiet hours disabled.")
	case len(args) == 2:
		start, end, err := domain.ParseQuietHours(args[0], args[1])
		if err != nil {
			r.sendText(chatID, "Invalid hours. Example: `/quiet 22 7` (quiet from 22:00 to 07:00).")
			return
		}
		if err := r.repo.SetQuietHours(ctx, chatID, start, end); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				r.sendText(chatID, "No data found. Use /start to begin.")
				return
			}
			r.sendText(chatID, "Could not save quiet hours.")
			return
		}
		r.sendText(chatID, fmt.Sprintf("Quiet hours set: %02d:00–%02d:00. Alerts raised inside the window are held for the next digest.", start, end))
	default:
		r.sendText(chatID, "Usage: `/quiet <start> <end>` or `/quiet off`")
	}
}

// --- Pause / Resume ---

func (r *Router) handlePause(ctx context.Context, chatID int64, text string) {
	args := commandArgs(text)
	if len(args) != 1 {
		r.sendText(chatID, "Usage: `/pause <days>` (1–30)")
		return
	}
	days, err := strconv.Atoi(args[0])
	if err != nil {
		r.sendText(chatID, "Usage: `/pause <days>` (1–30)")
		return
	}

	u, err := r.repo.GetUser(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(chatID, "No data found. Use /start to begin.")
		return
	}
	if err != nil {
		r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Failed to pause.")
		return
	}

	until, err := u.Pause(time.Now().UTC(), days)
	if err != nil {
		r.sendText(chatID, "Pause length must be between 1 and 30 days.")
		return
	}
	if err := r.repo.Pause(ctx, chatID, until); err != nil {
		r.log.Error("pause failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Failed to pause.")
		return
	}
	r.activity.Info("user paused", zap.Int64("chatID", chatID), zap.Int("days", days))
	r.sendText(chatID, fmt.Sprintf("⏸ Alerts paused until %s. Use /resume to come back earlier.", until.Format(dateFormat)))
}

func (r *Router) handleResume(ctx context.Context, chatID int64) {
	ok, err := r.repo.Resume(ctx, chatID)
	if err != nil {
		r.log.Error("resume failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Failed to resume.")
		return
	}
	if !ok {
		r.sendText(chatID, "No data found. Use /start to begin.")
		return
	}
	r.activity.Info("user resumed", zap.Int64("chatID", chatID))
	r.sendText(chatID, "▶️ Alerts resumed.")
}

// --- Contact admin ---

func (r *Router) handleDM(ctx context.Context, msg *tgbotapi.Message, text string) {
	args := commandArgs(text)
	if len(args) == 0 {
		r.sendText(msg.Chat.ID, "Usage: `/dm <your message to the admin>`")
		return
	}
	body := strings.Join(args, " ")

	forward := fmt.Sprintf(
		"New message from @%s (ID: `%d`):\n\n_%s_\n\nTo reply, send:\n`/reply %d <your message>`",
		msg.From.UserName, msg.Chat.ID, body, msg.Chat.ID)
	if err := r.SendMessage(r.cfg.AdminGroupID, forward); err != nil {
		r.log.Error("dm forward failed", zap.Error(err), zap.Int64("chatID", msg.Chat.ID))
		r.sendText(msg.Chat.ID, "Sorry, your message could not be delivered. Please try again later.")
		return
	}
	r.activity.Info("dm forwarded", zap.Int64("chatID", msg.Chat.ID))
	r.sendText(msg.Chat.ID, "✅ Your message has been sent to the admin.")
}

// --- Free-form dispatcher ---

func (r *Router) handleFreeForm(ctx context.Context, msg *tgbotapi.Message, text string) {
	switch r.getPending(msg.Chat.ID) {
	case pendingPincode:
		r.clearPending(msg.Chat.ID)
		r.applyPincode(ctx, msg.Chat.ID, msg.From.UserName, text)
	default:
		// No pending flow: ignore free-form message
	}
}

package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const welcomeFmt = `👋 Hi %s!

I watch the protein range of the Amul shop and ping you the moment a product you track comes back in stock for your pincode.

Getting started:
1. Set your pincode with /add or the button below
2. Pick products with /products
3. Wait for the restock alert 🛎

Use the menu below or /help for the full command list.`

const helpText = `*Commands*

/add \<pincode\> — set or change your delivery pincode
/subscription — show your subscription status
/products — choose which products to track
/cadence \<instant|hourly|daily\> — how alerts are delivered
/quiet \<start\> \<end\> — no alerts in this window (e.g. ` + "`/quiet 22 7`" + `); ` + "`/quiet off`" + ` to disable
/pause \<days\> — pause alerts for up to 30 days
/resume — resume alerts
/rules — how alerting works
/dm \<message\> — message the admin
/help — this text`

const rulesText = `*How alerting works*

• I check stock every few minutes for every subscriber pincode.
• You get an alert when a tracked product goes from out of stock to *in stock*. Products that simply stay in stock do not re-trigger.
• With *hourly* or *daily* cadence, alerts are batched into a digest instead of sent immediately.
• During your quiet hours nothing is sent; held alerts arrive with the next digest after the window ends.
• Pausing holds nothing back — alerts raised while paused are skipped, not queued.`

const subscriptionFmt = `*Your subscription*

Status: %s %s
Pincode: %s
Expires: %s
Paused: %s
Cadence: %s
Quiet hours: %s`

const adminHelpText = `*Admin commands*

/approve \<chat\_id\> \[days\] — activate a subscription (default trial length)
/extend \<chat\_id\> \<days\> — extend an active subscription
/block \<chat\_id\> — block a user
/unblock \<chat\_id\> — unblock a user
/autoapprove \<on|off\> — toggle trial auto-approval
/stats — subscriber counts by status
/broadcast \<message\> — message every active subscriber
/reply \<chat\_id\> \<message\> — answer a /dm
/adminhelp — this text`

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📍 Set pincode", "menu_pincode"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Subscription", "menu_subscription"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛒 Products", "menu_products"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Rules", "menu_rules"),
		),
	)
}

// productKeyboard renders one button per known product, check-marked when
// tracked. Callback data carries the index into the sorted product list to
// stay inside Telegram's 64-byte callback-data limit.
func productKeyboard(products, tracked []string) tgbotapi.InlineKeyboardMarkup {
	on := make(map[string]bool, len(tracked))
	for _, p := range tracked {
		on[p] = true
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(products)+1)
	for i, p := range products {
		label := p
		if on[p] {
			label = "✅ " + p
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("pref:%d", i)),
		))
	}
	if len(tracked) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Clear selection", "pref_clear"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

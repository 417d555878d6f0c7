package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/vaibhav7k/Amul-Protein-Products-Alert-Bot/internal/domain"
)

// Sender is the minimal interface needed to deliver a rendered message.
// telegram.Router implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

const deliveryAttempts = 3

// deliver sends with a small bounded retry. The last error is returned so the
// caller can log the drop; a dropped message is never silent.
func deliver(s Sender, chatID int64, text string, retryDelay time.Duration) error {
	var err error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		if err = s.SendMessage(chatID, text); err == nil {
			return nil
		}
		if attempt < deliveryAttempts {
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("after %d attempts: %w", deliveryAttempts, err)
}

// instantText renders a single back-in-stock notification.
func instantText(rd domain.StockReading) string {
	return fmt.Sprintf("✅ *Back in stock at %s*\n• [%s](%s)", rd.Pincode, rd.Product, rd.URL)
}

// digestText renders one consolidated message for a user's queued alerts.
// The slice is expected in digest order (product name, then detection time).
func digestText(pending []domain.PendingAlert) string {
	var b strings.Builder
	b.WriteString("🛎 *Stock digest*\n\n✅ Back in stock:\n")
	for _, a := range pending {
		if a.URL != "" {
			fmt.Fprintf(&b, "• [%s](%s) — %s\n", a.Product, a.URL, a.Pincode)
		} else {
			fmt.Fprintf(&b, "• %s — %s\n", a.Product, a.Pincode)
		}
	}
	return b.String()
}

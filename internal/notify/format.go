package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/hirelink/booking-core/internal/events"
	"github.com/hirelink/booking-core/internal/model"
)

type statusDisplay struct {
	Emoji string
	Text  string
}

func bookingStatusDisplay(status string) statusDisplay {
	displays := map[model.BookingStatus]statusDisplay{
		model.BookingStatusPending:    {"⏳", "Pending"},
		model.BookingStatusAccepted:   {"👍", "Accepted"},
		model.BookingStatusRejected:   {"🚫", "Rejected"},
		model.BookingStatusConfirmed:  {"✅", "Confirmed"},
		model.BookingStatusInProgress: {"🔧", "In progress"},
		model.BookingStatusPaused:     {"⏸", "Paused"},
		model.BookingStatusCompleted:  {"✔️", "Completed"},
		model.BookingStatusCancelled:  {"❌", "Cancelled"},
		model.BookingStatusDisputed:   {"⚠️", "Disputed"},
		model.BookingStatusRefunded:   {"↩️", "Refunded"},
	}

	if d, ok := displays[model.BookingStatus(status)]; ok {
		return d
	}
	return statusDisplay{"❓", "Unknown"}
}

// alertStatuses are the booking states worth interrupting ops for.
var alertStatuses = map[string]bool{
	string(model.BookingStatusCancelled): true,
	string(model.BookingStatusDisputed):  true,
	string(model.BookingStatusRefunded):  true,
}

func formatPrice(amount, currency string) string {
	if currency == "" || currency == model.DefaultCurrency {
		return "₹" + amount
	}
	return amount + " " + currency
}

// formatEvent renders ev as Telegram HTML. The bool is false for events that
// should not produce an alert.
func formatEvent(ev events.Event) (string, bool) {
	var sb strings.Builder

	switch data := ev.Data.(type) {
	case events.BookingPayload:
		switch {
		case ev.Type == events.BookingCreated:
			fmt.Fprintf(&sb, "🆕 <b>New booking</b> %s\n", html.EscapeString(data.BookingNumber))
			fmt.Fprintf(&sb, "Customer #%d → provider #%d", data.CustomerID, data.ProviderID)
		case ev.Type == events.BookingStatusChanged && alertStatuses[data.Status]:
			d := bookingStatusDisplay(data.Status)
			fmt.Fprintf(&sb, "%s <b>Booking %s</b> %s\n", d.Emoji, strings.ToLower(d.Text), html.EscapeString(data.BookingNumber))
			fmt.Fprintf(&sb, "%s → %s", bookingStatusDisplay(data.PreviousState).Text, d.Text)
		default:
			return "", false
		}

	case events.PaymentPayload:
		switch ev.Type {
		case events.PaymentCompleted:
			fmt.Fprintf(&sb, "💰 <b>Payment received</b> %s\n", html.EscapeString(data.BookingNumber))
		case events.PaymentFailed:
			fmt.Fprintf(&sb, "⛔ <b>Payment verification failed</b> %s\n", html.EscapeString(data.BookingNumber))
		default:
			return "", false
		}
		fmt.Fprintf(&sb, "%s, order <code>%s</code>", formatPrice(data.Amount, data.Currency), html.EscapeString(data.OrderID))
		if data.Mock {
			sb.WriteString(" (mock)")
		}

	case events.ExpiryPayload:
		fmt.Fprintf(&sb, "⌛ <b>%d payment order(s) expired</b>\nInitiated before %s", data.Count, data.Cutoff.Format("2006-01-02 15:04 MST"))

	case events.ReviewPayload:
		fmt.Fprintf(&sb, "⭐ <b>New review</b> %s\n", html.EscapeString(data.BookingNumber))
		fmt.Fprintf(&sb, "Rating %s, provider #%d now averages %s", data.Rating, data.ProviderID, data.AverageRating)

	default:
		return "", false
	}

	return sb.String(), true
}

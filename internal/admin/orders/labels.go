package orders

import (
	"strconv"
	"strings"
	"time"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
)

var orderStatusLabels = map[domain.OrderStatus]string{
	domain.OrderStatusPendingPayment: "支払い待ち",
	domain.OrderStatusPaid:           "支払い済み",
	domain.OrderStatusManufacturing:  "製造中",
	domain.OrderStatusShipped:        "出荷済み",
	domain.OrderStatusDelivered:      "配達完了",
	domain.OrderStatusCanceled:       "キャンセル",
	domain.OrderStatusRefunded:       "返金済み",
}

var paymentStatusLabels = map[domain.PaymentStatus]string{
	domain.PaymentStatusUnpaid:     "未払い",
	domain.PaymentStatusProcessing: "処理中",
	domain.PaymentStatusPaid:       "支払い済み",
	domain.PaymentStatusFailed:     "失敗",
	domain.PaymentStatusRefunded:   "返金済み",
}

var fulfillmentStatusLabels = map[domain.FulfillmentStatus]string{
	domain.FulfillmentStatusPending:       "未着手",
	domain.FulfillmentStatusManufacturing: "製造中",
	domain.FulfillmentStatusShipped:       "出荷済み",
	domain.FulfillmentStatusDelivered:     "配達完了",
}

// OrderStatusLabel returns the Japanese label, or the raw code for statuses
// outside the lifecycle.
func OrderStatusLabel(status domain.OrderStatus) string {
	if label, ok := orderStatusLabels[status]; ok {
		return label
	}
	return string(status)
}

func PaymentStatusLabel(status domain.PaymentStatus) string {
	if label, ok := paymentStatusLabels[status]; ok {
		return label
	}
	return string(status)
}

func FulfillmentStatusLabel(status domain.FulfillmentStatus) string {
	if label, ok := fulfillmentStatusLabels[status]; ok {
		return label
	}
	return string(status)
}

var jst = time.FixedZone("JST", 9*60*60)

// FormatDateTime renders t in JST, or "-" for the zero time.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(jst).Format("2006-01-02 15:04")
}

// FormatYen renders an amount with thousands separators.
func FormatYen(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	digits := strconv.FormatInt(value, 10)
	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

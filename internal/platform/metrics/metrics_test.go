package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrderCreationIncrementsOutcome(t *testing.T) {
	before := testutil.ToFloat64(orderCreations.WithLabelValues("replayed"))
	OrderCreation("replayed")
	after := testutil.ToFloat64(orderCreations.WithLabelValues("replayed"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestAdminMutationLabelsResult(t *testing.T) {
	before := testutil.ToFloat64(adminMutations.WithLabelValues("status", "error"))
	AdminMutation("status", errors.New("boom"))
	if got := testutil.ToFloat64(adminMutations.WithLabelValues("status", "error")); got-before != 1 {
		t.Fatalf("expected error result counted, got delta %v", got-before)
	}
}

func TestWebhookEventDefaultsUnknownType(t *testing.T) {
	before := testutil.ToFloat64(webhookEvents.WithLabelValues("unknown", "ok"))
	WebhookEvent("", "ok")
	if got := testutil.ToFloat64(webhookEvents.WithLabelValues("unknown", "ok")); got-before != 1 {
		t.Fatalf("expected unknown label, got delta %v", got-before)
	}
}

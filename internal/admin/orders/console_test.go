package orders_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finitefield-org/hanko-field/internal/admin/mockdata"
	"github.com/finitefield-org/hanko-field/internal/admin/orders"
	"github.com/finitefield-org/hanko-field/internal/admin/testutil"
	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	fsrepo "github.com/finitefield-org/hanko-field/internal/repositories/firestore"
)

var mutationTime = testutil.Now.Add(time.Hour)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("evt_test_%d", n)
	}
}

func newSeededConsole(t *testing.T, opts ...orders.Option) (*orders.Console, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	require.NoError(t, mockdata.Load(mockdata.Default(), store, testutil.Now))
	opts = append([]orders.Option{
		orders.WithClock(func() time.Time { return mutationTime }),
		orders.WithEventIDs(sequentialIDs()),
	}, opts...)
	console := testutil.NewConsole(t, store, opts...)
	require.NoError(t, console.Refresh(context.Background()))
	return console, store
}

func orderIDs(rows []orders.OrderRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}

func TestRefreshLoadsSnapshot(t *testing.T) {
	console, _ := newSeededConsole(t)

	rows := console.Orders(orders.Filter{})
	require.Equal(t, []string{"ord_1007", "ord_1006", "ord_1003", "ord_1005", "ord_1004", "ord_1001", "ord_1002"}, orderIDs(rows))
	require.Equal(t, "日本", rows[0].CountryLabel)
	require.Equal(t, int64(5400), rows[0].TotalJPY)

	materials := console.Materials()
	require.Len(t, materials, 3)
	require.Equal(t, "boxwood", materials[0].Key)
	require.Equal(t, "titanium", materials[2].Key)
	require.False(t, materials[2].IsActive)

	countries := console.CountryOptions()
	require.Equal(t, "AU", countries[0].Code)
	require.Equal(t, "オーストラリア", countries[0].Label)
}

func TestOrdersFilters(t *testing.T) {
	console, _ := newSeededConsole(t)

	require.Equal(t, []string{"ord_1005"}, orderIDs(console.Orders(orders.Filter{Status: "shipped"})))
	require.Equal(t, []string{"ord_1007", "ord_1004"}, orderIDs(console.Orders(orders.Filter{Country: "jp"})))
	require.Equal(t, []string{"ord_1006"}, orderIDs(console.Orders(orders.Filter{Email: "SMITH"})))
	require.Empty(t, console.Orders(orders.Filter{Status: "paid", Country: "JP"}))
}

func TestOrderDetailListsEventsNewestFirst(t *testing.T) {
	console, _ := newSeededConsole(t)

	detail, ok := console.Order("ord_1005", "", "")
	require.True(t, ok)
	require.Equal(t, "DHL", detail.Carrier)
	require.Equal(t, "SGP-824901", detail.TrackingNo)
	require.Equal(t, "柘植", detail.MaterialLabel)
	require.Len(t, detail.Events, 5)
	require.Equal(t, domain.EventOrderCreated, detail.Events[4].Kind)
	require.Equal(t, []orders.SelectOption{
		{Value: "delivered", Label: "配達完了"},
		{Value: "refunded", Label: "返金済み"},
	}, detail.NextStatuses)
	require.Equal(t, []orders.SelectOption{
		{Value: "none", Label: "ステータス変更なし"},
		{Value: "delivered", Label: "配達完了"},
	}, detail.ShippingTransitions)

	_, ok = console.Order("ord_missing", "", "")
	require.False(t, ok)
}

func TestUpdateStatusPersistsTransitionAndEvent(t *testing.T) {
	console, store := newSeededConsole(t)
	ctx := context.Background()

	require.NoError(t, console.UpdateStatus(ctx, "ord_1006", " manufacturing ", " ops@example.com "))

	detail, ok := console.Order("ord_1006", "", "")
	require.True(t, ok)
	require.Equal(t, domain.OrderStatusManufacturing, detail.Status)
	require.Equal(t, domain.PaymentStatusPaid, detail.PaymentStatus)
	require.Equal(t, domain.FulfillmentStatusManufacturing, detail.FulfillmentStatus)
	require.Equal(t, mutationTime, detail.StatusUpdatedAt)
	require.Equal(t, domain.EventStatusChanged, detail.Events[0].Kind)
	require.Equal(t, "ops@example.com", detail.Events[0].ActorID)

	doc, err := store.Get(ctx, "orders/ord_1006")
	require.NoError(t, err)
	require.Equal(t, "manufacturing", doc.Fields.String("status"))
	require.Equal(t, "paid", doc.Fields.String("payment.status"))
	require.Equal(t, "manufacturing", doc.Fields.String("fulfillment.status"))
	require.Equal(t, "JA", doc.Fields.String("seal.line1"), "unmasked fields stay untouched")

	event, err := store.Get(ctx, "orders/ord_1006/events/evt_test_1")
	require.NoError(t, err)
	require.Equal(t, "status_changed", event.Fields.String("type"))
	require.Equal(t, "admin", event.Fields.String("actor_type"))
	require.Equal(t, "paid", event.Fields.String("before_status"))
	require.Equal(t, "manufacturing", event.Fields.String("after_status"))
}

func TestUpdateStatusRejections(t *testing.T) {
	console, store := newSeededConsole(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		orderID string
		next    string
		message string
	}{
		{"empty target", "ord_1006", "  ", "更新先のステータスを選択してください。"},
		{"unknown order", "ord_missing", "paid", "注文が見つかりません。"},
		{"same status", "ord_1006", "paid", "現在と同じステータスには更新できません。"},
		{"backwards", "ord_1006", "pending_payment", "支払い済み から 支払い待ち には遷移できません。"},
		{"terminal", "ord_1004", "refunded", "配達完了 から 返金済み には遷移できません。"},
		{"unknown target", "ord_1003", "lost", "支払い待ち から lost には遷移できません。"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := console.UpdateStatus(ctx, tc.orderID, tc.next, orders.DefaultActorID)
			require.Error(t, err)
			require.True(t, orders.IsInputError(err))
			require.Equal(t, tc.message, err.Error())
		})
	}

	require.True(t, errors.Is(console.UpdateStatus(ctx, "ord_missing", "paid", ""), orders.ErrOrderNotFound))

	detail, _ := console.Order("ord_1006", "", "")
	require.Equal(t, domain.OrderStatusPaid, detail.Status)
	events, err := store.Query(ctx, docstore.Query{Collection: "orders/ord_1006/events"})
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestUpdateShippingWithTransition(t *testing.T) {
	console, store := newSeededConsole(t)
	ctx := context.Background()

	require.NoError(t, console.UpdateShipping(ctx, "ord_1007", " ヤマト運輸 ", " YMT-1 ", "shipped", orders.DefaultActorID))

	detail, ok := console.Order("ord_1007", "", "")
	require.True(t, ok)
	require.Equal(t, domain.OrderStatusShipped, detail.Status)
	require.Equal(t, domain.FulfillmentStatusShipped, detail.FulfillmentStatus)
	require.Equal(t, "ヤマト運輸", detail.Carrier)
	require.Equal(t, "YMT-1", detail.TrackingNo)

	shipment, err := store.Get(ctx, "orders/ord_1007/events/evt_test_1")
	require.NoError(t, err)
	require.Equal(t, "shipment_registered", shipment.Fields.String("type"))
	require.Equal(t, "ヤマト運輸 / YMT-1", shipment.Fields.String("note"))
	require.Equal(t, "YMT-1", shipment.Fields.String("payload.tracking_no"))

	changed, err := store.Get(ctx, "orders/ord_1007/events/evt_test_2")
	require.NoError(t, err)
	require.Equal(t, "status_changed", changed.Fields.String("type"))
	require.Equal(t, "manufacturing", changed.Fields.String("before_status"))
	require.Equal(t, "shipped", changed.Fields.String("after_status"))

	doc, err := store.Get(ctx, "orders/ord_1007")
	require.NoError(t, err)
	require.Equal(t, "ヤマト運輸", doc.Fields.String("fulfillment.carrier"))
	shippedAt, ok := doc.Fields.Time("fulfillment.shipped_at")
	require.True(t, ok)
	require.True(t, shippedAt.Equal(mutationTime))
}

func TestUpdateShippingWithoutTransitionKeepsStatus(t *testing.T) {
	console, store := newSeededConsole(t)
	ctx := context.Background()

	require.NoError(t, console.UpdateShipping(ctx, "ord_1005", "DHL", "SGP-000001", "none", "ops"))

	detail, _ := console.Order("ord_1005", "", "")
	require.Equal(t, domain.OrderStatusShipped, detail.Status)
	require.Equal(t, "SGP-000001", detail.TrackingNo)
	require.Equal(t, domain.EventShipmentRegistered, detail.Events[0].Kind)

	events, err := store.Query(ctx, docstore.Query{Collection: "orders/ord_1005/events"})
	require.NoError(t, err)
	require.Len(t, events, 6)
}

func TestUpdateShippingWithoutTransitionLeavesStoredStatus(t *testing.T) {
	console, store := newSeededConsole(t)
	ctx := context.Background()

	// A webhook refunds the order after the console loaded its snapshot.
	require.NoError(t, store.Patch(ctx, "orders/ord_1005", []docstore.Update{
		{Path: "status", Value: docstore.String("refunded")},
		{Path: "payment.status", Value: docstore.String("refunded")},
	}))

	require.NoError(t, console.UpdateShipping(ctx, "ord_1005", "DHL", "SGP-000002", "none", "ops"))

	doc, err := store.Get(ctx, "orders/ord_1005")
	require.NoError(t, err)
	require.Equal(t, "refunded", doc.Fields.String("status"))
	require.Equal(t, "refunded", doc.Fields.String("payment.status"))
	require.Equal(t, "SGP-000002", doc.Fields.String("fulfillment.tracking_no"))
	require.Equal(t, "DHL", doc.Fields.String("fulfillment.carrier"))
}

func TestUpdateShippingRejectionsDoNotMutate(t *testing.T) {
	console, _ := newSeededConsole(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		carrier    string
		trackingNo string
		transition string
		message    string
	}{
		{"missing carrier", " ", "T-1", "", "配送業者を入力してください。"},
		{"missing tracking", "DHL", "", "", "追跡番号を入力してください。"},
		{"same status", "DHL", "T-1", "manufacturing", "現在と同じステータスは指定できません。"},
		{"illegal", "DHL", "T-1", "delivered", "製造中 から 配達完了 には遷移できません。"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := console.UpdateShipping(ctx, "ord_1007", tc.carrier, tc.trackingNo, tc.transition, "ops")
			require.Error(t, err)
			require.Equal(t, tc.message, err.Error())
		})
	}

	detail, _ := console.Order("ord_1007", "", "")
	require.Equal(t, domain.OrderStatusManufacturing, detail.Status)
	require.Empty(t, detail.Carrier)
	require.Len(t, detail.Events, 3)
}

func TestUpdateMaterial(t *testing.T) {
	console, store := newSeededConsole(t)
	ctx := context.Background()

	err := console.UpdateMaterial(ctx, "titanium", orders.MaterialPatch{
		LabelJA:       "チタン",
		LabelEN:       "Titanium",
		DescriptionJA: "軽量で錆びない",
		DescriptionEN: "Light and rust free.",
		PriceJPY:      9900,
		SortOrder:     5,
		IsActive:      true,
	})
	require.NoError(t, err)

	materials := console.Materials()
	require.Equal(t, "titanium", materials[0].Key, "sort order 5 moves it first")

	detail, ok := console.Material("titanium", "", "")
	require.True(t, ok)
	require.Equal(t, int64(3), detail.Version)
	require.Equal(t, "軽量で錆びない", detail.DescriptionJA)
	require.True(t, detail.IsActive)

	doc, err := store.Get(ctx, "materials/titanium")
	require.NoError(t, err)
	price, _ := doc.Fields.Int("price_jpy")
	require.Equal(t, int64(9900), price)
	version, _ := doc.Fields.Int("version")
	require.Equal(t, int64(3), version)
}

func TestUpdateMaterialValidation(t *testing.T) {
	console, _ := newSeededConsole(t)
	valid := orders.MaterialPatch{LabelJA: "柘植", LabelEN: "Boxwood", DescriptionJA: "説明", DescriptionEN: "desc"}

	cases := []struct {
		name    string
		key     string
		mutate  func(*orders.MaterialPatch)
		message string
	}{
		{"label", "boxwood", func(p *orders.MaterialPatch) { p.LabelEN = " " }, "材質名（ja/en）は必須です。"},
		{"description", "boxwood", func(p *orders.MaterialPatch) { p.DescriptionJA = "" }, "説明文（ja/en）は必須です。"},
		{"price", "boxwood", func(p *orders.MaterialPatch) { p.PriceJPY = -1 }, "価格は 0 以上で入力してください。"},
		{"sort order", "boxwood", func(p *orders.MaterialPatch) { p.SortOrder = -1 }, "表示順は 0 以上で入力してください。"},
		{"missing", "jade", func(p *orders.MaterialPatch) {}, "材質が見つかりません。"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patch := valid
			tc.mutate(&patch)
			err := console.UpdateMaterial(context.Background(), tc.key, patch)
			require.Error(t, err)
			require.Equal(t, tc.message, err.Error())
		})
	}

	detail, _ := console.Material("boxwood", "", "")
	require.Equal(t, int64(3), detail.Version)
}

type failingSource struct {
	orders.Source
	err error
}

func (s *failingSource) PersistOrder(context.Context, domain.Order, []domain.OrderEvent) error {
	return s.err
}

func (s *failingSource) PersistMaterial(context.Context, domain.Material) error {
	return s.err
}

func TestPersistFailureRollsBackSnapshot(t *testing.T) {
	store := docstore.NewMemory()
	require.NoError(t, mockdata.Load(mockdata.Default(), store, testutil.Now))
	source := repositorySource(t, store)
	boom := errors.New("deadline exceeded")
	console, err := orders.NewConsole(&failingSource{Source: source, err: boom})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, console.Refresh(ctx))

	err = console.UpdateStatus(ctx, "ord_1006", "manufacturing", "ops")
	require.ErrorIs(t, err, boom)
	require.False(t, orders.IsInputError(err))

	detail, _ := console.Order("ord_1006", "", "")
	require.Equal(t, domain.OrderStatusPaid, detail.Status)
	require.Len(t, detail.Events, 2)

	err = console.UpdateMaterial(ctx, "boxwood", orders.MaterialPatch{
		LabelJA: "柘植", LabelEN: "Boxwood", DescriptionJA: "説明", DescriptionEN: "desc", PriceJPY: 1,
	})
	require.ErrorIs(t, err, boom)
	material, _ := console.Material("boxwood", "", "")
	require.Equal(t, int64(3600), material.PriceJPY)
}

func TestUnknownStatusIsQuarantined(t *testing.T) {
	store := docstore.NewMemory()
	order := domain.Order{
		ID:        "ord_legacy",
		OrderNo:   "HF-20240101-0001",
		Shipping:  domain.Shipping{CountryCode: "JP"},
		CreatedAt: testutil.Now,
	}
	order.Restore("on_hold", "", "")
	store.Seed("orders/ord_legacy", fsrepo.EncodeOrder(order))

	console := testutil.NewConsole(t, store)
	ctx := context.Background()
	require.NoError(t, console.Refresh(ctx))

	detail, ok := console.Order("ord_legacy", "", "")
	require.True(t, ok)
	require.Equal(t, domain.OrderStatus("on_hold"), detail.Status)
	require.Equal(t, domain.PaymentStatusProcessing, detail.PaymentStatus)
	require.Empty(t, detail.NextStatuses)
	require.Equal(t, "JP", detail.CountryLabel, "country label falls back to the code")

	err := console.UpdateStatus(ctx, "ord_legacy", "paid", "ops")
	require.EqualError(t, err, "on_hold から 支払い済み には遷移できません。")
}

func repositorySource(t *testing.T, store docstore.Store) *orders.RepositorySource {
	t.Helper()
	orderRepo, err := fsrepo.NewOrderRepository(store)
	require.NoError(t, err)
	eventRepo, err := fsrepo.NewOrderEventRepository(store)
	require.NoError(t, err)
	materialRepo, err := fsrepo.NewMaterialRepository(store)
	require.NoError(t, err)
	countryRepo, err := fsrepo.NewCountryRepository(store)
	require.NoError(t, err)
	source, err := orders.NewRepositorySource(orders.RepositorySourceDeps{
		Orders:    orderRepo,
		Events:    eventRepo,
		Materials: materialRepo,
		Countries: countryRepo,
	})
	require.NoError(t, err)
	return source
}

// Package orders holds the admin console state: an in-memory snapshot of orders,
// materials and countries that operators browse and mutate, persisted back to
// the document store.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/platform/metrics"
)

const (
	defaultTimeout = 7 * time.Second
	// DefaultActorID is recorded when the operator form leaves actor_id empty.
	DefaultActorID = "admin.console"
)

// InputError is a rejected operator action. Message is shown verbatim in the
// console.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func inputError(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

var (
	ErrOrderNotFound    = &InputError{Message: "注文が見つかりません。"}
	ErrMaterialNotFound = &InputError{Message: "材質が見つかりません。"}

	errStatusRequired    = &InputError{Message: "更新先のステータスを選択してください。"}
	errSameStatus        = &InputError{Message: "現在と同じステータスには更新できません。"}
	errSameShipping      = &InputError{Message: "現在と同じステータスは指定できません。"}
	errCarrierRequired   = &InputError{Message: "配送業者を入力してください。"}
	errTrackingRequired  = &InputError{Message: "追跡番号を入力してください。"}
	errMaterialLabel     = &InputError{Message: "材質名（ja/en）は必須です。"}
	errMaterialDesc      = &InputError{Message: "説明文（ja/en）は必須です。"}
	errMaterialPrice     = &InputError{Message: "価格は 0 以上で入力してください。"}
	errMaterialSortOrder = &InputError{Message: "表示順は 0 以上で入力してください。"}
)

// IsInputError reports whether err is an operator facing validation error.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

// Snapshot is the console's view of the store.
type Snapshot struct {
	Orders map[string]domain.Order
	// OrderIDs are sorted by created_at, newest first.
	OrderIDs  []string
	Materials map[string]domain.Material
	// MaterialKeys are sorted by sort_order, then key.
	MaterialKeys []string
	// Countries maps country codes to display labels.
	Countries map[string]string
}

// Source loads snapshots and persists mutations.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
	PersistOrder(ctx context.Context, order domain.Order, events []domain.OrderEvent) error
	PersistMaterial(ctx context.Context, material domain.Material) error
}

// Option customises a Console.
type Option func(*Console)

func WithClock(clock func() time.Time) Option {
	return func(c *Console) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Console) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventIDs overrides the evt_<uuid> event id generator.
func WithEventIDs(next func() string) Option {
	return func(c *Console) {
		if next != nil {
			c.eventID = next
		}
	}
}

// Console serialises operator mutations against one snapshot. Mutations are
// applied under the write lock and persisted after it is released; a failed
// persist reloads the snapshot from the source.
type Console struct {
	source  Source
	clock   func() time.Time
	timeout time.Duration
	logger  *zap.Logger
	eventID func() string

	mu   sync.RWMutex
	snap Snapshot
}

func NewConsole(source Source, opts ...Option) (*Console, error) {
	if source == nil {
		return nil, errors.New("admin console requires a source")
	}
	c := &Console{
		source:  source,
		clock:   func() time.Time { return time.Now().UTC() },
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
		eventID: func() string { return "evt_" + uuid.NewString() },
		snap:    normalizeSnapshot(Snapshot{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Refresh replaces the snapshot with a fresh load from the source.
func (c *Console) Refresh(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snap, err := c.source.Load(loadCtx)
	metrics.SnapshotReload(err)
	if err != nil {
		return fmt.Errorf("load admin snapshot: %w", err)
	}
	snap = normalizeSnapshot(snap)

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return nil
}

// UpdateStatus moves an order to next after checking the transition table.
func (c *Console) UpdateStatus(ctx context.Context, orderID, next, actorID string) error {
	next = strings.TrimSpace(next)
	if next == "" {
		return errStatusRequired
	}

	c.mu.Lock()
	order, ok := c.snap.Orders[orderID]
	if !ok {
		c.mu.Unlock()
		return ErrOrderNotFound
	}
	before := order.Status()
	now := c.clock()
	if err := order.Transition(domain.OrderStatus(next), now); err != nil {
		c.mu.Unlock()
		return transitionError(err, before, domain.OrderStatus(next), errSameStatus)
	}
	stampFulfillment(&order, now)

	event := c.statusChanged(actorID, before, order.Status(), now)
	order.AppendEvent(event)
	c.snap.Orders[orderID] = order
	updated := order.Clone()
	c.mu.Unlock()

	err := c.persistOrder(ctx, updated, []domain.OrderEvent{event})
	metrics.AdminMutation("order_status", err)
	return err
}

// UpdateShipping records carrier and tracking number, optionally moving the
// order along. transition "" or "none" leaves the status unchanged.
func (c *Console) UpdateShipping(ctx context.Context, orderID, carrier, trackingNo, transition, actorID string) error {
	carrier = strings.TrimSpace(carrier)
	trackingNo = strings.TrimSpace(trackingNo)
	if carrier == "" {
		return errCarrierRequired
	}
	if trackingNo == "" {
		return errTrackingRequired
	}
	transition = strings.TrimSpace(transition)
	moving := transition != "" && transition != ShippingTransitionNone
	next := domain.OrderStatus(transition)

	c.mu.Lock()
	order, ok := c.snap.Orders[orderID]
	if !ok {
		c.mu.Unlock()
		return ErrOrderNotFound
	}
	before := order.Status()
	if moving {
		if next == before {
			c.mu.Unlock()
			return errSameShipping
		}
		if !domain.CanTransition(before, next) {
			c.mu.Unlock()
			return transitionError(&domain.TransitionError{From: before, To: next}, before, next, errSameShipping)
		}
	}

	now := c.clock()
	order.Fulfillment.Carrier = carrier
	order.Fulfillment.TrackingNo = trackingNo
	order.UpdatedAt = now

	events := []domain.OrderEvent{{
		ID:        c.eventID(),
		Kind:      domain.EventShipmentRegistered,
		ActorType: domain.ActorAdmin,
		ActorID:   strings.TrimSpace(actorID),
		Note:      carrier + " / " + trackingNo,
		Payload:   map[string]any{"carrier": carrier, "tracking_no": trackingNo},
		CreatedAt: now,
	}}
	if moving {
		if err := order.Transition(next, now); err != nil {
			c.mu.Unlock()
			return transitionError(err, before, next, errSameShipping)
		}
		stampFulfillment(&order, now)
		events = append(events, c.statusChanged(actorID, before, next, now))
	}
	for _, event := range events {
		order.AppendEvent(event)
	}
	c.snap.Orders[orderID] = order
	updated := order.Clone()
	c.mu.Unlock()

	err := c.persistOrder(ctx, updated, events)
	metrics.AdminMutation("order_shipping", err)
	return err
}

// MaterialPatch is the editable part of a material.
type MaterialPatch struct {
	LabelJA       string
	LabelEN       string
	DescriptionJA string
	DescriptionEN string
	PriceJPY      int64
	SortOrder     int64
	IsActive      bool
}

// UpdateMaterial applies patch to the material and bumps its version.
func (c *Console) UpdateMaterial(ctx context.Context, key string, patch MaterialPatch) error {
	patch.LabelJA = strings.TrimSpace(patch.LabelJA)
	patch.LabelEN = strings.TrimSpace(patch.LabelEN)
	patch.DescriptionJA = strings.TrimSpace(patch.DescriptionJA)
	patch.DescriptionEN = strings.TrimSpace(patch.DescriptionEN)
	switch {
	case patch.LabelJA == "" || patch.LabelEN == "":
		return errMaterialLabel
	case patch.DescriptionJA == "" || patch.DescriptionEN == "":
		return errMaterialDesc
	case patch.PriceJPY < 0:
		return errMaterialPrice
	case patch.SortOrder < 0:
		return errMaterialSortOrder
	}

	c.mu.Lock()
	current, ok := c.snap.Materials[key]
	if !ok {
		c.mu.Unlock()
		return ErrMaterialNotFound
	}
	material := current.Clone()
	if material.LabelI18n == nil {
		material.LabelI18n = map[string]string{}
	}
	if material.DescriptionI18n == nil {
		material.DescriptionI18n = map[string]string{}
	}
	material.LabelI18n["ja"] = patch.LabelJA
	material.LabelI18n["en"] = patch.LabelEN
	material.DescriptionI18n["ja"] = patch.DescriptionJA
	material.DescriptionI18n["en"] = patch.DescriptionEN
	material.PriceJPY = patch.PriceJPY
	material.SortOrder = patch.SortOrder
	material.IsActive = patch.IsActive
	material.Version++
	material.UpdatedAt = c.clock()

	c.snap.Materials[key] = material
	c.snap.MaterialKeys = sortedMaterialKeys(c.snap.Materials)
	updated := material.Clone()
	c.mu.Unlock()

	persistCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.source.PersistMaterial(persistCtx, updated)
	if err != nil {
		c.rollback(ctx, "material", err)
		err = fmt.Errorf("persist material %s: %w", key, err)
	}
	metrics.AdminMutation("material", err)
	return err
}

func (c *Console) statusChanged(actorID string, before, after domain.OrderStatus, at time.Time) domain.OrderEvent {
	return domain.OrderEvent{
		ID:           c.eventID(),
		Kind:         domain.EventStatusChanged,
		ActorType:    domain.ActorAdmin,
		ActorID:      strings.TrimSpace(actorID),
		BeforeStatus: before,
		AfterStatus:  after,
		CreatedAt:    at,
	}
}

func (c *Console) persistOrder(ctx context.Context, order domain.Order, events []domain.OrderEvent) error {
	persistCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.source.PersistOrder(persistCtx, order, events); err != nil {
		c.rollback(ctx, "order", err)
		return fmt.Errorf("persist order %s: %w", order.ID, err)
	}
	return nil
}

// rollback discards the optimistic in-memory change by reloading from the
// source. A reload failure is only logged; the persist error wins.
func (c *Console) rollback(ctx context.Context, kind string, cause error) {
	if err := c.Refresh(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("admin snapshot rollback failed",
			zap.String("kind", kind),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

// stampFulfillment records the first time an order reaches shipped or delivered.
func stampFulfillment(order *domain.Order, at time.Time) {
	switch order.FulfillmentStatus() {
	case domain.FulfillmentStatusShipped:
		if order.Fulfillment.ShippedAt.IsZero() {
			order.Fulfillment.ShippedAt = at
		}
	case domain.FulfillmentStatusDelivered:
		if order.Fulfillment.DeliveredAt.IsZero() {
			order.Fulfillment.DeliveredAt = at
		}
	}
}

func transitionError(err error, from, to domain.OrderStatus, same *InputError) error {
	switch {
	case errors.Is(err, domain.ErrEmptyTransition):
		return errStatusRequired
	case errors.Is(err, domain.ErrSameStatus):
		return same
	case errors.Is(err, domain.ErrIllegalTransition):
		return inputError("%s から %s には遷移できません。", OrderStatusLabel(from), OrderStatusLabel(to))
	default:
		return err
	}
}

func normalizeSnapshot(snap Snapshot) Snapshot {
	if snap.Orders == nil {
		snap.Orders = map[string]domain.Order{}
	}
	if snap.Materials == nil {
		snap.Materials = map[string]domain.Material{}
	}
	if snap.Countries == nil {
		snap.Countries = map[string]string{}
	}
	snap.OrderIDs = sortedOrderIDs(snap.Orders)
	snap.MaterialKeys = sortedMaterialKeys(snap.Materials)
	return snap
}

func sortedOrderIDs(orders map[string]domain.Order) []string {
	ids := make([]string, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		left, right := orders[ids[i]], orders[ids[j]]
		if !left.CreatedAt.Equal(right.CreatedAt) {
			return left.CreatedAt.After(right.CreatedAt)
		}
		return ids[i] > ids[j]
	})
	return ids
}

func sortedMaterialKeys(materials map[string]domain.Material) []string {
	keys := make([]string, 0, len(materials))
	for key := range materials {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		left, right := materials[keys[i]], materials[keys[j]]
		if left.SortOrder != right.SortOrder {
			return left.SortOrder < right.SortOrder
		}
		return keys[i] < keys[j]
	})
	return keys
}

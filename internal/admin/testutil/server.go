package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finitefield-org/hanko-field/internal/admin/httpserver"
	"github.com/finitefield-org/hanko-field/internal/admin/httpserver/middleware"
	"github.com/finitefield-org/hanko-field/internal/admin/mockdata"
	"github.com/finitefield-org/hanko-field/internal/admin/orders"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	fsrepo "github.com/finitefield-org/hanko-field/internal/repositories/firestore"
)

// Now is the reference time the bundled seed is loaded against.
var Now = time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

type serverOptions struct {
	cfg   httpserver.Config
	store *docstore.Memory
	clock func() time.Time
}

// ServerOption customises the admin test server.
type ServerOption func(*serverOptions)

// WithAuthenticator enables auth with the given authenticator.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(o *serverOptions) {
		o.cfg.Authenticator = auth
		o.cfg.AuthEnabled = true
	}
}

// WithStore serves an existing store instead of the bundled seed.
func WithStore(store *docstore.Memory) ServerOption {
	return func(o *serverOptions) {
		o.store = store
	}
}

func WithClock(clock func() time.Time) ServerOption {
	return func(o *serverOptions) {
		o.clock = clock
	}
}

// Env is a running admin console backed by an in-memory store.
type Env struct {
	Server  *httptest.Server
	Store   *docstore.Memory
	Console *orders.Console
}

// NewServer constructs an httptest server running the admin HTTP stack. By
// default the store holds the bundled mock seed loaded at Now.
func NewServer(t testing.TB, opts ...ServerOption) *Env {
	t.Helper()

	o := &serverOptions{
		cfg:   httpserver.Config{SourceLabel: "Mock", IsMock: true},
		clock: func() time.Time { return Now.Add(time.Minute) },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = docstore.NewMemory()
		if err := mockdata.Load(mockdata.Default(), o.store, Now); err != nil {
			t.Fatalf("load seed: %v", err)
		}
	}

	console := NewConsole(t, o.store, orders.WithClock(o.clock))
	o.cfg.Console = console
	handler, err := httpserver.NewHandler(o.cfg)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &Env{Server: ts, Store: o.store, Console: console}
}

// NewConsole wires a console to the repositories over store.
func NewConsole(t testing.TB, store docstore.Store, opts ...orders.Option) *orders.Console {
	t.Helper()

	orderRepo, err := fsrepo.NewOrderRepository(store)
	if err != nil {
		t.Fatalf("order repository: %v", err)
	}
	eventRepo, err := fsrepo.NewOrderEventRepository(store)
	if err != nil {
		t.Fatalf("event repository: %v", err)
	}
	materialRepo, err := fsrepo.NewMaterialRepository(store)
	if err != nil {
		t.Fatalf("material repository: %v", err)
	}
	countryRepo, err := fsrepo.NewCountryRepository(store)
	if err != nil {
		t.Fatalf("country repository: %v", err)
	}
	source, err := orders.NewRepositorySource(orders.RepositorySourceDeps{
		Orders:    orderRepo,
		Events:    eventRepo,
		Materials: materialRepo,
		Countries: countryRepo,
	})
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	console, err := orders.NewConsole(source, opts...)
	if err != nil {
		t.Fatalf("console: %v", err)
	}
	return console
}

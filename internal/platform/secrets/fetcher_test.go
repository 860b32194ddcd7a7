package secrets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	mu     sync.Mutex
	values map[string]string
	err    error
	calls  map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{values: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.GetName()]++
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeSecretClient) Close() error { return nil }

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	resource := "projects/hf-test/secrets/stripe_webhook/versions/latest"
	client.values[resource] = "whsec_remote"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithDefaultProject("hf-test"), WithLogger(zap.NewNop()), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.ResolveSecret(ctx, "secret://stripe/webhook")
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if got != "whsec_remote" {
			t.Fatalf("expected whsec_remote, got %s", got)
		}
	}
	if calls := client.calls[resource]; calls != 1 {
		t.Fatalf("expected one remote fetch, got %d", calls)
	}
}

func TestResolveFallsBackWhenSecretManagerUnavailable(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.err = status.Error(codes.Unavailable, "offline")

	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(path, []byte("sm://stripe/webhook=whsec_local\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithDefaultProject("hf-test"), WithFallbackFile(path))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	got, err := fetcher.Resolve(ctx, "secret://stripe/webhook")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "whsec_local" {
		t.Fatalf("expected fallback value, got %q", got)
	}
}

func TestResolvePropagatesNonFallbackErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithDefaultProject("hf-test"), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	if _, err := fetcher.Resolve(ctx, "secret://missing"); status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestParseReference(t *testing.T) {
	ref, err := parseReference("secret://stripe/webhook?version=3&project=hf-prod")
	if err != nil {
		t.Fatalf("parseReference returned error: %v", err)
	}
	if ref.secret != "stripe_webhook" || ref.version != "3" || ref.project != "hf-prod" {
		t.Fatalf("unexpected reference %+v", ref)
	}
	if _, err := parseReference("https://example.com"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

package messaging_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barbersync/barbersync/internal/messaging"
	"github.com/barbersync/barbersync/internal/provider/resilience"
	"github.com/barbersync/barbersync/internal/tenant"
)

// stubTransport records sends and answers from a per-session script.
type stubTransport struct {
	calls   []stubCall
	results map[string]error // keyed by session, "" = default
}

type stubCall struct {
	session string
	phone   string
	body    string
}

func (t *stubTransport) Name() string {
	return "stub"
}

func (t *stubTransport) Send(_ context.Context, session, rawPhone, body string) error {
	t.calls = append(t.calls, stubCall{session: session, phone: rawPhone, body: body})
	return t.results[session]
}

func newTestService(t *testing.T, transport *stubTransport, dir tenant.Directory) (*messaging.Service, *resilience.Breaker) {
	t.Helper()
	breaker := resilience.New(resilience.DefaultConfig("stub"))
	svc := messaging.NewService(messaging.ServiceConfig{
		Transport: transport,
		Breaker:   breaker,
		Tenants:   dir,
		Logger:    zerolog.Nop(),
	})
	return svc, breaker
}

func connectedShop(id, instance string) *tenant.MessagingConfig {
	return &tenant.MessagingConfig{
		TenantID:         id,
		Enabled:          true,
		ConnectionStatus: tenant.StatusConnected,
		InstanceName:     instance,
	}
}

func TestService_SendWithoutTenantUsesDefault(t *testing.T) {
	transport := &stubTransport{results: map[string]error{}}
	svc, _ := newTestService(t, transport, tenant.NewInMemoryDirectory())

	err := svc.Send(context.Background(), "", "(11) 91234-5678", "see you at 10am")
	require.NoError(t, err)

	require.Len(t, transport.calls, 1)
	assert.Equal(t, "", transport.calls[0].session)
}

func TestService_SendUsesDedicatedSession(t *testing.T) {
	transport := &stubTransport{results: map[string]error{}}
	dir := tenant.NewInMemoryDirectory()
	dir.Put(connectedShop("shop-a", "inst-a"))
	svc, _ := newTestService(t, transport, dir)

	err := svc.Send(context.Background(), "shop-a", "11912345678", "reminder")
	require.NoError(t, err)

	require.Len(t, transport.calls, 1)
	assert.Equal(t, "inst-a", transport.calls[0].session)
}

func TestService_DisabledShopUsesDefault(t *testing.T) {
	transport := &stubTransport{results: map[string]error{}}
	dir := tenant.NewInMemoryDirectory()
	dir.Put(&tenant.MessagingConfig{
		TenantID:         "shop-a",
		Enabled:          false,
		ConnectionStatus: tenant.StatusConnected,
		InstanceName:     "inst-a",
	})
	svc, _ := newTestService(t, transport, dir)

	require.NoError(t, svc.Send(context.Background(), "shop-a", "11912345678", "reminder"))
	require.Len(t, transport.calls, 1)
	assert.Equal(t, "", transport.calls[0].session)
}

func TestService_FallbackOnSessionInvalid(t *testing.T) {
	transport := &stubTransport{results: map[string]error{
		"inst-a": messaging.ErrFromStatus(http.StatusNotFound, "", "instance not found"),
		"":       nil,
	}}
	dir := tenant.NewInMemoryDirectory()
	dir.Put(connectedShop("shop-a", "inst-a"))
	svc, _ := newTestService(t, transport, dir)

	err := svc.Send(context.Background(), "shop-a", "11912345678", "reminder")
	require.NoError(t, err)

	// Dedicated attempt first, then the shared default.
	require.Len(t, transport.calls, 2)
	assert.Equal(t, "inst-a", transport.calls[0].session)
	assert.Equal(t, "", transport.calls[1].session)

	// The dead session was persisted as disconnected.
	cfg, err := dir.GetMessagingConfig(context.Background(), "shop-a")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusDisconnected, cfg.ConnectionStatus)
}

func TestService_FallbackResultPropagates(t *testing.T) {
	transport := &stubTransport{results: map[string]error{
		"inst-a": messaging.ErrFromStatus(http.StatusUnauthorized, "", "bad key"),
		"":       messaging.ErrFromStatus(http.StatusBadGateway, "", "gateway down"),
	}}
	dir := tenant.NewInMemoryDirectory()
	dir.Put(connectedShop("shop-a", "inst-a"))
	svc, _ := newTestService(t, transport, dir)

	err := svc.Send(context.Background(), "shop-a", "11912345678", "reminder")
	require.Error(t, err)

	// The caller sees the default session's failure, not the original 401.
	var sendErr *messaging.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, http.StatusBadGateway, sendErr.HTTPStatus)
}

func TestService_NoFallbackOnGenericError(t *testing.T) {
	timeoutErr := &messaging.SendError{Kind: messaging.ErrorTimeout, Message: "deadline exceeded"}
	transport := &stubTransport{results: map[string]error{
		"inst-a": timeoutErr,
		"":       nil,
	}}
	dir := tenant.NewInMemoryDirectory()
	dir.Put(connectedShop("shop-a", "inst-a"))
	svc, _ := newTestService(t, transport, dir)

	err := svc.Send(context.Background(), "shop-a", "11912345678", "reminder")
	require.Error(t, err)
	assert.True(t, messaging.IsTimeout(err))

	// No default-session attempt, no downgrade.
	require.Len(t, transport.calls, 1)
	cfg, gerr := dir.GetMessagingConfig(context.Background(), "shop-a")
	require.NoError(t, gerr)
	assert.Equal(t, tenant.StatusConnected, cfg.ConnectionStatus)
}

func TestService_UnknownTenantFallsToDefault(t *testing.T) {
	transport := &stubTransport{results: map[string]error{}}
	svc, _ := newTestService(t, transport, tenant.NewInMemoryDirectory())

	err := svc.Send(context.Background(), "ghost-shop", "11912345678", "reminder")
	require.NoError(t, err)

	require.Len(t, transport.calls, 1)
	assert.Equal(t, "", transport.calls[0].session)
}

func TestService_CircuitOpenRejectsLocally(t *testing.T) {
	transport := &stubTransport{results: map[string]error{
		"": messaging.ErrFromStatus(http.StatusInternalServerError, "", "boom"),
	}}
	svc, breaker := newTestService(t, transport, tenant.NewInMemoryDirectory())
	ctx := context.Background()

	// Three consecutive failures trip the breaker.
	for i := 0; i < 3; i++ {
		require.Error(t, svc.Send(ctx, "", "11912345678", "reminder"))
	}
	require.Equal(t, resilience.StateOpen, breaker.State())

	err := svc.Send(ctx, "", "11912345678", "reminder")
	require.Error(t, err)
	assert.True(t, messaging.IsCircuitOpen(err))

	// The rejection made no network attempt and did not extend the block.
	assert.Len(t, transport.calls, 3)
	assert.Equal(t, uint64(3), breaker.Status().TotalFailures)
}

func TestService_SuccessClosesBreaker(t *testing.T) {
	transport := &stubTransport{results: map[string]error{}}
	svc, breaker := newTestService(t, transport, tenant.NewInMemoryDirectory())

	breaker.RecordFailure()
	breaker.RecordFailure()

	require.NoError(t, svc.Send(context.Background(), "", "11912345678", "reminder"))
	assert.Equal(t, 0, breaker.Status().ConsecutiveFailures)
}

func TestService_RegistryRecordsOutcomes(t *testing.T) {
	transport := &stubTransport{results: map[string]error{
		"": messaging.ErrFromStatus(http.StatusBadGateway, "", "gateway down"),
	}}
	registry := resilience.NewRegistry()
	breaker := resilience.New(resilience.DefaultConfig("stub"))
	registry.Register("stub", breaker)

	svc := messaging.NewService(messaging.ServiceConfig{
		Transport: transport,
		Breaker:   breaker,
		Tenants:   tenant.NewInMemoryDirectory(),
		Registry:  registry,
		Logger:    zerolog.Nop(),
	})

	require.Error(t, svc.Send(context.Background(), "", "11912345678", "reminder"))

	health := registry.GetHealth("stub")
	require.NotNil(t, health)
	assert.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "gateway down")
}

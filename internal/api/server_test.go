package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/models"
	"slotbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestGRPCClient(t *testing.T, cfg config.APIConfig, f *apiFixture) *SlotServiceClient {
	t.Helper()
	logger := zerolog.Nop()
	lis := bufconn.Listen(1 << 20)

	srv, err := newGRPCServer(cfg, lis, f.bookings, &logger)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewSlotServiceClient(conn)
}

func TestGRPC_SlotService(t *testing.T) {
	f := newAPIFixture(t, openAPIConfig())
	business, cut, color := f.seedSalon(t)
	client := newTestGRPCClient(t, openAPIConfig(), f)
	ctx := context.Background()

	booking := &models.Booking{
		ServiceID:      color.ID,
		CustomerName:   "Ann",
		ScheduledStart: time.Date(2030, 1, 7, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.bookings.CreateBooking(ctx, booking))

	t.Run("GetSlots", func(t *testing.T) {
		resp, err := client.GetSlots(ctx, &GetSlotsRequest{ServiceID: cut.ID, Date: testMonday})
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "10:00"}, resp.Slots)
		assert.Equal(t, testMonday, resp.Date)
	})

	t.Run("ResolveHours", func(t *testing.T) {
		resp, err := client.ResolveHours(ctx, &ResolveHoursRequest{BusinessID: business.ID, Date: testMonday})
		require.NoError(t, err)
		assert.False(t, resp.Closed)
		assert.Equal(t, "09:00", resp.OpenTime)
		assert.Equal(t, "12:00", resp.CloseTime)
		assert.Equal(t, 1, resp.MaxConcurrentPerSlot)

		resp, err = client.ResolveHours(ctx, &ResolveHoursRequest{BusinessID: business.ID, Date: testTuesday})
		require.NoError(t, err)
		assert.True(t, resp.Closed)
		assert.Equal(t, 1, resp.Weekday)
	})

	t.Run("CheckSlot", func(t *testing.T) {
		resp, err := client.CheckSlot(ctx, &CheckSlotRequest{ServiceID: cut.ID, Start: testMonday + "T09:00"})
		require.NoError(t, err)
		assert.True(t, resp.Available)

		resp, err = client.CheckSlot(ctx, &CheckSlotRequest{ServiceID: cut.ID, Start: testMonday + "T11:00"})
		require.NoError(t, err)
		assert.False(t, resp.Available)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := client.GetSlots(ctx, &GetSlotsRequest{ServiceID: cut.ID, Date: "bad"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = client.GetSlots(ctx, &GetSlotsRequest{ServiceID: 999, Date: testMonday})
		assert.Equal(t, codes.NotFound, status.Code(err))

		_, err = client.CheckSlot(ctx, &CheckSlotRequest{ServiceID: cut.ID, Start: "09:00"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestGRPC_AuthEndToEnd(t *testing.T) {
	cfg := openAPIConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{{Key: "k", Extra: "e", Permissions: []string{permReadSlots}}},
	}
	f := newAPIFixture(t, openAPIConfig())
	_, cut, _ := f.seedSalon(t)
	client := newTestGRPCClient(t, cfg, f)

	_, err := client.GetSlots(context.Background(), &GetSlotsRequest{ServiceID: cut.ID, Date: testMonday})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "k", "x-api-extra", "e")
	resp, err := client.GetSlots(ctx, &GetSlotsRequest{ServiceID: cut.ID, Date: testMonday})
	require.NoError(t, err)
	assert.Len(t, resp.Slots, 3)
}

func TestAuthInterceptor(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "valid-key", Extra: "valid-extra", Permissions: []string{permReadSlots}},
				{Key: "writer", Extra: "writer-extra", Permissions: []string{permWriteBookings}},
			},
		},
		RateLimit: config.APIRateLimitConfig{
			RPS:   100,
			Burst: 200,
		},
	}

	interceptor := NewAuthInterceptor(cfg).Unary()
	handler := func(_ context.Context, _ any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: methodGetSlots}

	t.Run("Success", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs())
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "invalid", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "invalid")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "writer", "x-api-extra", "writer-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("RateLimited", func(t *testing.T) {
		limited := cfg
		limited.Auth.Enabled = false
		limited.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
		icpt := NewAuthInterceptor(limited).Unary()

		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "any"))
		_, err := icpt(ctx, "req", info, handler)
		assert.NoError(t, err)
		_, err = icpt(ctx, "req", info, handler)
		assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	})
}

func TestChainUnaryInterceptors(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(mk("a"), mk("b"))
	_, err := chain(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestBuildTLSConfig(t *testing.T) {
	t.Run("EmptyPaths", func(t *testing.T) {
		_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
		assert.Error(t, err)
	})

	t.Run("InvalidCert", func(t *testing.T) {
		_, err := buildTLSConfig(config.APITLSConfig{
			Enabled:  true,
			CertFile: "/nonexistent",
			KeyFile:  "/nonexistent",
		})
		assert.Error(t, err)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		grpcCode codes.Code
		code     string
	}{
		{fmt.Errorf("service 1: %w", database.ErrNotFound), 404, codes.NotFound, "not_found"},
		{database.ErrClosedDay, 409, codes.FailedPrecondition, "closed_day"},
		{database.ErrSlotUnavailable, 422, codes.FailedPrecondition, "slot_unavailable"},
		{database.ErrCapacityExceeded, 409, codes.Aborted, "capacity_exceeded"},
		{database.ErrConcurrentModification, 409, codes.Aborted, "concurrent_modification"},
		{database.ErrInvalidTransition, 422, codes.FailedPrecondition, "invalid_transition"},
		{service.ErrRateLimited, 429, codes.ResourceExhausted, "rate_limited"},
		{service.ErrPastDate, 400, codes.InvalidArgument, "validation_error"},
		{fmt.Errorf("%w: bad", service.ErrInvalidCatalog), 400, codes.InvalidArgument, "validation_error"},
		{errors.New("disk full"), 500, codes.Internal, "internal"},
	}
	for _, tt := range tests {
		got := classify(tt.err)
		assert.Equal(t, tt.status, got.status, tt.err.Error())
		assert.Equal(t, tt.grpcCode, got.grpcCode, tt.err.Error())
		assert.Equal(t, tt.code, got.code, tt.err.Error())
	}
	assert.Equal(t, "internal error", classify(errors.New("secret")).message)
}

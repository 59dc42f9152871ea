package grpc_control

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"

	"signal-hub/src/logger"
	"signal-hub/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeHub struct{ running atomic.Bool }

func (h *fakeHub) Running() bool { return h.running.Load() }

type pingDB struct {
	err error
}

func (d *pingDB) Initialize() error                                     { return nil }
func (d *pingDB) SaveIngestReceipt(models.MIngestReceipt) (bool, error) { return true, nil }
func (d *pingDB) DeleteIngestReceipt(string) error                      { return nil }
func (d *pingDB) SaveTrailPoint(models.MTrailPoint) error               { return nil }
func (d *pingDB) UpsertLatest(models.MLatest) error                     { return nil }
func (d *pingDB) GetLatestStage(string) (string, error)                 { return "", nil }
func (d *pingDB) HasOpenPosition(string) (bool, error)                  { return false, nil }
func (d *pingDB) SaveCandles(string, []models.MCandleBar) error         { return nil }
func (d *pingDB) CleanupOldData() error                                 { return nil }
func (d *pingDB) Ping() error                                           { return d.err }
func (d *pingDB) Close() error                                          { return nil }

func newTestService(t *testing.T, hub *fakeHub, db *pingDB) *HealthService {
	t.Helper()
	log := logger.NewLogger(nil, "grpc-test")
	log.SetOutput(io.Discard)
	return NewHealthService(&models.MConfig{}, log, hub, db)
}

func TestRefreshTracksHubAndDatabase(t *testing.T) {
	hub := &fakeHub{}
	db := &pingDB{}
	s := newTestService(t, hub, db)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Refresh())

	hub.running.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Refresh())

	db.err = errors.New("connection refused")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Refresh())
}

type budget struct{ spent bool }

func (b *budget) Exhausted() bool { return b.spent }

func TestRefreshReportsExhaustedBudget(t *testing.T) {
	hub := &fakeHub{}
	hub.running.Store(true)
	s := newTestService(t, hub, &pingDB{})

	cleanup := &budget{}
	s.Track(cleanup)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Refresh())

	cleanup.spent = true
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Refresh())

	cleanup.spent = false
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Refresh())
}

func TestHealthCheckOverGRPC(t *testing.T) {
	hub := &fakeHub{}
	hub.running.Store(true)
	s := newTestService(t, hub, &pingDB{})

	lis := bufconn.Listen(1 << 20)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	hub.running.Store(false)
	s.Refresh()
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

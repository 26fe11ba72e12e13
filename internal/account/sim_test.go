package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReserveCash(t *testing.T) {
	sim := NewSimulator()
	sim.SeedCash(1, 1000)

	reply, err := sim.ReserveCash(context.Background(), 1, 600, "USD", "r1", "100")
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, reply.Code)
	require.Equal(t, int64(400), sim.AvailableCash(1))

	reply, err = sim.ReserveCash(context.Background(), 1, 600, "USD", "r2", "101")
	require.NoError(t, err)
	require.Equal(t, ResultInsufficientFunds, reply.Code)
	require.Equal(t, int64(400), sim.AvailableCash(1))
}

func TestReserveCash_IdempotentPerReservationID(t *testing.T) {
	sim := NewSimulator()
	sim.SeedCash(1, 1000)

	for i := 0; i < 3; i++ {
		reply, err := sim.ReserveCash(context.Background(), 1, 600, "USD", "r1", "100")
		require.NoError(t, err)
		require.Equal(t, ResultSuccess, reply.Code)
	}
	// The hold was taken once.
	require.Equal(t, int64(400), sim.AvailableCash(1))
}

func TestReleaseCash(t *testing.T) {
	sim := NewSimulator()
	sim.SeedCash(1, 1000)

	_, err := sim.ReserveCash(context.Background(), 1, 600, "USD", "r1", "100")
	require.NoError(t, err)

	require.NoError(t, sim.ReleaseCash(context.Background(), 1, "r1"))
	require.Equal(t, int64(1000), sim.AvailableCash(1))

	// Releasing twice is a no-op.
	require.NoError(t, sim.ReleaseCash(context.Background(), 1, "r1"))
	require.Equal(t, int64(1000), sim.AvailableCash(1))

	require.Error(t, sim.ReleaseCash(context.Background(), 1, "unknown"))
}

func TestReserveAndReleasePosition(t *testing.T) {
	sim := NewSimulator()
	sim.SeedPosition(1, "AAPL", 100)

	reply, err := sim.ReservePosition(context.Background(), 1, "AAPL", 40, "r1", "100")
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, reply.Code)
	require.Equal(t, int64(60), sim.AvailablePosition(1, "AAPL"))

	reply, err = sim.ReservePosition(context.Background(), 1, "AAPL", 80, "r2", "101")
	require.NoError(t, err)
	require.Equal(t, ResultInsufficientPosition, reply.Code)

	require.NoError(t, sim.ReleasePosition(context.Background(), 1, "r1"))
	require.Equal(t, int64(100), sim.AvailablePosition(1, "AAPL"))
}

func TestContextCancellation(t *testing.T) {
	sim := NewSimulator()
	sim.SeedCash(1, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.ReserveCash(ctx, 1, 100, "USD", "r1", "100")
	require.Error(t, err)
}

package dfu_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/dfu"
	"github.com/XC-/dfu/sim"
)

func testConfig() *dfu.Config {
	cfg := dfu.DefaultConfig()
	cfg.Transfer.ResponseTimeout = time.Second
	cfg.Transfer.SilencePeriod = 5 * time.Millisecond
	cfg.Transfer.StallDuration = 400 * time.Millisecond
	cfg.Sim.InactivityTimeout = 200 * time.Millisecond
	return cfg
}

func testImage(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func newDriver(cfg *dfu.Config) (*dfu.Driver, *sim.Device) {
	dev := sim.NewDevice(cfg.Sim, nil)
	return &dfu.Driver{Dialer: dev, Resetter: dev, Config: cfg}, dev
}

func TestScenariosAgainstSimulator(t *testing.T) {
	for _, interval := range []uint16{0, 2} {
		for _, sc := range dfu.Scenarios() {
			cfg := testConfig()
			cfg.Transfer.ReceiptInterval = interval
			t.Run(sc.Name(), func(t *testing.T) {
				d, dev := newDriver(cfg)
				rep, err := d.Run(context.Background(), sc, testImage(100))
				require.NoError(t, err)
				assert.True(t, rep.Passed(), "receipt interval %d: %v", interval, rep.Err())
				assert.Equal(t, 0, rep.Errors())
				assert.NotEmpty(t, rep.RunID)
				assert.GreaterOrEqual(t, dev.Bootloader().Resets(), 1, "device left in bootloader")

				// The link is released, so the device accepts a new connection.
				l, err := dev.Dial(context.Background())
				require.NoError(t, err)
				l.Close()
			})
		}
	}
}

func TestValidTransfer(t *testing.T) {
	cfg := testConfig()
	dev := sim.NewDevice(cfg.Sim, nil)
	ctx := context.Background()
	bin := testImage(205)
	img, err := dfu.Segment(bin, dfu.PacketSize)
	require.NoError(t, err)

	link, err := dev.Dial(ctx)
	require.NoError(t, err)
	defer link.Close()
	pipes, err := link.Discover(ctx)
	require.NoError(t, err)

	c := dfu.NewController(link, pipes, dfu.WithConfig(cfg.Transfer))
	require.NoError(t, c.EnableNotifications(ctx))
	require.NoError(t, c.SetReceiptInterval(ctx, 3))
	require.NoError(t, c.Start(ctx, img.SizePacket, dfu.ResultSuccess))
	assert.Equal(t, dfu.StateReady, c.State())
	require.NoError(t, c.SendInit(ctx, img.CRCPacket))
	assert.Equal(t, dfu.StateAwaitingInit, c.State())
	require.NoError(t, c.BeginData(ctx))
	require.NoError(t, c.Stream(ctx, img.Packets))
	require.NoError(t, c.ReportSize(ctx, 205))
	require.NoError(t, c.Validate(ctx, dfu.ResultSuccess))
	assert.Equal(t, dfu.ResponseTo(dfu.OpValidate, dfu.ResultSuccess), c.LastResponse())
	require.NoError(t, c.Activate(ctx))

	assert.Equal(t, dfu.StateTerminal, c.State())
	assert.Equal(t, dfu.ResponseTo(dfu.OpValidate, dfu.ResultSuccess), c.LastResponse())
	assert.Equal(t, 1, dev.Bootloader().Activations())
	assert.True(t, bytes.Equal(bin, dev.Bootloader().Image()))
	assert.True(t, link.Notifications().Closed())
}

func TestRunFailureActivates(t *testing.T) {
	cfg := testConfig()
	cfg.Sim.MaxImageSize = 64
	d, dev := newDriver(cfg)

	rep, err := d.Run(context.Background(), dfu.Valid(), testImage(100))
	require.NoError(t, err)
	assert.False(t, rep.Passed())
	assert.Equal(t, 1, rep.Errors())

	var pe *dfu.ProtocolError
	require.True(t, errors.As(rep.Err(), &pe), "got %v", rep.Err())
	assert.Equal(t, dfu.ResultDataSizeExceedsLimit, pe.Got.Result)
	assert.Equal(t, 0, dev.Bootloader().Activations())
	assert.Equal(t, 1, dev.Bootloader().Resets())
}

func TestRunTransportFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Transfer.SendTries = 2
	d, dev := newDriver(cfg)
	dev.FailWrites(2)

	rep, err := d.Run(context.Background(), dfu.Valid(), testImage(100))
	require.NoError(t, err)
	assert.False(t, rep.Passed())
	var te *dfu.TransportError
	assert.True(t, errors.As(rep.Err(), &te), "got %v", rep.Err())
}

func TestRunRetriesTransientFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Transfer.SendTries = 3
	d, dev := newDriver(cfg)
	dev.FailWrites(2)

	rep, err := d.Run(context.Background(), dfu.Valid(), testImage(100))
	require.NoError(t, err)
	assert.True(t, rep.Passed(), "%v", rep.Err())
	assert.Equal(t, 1, dev.Bootloader().Activations())
}

func TestRunConnectFailure(t *testing.T) {
	cfg := testConfig()
	d, dev := newDriver(cfg)
	l, err := dev.Dial(context.Background())
	require.NoError(t, err)
	defer l.Close()

	_, err = d.Run(context.Background(), dfu.Valid(), testImage(100))
	assert.True(t, errors.Is(err, sim.ErrConnected), "got %v", err)
}

func TestRunAllMetrics(t *testing.T) {
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	d, _ := newDriver(cfg)
	d.Metrics = dfu.NewMetrics(reg)

	reports, err := d.RunAll(context.Background(), []dfu.Scenario{dfu.Valid(), dfu.InvalidCRC()}, testImage(100))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, rep := range reports {
		assert.True(t, rep.Passed(), "%s: %v", rep.Scenario, rep.Err())
	}

	n, err := testutil.GatherAndCount(reg, "dfu_scenario_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "dfu_image_bytes_sent_total" {
			assert.Equal(t, 200.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

package dfu

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// A Driver runs scenarios against devices reached through a Dialer: it
// connects, runs the scenario's setup and exchange, and disconnects. A
// failed run still tries to activate the device so it returns to its
// application.
type Driver struct {
	Dialer   Dialer
	Resetter Resetter
	Config   *Config
	Log      logrus.FieldLogger
	Metrics  *Metrics
}

// Run executes sc with the firmware image bin. The returned error covers
// failures to reach the device; the scenario's own outcome is in the Report.
func (d *Driver) Run(ctx context.Context, sc Scenario, bin []byte) (*Report, error) {
	cfg := d.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := d.Log
	if log == nil {
		log = discardLogger()
	}
	id := ulid.Make().String()
	log = log.WithFields(logrus.Fields{"run": id, "scenario": sc.Name()})

	img, err := Segment(bin, cfg.Transfer.PacketSize)
	if err != nil {
		return nil, err
	}
	link, err := d.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer link.Close()

	pipes, err := link.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover DFU service: %w", err)
	}

	ctrl := NewController(link, pipes, WithConfig(cfg.Transfer), WithLogger(log), WithMetrics(d.Metrics))
	rep := &Report{RunID: id, Scenario: sc.Name()}
	s := &Session{
		RunID:  id,
		Image:  img,
		Ctrl:   ctrl,
		Config: cfg.Transfer,
		Device: d.Resetter,
		Log:    log,
		Report: rep,
	}

	log.WithField("size", img.Size()).Info("scenario started")
	err = sc.Setup(ctx, s)
	if err == nil {
		err = sc.Run(ctx, s)
	}
	if err != nil {
		if rep.Errors() == 0 {
			rep.add(Step{Name: sc.Name(), Err: err})
		}
		d.cleanup(ctx, s)
	}

	d.Metrics.scenarioDone(sc.Name(), rep.Passed())
	if rep.Passed() {
		log.Info("scenario passed")
	} else {
		log.WithField("errors", rep.Errors()).Error("scenario failed")
	}
	return rep, nil
}

// cleanup activates the device after a failed run.
func (d *Driver) cleanup(ctx context.Context, s *Session) {
	if s.Ctrl.State() == StateTerminal {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Config.ResponseTimeout)
	defer cancel()
	if err := s.Ctrl.Activate(ctx); err != nil {
		s.Log.WithError(err).Warn("cleanup activation failed")
	}
}

// RunAll runs every scenario in order and returns the reports.
func (d *Driver) RunAll(ctx context.Context, scenarios []Scenario, bin []byte) ([]*Report, error) {
	var reports []*Report
	for _, sc := range scenarios {
		rep, err := d.Run(ctx, sc, bin)
		if err != nil {
			return reports, fmt.Errorf("%s: %w", sc.Name(), err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

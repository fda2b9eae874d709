package widget

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"countdown/internal/capture"
	"countdown/internal/config"
	appLog "countdown/internal/log"
)

// CaptureFunc renders the widget page to a PNG.
type CaptureFunc func(ctx context.Context, opts capture.Options) error

// Refresher rebuilds the widget snapshot on a cron schedule and, when
// enabled, captures the widget page to a PNG afterwards.
type Refresher struct {
	src      Source
	cronSpec string
	schedule cron.Schedule
	loc      *time.Location
	widget   config.WidgetConfig
	auth     *config.BasicAuthConfig
	// captureURL is used when widget.capture.url is empty.
	captureURL string
	capture    CaptureFunc
	now        func() time.Time

	mu   sync.RWMutex
	last *Snapshot
}

// NewRefresher validates the refresh schedule from cfg. captureURL is the
// local /widget address used when the config does not name one.
func NewRefresher(src Source, cfg *config.Config, captureURL string) (*Refresher, error) {
	schedule, err := cron.ParseStandard(cfg.RefreshCron)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Refresher{
		src:        src,
		cronSpec:   cfg.RefreshCron,
		schedule:   schedule,
		loc:        loc,
		widget:     cfg.Widget,
		auth:       cfg.BasicAuth,
		captureURL: captureURL,
		capture:    capture.CaptureWidgetPNG,
		now:        time.Now,
	}, nil
}

// RunOnce builds a snapshot, stores it in memory and on disk (when a
// snapshot path is configured) and triggers a capture if enabled. Capture
// failures are logged; they do not fail the refresh.
func (r *Refresher) RunOnce(ctx context.Context) (Snapshot, error) {
	now := r.now().In(r.loc)
	snap, err := Build(ctx, r.src, r.widget.EventID, now, r.schedule.Next(now))
	if err != nil {
		return Snapshot{}, err
	}

	r.mu.Lock()
	r.last = &snap
	r.mu.Unlock()

	if r.widget.SnapshotPath != "" {
		if err := WriteSnapshot(r.widget.SnapshotPath, snap); err != nil {
			return snap, err
		}
	}

	if r.widget.Capture.Enabled {
		r.runCapture(ctx)
	}

	id := ""
	if snap.Event != nil {
		id = snap.Event.ID
	}
	appLog.Debug("widget refreshed", "event_id", id, "next_refresh", snap.NextRefresh.Format(time.RFC3339))
	return snap, nil
}

func (r *Refresher) runCapture(ctx context.Context) {
	c := r.widget.Capture
	url := c.URL
	if url == "" {
		url = r.captureURL
	}
	opts := capture.Options{
		URL:        url,
		OutputPath: c.OutputPath,
		Width:      c.Width,
		Height:     c.Height,
		Timeout:    c.Timeout,
	}
	if r.auth != nil {
		opts.Username = r.auth.Username
		opts.Password = r.auth.Password
	}
	if err := r.capture(ctx, opts); err != nil {
		appLog.Error("widget capture failed", err, "url", url)
	}
}

// Last returns the most recent snapshot, if any.
func (r *Refresher) Last() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Snapshot{}, false
	}
	return *r.last, true
}

// Start runs RunOnce immediately and then on every schedule tick until ctx
// is cancelled. The returned channel is closed once the scheduler stopped
// and any running refresh finished.
func (r *Refresher) Start(ctx context.Context) (<-chan struct{}, error) {
	c := cron.New(cron.WithLocation(r.loc))
	_, err := c.AddFunc(r.cronSpec, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			appLog.Error("widget refresh failed", err)
		}
	})
	if err != nil {
		return nil, err
	}

	if _, err := r.RunOnce(ctx); err != nil {
		appLog.Error("initial widget refresh failed", err)
	}

	c.Start()
	appLog.Info("widget refresher started", "schedule", r.cronSpec, "timezone", r.loc.String())

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("widget refresher stopped")
		close(done)
	}()
	return done, nil
}

package service

import (
	"context"
	"log"
	"time"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
)

// Archiver periodically stamps long-expired credentials as archived.
// Credentials are never deleted — audit rows keep referencing them — but
// archived ones drop out of the default dashboard view.  It runs as a
// background goroutine and is safe to stop via its context or Stop.
//
// A retention of 0 disables archival entirely.
type Archiver struct {
	creds     store.CredentialStore
	retention time.Duration
	interval  time.Duration
	logger    *log.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

type ArchiverConfig struct {
	// RetentionDays is how long after expiry a credential stays
	// unarchived.  0 means never archive (archiver will not start).
	RetentionDays int

	// IntervalHours is how often the sweep runs.  Defaults to 6.
	IntervalHours int
}

// NewArchiver creates an archiver but does not start it.
func NewArchiver(creds store.CredentialStore, cfg ArchiverConfig, logger *log.Logger) *Archiver {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &Archiver{
		creds:     creds,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins the background sweep loop: once immediately, then on the
// configured interval, until ctx is cancelled or Stop is called.
func (a *Archiver) Start(ctx context.Context) {
	if a.retention <= 0 {
		a.logger.Printf("credential archiver disabled (retention=0)")
		close(a.done)
		return
	}

	ctx, a.cancel = context.WithCancel(ctx)

	go a.loop(ctx)

	a.logger.Printf("credential archiver started (retention=%dd, interval=%dh)",
		int(a.retention.Hours()/24), int(a.interval.Hours()))
}

// Stop signals the archiver to exit and waits for it to finish.
func (a *Archiver) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	<-a.done
}

func (a *Archiver) loop(ctx context.Context) {
	defer close(a.done)

	a.sweep(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *Archiver) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-a.retention)
	archived, err := a.creds.ArchiveExpiredBefore(ctx, cutoff)
	if err != nil {
		a.logger.Printf("credential archive error: %v", err)
		return
	}
	if archived > 0 {
		a.logger.Printf("credential archive: marked %d credentials expired before %s",
			archived, cutoff.Format(time.RFC3339))
	}
}

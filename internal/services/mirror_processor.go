package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/sheets"
)

// LedgerSource yields the full ledger in list order. *LedgerService
// implements it.
type LedgerSource interface {
	Export(ctx context.Context) ([]core.Transaction, error)
}

// MirrorProcessorConfig holds configuration for the mirror processor
type MirrorProcessorConfig struct {
	// Interval is how often a full resync runs regardless of events (default: 5m)
	Interval time.Duration
}

func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{Interval: 5 * time.Minute}
}

// MirrorStats describes what the processor has done so far.
type MirrorStats struct {
	Syncs     int64     `json:"syncs"`
	Skipped   int64     `json:"skipped"`
	Failures  int64     `json:"failures"`
	LastSync  time.Time `json:"last_sync"`
	LastError string    `json:"last_error,omitempty"`
}

// MirrorProcessor keeps a spreadsheet copy of the ledger. Every sync reads
// the whole ledger and rewrites the sheet only when it differs.
type MirrorProcessor struct {
	source LedgerSource
	mirror sheets.LedgerMirror
	config MirrorProcessorConfig
	logger *log.Logger

	syncMu  sync.Mutex
	trigger chan struct{}

	statsMu sync.Mutex
	stats   MirrorStats

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorProcessor(source LedgerSource, mirror sheets.LedgerMirror, config MirrorProcessorConfig, logger *log.Logger) *MirrorProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultMirrorProcessorConfig().Interval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorProcessor{
		source:  source,
		mirror:  mirror,
		config:  config,
		logger:  logger.WithComponent(log.ComponentSheets),
		trigger: make(chan struct{}, 1),
	}
}

// Sync mirrors the ledger once. It reports whether the sheet was rewritten.
func (p *MirrorProcessor) Sync(ctx context.Context) (bool, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	changed, err := p.sync(ctx)
	p.record(changed, err)
	return changed, err
}

func (p *MirrorProcessor) sync(ctx context.Context) (bool, error) {
	txs, err := p.source.Export(ctx)
	if err != nil {
		return false, fmt.Errorf("read ledger: %w", err)
	}

	current, err := p.mirror.ReadLedger(ctx)
	if err != nil {
		// An unreadable sheet is rewritten from scratch.
		p.logger.WarnContext(ctx, "Mirror unreadable, rewriting", log.FieldError, err)
	} else if sameLedger(current, txs) {
		p.logger.DebugContext(ctx, "Mirror up to date", log.FieldCount, len(txs))
		return false, nil
	}

	ref, err := p.mirror.ReplaceLedger(ctx, txs)
	if err != nil {
		return false, fmt.Errorf("replace mirror: %w", err)
	}
	p.logger.InfoContext(ctx, "Ledger mirrored", "range", ref, log.FieldCount, len(txs))
	return true, nil
}

func (p *MirrorProcessor) record(changed bool, err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	switch {
	case err != nil:
		p.stats.Failures++
		p.stats.LastError = err.Error()
	case changed:
		p.stats.Syncs++
		p.stats.LastSync = time.Now()
		p.stats.LastError = ""
	default:
		p.stats.Skipped++
		p.stats.LastSync = time.Now()
		p.stats.LastError = ""
	}
}

func (p *MirrorProcessor) Stats() MirrorStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// Trigger asks the running loop for a sync. Requests made while one is
// pending collapse into it.
func (p *MirrorProcessor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Publish lets the processor stand in for a broker: every ledger event
// triggers a sync.
func (p *MirrorProcessor) Publish(_ context.Context, _ amqp.LedgerEvent) error {
	p.Trigger()
	return nil
}

// Run syncs immediately, then on every trigger and every interval, until
// ctx is done.
func (p *MirrorProcessor) Run(ctx context.Context) error {
	return p.loop(ctx, nil)
}

// Start runs the loop in the background. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		_ = p.loop(ctx, p.stopCh)
	}()

	p.logger.InfoContext(ctx, "Mirror processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it, or for ctx.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Mirror processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}
}

func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) loop(ctx context.Context, stopCh <-chan struct{}) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.syncLogged(ctx)
	for {
		select {
		case <-stopCh:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.syncLogged(ctx)
		case <-p.trigger:
			p.syncLogged(ctx)
		}
	}
}

func (p *MirrorProcessor) syncLogged(ctx context.Context) {
	if _, err := p.Sync(ctx); err != nil && ctx.Err() == nil {
		p.logger.ErrorContext(ctx, "Mirror sync failed", log.FieldError, err)
	}
}

func sameLedger(a, b []core.Transaction) bool {
	return slices.EqualFunc(a, b, func(x, y core.Transaction) bool {
		return x.ID == y.ID &&
			x.Type == y.Type &&
			x.Amount == y.Amount &&
			x.Category == y.Category &&
			x.Source == y.Source &&
			x.Description == y.Description &&
			x.Date.String() == y.Date.String() &&
			x.Month == y.Month
	})
}

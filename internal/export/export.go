// Package export writes the ledger out of the application: to a JSON file
// chosen by the user, or into the configured Google Sheet.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/log"
)

const (
	TargetFile   = "file"
	TargetSheets = "sheets"
)

var (
	ErrSheetsDisabled = errors.New("sheets export is not configured")
	ErrUnknownTarget  = errors.New("unknown export target")
)

// Request selects the export destination. A nil Path means "use the
// suggested name"; an empty Path means the user backed out of the choice.
type Request struct {
	Target string  `json:"target"`
	Path   *string `json:"path"`
}

// Result reports the outcome. Canceled is set, with Success false and no
// error, when no destination was chosen.
type Result struct {
	Success  bool   `json:"success"`
	Canceled bool   `json:"canceled"`
	Location string `json:"location,omitempty"`
	Count    int    `json:"count"`
}

// Source yields the ledger to export.
type Source interface {
	Export(ctx context.Context) ([]core.Transaction, error)
}

// PathChooser picks the destination file. Returning "" cancels the export.
type PathChooser interface {
	ChoosePath(ctx context.Context, suggested string) (string, error)
}

type PathChooserFunc func(ctx context.Context, suggested string) (string, error)

func (f PathChooserFunc) ChoosePath(ctx context.Context, suggested string) (string, error) {
	return f(ctx, suggested)
}

// LedgerWriter replaces the mirrored ledger in an external spreadsheet.
type LedgerWriter interface {
	ReplaceLedger(ctx context.Context, txs []core.Transaction) (string, error)
}

type Exporter struct {
	source Source
	dir    string
	sheets LedgerWriter
	now    func() time.Time
	logger *log.Logger

	// ChooserFor builds the path chooser of one request.
	ChooserFor func(Request) PathChooser
}

// NewExporter writes files under dir. sheets may be nil.
func NewExporter(source Source, dir string, sheets LedgerWriter, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Discard()
	}
	e := &Exporter{
		source: source,
		dir:    dir,
		sheets: sheets,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentExport),
	}
	e.ChooserFor = func(req Request) PathChooser { return DirChooser{Dir: e.dir, Requested: req.Path} }
	return e
}

// WithClock replaces the clock used for the suggested file name.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// SuggestedName is the default file name for an export made on day t.
func SuggestedName(t time.Time) string {
	return fmt.Sprintf("MoneyManager_%s.json", t.Format("2006-01-02"))
}

func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	switch strings.ToLower(strings.TrimSpace(req.Target)) {
	case "", TargetFile:
		return e.exportFile(ctx, e.ChooserFor(req))
	case TargetSheets:
		return e.exportSheets(ctx)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTarget, req.Target)
	}
}

func (e *Exporter) exportFile(ctx context.Context, chooser PathChooser) (Result, error) {
	path, err := chooser.ChoosePath(ctx, SuggestedName(e.now()))
	if err != nil {
		return Result{}, fmt.Errorf("choose export path: %w", err)
	}
	if path == "" {
		e.logger.InfoContext(ctx, "Export canceled")
		return Result{Canceled: true}, nil
	}

	txs, err := e.source.Export(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := WriteFile(path, txs); err != nil {
		return Result{}, err
	}

	e.logger.InfoContext(ctx, "Ledger exported",
		log.FieldExportPath, path,
		log.FieldCount, len(txs))
	return Result{Success: true, Location: path, Count: len(txs)}, nil
}

func (e *Exporter) exportSheets(ctx context.Context) (Result, error) {
	if e.sheets == nil {
		return Result{}, ErrSheetsDisabled
	}
	txs, err := e.source.Export(ctx)
	if err != nil {
		return Result{}, err
	}
	ref, err := e.sheets.ReplaceLedger(ctx, txs)
	if err != nil {
		return Result{}, fmt.Errorf("write ledger to sheets: %w", err)
	}
	e.logger.InfoContext(ctx, "Ledger exported to sheets", "range", ref, log.FieldCount, len(txs))
	return Result{Success: true, Location: ref, Count: len(txs)}, nil
}

// Encode writes txs as a 2-space indented JSON array. An empty ledger is [].
func Encode(w io.Writer, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(txs)
}

// WriteFile replaces path atomically: the document goes to a temp file in
// the same directory which is then renamed over path.
func WriteFile(path string, txs []core.Transaction) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, txs); err != nil {
		tmp.Close()
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}

package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"moneymanager/internal/core"
	"moneymanager/internal/ledger/ledgertest"
	"moneymanager/internal/ledger/memory"
)

type fakeSheets struct {
	got []core.Transaction
	err error
}

func (f *fakeSheets) ReplaceLedger(_ context.Context, txs []core.Transaction) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.got = txs
	return "Ledger!A1:H3", nil
}

// storeSource exposes a store's ledger the way the service does.
type storeSource struct{ *memory.Store }

func (s storeSource) Export(ctx context.Context) ([]core.Transaction, error) {
	return s.ExportTransactions(ctx)
}

func seededStore(t *testing.T) storeSource {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	_, err := s.CreateTransaction(ctx, ledgertest.Input(t, core.Income, "5000", "راتب", "شركة", "2024-03-01"))
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, ledgertest.Input(t, core.Expense, "12.5", "طعام", "", "2024-03-02"))
	require.NoError(t, err)
	return storeSource{s}
}

func fixedClock() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }

func strPtr(s string) *string { return &s }

func TestExport_DefaultFileName(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(seededStore(t), dir, nil, nil).WithClock(fixedClock)

	res, err := e.Export(context.Background(), Request{})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Canceled)
	require.Equal(t, 2, res.Count)
	require.Equal(t, filepath.Join(dir, "MoneyManager_2024-03-15.json"), res.Location)

	raw, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "[\n  {\n    \"id\": 2,"), string(raw))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "2024-03-02", decoded[0]["date"])
	require.Equal(t, 12.5, decoded[0]["amount"])
	require.Equal(t, "2024-03", decoded[1]["month"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not be left behind")
}

func TestExport_CanceledChoiceWritesNothing(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(seededStore(t), dir, nil, nil)

	res, err := e.Export(context.Background(), Request{Path: strPtr("  ")})
	require.NoError(t, err)
	require.Equal(t, Result{Canceled: true}, res)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExport_ChooserError(t *testing.T) {
	e := NewExporter(seededStore(t), t.TempDir(), nil, nil)
	e.ChooserFor = func(Request) PathChooser {
		return PathChooserFunc(func(context.Context, string) (string, error) {
			return "", errors.New("dialog crashed")
		})
	}
	res, err := e.Export(context.Background(), Request{})
	require.Error(t, err)
	require.False(t, res.Success)
	require.False(t, res.Canceled)
}

func TestExport_OverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	e := NewExporter(seededStore(t), dir, nil, nil)
	res, err := e.Export(context.Background(), Request{Path: strPtr("ledger")})
	require.NoError(t, err)
	require.Equal(t, path, res.Location)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEqual(t, "old", string(raw))
}

func TestExport_EmptyLedgerIsEmptyArray(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(storeSource{memory.New()}, dir, nil, nil)
	res, err := e.Export(context.Background(), Request{Path: strPtr("empty.json")})
	require.NoError(t, err)

	raw, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(raw))
}

func TestExport_Sheets(t *testing.T) {
	e := NewExporter(seededStore(t), t.TempDir(), nil, nil)
	_, err := e.Export(context.Background(), Request{Target: TargetSheets})
	require.ErrorIs(t, err, ErrSheetsDisabled)

	sink := &fakeSheets{}
	e = NewExporter(seededStore(t), t.TempDir(), sink, nil)
	res, err := e.Export(context.Background(), Request{Target: "Sheets"})
	require.NoError(t, err)
	require.Equal(t, Result{Success: true, Location: "Ledger!A1:H3", Count: 2}, res)
	require.Len(t, sink.got, 2)

	_, err = e.Export(context.Background(), Request{Target: "ftp"})
	require.ErrorIs(t, err, ErrUnknownTarget)
}

func TestDirChooser(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		requested *string
		want      string
	}{
		{nil, "/exports/MoneyManager_2024-03-15.json"},
		{strPtr("mine.json"), "/exports/mine.json"},
		{strPtr("mine"), "/exports/mine.json"},
		{strPtr("../../etc/passwd"), "/exports/passwd.json"},
		{strPtr(""), ""},
		{strPtr("/"), ""},
	}
	for _, tc := range cases {
		got, err := DirChooser{Dir: "/exports", Requested: tc.requested}.ChoosePath(ctx, "MoneyManager_2024-03-15.json")
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

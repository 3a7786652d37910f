package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/finstate/internal/model"
)

const docA = `{
  "StatementsOfIncome": {
    "Revenues": [
      {"period": "2021", "value": 365817000000},
      {"period": "2020", "value": 274515000000}
    ],
    "NetIncomeLoss": [
      {"period": "2021", "value": 94680000000},
      {"period": "2020", "value": 57411000000}
    ]
  },
  "BalanceSheets": {
    "Assets": [
      {"date": "2021", "value": 351002000000},
      {"date": "2020", "value": 323888000000}
    ]
  },
  "StatementsOfCashFlows": {
    "NetCashProvidedByOperatingActivities": [
      {"period": "2021", "value": 104038000000},
      {"period": "2020", "value": 80674000000}
    ]
  }
}`

const docB = `{
  "StatementsOfIncome": {
    "Revenues": [
      {"period": "2021", "value": 100}
    ]
  }
}`

// writeDocs creates the named source files in a temp directory
func writeDocs(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("<html><body>"+name+"</body></html>"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	return dir, paths
}

func testConfig(endpoint, out string, docs ...string) *model.Config {
	cfg := model.DefaultConfig()
	cfg.API.Endpoint = endpoint
	cfg.API.Token = "secret"
	cfg.API.Timeout = 0
	cfg.Pacing.Interval = 0
	cfg.Output.Dir = out
	for _, doc := range docs {
		cfg.Documents = append(cfg.Documents, model.DocumentSpec{
			Path:         doc,
			DocumentMeta: model.DocumentMeta{URL: "https://filings.test/" + doc},
		})
	}
	return cfg
}

func newTestPipeline(t *testing.T, cfg *model.Config) *Pipeline {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	p, err := NewPipeline(cfg, logger)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func TestRun_CombinesAcrossDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("htm-url") {
		case "https://filings.test/a.html":
			_, _ = w.Write([]byte(docA))
		case "https://filings.test/b.html":
			_, _ = w.Write([]byte(docB))
		default:
			http.Error(w, "unknown document", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	_, paths := writeDocs(t, "a.html", "b.html")
	out := t.TempDir()
	p := newTestPipeline(t, testConfig(srv.URL, out, "a.html", "b.html"))

	report, err := p.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Attempted != 2 || report.Succeeded != 2 || report.Failed() != 0 {
		t.Errorf("report = %d attempted, %d succeeded, %d failed", report.Attempted, report.Succeeded, report.Failed())
	}
	wantExtracted := map[model.StatementKind]int{
		model.StatementIncome:   2,
		model.StatementBalance:  1,
		model.StatementCashFlow: 1,
	}
	for kind, want := range wantExtracted {
		if got := report.Extracted[kind.String()]; got != want {
			t.Errorf("extracted[%s] = %d, want %d", kind, got, want)
		}
	}

	income := readCSV(t, filepath.Join(out, "combined_income_statement.csv"))
	wantIncome := [][]string{
		{"line_item", "2021", "2020", "source_file"},
		{"Revenues", "365817000000", "274515000000", "a.html"},
		{"NetIncomeLoss", "94680000000", "57411000000", "a.html"},
		{"Revenues", "100", "", "b.html"},
	}
	if !reflect.DeepEqual(income, wantIncome) {
		t.Errorf("income CSV = %v, want %v", income, wantIncome)
	}

	for _, name := range []string{"combined_balance_sheet.csv", "combined_cash_flow.csv"} {
		records := readCSV(t, filepath.Join(out, name))
		if len(records) != 2 {
			t.Fatalf("%s has %d records, want header + 1 row", name, len(records))
		}
		for _, rec := range records[1:] {
			if src := rec[len(rec)-1]; src != "a.html" {
				t.Errorf("%s row from %q, want only a.html", name, src)
			}
		}
	}

	if report.Strategies["reference"] != 2 {
		t.Errorf("strategies = %v, want two reference conversions", report.Strategies)
	}

	if len(report.Outputs) != 3 {
		t.Errorf("outputs = %v, want three CSV files", report.Outputs)
	}
}

func TestRun_SkipsKindWithoutTables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(docB))
	}))
	defer srv.Close()

	_, paths := writeDocs(t, "b.html")
	out := t.TempDir()
	p := newTestPipeline(t, testConfig(srv.URL, out, "b.html"))

	if _, err := p.Run(context.Background(), paths); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(out, "combined_income_statement.csv")); err != nil {
		t.Errorf("income output missing: %v", err)
	}
	for _, name := range []string{"combined_balance_sheet.csv", "combined_cash_flow.csv"} {
		if _, err := os.Stat(filepath.Join(out, name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should not be written, stat err = %v", name, err)
		}
	}
}

func TestRun_FallsBackToContent(t *testing.T) {
	var gets, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
			_, _ = w.Write([]byte(docB))
			return
		}
		gets.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, paths := writeDocs(t, "b.html")
	p := newTestPipeline(t, testConfig(srv.URL, t.TempDir(), "b.html"))

	report, err := p.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", report.Succeeded)
	}
	if report.Strategies["content"] != 1 || report.Strategies["reference"] != 0 {
		t.Errorf("strategies = %v, want one content conversion", report.Strategies)
	}
	if gets.Load() != 1 || posts.Load() != 1 {
		t.Errorf("requests = %d GET, %d POST, want one of each", gets.Load(), posts.Load())
	}
}

func TestRun_FallbackNone(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, paths := writeDocs(t, "b.html")
	out := t.TempDir()
	cfg := testConfig(srv.URL, out, "b.html")
	cfg.Fallback = model.FallbackNone
	p := newTestPipeline(t, cfg)

	report, err := p.Run(context.Background(), paths)
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("err = %v, want ErrNoDocuments", err)
	}
	if report.Failures["status"] != 1 {
		t.Errorf("failures = %v, want one status failure", report.Failures)
	}
	if posts.Load() != 0 {
		t.Errorf("content strategy ran %d times with fallback disabled", posts.Load())
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Errorf("output dir has %d entries, want none", len(entries))
	}
}

func TestRun_UnreadableDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(docA))
	}))
	defer srv.Close()

	dir, paths := writeDocs(t, "a.html")
	missing := filepath.Join(dir, "missing.html")
	p := newTestPipeline(t, testConfig(srv.URL, t.TempDir(), "a.html"))

	report, err := p.Run(context.Background(), append([]string{missing}, paths...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Attempted != 2 || report.Succeeded != 1 {
		t.Errorf("report = %d attempted, %d succeeded", report.Attempted, report.Succeeded)
	}
	if report.Failures["io"] != 1 {
		t.Errorf("failures = %v, want one io failure", report.Failures)
	}
	if len(report.FailedDocs) != 1 || report.FailedDocs[0].Document != "missing.html" {
		t.Errorf("failed docs = %+v", report.FailedDocs)
	}
}

type stubPacer struct {
	calls int
	err   error
}

func (s *stubPacer) Between(ctx context.Context) error {
	s.calls++
	return s.err
}

func TestRun_PacesBetweenDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(docB))
	}))
	defer srv.Close()

	_, paths := writeDocs(t, "a.html", "b.html", "c.html")
	p := newTestPipeline(t, testConfig(srv.URL, t.TempDir(), "a.html", "b.html", "c.html"))
	pacer := &stubPacer{}
	p.pacer = pacer

	if _, err := p.Run(context.Background(), paths); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pacer.calls != 2 {
		t.Errorf("pacer called %d times, want 2", pacer.calls)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(docB))
	}))
	defer srv.Close()

	_, paths := writeDocs(t, "a.html", "b.html")
	p := newTestPipeline(t, testConfig(srv.URL, t.TempDir(), "a.html", "b.html"))
	p.pacer = &stubPacer{err: context.Canceled}

	report, err := p.Run(context.Background(), paths)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if report.Attempted != 1 || report.Succeeded != 1 {
		t.Errorf("report = %d attempted, %d succeeded", report.Attempted, report.Succeeded)
	}
}

func TestRun_InterruptedDuringLastDocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
			_, _ = w.Write([]byte(docB))
			return
		}
		if r.URL.Query().Get("htm-url") == "https://filings.test/a.html" {
			_, _ = w.Write([]byte(docA))
			return
		}
		cancel()
		<-r.Context().Done()
	}))
	defer srv.Close()

	_, paths := writeDocs(t, "a.html", "b.html")
	out := t.TempDir()
	p := newTestPipeline(t, testConfig(srv.URL, out, "a.html", "b.html"))

	report, err := p.Run(ctx, paths)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if report.Attempted != 2 || report.Succeeded != 1 {
		t.Errorf("report = %d attempted, %d succeeded", report.Attempted, report.Succeeded)
	}
	if report.Failures["transport"] != 0 {
		t.Errorf("failures = %v, interruption counted as transport", report.Failures)
	}
	if report.Failures["interrupted"] != 1 {
		t.Errorf("failures = %v, want one interrupted document", report.Failures)
	}
	if posts.Load() != 0 {
		t.Errorf("content fallback ran %d times after cancellation", posts.Load())
	}
	if _, err := os.Stat(filepath.Join(out, "combined_income_statement.csv")); err != nil {
		t.Errorf("tables of converted documents not written: %v", err)
	}
}

func TestRun_WritesWorkbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(docA))
	}))
	defer srv.Close()

	_, paths := writeDocs(t, "a.html")
	out := t.TempDir()
	cfg := testConfig(srv.URL, out, "a.html")
	cfg.Output.XLSX = true
	p := newTestPipeline(t, cfg)

	if _, err := p.Run(context.Background(), paths); err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := excelize.OpenFile(filepath.Join(out, WorkbookName))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	want := []string{"Income Statement", "Balance Sheet", "Cash Flow"}
	if got := f.GetSheetList(); !reflect.DeepEqual(got, want) {
		t.Errorf("sheets = %v, want %v", got, want)
	}
	if v, _ := f.GetCellValue("Balance Sheet", "A2"); v != "Assets" {
		t.Errorf("Balance Sheet A2 = %q, want Assets", v)
	}
	if v, _ := f.GetCellValue("Income Statement", "D1"); v != "source_file" {
		t.Errorf("Income Statement D1 = %q, want source_file", v)
	}
}

func TestNewPipeline_RejectsUnknownFallback(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1", t.TempDir())
	cfg.Fallback = "retry"
	logger, _ := logtest.NewNullLogger()
	if _, err := NewPipeline(cfg, logger); err == nil {
		t.Fatal("expected error for unknown fallback")
	}
}

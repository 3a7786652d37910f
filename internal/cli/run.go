package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/finstate/internal/logger"
	"github.com/ppiankov/finstate/internal/model"
	"github.com/ppiankov/finstate/internal/pipeline"
	"github.com/ppiankov/finstate/internal/worker"
)

var (
	listFile string
	noCache  bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [documents...]",
	Short: "Convert documents and write combined statement tables",
	Long: `Run converts every document in order, pausing between documents, then
writes one combined CSV per statement kind to the output directory:

  combined_income_statement.csv
  combined_balance_sheet.csv
  combined_cash_flow.csv

Documents come from the arguments, the documents section of the config file
and the --list file, in that order. A statement kind with no tables produces
no file.

Example:
  finstate run aapl_10k_2021.html aapl_10k_2020.html
  finstate run --list filings.txt --out ./combined --xlsx
  SEC_API_TOKEN=... finstate run --fallback none filing.html`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&listFile, "list", "", "file with one document path per line")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the in-run response memo")

	runCmd.Flags().String("out", ".", "output directory for combined tables")
	runCmd.Flags().Duration("interval", 2*time.Second, "pause between documents")
	runCmd.Flags().Duration("timeout", 2*time.Minute, "timeout for each conversion request")
	runCmd.Flags().String("fallback", string(model.FallbackContent), "after a failed reference conversion: content or none")
	runCmd.Flags().Bool("xlsx", false, "also write "+pipeline.WorkbookName)
	runCmd.Flags().String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	runCmd.Flags().String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	bindings := map[string]string{
		"output.dir":       "out",
		"pacing.interval":  "interval",
		"api.timeout":      "timeout",
		"fallback":         "fallback",
		"output.xlsx":      "xlsx",
		"http.http_proxy":  "http-proxy",
		"http.https_proxy": "https-proxy",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, runCmd.Flags().Lookup(flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	docs, err := collectDocuments(args, cfg, listFile)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents given (pass paths, --list, or configure documents)")
	}
	if cfg.API.Token == "" {
		return fmt.Errorf("conversion API token not set (api.token, FINSTATE_API_TOKEN or SEC_API_TOKEN)")
	}

	log, closer, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(out, "  finstate\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "  Documents:    %d\n", len(docs))
	fmt.Fprintf(out, "  Endpoint:     %s\n", cfg.API.Endpoint)
	fmt.Fprintf(out, "  Fallback:     %s\n", cfg.Fallback)
	fmt.Fprintf(out, "  Interval:     %v\n", cfg.Pacing.Interval)
	fmt.Fprintf(out, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(out, "\n")

	p, err := pipeline.NewPipeline(cfg, log)
	if err != nil {
		return err
	}

	report, runErr := p.Run(ctx, docs)
	printSummary(out, report)

	if errors.Is(runErr, pipeline.ErrNoDocuments) {
		return fmt.Errorf("none of %d documents could be converted: %w", report.Attempted, runErr)
	}
	return runErr
}

// collectDocuments merges argument, configured and listed documents in that
// order, dropping repeats
func collectDocuments(args []string, cfg *model.Config, list string) ([]string, error) {
	docs := append([]string{}, args...)
	for _, spec := range cfg.Documents {
		if spec.Path != "" {
			docs = append(docs, spec.Path)
		}
	}
	if list != "" {
		listed, err := worker.ReadDocumentList(list)
		if err != nil {
			return nil, err
		}
		docs = append(docs, listed...)
	}
	return worker.Dedupe(docs), nil
}

func printSummary(out io.Writer, report *model.RunReport) {
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(out, "  Run Complete\n")
	fmt.Fprintf(out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "  Attempted:  %d\n", report.Attempted)
	fmt.Fprintf(out, "  Succeeded:  %d\n", report.Succeeded)
	fmt.Fprintf(out, "  Failed:     %d\n", report.Failed())
	for _, strategy := range []string{"reference", "content"} {
		if n := report.Strategies[strategy]; n > 0 {
			fmt.Fprintf(out, "    by %-10s %d\n", strategy+":", n)
		}
	}

	kinds := make([]string, 0, len(report.Failures))
	for kind := range report.Failures {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "    %-10s %d\n", kind+":", report.Failures[kind])
	}

	fmt.Fprintf(out, "\n")
	for _, kind := range model.StatementKinds {
		fmt.Fprintf(out, "  %-21s %d tables\n", kind.String()+":", report.Extracted[kind.String()])
	}

	fmt.Fprintf(out, "\n")
	for _, path := range report.Outputs {
		fmt.Fprintf(out, "✓ %s\n", path)
	}
	for _, failed := range report.FailedDocs {
		fmt.Fprintf(out, "✗ %s: %s\n", failed.Document, failed.Reason)
	}
	fmt.Fprintf(out, "\n")
}

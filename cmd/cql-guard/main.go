package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"cql-guard/internal/config"
	"cql-guard/internal/detector"
	"cql-guard/internal/evaluation"
	"cql-guard/internal/extractor"
	"cql-guard/internal/log"
	"cql-guard/internal/model"
	"cql-guard/internal/reporter"
	"cql-guard/internal/scanner"
)

var (
	srcPath    string
	configPath string
	reportFmt  string
	datasetDir string
	verbose    bool
	excludes   []string
)

var rootCmd = &cobra.Command{
	Use:   "cql-guard",
	Short: "A static analysis tool for CQL access anti-patterns",
	Long: `cql-guard scans source code for CQL queries and checks them for
common access anti-patterns: full-cluster scans via ALLOW FILTERING,
queries without partition key usage, oversized batches, and statements
executed without preparation. The evaluate subcommand scores the
detectors against a hand-annotated ground-truth dataset.`,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan source code and report detected issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, _, err := runDetection()
		if err != nil {
			return err
		}

		var rpt model.Reporter
		switch reportFmt {
		case "json":
			rpt = reporter.NewJSONReporter(os.Stdout)
		default:
			rpt = reporter.NewConsoleReporter()
		}
		if err := rpt.Report(issues); err != nil {
			return fmt.Errorf("reporting failed: %w", err)
		}
		return nil
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the detectors against an annotated ground-truth dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(verbose)
		dataset, err := evaluation.LoadDataset(datasetDir, logger)
		if err != nil {
			return fmt.Errorf("failed to load dataset: %w", err)
		}
		fmt.Printf("Loaded %d annotated files with %d ground-truth issues.\n",
			dataset.Len(), dataset.TotalIssues())

		_, byFile, err := runDetection()
		if err != nil {
			return err
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		evaluator := &evaluation.Evaluator{Tolerance: cfg.Tolerance}
		result := evaluator.EvaluateDataset(byFile, dataset)
		printEvaluation(result)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&srcPath, "src", "s", ".", "Path to source code to scan")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log detector failures and skipped files")
	rootCmd.PersistentFlags().StringSliceVarP(&excludes, "exclude", "e", nil, "Extra glob patterns to exclude from the scan")
	scanCmd.Flags().StringVarP(&reportFmt, "report", "r", "console", "Report format (console, json)")
	evaluateCmd.Flags().StringVarP(&datasetDir, "dataset", "d", "", "Directory of ground-truth annotation files")
	_ = evaluateCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(scanCmd, evaluateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// runDetection walks the source tree, extracts call sites and runs every
// configured detector over them.
func runDetection() ([]model.Issue, map[string][]model.Issue, error) {
	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("source path does not exist: %s", srcPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(verbose)

	calls, err := collectCallSites(cfg)
	if err != nil {
		return nil, nil, err
	}
	fmt.Printf("Scan complete. Analyzing %d call sites...\n", len(calls))

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	issues, failures := registry.RunAll(calls)
	for _, failure := range failures {
		logger.Printf("detector %s failed at %s:%d: %v",
			failure.Detector, failure.FilePath, failure.Line, failure.Err)
	}
	if len(failures) > 0 {
		fmt.Printf("Warning: %d detector failures were isolated (run with -v for details).\n", len(failures))
	}

	byFile := make(map[string][]model.Issue)
	for _, issue := range issues {
		byFile[issue.FilePath] = append(byFile[issue.FilePath], issue)
	}
	return issues, byFile, nil
}

func collectCallSites(cfg config.Config) ([]model.CallSite, error) {
	mgr := extractor.NewManager()
	walker := scanner.NewFileWalker(cfg.Extensions, append(cfg.Excludes, excludes...))

	ctx := context.Background()
	paths, errChan := walker.Walk(ctx, srcPath)

	pool := scanner.NewWorkerPool(10, func(path string) ([]model.CallSite, error) {
		return mgr.Extract(path)
	})
	results := pool.Start(ctx, paths)

	var calls []model.CallSite
	for res := range results {
		if res.Error != nil {
			continue
		}
		calls = append(calls, res.Calls...)
	}
	if err := <-errChan; err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return calls, nil
}

func buildRegistry(cfg config.Config, logger *log.Logger) (*detector.Registry, error) {
	registry := detector.NewRegistry(logger)

	build := func(name string, construct func(detector.Config) detector.Detector) error {
		dcfg, err := cfg.DetectorConfig(name)
		if err != nil {
			return err
		}
		return registry.Register(construct(dcfg))
	}

	steps := []struct {
		name      string
		construct func(detector.Config) detector.Detector
	}{
		{"allow_filtering", func(c detector.Config) detector.Detector { return detector.NewAllowFilteringDetector(c) }},
		{"partition_key", func(c detector.Config) detector.Detector { return detector.NewPartitionKeyDetector(c) }},
		{"batch_size", func(c detector.Config) detector.Detector { return detector.NewBatchSizeDetector(c) }},
		{"prepared_statement", func(c detector.Config) detector.Detector { return detector.NewPreparedStatementDetector(c) }},
	}
	for _, step := range steps {
		if err := build(step.name, step.construct); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func printEvaluation(result evaluation.EvaluationResult) {
	m := result.Matrix
	fmt.Printf("\nConfusion matrix: TP=%d FP=%d FN=%d TN=%d\n",
		m.TruePositives, m.FalsePositives, m.FalseNegatives, m.TrueNegatives)
	fmt.Printf("Precision: %.3f  Recall: %.3f  F1: %.3f  Accuracy: %.3f  FPR: %.3f\n",
		result.Precision, result.Recall, result.F1, result.Accuracy, result.FalsePositiveRate)

	if len(result.PerIssueType) == 0 {
		return
	}
	types := make([]string, 0, len(result.PerIssueType))
	for issueType := range result.PerIssueType {
		types = append(types, issueType)
	}
	sort.Strings(types)
	fmt.Println("\nPer issue type:")
	for _, issueType := range types {
		tm := result.PerIssueType[issueType]
		fmt.Printf("  %-22s P=%.3f R=%.3f F1=%.3f (TP=%d FP=%d FN=%d)\n",
			issueType, tm.Precision, tm.Recall, tm.F1,
			tm.Matrix.TruePositives, tm.Matrix.FalsePositives, tm.Matrix.FalseNegatives)
	}
}

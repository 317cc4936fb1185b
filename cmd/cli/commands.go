package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goinsight/adapters/excel"
	"goinsight/adapters/store"
	"goinsight/app"
	"goinsight/domain/analytics"
	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/config"
	"goinsight/internal/logging"
)

type globalFlags struct {
	configPath string
	delimiter  string
	noHeaders  bool
	verbose    bool
	output     string
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "goinsight",
		Short: "Deterministic analytics over CSV and Excel files",
		Long: `Profile a tabular file, ask aggregate questions about it and run the
data-quality, baseline and drill-down reports. Every command reads the file
directly; nothing is stored. Output is JSON or YAML.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&flags.delimiter, "delimiter", "", "Field delimiter for delimited files (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flags.noHeaders, "no-headers", false, "Treat the first row as data")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log progress to stderr")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", formatJSON, "Output format: json|yaml")

	rootCmd.AddCommand(
		newProfileCmd(flags),
		newAskCmd(flags),
		newQualityCmd(flags),
		newBaselineCmd(flags),
		newDrillDownCmd(flags),
	)
	return rootCmd
}

// session loads one file through the engine entry points
type session struct {
	svc       *app.AnalyticsService
	path      string
	versionID core.DatasetVersionID
	parsed    *dataset.ParsedData
	profile   *dataset.DatasetProfile
}

func openSession(flags *globalFlags, path string) (*session, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.delimiter != "" {
		cfg.Parser.Delimiter = flags.delimiter
	}
	if flags.noHeaders {
		cfg.Parser.HasHeaders = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if flags.verbose {
		cfg.Log.Development = true
		if logger, err = logging.New(cfg.Log); err != nil {
			return nil, err
		}
	}

	parser := excel.NewDataReader(cfg.ParseOptions(), logger)
	svc := app.NewAnalyticsService(parser, store.NewMemoryStore(), app.Settings{
		Quality:            cfg.Quality,
		Analysis:           cfg.Analysis,
		MaxConcurrentScans: cfg.Server.MaxConcurrentScans,
	}, logger)

	s := &session{svc: svc, path: path, versionID: core.NewDatasetVersionID()}
	if s.parsed, err = svc.ParseFile(path); err != nil {
		return nil, err
	}
	if s.profile, err = svc.ProfileDataset(s.parsed, s.versionID); err != nil {
		return nil, err
	}
	return s, nil
}

func newProfileCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profile [file]",
		Short: "Infer column types and summary statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, args[0])
			if err != nil {
				return err
			}
			return write(cmd, flags.output, s.profile)
		},
	}
}

func newAskCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [file] [question]",
		Short: "Answer an aggregate, group-by or time-series question",
		Long: `Classify the question, resolve it to columns, check the operation is
meaningful for those columns and compute the answer.

Example: goinsight ask sales.csv "What is the total revenue by region?"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, args[0])
			if err != nil {
				return err
			}
			resp, err := s.ask(args[1])
			if err != nil {
				return err
			}
			return write(cmd, flags.output, resp)
		},
	}
}

// ask runs classify, resolve, guard and execute step by step
func (s *session) ask(question string) (*app.AskResponse, error) {
	resp := &app.AskResponse{
		DatasetVersionID: s.versionID,
		Question:         question,
		Classification:   s.svc.ClassifyIntent(question),
	}
	in := resp.Classification.Intent
	if !in.IsSupported() {
		resp.Message = "this question does not map to a supported aggregate, grouping or time series"
		return resp, nil
	}

	resolution, err := s.svc.ResolveAll(question, s.profile, in)
	if err != nil {
		return nil, err
	}
	resp.Resolution = resolution

	if violation := s.svc.ValidateSemanticOperations(resolution, in, s.versionID); violation != nil {
		resp.Violation = violation
		resp.Message = violation.Reason
		return resp, nil
	}

	if resp.Result, err = s.svc.ExecuteAnalysis(s.path, in, resolution); err != nil {
		return nil, err
	}
	return resp, nil
}

func newQualityCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "quality [file]",
		Short: "Run the data-quality checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, args[0])
			if err != nil {
				return err
			}
			return write(cmd, flags.output, s.svc.RunDataQualityChecks(s.parsed, s.profile, s.versionID))
		},
	}
}

func newBaselineCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "baseline [file]",
		Short: "Summarise metrics, category breakdowns and the outcome column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, args[0])
			if err != nil {
				return err
			}
			result, err := s.svc.GenerateBaselineAnalysis(s.profile, s.path)
			if err != nil {
				return err
			}
			return write(cmd, flags.output, result)
		},
	}
}

func newDrillDownCmd(flags *globalFlags) *cobra.Command {
	var metric, outcome string

	cmd := &cobra.Command{
		Use:   "drilldown [file]",
		Short: "Compare one metric across the two outcome groups",
		Long: `Compare the distribution of a numeric metric between the positive and
negative outcome groups. The outcome column is detected when --outcome is empty.

Example: goinsight drilldown customers.csv --metric monthly_spend --outcome churned`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(flags, args[0])
			if err != nil {
				return err
			}
			result, err := s.svc.GenerateDrillDown(analytics.DrillDownRequest{
				FilePath:      s.path,
				MetricColumn:  metric,
				OutcomeColumn: outcome,
			}, s.profile)
			if err != nil {
				return err
			}
			return write(cmd, flags.output, result)
		},
	}

	cmd.Flags().StringVar(&metric, "metric", "", "Numeric column to compare")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Two-valued outcome column (detected when empty)")
	_ = cmd.MarkFlagRequired("metric")
	return cmd
}

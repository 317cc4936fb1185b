package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"goinsight/domain/analytics"
	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/analysis"
	"goinsight/internal/engine"
	"goinsight/internal/errors"
	"goinsight/internal/guard"
	"goinsight/internal/intent"
	"goinsight/internal/profiling"
	"goinsight/internal/quality"
	"goinsight/internal/resolver"
	"goinsight/ports"
)

// Settings carries the tunables of the services the AnalyticsService owns
type Settings struct {
	Quality            quality.Thresholds
	Analysis           analysis.Options
	MaxConcurrentScans int64
}

// DefaultSettings returns the standard thresholds and template options
func DefaultSettings() Settings {
	return Settings{
		Quality:            quality.DefaultThresholds(),
		Analysis:           analysis.DefaultOptions(),
		MaxConcurrentScans: 4,
	}
}

// AnalyticsService exposes the engine entry points and the store-backed
// workflows built on them. Every component it holds is stateless, so the
// service is safe for concurrent use.
type AnalyticsService struct {
	parser     ports.FileParser
	repo       ports.DatasetRepository
	profiler   *profiling.DataProfiler
	classifier *intent.Classifier
	resolver   *resolver.Resolver
	guard      *guard.SemanticGuard
	engine     *engine.ExecutionEngine
	checker    *quality.Checker
	baseline   *analysis.BaselineAnalysisService
	drilldown  *analysis.DrillDownService
	scans      *semaphore.Weighted
	logger     *zap.Logger
}

// AskResponse is the outcome of one question. Exactly one of Result and
// Violation is set when the question was supported.
type AskResponse struct {
	DatasetVersionID core.DatasetVersionID          `json:"dataset_version_id"`
	Question         string                         `json:"question"`
	Classification   analytics.Classification       `json:"classification"`
	Resolution       *analytics.MetricResolution    `json:"resolution,omitempty"`
	Violation        *analytics.SemanticGuardResult `json:"violation,omitempty"`
	Result           *analytics.AnalysisResult      `json:"result,omitempty"`
	Message          string                         `json:"message,omitempty"`
}

// Overview combines the quality report and the baseline of one version
type Overview struct {
	Quality  *analytics.DataQualityCheckResult `json:"quality"`
	Baseline *analytics.BaselineAnalysisResult `json:"baseline"`
}

// NewAnalyticsService wires every engine component around parser and repo
func NewAnalyticsService(parser ports.FileParser, repo ports.DatasetRepository, settings Settings, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.MaxConcurrentScans <= 0 {
		settings.MaxConcurrentScans = DefaultSettings().MaxConcurrentScans
	}
	checker := quality.NewChecker(settings.Quality, logger)
	return &AnalyticsService{
		parser:     parser,
		repo:       repo,
		profiler:   profiling.NewDataProfiler(nil, logger),
		classifier: intent.NewClassifier(nil, logger),
		resolver:   resolver.NewResolver(logger),
		guard:      guard.NewSemanticGuard(logger),
		engine:     engine.NewExecutionEngine(parser, logger),
		checker:    checker,
		baseline:   analysis.NewBaselineAnalysisService(parser, checker, settings.Analysis, logger),
		drilldown:  analysis.NewDrillDownService(parser, settings.Analysis, logger),
		scans:      semaphore.NewWeighted(settings.MaxConcurrentScans),
		logger:     logger.Named("analytics"),
	}
}

// ParseFile loads a delimited or spreadsheet file
func (s *AnalyticsService) ParseFile(path string) (*dataset.ParsedData, error) {
	return s.parser.Parse(path)
}

// ProfileDataset profiles parsed data under versionID
func (s *AnalyticsService) ProfileDataset(parsed *dataset.ParsedData, versionID core.DatasetVersionID) (*dataset.DatasetProfile, error) {
	return s.profiler.Profile(parsed, versionID)
}

// ClassifyIntent maps a question to an intent
func (s *AnalyticsService) ClassifyIntent(question string) analytics.Classification {
	return s.classifier.Classify(question)
}

// ResolveAll maps a question to concrete columns
func (s *AnalyticsService) ResolveAll(question string, profile *dataset.DatasetProfile, in analytics.Intent) (*analytics.MetricResolution, error) {
	return s.resolver.ResolveAll(question, profile, in)
}

// ValidateSemanticOperations returns nil when every resolved column supports its operation
func (s *AnalyticsService) ValidateSemanticOperations(resolution *analytics.MetricResolution, in analytics.Intent, versionID core.DatasetVersionID) *analytics.SemanticGuardResult {
	return s.guard.Validate(resolution, in, versionID)
}

// ExecuteAnalysis computes the aggregate over the file at path
func (s *AnalyticsService) ExecuteAnalysis(path string, in analytics.Intent, resolution *analytics.MetricResolution) (*analytics.AnalysisResult, error) {
	return s.engine.Execute(path, in, resolution)
}

// RunDataQualityChecks runs every quality check
func (s *AnalyticsService) RunDataQualityChecks(parsed *dataset.ParsedData, profile *dataset.DatasetProfile, versionID core.DatasetVersionID) *analytics.DataQualityCheckResult {
	return s.checker.Run(parsed, profile, versionID)
}

// GenerateBaselineAnalysis runs the baseline template
func (s *AnalyticsService) GenerateBaselineAnalysis(profile *dataset.DatasetProfile, path string) (*analytics.BaselineAnalysisResult, error) {
	return s.baseline.Generate(profile, path)
}

// GenerateDrillDown runs the drill-down template
func (s *AnalyticsService) GenerateDrillDown(req analytics.DrillDownRequest, profile *dataset.DatasetProfile) (*analytics.DrillDownResult, error) {
	return s.drilldown.Generate(req, profile)
}

// scan bounds how many full-file reads run at once
func (s *AnalyticsService) scan(ctx context.Context, fn func() error) error {
	if err := s.scans.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "waiting for a scan slot")
	}
	defer s.scans.Release(1)
	return fn()
}

// RegisterDataset records a new version for the file at path, profiles it and
// caches the profile. A file that fails to parse leaves a failed version behind.
func (s *AnalyticsService) RegisterDataset(ctx context.Context, fileName, path string) (*dataset.Version, *dataset.DatasetProfile, error) {
	version := &dataset.Version{
		ID:        core.NewDatasetVersionID(),
		FileName:  fileName,
		FilePath:  path,
		Status:    dataset.StatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, version); err != nil {
		return nil, nil, err
	}

	profile, err := s.profileFile(ctx, version)
	if err != nil {
		if updateErr := s.repo.UpdateStatus(ctx, version.ID, dataset.StatusFailed, err.Error()); updateErr != nil {
			s.logger.Error("failed to mark version failed",
				zap.String("dataset_version_id", version.ID.String()),
				zap.Error(updateErr))
		}
		return nil, nil, err
	}

	if err := s.repo.UpdateStatus(ctx, version.ID, dataset.StatusReady, ""); err != nil {
		return nil, nil, err
	}
	version.Status = dataset.StatusReady

	s.logger.Info("dataset registered",
		zap.String("dataset_version_id", version.ID.String()),
		zap.String("file", fileName),
		zap.Int("rows", profile.RowCount),
		zap.Int("columns", profile.ColumnCount))

	return version, profile, nil
}

// ListDatasets returns registered versions newest first
func (s *AnalyticsService) ListDatasets(ctx context.Context, limit, offset int) ([]*dataset.Version, error) {
	return s.repo.List(ctx, limit, offset)
}

// DeleteDataset forgets a version and its cached profile
func (s *AnalyticsService) DeleteDataset(ctx context.Context, id core.DatasetVersionID) error {
	return s.repo.Delete(ctx, id)
}

func (s *AnalyticsService) profileFile(ctx context.Context, version *dataset.Version) (*dataset.DatasetProfile, error) {
	var profile *dataset.DatasetProfile
	err := s.scan(ctx, func() error {
		parsed, err := s.parser.Parse(version.FilePath)
		if err != nil {
			return err
		}
		profile, err = s.profiler.Profile(parsed, version.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *AnalyticsService) readyVersion(ctx context.Context, id core.DatasetVersionID) (*dataset.Version, error) {
	version, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if version.Status == dataset.StatusFailed {
		return nil, errors.Newf(errors.CodeValidationError, "dataset version %s failed to load: %s", id, version.ErrorMessage)
	}
	return version, nil
}

// Profile returns the cached profile, profiling the file on a cache miss
func (s *AnalyticsService) Profile(ctx context.Context, id core.DatasetVersionID) (*dataset.DatasetProfile, error) {
	profile, err := s.repo.GetProfile(ctx, id)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}

	version, err := s.readyVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("profile cache miss", zap.String("dataset_version_id", id.String()))
	return s.profileFile(ctx, version)
}

// Ask runs the full question pipeline: classify, resolve, guard, execute.
// Resolution failures are errors; a guard block is reported in the response.
func (s *AnalyticsService) Ask(ctx context.Context, id core.DatasetVersionID, question string) (*AskResponse, error) {
	version, err := s.readyVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &AskResponse{
		DatasetVersionID: id,
		Question:         question,
		Classification:   s.classifier.Classify(question),
	}
	in := resp.Classification.Intent
	if !in.IsSupported() {
		resp.Message = "this question does not map to a supported aggregate, grouping or time series"
		return resp, nil
	}

	resp.Resolution, err = s.resolver.ResolveAll(question, profile, in)
	if err != nil {
		return nil, err
	}

	if violation := s.guard.Validate(resp.Resolution, in, id); violation != nil {
		resp.Violation = violation
		resp.Message = violation.Reason
		return resp, nil
	}

	err = s.scan(ctx, func() error {
		resp.Result, err = s.engine.Execute(version.FilePath, in, resp.Resolution)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Quality runs the data-quality checks for a stored version
func (s *AnalyticsService) Quality(ctx context.Context, id core.DatasetVersionID) (*analytics.DataQualityCheckResult, error) {
	version, err := s.readyVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	var result *analytics.DataQualityCheckResult
	err = s.scan(ctx, func() error {
		parsed, err := s.parser.Parse(version.FilePath)
		if err != nil {
			return err
		}
		result = s.checker.Run(parsed, profile, id)
		return nil
	})
	return result, err
}

// Baseline runs the baseline template for a stored version
func (s *AnalyticsService) Baseline(ctx context.Context, id core.DatasetVersionID) (*analytics.BaselineAnalysisResult, error) {
	version, err := s.readyVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	var result *analytics.BaselineAnalysisResult
	err = s.scan(ctx, func() error {
		result, err = s.baseline.Generate(profile, version.FilePath)
		return err
	})
	return result, err
}

// DrillDown runs the drill-down template for a stored version. The request's
// file path is always taken from the store.
func (s *AnalyticsService) DrillDown(ctx context.Context, id core.DatasetVersionID, req analytics.DrillDownRequest) (*analytics.DrillDownResult, error) {
	version, err := s.readyVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	req.FilePath = version.FilePath
	var result *analytics.DrillDownResult
	err = s.scan(ctx, func() error {
		result, err = s.drilldown.Generate(req, profile)
		return err
	})
	return result, err
}

// Overview computes the quality report and the baseline concurrently
func (s *AnalyticsService) Overview(ctx context.Context, id core.DatasetVersionID) (*Overview, error) {
	if _, err := s.Profile(ctx, id); err != nil {
		return nil, err
	}

	overview := &Overview{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := s.Quality(gctx, id)
		overview.Quality = result
		return err
	})
	g.Go(func() error {
		result, err := s.Baseline(gctx, id)
		overview.Baseline = result
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

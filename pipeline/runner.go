package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solar-impact-insights/alerting"
	"solar-impact-insights/analysis"
	"solar-impact-insights/database"
	"solar-impact-insights/dataset"
	"solar-impact-insights/logger"
	"solar-impact-insights/metrics"
	"solar-impact-insights/realtime"
	"solar-impact-insights/sources"
)

// Store persists the outputs of a run. *database.Repository implements it.
type Store interface {
	SaveEvents(ctx context.Context, t *dataset.Table) (int64, error)
	UpdateClusters(ctx context.Context, t *dataset.Table) (int64, error)
	SavePredictions(ctx context.Context, predictions []database.Prediction) error
	SaveAlerts(ctx context.Context, alerts []database.Alert) error
	SaveModelMetrics(ctx context.Context, metrics []database.ModelMetric) error
}

// Notifier delivers raised alerts.
type Notifier interface {
	Notify(ctx context.Context, alerts []alerting.Alert) (int, error)
}

// Broadcaster pushes run events to live subscribers.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Sink receives a copy of the final table, such as the ClickHouse warehouse.
type Sink interface {
	Load(ctx context.Context, t *dataset.Table) (int, error)
}

// Dependencies are the optional collaborators of a Runner. Nil fields are skipped.
type Dependencies struct {
	Store       Store
	Notifier    Notifier
	Broadcaster Broadcaster
	Warehouse   Sink
	Metrics     *metrics.PipelineMetrics
}

// RunOptions selects the stages of a run and their parameters.
type RunOptions struct {
	Validate bool
	Persist  bool
	Notify   bool

	KMeans         analysis.KMeans
	ARIMA          analysis.ARIMA
	ForecastColumn dataset.Column
	ForecastSteps  int
	ForecastRule   alerting.ForecastRule
	RecordRules    []alerting.RecordRule

	AnomalyMultiplier float64
}

// DefaultRunOptions validates, persists and notifies with the default analyses. The forecast
// rule is the only alert rule; per-record rules stay off unless RecordRules is set.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Validate:          true,
		Persist:           true,
		Notify:            true,
		KMeans:            analysis.DefaultKMeans(),
		ARIMA:             analysis.DefaultARIMA(),
		ForecastColumn:    dataset.Temperature,
		ForecastSteps:     analysis.DefaultForecastSteps,
		ForecastRule:      alerting.DefaultForecastRule(),
		AnomalyMultiplier: analysis.DefaultIQRMultiplier,
	}
}

// SourceOutcome is the result of reading one source.
type SourceOutcome struct {
	Name   string         `json:"name"`
	Column dataset.Column `json:"column"`
	Status string         `json:"status"`
	Points int            `json:"points"`
	Reason string         `json:"reason,omitempty"`
}

// StatusSkipped marks a source not read because an earlier source already supplied its column.
const StatusSkipped = "skipped"

// WriteOutcome is the result of one independent persistence write.
type WriteOutcome struct {
	Target string `json:"target"`
	Rows   int64  `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// Analyses holds the independent analysis outcomes over one table.
type Analyses struct {
	Summary      Summary                                `json:"summary"`
	Correlations dataset.Result[analysis.Correlations]  `json:"correlations"`
	Clustering   dataset.Result[analysis.Clustering]    `json:"clustering"`
	Forecast     dataset.Result[analysis.Forecast]      `json:"forecast"`
	Anomalies    dataset.Result[analysis.AnomalyReport] `json:"anomalies"`
	Alerts       []alerting.Alert                       `json:"alerts"`
}

// RunReport describes a finished run.
type RunReport struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Sources    []SourceOutcome   `json:"sources"`
	MergeError string            `json:"merge_error,omitempty"`
	Validation *ValidationReport `json:"validation,omitempty"`
	Analyses
	Writes   []WriteOutcome `json:"writes,omitempty"`
	Notified int            `json:"notified"`

	// Table is the validated, clustered table the analyses ran on.
	Table *dataset.Table `json:"-"`
}

// Status is the metrics label of the run.
func (r *RunReport) Status() string {
	if r.Table.IsEmpty() {
		return metrics.RunStatusEmpty
	}
	return metrics.RunStatusOK
}

// Runner executes the pipeline end to end.
type Runner struct {
	sources []sources.Source
	deps    Dependencies
	log     *zap.Logger
	now     func() time.Time
}

// NewRunner creates a runner over srcs. Several sources may serve the same column: they are
// read in order and the first one that yields data wins.
func NewRunner(srcs []sources.Source, deps Dependencies, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{sources: srcs, deps: deps, log: log, now: time.Now}
}

// Run reads every source, merges and optionally validates the result, runs the analyses,
// evaluates alerts, then persists, notifies and broadcasts. Stage failures are reported in the
// RunReport; the error return is non-nil only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString(), StartedAt: r.now().UTC()}
	ctx = logger.WithRunID(ctx, report.RunID)
	log := r.log.With(zap.String("run_id", report.RunID))

	log.Info("🚀 Pipeline run started", zap.Int("sources", len(r.sources)))
	r.broadcast(realtime.EventRunStarted, map[string]interface{}{"run_id": report.RunID})

	series, err := r.readSources(ctx, report, log)
	if err != nil {
		return r.cancelled(report, err, log)
	}

	table, err := Merge(series...)
	if err != nil {
		log.Error("❌ Merge failed", zap.Error(err))
		report.MergeError = err.Error()
		table = &dataset.Table{}
	}
	r.deps.Metrics.MergedRows(table.Len())
	log.Info("🔗 Sources merged", zap.Int("rows", table.Len()), zap.Int("companions", len(table.Columns)))

	if opts.Validate {
		var vr ValidationReport
		table, vr = NewValidator(log).Validate(table)
		report.Validation = &vr
	}

	report.Analyses = r.analyze(table, opts, log)
	report.Table = table
	if c, ok := report.Clustering.Get(); ok {
		report.Table = c.Table
	}

	if err := ctx.Err(); err != nil {
		return r.cancelled(report, err, log)
	}

	if opts.Persist {
		r.persist(ctx, report, log)
	}
	if opts.Notify {
		r.notify(ctx, report, log)
	}

	report.FinishedAt = r.now().UTC()
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	r.deps.Metrics.RunFinished(report.Status(), elapsed, report.FinishedAt)
	r.broadcast(realtime.EventRunCompleted, report)

	log.Info("🏁 Pipeline run completed",
		zap.String("status", report.Status()),
		zap.Int("rows", report.Table.Len()),
		zap.Int("alerts", len(report.Alerts)),
		zap.Duration("elapsed", elapsed),
	)
	return report, nil
}

// Collect reads and merges the sources without analysing or persisting anything.
func (r *Runner) Collect(ctx context.Context) (*dataset.Table, []SourceOutcome, error) {
	report := &RunReport{}
	series, err := r.readSources(ctx, report, r.log)
	if err != nil {
		return nil, nil, err
	}
	table, err := Merge(series...)
	if err != nil {
		return nil, report.Sources, err
	}
	return table, report.Sources, nil
}

// Analyze runs the analyses and alert rules over t without reading sources or persisting.
func (r *Runner) Analyze(t *dataset.Table, opts RunOptions) Analyses {
	return r.analyze(t, opts, r.log)
}

func (r *Runner) readSources(ctx context.Context, report *RunReport, log *zap.Logger) ([]*dataset.Series, error) {
	var out []*dataset.Series
	filled := make(map[dataset.Column]bool)

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome := SourceOutcome{Name: src.Name(), Column: src.Column()}
		if filled[src.Column()] {
			outcome.Status = StatusSkipped
			report.Sources = append(report.Sources, outcome)
			continue
		}

		res := sources.Read(ctx, src, log)
		outcome.Status = string(res.Status)
		outcome.Reason = res.Reason
		r.deps.Metrics.SourceRead(src.Name(), outcome.Status)
		if s, ok := res.Get(); ok {
			outcome.Points = s.Len()
			filled[src.Column()] = true
			out = append(out, s)
		}
		report.Sources = append(report.Sources, outcome)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) analyze(t *dataset.Table, opts RunOptions, log *zap.Logger) Analyses {
	a := Analyses{Summary: Summarize(t)}

	a.Correlations = analysis.Correlate(t)
	r.recordAnalysis("correlation", a.Correlations.Status, a.Correlations.Err, log)

	a.Clustering = opts.KMeans.Cluster(t)
	r.recordAnalysis("clustering", a.Clustering.Status, a.Clustering.Err, log)

	col := opts.ForecastColumn
	if col == "" {
		col = dataset.Temperature
	}
	a.Forecast = opts.ARIMA.Forecast(t, col, opts.ForecastSteps)
	r.recordAnalysis("forecast", a.Forecast.Status, a.Forecast.Err, log)

	a.Anomalies = analysis.DetectAnomalies(t, dataset.SEPIntensity, opts.AnomalyMultiplier)
	r.recordAnalysis("anomalies", a.Anomalies.Status, a.Anomalies.Err, log)

	if f, ok := a.Forecast.Get(); ok {
		if alert := alerting.EvaluateForecast(f, opts.ForecastRule); alert != nil {
			a.Alerts = append(a.Alerts, *alert)
		}
	}
	a.Alerts = append(a.Alerts, alerting.EvaluateRecords(t, opts.RecordRules)...)
	for _, alert := range a.Alerts {
		r.deps.Metrics.AlertRaised(alert.Type)
	}
	if len(a.Alerts) > 0 {
		log.Info("🚨 Alerts raised", zap.Int("count", len(a.Alerts)))
	}
	return a
}

func (r *Runner) recordAnalysis(name string, status dataset.Status, err error, log *zap.Logger) {
	r.deps.Metrics.Analysis(name, string(status))
	switch status {
	case dataset.StatusError:
		log.Warn("⚠️  Analysis failed", zap.String("analysis", name), zap.Error(err))
	case dataset.StatusEmpty:
		log.Info("ℹ️  Analysis skipped, no data", zap.String("analysis", name))
	default:
		log.Debug("📊 Analysis complete", zap.String("analysis", name))
	}
}

// persist performs each write independently. A failed write is logged and reported and does
// not stop the others.
func (r *Runner) persist(ctx context.Context, report *RunReport, log *zap.Logger) {
	store := r.deps.Store
	if store == nil && r.deps.Warehouse == nil {
		return
	}
	at := report.StartedAt

	record := func(target string, rows int64, err error) {
		r.deps.Metrics.Write(target, err)
		out := WriteOutcome{Target: target, Rows: rows}
		if err != nil {
			out.Error = err.Error()
			log.Error("❌ Persistence write failed", zap.String("target", target), zap.Error(err))
		}
		report.Writes = append(report.Writes, out)
	}

	if store != nil && !report.Table.IsEmpty() {
		n, err := store.SaveEvents(ctx, report.Table)
		record("events", n, err)
		if err == nil && report.Clustering.IsOK() {
			n, err := store.UpdateClusters(ctx, report.Table)
			record("clusters", n, err)
		}
	}

	if f, ok := report.Forecast.Get(); ok && store != nil {
		predictions := database.PredictionsFromForecast(f, at)
		record("predictions", int64(len(predictions)), store.SavePredictions(ctx, predictions))
	}

	if len(report.Alerts) > 0 && store != nil {
		alerts := make([]database.Alert, len(report.Alerts))
		for i, a := range report.Alerts {
			alerts[i] = database.AlertFromRule(a)
		}
		record("alerts", int64(len(alerts)), store.SaveAlerts(ctx, alerts))
	}

	if store != nil {
		var ms []database.ModelMetric
		if c, ok := report.Correlations.Get(); ok {
			ms = append(ms, database.MetricsFromCorrelations(c, at)...)
		}
		if c, ok := report.Clustering.Get(); ok {
			ms = append(ms, database.MetricsFromClustering(c, at)...)
		}
		if f, ok := report.Forecast.Get(); ok {
			ms = append(ms, database.MetricsFromForecast(f, at)...)
		}
		if len(ms) > 0 {
			record("model_metrics", int64(len(ms)), store.SaveModelMetrics(ctx, ms))
		}
	}

	if r.deps.Warehouse != nil && !report.Table.IsEmpty() {
		n, err := r.deps.Warehouse.Load(ctx, report.Table)
		record("warehouse", int64(n), err)
	}
}

func (r *Runner) notify(ctx context.Context, report *RunReport, log *zap.Logger) {
	for _, a := range report.Alerts {
		r.broadcast(realtime.EventAlert, a)
	}
	if r.deps.Notifier == nil || len(report.Alerts) == 0 {
		return
	}
	n, err := r.deps.Notifier.Notify(ctx, report.Alerts)
	report.Notified = n
	r.deps.Metrics.Notification(n, err)
	if err != nil {
		log.Warn("⚠️  Alert notification incomplete", zap.Int("delivered", n), zap.Error(err))
	}
}

func (r *Runner) broadcast(event string, payload interface{}) {
	if r.deps.Broadcaster != nil {
		r.deps.Broadcaster.Broadcast(event, payload)
	}
}

func (r *Runner) cancelled(report *RunReport, err error, log *zap.Logger) (*RunReport, error) {
	report.FinishedAt = r.now().UTC()
	r.deps.Metrics.RunFinished(metrics.RunStatusCancelled, report.FinishedAt.Sub(report.StartedAt), report.FinishedAt)
	log.Warn("🛑 Pipeline run cancelled", zap.Error(err))
	return report, err
}

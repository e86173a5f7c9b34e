package app

import (
	"fmt"

	"solar-impact-insights/config"
	"solar-impact-insights/pipeline"
)

// RunOptions maps the analysis settings onto pipeline options. When cfg.AnalysisFile is
// set it replaces cfg.Analysis.
func RunOptions(cfg *config.Config) (pipeline.RunOptions, error) {
	settings := cfg.Analysis
	if cfg.AnalysisFile != "" {
		loaded, err := config.LoadAnalysisFile(cfg.AnalysisFile)
		if err != nil {
			return pipeline.RunOptions{}, err
		}
		settings = loaded
	}
	if err := settings.Validate(); err != nil {
		return pipeline.RunOptions{}, fmt.Errorf("invalid analysis settings: %w", err)
	}

	opts := pipeline.DefaultRunOptions()
	opts.Validate = settings.Clean
	opts.KMeans = settings.KMeans()
	opts.ARIMA = settings.ARIMA()
	opts.ForecastColumn = settings.Column()
	opts.ForecastSteps = settings.ForecastSteps
	opts.ForecastRule = settings.ForecastRule()
	opts.AnomalyMultiplier = settings.AnomalyMultiplier
	opts.RecordRules = settings.RecordRules()
	return opts, nil
}

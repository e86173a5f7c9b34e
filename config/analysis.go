package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"solar-impact-insights/alerting"
	"solar-impact-insights/analysis"
	"solar-impact-insights/dataset"
)

// AnalysisConfig tunes the analyses and the forecast alert rule.
type AnalysisConfig struct {
	Clean bool `mapstructure:"validate"`

	Clusters             int     `mapstructure:"clusters"`
	ClusterMaxIterations int     `mapstructure:"cluster_max_iterations"`
	ClusterTolerance     float64 `mapstructure:"cluster_tolerance"`
	ClusterSeed          uint64  `mapstructure:"cluster_seed"`

	ARIMAOrder     []int  `mapstructure:"arima_order"`
	ForecastColumn string `mapstructure:"forecast_column"`
	ForecastSteps  int    `mapstructure:"forecast_steps"`

	ForecastThreshold float64 `mapstructure:"forecast_threshold"`
	AnomalyMultiplier float64 `mapstructure:"anomaly_multiplier"`

	// RecordAlerts adds the per-record SEP and Kp rules to the forecast rule.
	RecordAlerts bool `mapstructure:"record_alerts"`
}

// DefaultAnalysisConfig returns k=3 clustering and an ARIMA(5,1,0) 30-day temperature forecast
// alerting above 16.
func DefaultAnalysisConfig() AnalysisConfig {
	km := analysis.DefaultKMeans()
	order := analysis.DefaultARIMA()
	return AnalysisConfig{
		Clean:                true,
		Clusters:             km.K,
		ClusterMaxIterations: km.MaxIterations,
		ClusterTolerance:     km.Tolerance,
		ClusterSeed:          km.Seed,
		ARIMAOrder:           []int{order.P, order.D, order.Q},
		ForecastColumn:       dataset.Temperature.String(),
		ForecastSteps:        analysis.DefaultForecastSteps,
		ForecastThreshold:    alerting.DefaultForecastRule().Threshold,
		AnomalyMultiplier:    analysis.DefaultIQRMultiplier,
	}
}

// LoadAnalysisFile reads the "analysis" section of a YAML file over the defaults. Keys missing
// from the file keep their default value.
func LoadAnalysisFile(path string) (AnalysisConfig, error) {
	defaults := DefaultAnalysisConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("analysis.validate", defaults.Clean)
	v.SetDefault("analysis.clusters", defaults.Clusters)
	v.SetDefault("analysis.cluster_max_iterations", defaults.ClusterMaxIterations)
	v.SetDefault("analysis.cluster_tolerance", defaults.ClusterTolerance)
	v.SetDefault("analysis.cluster_seed", defaults.ClusterSeed)
	v.SetDefault("analysis.arima_order", defaults.ARIMAOrder)
	v.SetDefault("analysis.forecast_column", defaults.ForecastColumn)
	v.SetDefault("analysis.forecast_steps", defaults.ForecastSteps)
	v.SetDefault("analysis.forecast_threshold", defaults.ForecastThreshold)
	v.SetDefault("analysis.anomaly_multiplier", defaults.AnomalyMultiplier)
	v.SetDefault("analysis.record_alerts", defaults.RecordAlerts)

	if err := v.ReadInConfig(); err != nil {
		return AnalysisConfig{}, fmt.Errorf("read analysis config %s: %w", path, err)
	}

	var file struct {
		Analysis AnalysisConfig `mapstructure:"analysis"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return AnalysisConfig{}, fmt.Errorf("decode analysis config: %w", err)
	}
	if err := file.Analysis.Validate(); err != nil {
		return AnalysisConfig{}, err
	}
	return file.Analysis, nil
}

// Validate checks the ranges of every setting.
func (a AnalysisConfig) Validate() error {
	var errs []error
	if a.Clusters <= 0 {
		errs = append(errs, fmt.Errorf("analysis.clusters must be positive, got %d", a.Clusters))
	}
	if len(a.ARIMAOrder) != 3 {
		errs = append(errs, fmt.Errorf("analysis.arima_order must be [p, d, q], got %v", a.ARIMAOrder))
	} else {
		for _, v := range a.ARIMAOrder {
			if v < 0 {
				errs = append(errs, fmt.Errorf("analysis.arima_order must not be negative, got %v", a.ARIMAOrder))
				break
			}
		}
	}
	if a.ForecastSteps <= 0 {
		errs = append(errs, fmt.Errorf("analysis.forecast_steps must be positive, got %d", a.ForecastSteps))
	}
	if _, err := dataset.ParseColumn(a.ForecastColumn); err != nil {
		errs = append(errs, fmt.Errorf("analysis.forecast_column: %w", err))
	}
	if a.AnomalyMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("analysis.anomaly_multiplier must be positive, got %v", a.AnomalyMultiplier))
	}
	return errors.Join(errs...)
}

// KMeans returns the clustering settings.
func (a AnalysisConfig) KMeans() analysis.KMeans {
	return analysis.KMeans{
		K:             a.Clusters,
		MaxIterations: a.ClusterMaxIterations,
		Tolerance:     a.ClusterTolerance,
		Seed:          a.ClusterSeed,
	}
}

// ARIMA returns the model order. Call Validate first.
func (a AnalysisConfig) ARIMA() analysis.ARIMA {
	return analysis.ARIMA{P: a.ARIMAOrder[0], D: a.ARIMAOrder[1], Q: a.ARIMAOrder[2]}
}

// Column returns the forecast column. Call Validate first.
func (a AnalysisConfig) Column() dataset.Column {
	c, _ := dataset.ParseColumn(a.ForecastColumn)
	return c
}

// ForecastRule returns the forecast alert rule with the configured threshold.
func (a AnalysisConfig) ForecastRule() alerting.ForecastRule {
	rule := alerting.DefaultForecastRule()
	rule.Threshold = a.ForecastThreshold
	return rule
}

// RecordRules returns the per-record alert rules, or nil when they are disabled.
func (a AnalysisConfig) RecordRules() []alerting.RecordRule {
	if !a.RecordAlerts {
		return nil
	}
	return alerting.DefaultRecordRules()
}

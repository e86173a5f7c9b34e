package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/mat"

	"solar-impact-insights/dataset"
	"solar-impact-insights/helpers"
)

// Forecast failure causes. All of them are recoverable: the caller gets an Error result.
var (
	ErrInvalidOrder   = errors.New("invalid ARIMA order")
	ErrSeriesTooShort = errors.New("series too short for ARIMA order")
	ErrNonStationary  = errors.New("autoregressive part is not stationary")
	ErrFitDiverged    = errors.New("ARIMA fit diverged")
)

// DefaultForecastSteps is the default forecast horizon in days.
const DefaultForecastSteps = 30

const z95 = 1.959963984540054

// ARIMA is an (p, d, q) model order.
type ARIMA struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

// DefaultARIMA returns the (5, 1, 0) order.
func DefaultARIMA() ARIMA {
	return ARIMA{P: 5, D: 1, Q: 0}
}

func (a ARIMA) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", a.P, a.D, a.Q)
}

// ARIMAModel is a fitted model. Coefficients act on the d-times differenced series.
type ARIMAModel struct {
	Order     ARIMA     `json:"order"`
	Intercept float64   `json:"intercept"`
	AR        []float64 `json:"ar"`
	MA        []float64 `json:"ma"`
	Sigma2    float64   `json:"sigma2"`
	NObs      int       `json:"nobs"`

	levels    [][]float64
	residuals []float64
}

// ForecastStep is one horizon step with its 95% interval.
type ForecastStep struct {
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
	StdErr float64   `json:"std_err"`
	Lower  float64   `json:"lower_95"`
	Upper  float64   `json:"upper_95"`
}

// Forecast is the extrapolation of one column.
type Forecast struct {
	Column       dataset.Column `json:"column"`
	Model        string         `json:"model"`
	Order        ARIMA          `json:"order"`
	LastObserved time.Time      `json:"last_observed"`
	Steps        []ForecastStep `json:"steps"`
	Fit          *ARIMAModel    `json:"fit"`
}

// Values returns the forecast values in step order.
func (f Forecast) Values() []float64 {
	out := make([]float64, len(f.Steps))
	for i, s := range f.Steps {
		out[i] = s.Value
	}
	return out
}

// Mean returns the average forecast value, or 0 for an empty forecast.
func (f Forecast) Mean() float64 {
	return helpers.Mean(f.Values())
}

// Forecast fits the model on column col of t, in record order, and extrapolates steps days
// past the last observation.
func (a ARIMA) Forecast(t *dataset.Table, col dataset.Column, steps int) dataset.Result[Forecast] {
	if steps <= 0 {
		steps = DefaultForecastSteps
	}
	series := t.Series(col)
	if series.IsEmpty() {
		return dataset.Empty[Forecast](fmt.Sprintf("no %s values", col))
	}

	model, err := a.Fit(series.Values())
	if err != nil {
		return dataset.Fail[Forecast](fmt.Errorf("forecast %s: %w", col, err))
	}

	values, stderr := model.Predict(steps)
	last := series.Points[series.Len()-1].Date
	out := Forecast{
		Column:       col,
		Model:        a.String(),
		Order:        a,
		LastObserved: last,
		Steps:        make([]ForecastStep, steps),
		Fit:          model,
	}
	for i := range values {
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return dataset.Fail[Forecast](fmt.Errorf("forecast %s: %w: non-finite prediction", col, ErrFitDiverged))
		}
		out.Steps[i] = ForecastStep{
			Date:   last.AddDate(0, 0, i+1),
			Value:  values[i],
			StdErr: stderr[i],
			Lower:  values[i] - z95*stderr[i],
			Upper:  values[i] + z95*stderr[i],
		}
	}
	return dataset.Ok(out)
}

// Fit estimates the model by conditional least squares on the differenced series.
// Moving-average terms use the Hannan-Rissanen two-stage regression.
// An intercept is estimated only when d is 0.
func (a ARIMA) Fit(values []float64) (*ARIMAModel, error) {
	if a.P < 0 || a.D < 0 || a.Q < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, a)
	}

	levels := [][]float64{append([]float64(nil), values...)}
	for i := 0; i < a.D; i++ {
		prev := levels[len(levels)-1]
		if len(prev) < 2 {
			return nil, fmt.Errorf("%w: %d observations for %s", ErrSeriesTooShort, len(values), a)
		}
		next := make([]float64, len(prev)-1)
		for j := 1; j < len(prev); j++ {
			next[j-1] = prev[j] - prev[j-1]
		}
		levels = append(levels, next)
	}
	w := levels[len(levels)-1]

	withIntercept := a.D == 0
	params := a.P + a.Q
	if withIntercept {
		params++
	}

	var innovations []float64
	start := a.P
	if a.Q > 0 {
		longOrder := max(a.P+a.Q+1, min(len(w)/4, 20))
		if len(w)-longOrder < longOrder+2 {
			return nil, fmt.Errorf("%w: %d observations for %s", ErrSeriesTooShort, len(values), a)
		}
		long, err := regressFrom(w, longOrder, nil, 0, true, longOrder)
		if err != nil {
			return nil, err
		}
		innovations = residualsOf(w, long[1:], nil, long[0])
		start = max(a.P, longOrder+a.Q)
	}
	if len(w)-start < params+2 {
		return nil, fmt.Errorf("%w: %d observations for %s", ErrSeriesTooShort, len(values), a)
	}

	beta, err := regressFrom(w, a.P, innovations, a.Q, withIntercept, start)
	if err != nil {
		return nil, err
	}
	model := &ARIMAModel{Order: a, NObs: len(values), levels: levels}
	if withIntercept {
		model.Intercept, beta = beta[0], beta[1:]
	}
	model.AR = append([]float64(nil), beta[:a.P]...)
	model.MA = append([]float64(nil), beta[a.P:]...)

	for _, b := range beta {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient", ErrFitDiverged)
		}
	}
	if err := checkStationary(model.AR); err != nil {
		return nil, err
	}

	model.residuals = residualsOf(w, model.AR, model.MA, model.Intercept)
	rss := 0.0
	for _, e := range model.residuals[a.P:] {
		rss += e * e
	}
	model.Sigma2 = rss / float64(len(w)-a.P-params)
	if math.IsNaN(model.Sigma2) || math.IsInf(model.Sigma2, 0) {
		return nil, fmt.Errorf("%w: residual variance is not finite", ErrFitDiverged)
	}
	return model, nil
}

// Predict returns steps forecasts on the original scale with their standard errors.
func (m *ARIMAModel) Predict(steps int) ([]float64, []float64) {
	w := m.levels[len(m.levels)-1]
	p, q := len(m.AR), len(m.MA)

	hist := append([]float64(nil), w...)
	resid := append([]float64(nil), m.residuals...)
	diffForecast := make([]float64, steps)
	for h := 0; h < steps; h++ {
		n := len(hist)
		v := m.Intercept
		for i := 0; i < p; i++ {
			if n-1-i >= 0 {
				v += m.AR[i] * hist[n-1-i]
			}
		}
		for j := 0; j < q; j++ {
			if n-1-j >= 0 && n-1-j < len(resid) {
				v += m.MA[j] * resid[n-1-j]
			}
		}
		diffForecast[h] = v
		hist = append(hist, v)
		resid = append(resid, 0)
	}

	forecast := diffForecast
	for level := len(m.levels) - 2; level >= 0; level-- {
		last := m.levels[level][len(m.levels[level])-1]
		integrated := make([]float64, steps)
		for h := range forecast {
			last += forecast[h]
			integrated[h] = last
		}
		forecast = integrated
	}

	psi := m.psiWeights(steps)
	stderr := make([]float64, steps)
	acc := 0.0
	for h := 0; h < steps; h++ {
		acc += psi[h] * psi[h]
		stderr[h] = math.Sqrt(m.Sigma2 * acc)
	}
	return forecast, stderr
}

// psiWeights expands the integrated model into its moving-average representation.
func (m *ARIMAModel) psiWeights(n int) []float64 {
	poly := []float64{1}
	for _, phi := range m.AR {
		poly = append(poly, -phi)
	}
	for i := 0; i < m.Order.D; i++ {
		next := make([]float64, len(poly)+1)
		for j, c := range poly {
			next[j] += c
			next[j+1] -= c
		}
		poly = next
	}

	psi := make([]float64, n)
	for j := 0; j < n; j++ {
		if j == 0 {
			psi[0] = 1
			continue
		}
		v := 0.0
		if j <= len(m.MA) {
			v = m.MA[j-1]
		}
		for i := 1; i < len(poly) && i <= j; i++ {
			v -= poly[i] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

// regressFrom solves w[t] = c + sum(phi_i w[t-i]) + sum(theta_j e[t-j]) for t >= start
// by least squares.
func regressFrom(w []float64, p int, e []float64, q int, intercept bool, start int) ([]float64, error) {
	cols := p + q
	if intercept {
		cols++
	}
	rows := len(w) - start
	if cols == 0 {
		return []float64{}, nil
	}
	if rows <= cols {
		return nil, fmt.Errorf("%w: %d rows for %d parameters", ErrSeriesTooShort, rows, cols)
	}

	x := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := start + r
		c := 0
		if intercept {
			x.Set(r, c, 1)
			c++
		}
		for i := 1; i <= p; i++ {
			x.Set(r, c, w[t-i])
			c++
		}
		for j := 1; j <= q; j++ {
			x.Set(r, c, e[t-j])
			c++
		}
		y.SetVec(r, w[t])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitDiverged, err)
	}
	return beta.RawVector().Data, nil
}

// residualsOf runs the model recursion over w; residuals before the AR order are zero.
func residualsOf(w, ar, ma []float64, intercept float64) []float64 {
	e := make([]float64, len(w))
	for t := len(ar); t < len(w); t++ {
		fit := intercept
		for i, phi := range ar {
			fit += phi * w[t-1-i]
		}
		for j, theta := range ma {
			if t-1-j >= 0 {
				fit += theta * e[t-1-j]
			}
		}
		e[t] = w[t] - fit
	}
	return e
}

// checkStationary requires every eigenvalue of the AR companion matrix inside the unit circle.
func checkStationary(ar []float64) error {
	p := len(ar)
	if p == 0 {
		return nil
	}
	companion := mat.NewDense(p, p, nil)
	for i, phi := range ar {
		companion.Set(0, i, phi)
	}
	for i := 1; i < p; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return fmt.Errorf("%w: eigen decomposition failed", ErrFitDiverged)
	}
	for _, v := range eig.Values(nil) {
		if cmplx.Abs(v) >= 1 {
			return fmt.Errorf("%w: root modulus %.3f", ErrNonStationary, cmplx.Abs(v))
		}
	}
	return nil
}

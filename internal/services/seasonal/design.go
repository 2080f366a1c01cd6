package seasonal

import (
	"math"
	"time"
)

const secondsPerDay = 86400.0

// scaleTime maps d onto [0,1] over the training span; future dates exceed 1.
func (m *Model) scaleTime(d time.Time) float64 {
	return d.Sub(m.start).Hours() / 24 / m.spanDays
}

func (m *Model) trendRow(t float64) []float64 {
	row := make([]float64, 2+len(m.changepoints))
	row[0] = 1
	row[1] = t
	for j, cp := range m.changepoints {
		row[2+j] = math.Max(0, t-cp)
	}
	return row
}

func (m *Model) featureCount() int {
	n := 0
	for _, s := range m.seasonalities {
		n += 2 * s.FourierOrder
	}
	if m.regressor != "" {
		n++
	}
	return n
}

// featureRow builds the fourier terms on absolute days, then the
// standardized regressor.
func (m *Model) featureRow(d time.Time, reg float64) []float64 {
	row := make([]float64, 0, m.featureCount())
	days := float64(d.Unix()) / secondsPerDay
	for _, s := range m.seasonalities {
		for n := 1; n <= s.FourierOrder; n++ {
			x := 2 * math.Pi * float64(n) * days / s.Period
			row = append(row, math.Sin(x), math.Cos(x))
		}
	}
	if m.regressor != "" {
		row = append(row, (reg-m.regMean)/m.regStd)
	}
	return row
}

// changepointsFor places n changepoints evenly by row over the first
// fraction of the history, skipping the first row.
func changepointsFor(t []float64, n int, fraction float64) []float64 {
	hist := int(math.Floor(float64(len(t)) * fraction))
	if n > hist-1 {
		n = hist - 1
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		idx := int(math.Round(float64(i) * float64(hist-1) / float64(n)))
		out = append(out, t[idx])
	}
	return out
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

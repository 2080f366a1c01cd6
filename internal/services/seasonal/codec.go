package seasonal

import (
	"fmt"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/service"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

// Serialize encodes a fitted model as JSON bytes.
func (f *Forecaster) Serialize(h service.ModelHandle) ([]byte, error) {
	m, ok := h.(*Model)
	if !ok {
		return nil, fmt.Errorf("seasonal: unsupported model handle %T", h)
	}
	if !m.fitted {
		return nil, models.ErrModelNotTrained
	}
	return easyjson.Marshal(m)
}

// Deserialize restores a model written by Serialize. The result is fitted and
// cannot be fit again.
func (f *Forecaster) Deserialize(b []byte) (service.ModelHandle, error) {
	m := &Model{}
	if err := easyjson.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("seasonal: decode model: %w", err)
	}
	if m.spanDays <= 0 || m.yScale == 0 || m.regStd == 0 {
		return nil, fmt.Errorf("seasonal: decode model: incomplete parameters")
	}
	if len(m.trend) != 2+len(m.changepoints) {
		return nil, fmt.Errorf("seasonal: decode model: %d trend terms for %d changepoints", len(m.trend), len(m.changepoints))
	}
	if len(m.beta) != 0 && len(m.beta) != m.featureCount() {
		return nil, fmt.Errorf("seasonal: decode model: %d coefficients for %d features", len(m.beta), m.featureCount())
	}
	m.fitted = true
	return m, nil
}

// MarshalEasyJSON implements easyjson.Marshaler.
func (m *Model) MarshalEasyJSON(out *jwriter.Writer) {
	out.RawString(`{"kind":`)
	out.String(Kind)
	out.RawString(`,"version":`)
	out.Int(formatVersion)
	out.RawString(`,"fitted_at":`)
	out.Raw(m.fittedAt.MarshalJSON())
	out.RawString(`,"config":`)
	writeConfig(out, m.cfg)
	out.RawString(`,"seasonalities":[`)
	for i, s := range m.seasonalities {
		if i > 0 {
			out.RawByte(',')
		}
		out.RawString(`{"name":`)
		out.String(s.Name)
		out.RawString(`,"period":`)
		out.Float64(s.Period)
		out.RawString(`,"fourier_order":`)
		out.Int(s.FourierOrder)
		out.RawByte('}')
	}
	out.RawByte(']')
	out.RawString(`,"regressor":`)
	out.String(m.regressor)
	out.RawString(`,"start":`)
	out.Raw(m.start.MarshalJSON())
	out.RawString(`,"span_days":`)
	out.Float64(m.spanDays)
	out.RawString(`,"y_scale":`)
	out.Float64(m.yScale)
	out.RawString(`,"changepoints":`)
	writeFloats(out, m.changepoints)
	out.RawString(`,"trend":`)
	writeFloats(out, m.trend)
	out.RawString(`,"beta":`)
	writeFloats(out, m.beta)
	out.RawString(`,"reg_mean":`)
	out.Float64(m.regMean)
	out.RawString(`,"reg_std":`)
	out.Float64(m.regStd)
	out.RawString(`,"sigma":`)
	out.Float64(m.sigma)
	out.RawByte('}')
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (m *Model) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "kind":
			if k := in.String(); k != Kind {
				in.AddError(fmt.Errorf("model kind %q, want %q", k, Kind))
			}
		case "version":
			if v := in.Int(); v != formatVersion {
				in.AddError(fmt.Errorf("model format version %d, want %d", v, formatVersion))
			}
		case "fitted_at":
			in.AddError(m.fittedAt.UnmarshalJSON(in.Raw()))
		case "config":
			readConfig(in, &m.cfg)
		case "seasonalities":
			m.seasonalities = readSeasonalities(in)
		case "regressor":
			m.regressor = in.String()
		case "start":
			in.AddError(m.start.UnmarshalJSON(in.Raw()))
		case "span_days":
			m.spanDays = in.Float64()
		case "y_scale":
			m.yScale = in.Float64()
		case "changepoints":
			m.changepoints = readFloats(in)
		case "trend":
			m.trend = readFloats(in)
		case "beta":
			m.beta = readFloats(in)
		case "reg_mean":
			m.regMean = in.Float64()
		case "reg_std":
			m.regStd = in.Float64()
		case "sigma":
			m.sigma = in.Float64()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
	m.start = m.start.UTC()
	m.fittedAt = m.fittedAt.UTC()
}

func writeConfig(out *jwriter.Writer, c models.ModelConfig) {
	out.RawString(`{"seasonality_mode":`)
	out.String(c.SeasonalityMode)
	out.RawString(`,"yearly_seasonality":`)
	out.Bool(c.YearlySeasonality)
	out.RawString(`,"weekly_seasonality":`)
	out.Bool(c.WeeklySeasonality)
	out.RawString(`,"daily_seasonality":`)
	out.Bool(c.DailySeasonality)
	out.RawString(`,"changepoint_prior_scale":`)
	out.Float64(c.ChangepointPriorScale)
	out.RawString(`,"seasonality_prior_scale":`)
	out.Float64(c.SeasonalityPriorScale)
	out.RawString(`,"changepoint_range":`)
	out.Float64(c.ChangepointRange)
	out.RawString(`,"n_changepoints":`)
	out.Int(c.NChangepoints)
	out.RawString(`,"interval_width":`)
	out.Float64(c.IntervalWidth)
	out.RawString(`,"add_volume_regressor":`)
	out.Bool(c.AddVolumeRegressor)
	out.RawByte('}')
}

func readConfig(in *jlexer.Lexer, c *models.ModelConfig) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		switch key {
		case "seasonality_mode":
			c.SeasonalityMode = in.String()
		case "yearly_seasonality":
			c.YearlySeasonality = in.Bool()
		case "weekly_seasonality":
			c.WeeklySeasonality = in.Bool()
		case "daily_seasonality":
			c.DailySeasonality = in.Bool()
		case "changepoint_prior_scale":
			c.ChangepointPriorScale = in.Float64()
		case "seasonality_prior_scale":
			c.SeasonalityPriorScale = in.Float64()
		case "changepoint_range":
			c.ChangepointRange = in.Float64()
		case "n_changepoints":
			c.NChangepoints = in.Int()
		case "interval_width":
			c.IntervalWidth = in.Float64()
		case "add_volume_regressor":
			c.AddVolumeRegressor = in.Bool()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func readSeasonalities(in *jlexer.Lexer) []models.Seasonality {
	out := []models.Seasonality{}
	in.Delim('[')
	for !in.IsDelim(']') {
		var s models.Seasonality
		in.Delim('{')
		for !in.IsDelim('}') {
			key := in.UnsafeFieldName(false)
			in.WantColon()
			switch key {
			case "name":
				s.Name = in.String()
			case "period":
				s.Period = in.Float64()
			case "fourier_order":
				s.FourierOrder = in.Int()
			default:
				in.SkipRecursive()
			}
			in.WantComma()
		}
		in.Delim('}')
		out = append(out, s)
		in.WantComma()
	}
	in.Delim(']')
	return out
}

func writeFloats(out *jwriter.Writer, xs []float64) {
	out.RawByte('[')
	for i, x := range xs {
		if i > 0 {
			out.RawByte(',')
		}
		out.Float64(x)
	}
	out.RawByte(']')
}

func readFloats(in *jlexer.Lexer) []float64 {
	out := []float64{}
	in.Delim('[')
	for !in.IsDelim(']') {
		out = append(out, in.Float64())
		in.WantComma()
	}
	in.Delim(']')
	return out
}


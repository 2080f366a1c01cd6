package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CryptoCast/internal/domain/models"
	drepo "CryptoCast/internal/domain/repository"
	"CryptoCast/internal/domain/service"
	"CryptoCast/internal/services/features"
	"CryptoCast/internal/services/forecast"
	"CryptoCast/internal/services/ingestion"
	"CryptoCast/internal/services/training"
	"CryptoCast/internal/services/validation"
	"CryptoCast/pkg/logger"
)

// HistoryFetcher downloads the raw price history.
type HistoryFetcher interface {
	Fetch(ctx context.Context) (*models.RawSeries, ingestion.Stats, error)
}

// StepsConfig holds the run parameters shared by all nodes.
type StepsConfig struct {
	Symbol       string
	TestDays     int
	Horizon      int
	UseRegressor bool
}

// Steps wires the pipeline nodes to their collaborators.
type Steps struct {
	Fetcher    HistoryFetcher
	Validator  *validation.Validator
	Builder    *features.Builder
	Trainer    *training.Trainer
	Evaluator  *training.Evaluator
	Engine     *forecast.Engine
	Forecaster service.Forecaster
	Store      drepo.ArtifactStore
	Archive    drepo.CandleArchive
	Publisher  drepo.Publisher
	Metrics    drepo.Metrics
	Config     StepsConfig
	Log        *logger.Logger

	now func() time.Time
}

// slots binds every edge of the graph to its persisted artifact.
type slots struct {
	raw       Slot[*models.RawSeries]
	validated Slot[*models.RawSeries]
	full      Slot[*models.Dataset]
	split     Slot[*models.Split]
	model     Slot[service.ModelHandle]
	metrics   Slot[models.EvaluationMetrics]
	report    Slot[*models.ModelReport]
	forecast  Slot[*models.Forecast]
}

func (s *Steps) slots() slots {
	return slots{
		raw: Slot[*models.RawSeries]{Name: "raw_klines"},
		validated: Slot[*models.RawSeries]{Name: "validated_klines", Load: func(ctx context.Context) (*models.RawSeries, error) {
			return s.Store.LoadRawSeries(ctx)
		}},
		full: Slot[*models.Dataset]{Name: "full_dataset", Load: func(ctx context.Context) (*models.Dataset, error) {
			return s.Store.LoadDataset(ctx, drepo.DatasetFull)
		}},
		split: Slot[*models.Split]{Name: "train_test_split", Load: s.loadSplit},
		model: Slot[service.ModelHandle]{Name: "trained_model", Load: s.loadModel},
		metrics: Slot[models.EvaluationMetrics]{Name: "evaluation_metrics", Load: func(ctx context.Context) (models.EvaluationMetrics, error) {
			r, err := s.Store.LoadReport(ctx)
			if err != nil {
				return models.EvaluationMetrics{}, err
			}
			return r.Metrics, nil
		}},
		report:   Slot[*models.ModelReport]{Name: "model_report", Load: s.Store.LoadReport},
		forecast: Slot[*models.Forecast]{Name: "forecast"},
	}
}

func (s *Steps) loadSplit(ctx context.Context) (*models.Split, error) {
	train, err := s.Store.LoadDataset(ctx, drepo.DatasetTrain)
	if err != nil {
		return nil, err
	}
	test, err := s.Store.LoadDataset(ctx, drepo.DatasetTest)
	if err != nil {
		return nil, err
	}
	if train.Len() == 0 || test.Len() == 0 {
		return nil, fmt.Errorf("%w: persisted partition is empty", models.ErrInsufficientData)
	}
	return &models.Split{Cutoff: train.Last().Date, Train: *train, Test: *test}, nil
}

func (s *Steps) loadModel(ctx context.Context) (service.ModelHandle, error) {
	art, err := s.Store.LoadModel(ctx)
	if err != nil {
		return nil, err
	}
	h, err := s.Forecaster.Deserialize(art.Blob)
	if err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	return h, nil
}

func (s *Steps) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Steps) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

// Pipelines builds the named pipelines. __default__ runs every node.
func (s *Steps) Pipelines() (map[string]*Pipeline, error) {
	sl := s.slots()

	fetchKlines := Node{
		Name:    "fetch_klines",
		Outputs: Out(sl.raw),
		Run: func(ctx context.Context, st *State) error {
			raw, stats, err := s.Fetcher.Fetch(ctx)
			s.Metrics.RecordFetch(stats.Pages, stats.Rows, stats.Retries)
			if err != nil {
				return err
			}
			Put(st, sl.raw, raw)
			return nil
		},
	}
	validateRaw := Node{
		Name:    "validate_raw",
		Inputs:  In(sl.raw),
		Outputs: Out(sl.validated),
		Run: func(ctx context.Context, st *State) error {
			clean, err := s.Validator.Validate(Get(st, sl.raw))
			if err != nil {
				return err
			}
			if err := s.Store.SaveRawSeries(ctx, clean); err != nil {
				return fmt.Errorf("persist raw klines: %w", err)
			}
			if s.Archive != nil {
				if err := s.Archive.SaveCandles(ctx, clean); err != nil {
					s.log().Warn("candle archive failed", logger.Error(err))
				}
			}
			Put(st, sl.validated, clean)
			return nil
		},
	}
	buildFeatures := Node{
		Name:    "build_features",
		Inputs:  In(sl.validated),
		Outputs: Out(sl.full),
		Run: func(ctx context.Context, st *State) error {
			ds, err := s.Builder.Build(Get(st, sl.validated))
			if err != nil {
				return err
			}
			if err := s.Store.SaveDataset(ctx, drepo.DatasetFull, ds); err != nil {
				return fmt.Errorf("persist full dataset: %w", err)
			}
			Put(st, sl.full, ds)
			return nil
		},
	}
	splitTrainTest := Node{
		Name:    "split_train_test",
		Inputs:  In(sl.full),
		Outputs: Out(sl.split),
		Run: func(ctx context.Context, st *State) error {
			sp, err := features.Split(Get(st, sl.full), s.Config.TestDays)
			if err != nil {
				return err
			}
			if err := s.Store.SaveDataset(ctx, drepo.DatasetTrain, &sp.Train); err != nil {
				return fmt.Errorf("persist train partition: %w", err)
			}
			if err := s.Store.SaveDataset(ctx, drepo.DatasetTest, &sp.Test); err != nil {
				return fmt.Errorf("persist test partition: %w", err)
			}
			Put(st, sl.split, sp)
			return nil
		},
	}
	trainModel := Node{
		Name:    "train_model",
		Inputs:  In(sl.split),
		Outputs: Out(sl.model),
		Run: func(ctx context.Context, st *State) error {
			sp := Get(st, sl.split)
			h, err := s.Trainer.Train(ctx, &sp.Train)
			if err != nil {
				return err
			}
			blob, err := s.Forecaster.Serialize(h)
			if err != nil {
				return fmt.Errorf("encode model: %w", err)
			}
			if err := s.Store.SaveModel(ctx, blob); err != nil {
				return fmt.Errorf("persist model: %w", err)
			}
			Put(st, sl.model, h)
			return nil
		},
	}
	evaluateModel := Node{
		Name:    "evaluate_model",
		Inputs:  In(sl.model, sl.split),
		Outputs: Out(sl.metrics),
		Run: func(_ context.Context, st *State) error {
			sp := Get(st, sl.split)
			m, err := s.Evaluator.Evaluate(Get(st, sl.model), &sp.Test, s.Config.UseRegressor)
			if err != nil {
				return err
			}
			Put(st, sl.metrics, m)
			return nil
		},
	}
	buildReport := Node{
		Name:    "build_report",
		Inputs:  In(sl.model, sl.split, sl.metrics),
		Outputs: Out(sl.report),
		Run: func(ctx context.Context, st *State) error {
			h := Get(st, sl.model)
			m := Get(st, sl.metrics)
			r := training.BuildReport(h.Kind(), s.clock(), h.Config(), Get(st, sl.split), m)
			if err := s.Store.SaveReport(ctx, r); err != nil {
				return fmt.Errorf("persist report: %w", err)
			}
			s.Metrics.RecordModelMetrics(m)
			Put(st, sl.report, r)
			return nil
		},
	}
	forecastNode := Node{
		Name:    "forecast",
		Inputs:  In(sl.model, sl.full),
		Outputs: Out(sl.forecast),
		Run: func(ctx context.Context, st *State) error {
			fc, err := s.Engine.Forecast(Get(st, sl.model), Get(st, sl.full), s.Config.Horizon, s.Config.UseRegressor)
			if err != nil {
				return err
			}
			if err := s.Store.SavePredictions(ctx, fc.Rows); err != nil {
				return fmt.Errorf("persist predictions: %w", err)
			}
			if err := s.Store.SaveForecastSummary(ctx, &fc.Summary); err != nil {
				return fmt.Errorf("persist forecast summary: %w", err)
			}
			if s.Publisher != nil {
				if err := s.Publisher.PublishForecast(ctx, s.Config.Symbol, &fc.Summary); err != nil {
					s.log().Warn("forecast publish failed", logger.Error(err))
				}
			}
			Put(st, sl.forecast, fc)
			return nil
		},
	}

	groups := map[string][]Node{
		models.PipelineDataIngestion:  {fetchKlines, validateRaw},
		models.PipelineDataProcessing: {buildFeatures, splitTrainTest},
		models.PipelineModelTraining:  {trainModel, evaluateModel, buildReport},
		models.PipelineInference:      {forecastNode},
	}
	groups[models.PipelineDefault] = []Node{
		fetchKlines, validateRaw,
		buildFeatures, splitTrainTest,
		trainModel, evaluateModel, buildReport,
		forecastNode,
	}

	out := make(map[string]*Pipeline, len(groups))
	for name, nodes := range groups {
		p, err := NewPipeline(name, nodes...)
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

// PipelineNames lists the registered pipeline names in sorted order.
func PipelineNames(ps map[string]*Pipeline) []string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}


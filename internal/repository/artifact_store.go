package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"CryptoCast/internal/domain/models"
	domrepo "CryptoCast/internal/domain/repository"
	applogger "CryptoCast/pkg/logger"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetParallelism = 4

// Artifact paths relative to the store root.
const (
	modelFile       = "models/model.json"
	rawFile         = "raw/candles.parquet"
	reportFile      = "reports/model_report.json"
	summaryFile     = "reports/forecast_summary.json"
	predictionsFile = "predictions/future.parquet"
)

func datasetFile(name domrepo.DatasetName) string {
	return filepath.Join("features", string(name)+".parquet")
}

// FileArtifactStore keeps artifacts under one directory. Every write goes to
// a temp file in the target directory that is synced and renamed into place.
type FileArtifactStore struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)

func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileArtifactStore{dir: abs, l: applogger.Nop()}, nil
}

// SetLogger injects a structured logger.
func (s *FileArtifactStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *FileArtifactStore) Location() string { return s.dir }

func (s *FileArtifactStore) path(rel string) string { return filepath.Join(s.dir, rel) }

func (s *FileArtifactStore) exists(rel string) (bool, error) {
	_, err := os.Stat(s.path(rel))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *FileArtifactStore) ModelExists(_ context.Context) (bool, error) {
	return s.exists(modelFile)
}

func (s *FileArtifactStore) SaveModel(_ context.Context, blob []byte) error {
	if err := s.writeAtomic(modelFile, func(tmp string) error {
		return os.WriteFile(tmp, blob, 0o644)
	}); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	s.l.Info("model artifact saved", applogger.String("path", s.path(modelFile)), applogger.Int("bytes", len(blob)))
	return nil
}

// LoadModel returns the blob with the time it was written.
func (s *FileArtifactStore) LoadModel(_ context.Context) (*domrepo.ModelArtifact, error) {
	p := s.path(modelFile)
	st, err := os.Stat(p)
	if err != nil {
		return nil, missing("model", err)
	}
	blob, err := os.ReadFile(p)
	if err != nil {
		return nil, missing("model", err)
	}
	return &domrepo.ModelArtifact{Blob: blob, CreatedAt: st.ModTime().UTC()}, nil
}

func (s *FileArtifactStore) SaveRawSeries(_ context.Context, rs *models.RawSeries) error {
	rows := make([]candleRow, len(rs.Candles))
	for i, c := range rs.Candles {
		rows[i] = toCandleRow(rs.Symbol, rs.Interval, c)
	}
	if err := s.writeParquet(rawFile, new(candleRow), rows); err != nil {
		return fmt.Errorf("save raw series: %w", err)
	}
	return nil
}

func (s *FileArtifactStore) LoadRawSeries(_ context.Context) (*models.RawSeries, error) {
	var rows []candleRow
	if err := readParquet(s.path(rawFile), new(candleRow), &rows); err != nil {
		return nil, missing("raw series", err)
	}
	out := &models.RawSeries{Fields: append([]string(nil), models.KlineFields...), Candles: make([]models.RawCandle, 0, len(rows))}
	for i, r := range rows {
		if i == 0 {
			out.Symbol, out.Interval = r.Symbol, r.Interval
		}
		c, err := r.candle()
		if err != nil {
			return nil, fmt.Errorf("decode raw row %d: %w", i, err)
		}
		out.Candles = append(out.Candles, c)
	}
	return out, nil
}

func (s *FileArtifactStore) DatasetExists(_ context.Context, name domrepo.DatasetName) (bool, error) {
	return s.exists(datasetFile(name))
}

func (s *FileArtifactStore) SaveDataset(_ context.Context, name domrepo.DatasetName, ds *models.Dataset) error {
	rows := make([]exampleRow, len(ds.Rows))
	for i, ex := range ds.Rows {
		rows[i] = toExampleRow(ex, ds.HasRegressor())
	}
	if err := s.writeParquet(datasetFile(name), new(exampleRow), rows); err != nil {
		return fmt.Errorf("save %s dataset: %w", name, err)
	}
	s.l.Info("dataset artifact saved", applogger.String("name", string(name)), applogger.Int("rows", len(rows)))
	return nil
}

// LoadDataset reads a dataset back. A regressor column with any value marks
// the dataset as carrying the volume regressor.
func (s *FileArtifactStore) LoadDataset(_ context.Context, name domrepo.DatasetName) (*models.Dataset, error) {
	var rows []exampleRow
	if err := readParquet(s.path(datasetFile(name)), new(exampleRow), &rows); err != nil {
		return nil, missing(string(name)+" dataset", err)
	}
	ds := &models.Dataset{Rows: make([]models.TrainingExample, len(rows))}
	for i, r := range rows {
		ds.Rows[i] = r.example()
		if r.Regressor != nil {
			ds.Regressor = models.RegressorVolume
		}
	}
	return ds, nil
}

func (s *FileArtifactStore) SaveReport(_ context.Context, r *models.ModelReport) error {
	return s.writeJSON(reportFile, r)
}

func (s *FileArtifactStore) LoadReport(_ context.Context) (*models.ModelReport, error) {
	var r models.ModelReport
	if err := s.readJSON(reportFile, &r); err != nil {
		return nil, missing("model report", err)
	}
	return &r, nil
}

func (s *FileArtifactStore) SaveForecastSummary(_ context.Context, sum *models.ForecastSummary) error {
	return s.writeJSON(summaryFile, sum)
}

func (s *FileArtifactStore) LoadForecastSummary(_ context.Context) (*models.ForecastSummary, error) {
	var sum models.ForecastSummary
	if err := s.readJSON(summaryFile, &sum); err != nil {
		return nil, missing("forecast summary", err)
	}
	return &sum, nil
}

func (s *FileArtifactStore) SavePredictions(_ context.Context, rows []models.ForecastRow) error {
	out := make([]predictionRow, len(rows))
	for i, r := range rows {
		out[i] = toPredictionRow(r)
	}
	if err := s.writeParquet(predictionsFile, new(predictionRow), out); err != nil {
		return fmt.Errorf("save predictions: %w", err)
	}
	return nil
}

func (s *FileArtifactStore) LoadPredictions(_ context.Context) ([]models.ForecastRow, error) {
	var rows []predictionRow
	if err := readParquet(s.path(predictionsFile), new(predictionRow), &rows); err != nil {
		return nil, missing("predictions", err)
	}
	out := make([]models.ForecastRow, len(rows))
	for i, r := range rows {
		out[i] = r.forecastRow()
	}
	return out, nil
}

func (s *FileArtifactStore) writeJSON(rel string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return s.writeAtomic(rel, func(tmp string) error {
		return os.WriteFile(tmp, b, 0o644)
	})
}

func (s *FileArtifactStore) readJSON(rel string, v interface{}) error {
	b, err := os.ReadFile(s.path(rel))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", rel, err)
	}
	return nil
}

func (s *FileArtifactStore) writeParquet(rel string, schema interface{}, rows interface{}) error {
	return s.writeAtomic(rel, func(tmp string) error {
		fw, err := local.NewLocalFileWriter(tmp)
		if err != nil {
			return fmt.Errorf("create parquet file: %w", err)
		}
		pw, err := writer.NewParquetWriter(fw, schema, parquetParallelism)
		if err != nil {
			fw.Close()
			return fmt.Errorf("create parquet writer: %w", err)
		}
		pw.CompressionType = parquet.CompressionCodec_GZIP

		if err := writeRows(pw, rows); err != nil {
			fw.Close()
			return err
		}
		if err := pw.WriteStop(); err != nil {
			fw.Close()
			return fmt.Errorf("finalize parquet file: %w", err)
		}
		return fw.Close()
	})
}

func writeRows(pw *writer.ParquetWriter, rows interface{}) error {
	write := func(v interface{}) error {
		if err := pw.Write(v); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
		return nil
	}
	switch rs := rows.(type) {
	case []candleRow:
		for _, r := range rs {
			if err := write(r); err != nil {
				return err
			}
		}
	case []exampleRow:
		for _, r := range rs {
			if err := write(r); err != nil {
				return err
			}
		}
	case []predictionRow:
		for _, r := range rs {
			if err := write(r); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported parquet rows %T", rows)
	}
	return nil
}

// readParquet fills dst, a pointer to a slice of schema's type.
func readParquet(path string, schema interface{}, dst interface{}) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return fmt.Errorf("open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, schema, parquetParallelism)
	if err != nil {
		return fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	switch d := dst.(type) {
	case *[]candleRow:
		*d = make([]candleRow, n)
	case *[]exampleRow:
		*d = make([]exampleRow, n)
	case *[]predictionRow:
		*d = make([]predictionRow, n)
	default:
		return fmt.Errorf("unsupported parquet destination %T", dst)
	}
	if n == 0 {
		return nil
	}
	if err := pr.Read(dst); err != nil {
		return fmt.Errorf("read parquet rows: %w", err)
	}
	return nil
}

// writeAtomic lets write produce a temp file next to rel, syncs it and
// renames it over rel. The temp file is removed on any failure.
func (s *FileArtifactStore) writeAtomic(rel string, write func(tmp string) error) error {
	final := s.path(rel)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(final)+".tmp-"+uuid.NewString())
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := syncPath(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return err
	}
	// best effort: persist the rename itself
	_ = syncPath(dir)
	return nil
}

func syncPath(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func missing(what string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", models.ErrArtifactMissing, what)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

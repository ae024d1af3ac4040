// Package pipeline orchestrates one fine-tuning run: dataset load, shuffle,
// split, label expansion, featurization, model assembly, training and
// artifact persistence. Any error aborts the run; nothing is retried.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ctrellis/textclass/textclass/config"
	"github.com/ctrellis/textclass/textclass/dataset"
	"github.com/ctrellis/textclass/textclass/features"
	"github.com/ctrellis/textclass/textclass/model"
	"github.com/ctrellis/textclass/textclass/runs"
	"github.com/ctrellis/textclass/textclass/tokenizer"

	"github.com/gomlx/gomlx/backends"
)

// Runner owns the execution state for one run: configuration and the compute
// backend. Nothing survives across runs.
type Runner struct {
	cfg     *config.Config
	backend backends.Backend
}

// Result reports what a completed run produced.
type Result struct {
	LabelValues []string
	TrainSize   int
	TestSize    int
	Metrics     *model.Metrics
	ArtifactDir string
}

// New creates a runner bound to the given configuration and backend.
func New(cfg *config.Config, backend backends.Backend) *Runner {
	return &Runner{cfg: cfg, backend: backend}
}

// Run executes the full pipeline against one dataset file.
func (r *Runner) Run(ctx context.Context, datasetPath string) (*Result, error) {
	cfg := r.cfg

	table, err := dataset.Load(datasetPath)
	if err != nil {
		return nil, err
	}
	table.Shuffle(cfg.Train.Seed)

	// The label vocabulary is computed once on the full table so train and
	// test label matrices share column count and ordering.
	vocab, err := dataset.Values(table, cfg.Data.LabelColumn)
	if err != nil {
		return nil, err
	}
	trainTable, testTable := table.Split(cfg.Train.TrainFraction)
	slog.Info("Preprocessing, tokenizing and converting datasets",
		"rows", table.Len(), "train", trainTable.Len(), "test", testTable.Len(), "labels", len(vocab))

	trainExamples, err := r.buildExamples(trainTable, vocab)
	if err != nil {
		return nil, err
	}
	testExamples, err := r.buildExamples(testTable, vocab)
	if err != nil {
		return nil, err
	}

	files, err := tokenizer.Fetch(cfg.Model.ID, cfg.Model.File, cfg.Model.CacheDir)
	if err != nil {
		return nil, err
	}
	tok, err := tokenizer.NewWordPiece(files)
	if err != nil {
		return nil, err
	}

	featurizer := features.NewFeaturizer(tok, cfg.Model.MaxSeqLen, len(vocab))
	featurizer.ShowProgress = true
	trainBatch, err := featurizer.ConvertAll(ctx, features.PadToMultiple(trainExamples, cfg.Train.BatchSize))
	if err != nil {
		return nil, err
	}
	testBatch, err := featurizer.ConvertAll(ctx, testExamples)
	if err != nil {
		return nil, err
	}

	pooling, err := model.ParsePooling(cfg.Model.Pooling)
	if err != nil {
		return nil, err
	}

	slog.Info("Building model", "model", cfg.Model.ID, "pooling", pooling.String())
	classifier, err := model.NewClassifier(r.backend, files, pooling,
		cfg.Model.MaxSeqLen, len(vocab), cfg.Model.FineTuneLayers)
	if err != nil {
		return nil, err
	}
	defer classifier.Close()

	metrics, err := classifier.Train(trainBatch, testBatch, model.TrainParams{
		Epochs:       cfg.Train.Epochs,
		BatchSize:    cfg.Train.BatchSize,
		LearningRate: cfg.Train.LearningRate,
	})
	if err != nil {
		return nil, err
	}

	if err := classifier.Save(cfg.Artifact.Dir, cfg.Model.ID, vocab); err != nil {
		return nil, err
	}
	info, numVars, err := model.VerifyArtifact(cfg.Artifact.Dir)
	if err != nil {
		return nil, fmt.Errorf("artifact verification failed: %w", err)
	}
	slog.Info("Verified artifact", "dir", cfg.Artifact.Dir, "variables", numVars, "labels", len(info.LabelValues))

	if err := r.recordRun(datasetPath, vocab, pooling, metrics); err != nil {
		// The artifact is already on disk; a ledger failure should not undo
		// the run, only surface loudly.
		slog.Error("Failed to record run in ledger", "error", err)
	}

	return &Result{
		LabelValues: vocab,
		TrainSize:   len(trainExamples),
		TestSize:    len(testExamples),
		Metrics:     metrics,
		ArtifactDir: cfg.Artifact.Dir,
	}, nil
}

// buildExamples extracts text and one-hot labels for a split. Texts are
// pre-trimmed to maxSeqLen whitespace words; the featurizer applies the real
// subword-level truncation.
func (r *Runner) buildExamples(t *dataset.Table, vocab []string) ([]features.Example, error) {
	texts, err := t.Column(r.cfg.Data.TextColumn)
	if err != nil {
		return nil, err
	}
	labels, err := dataset.Expand(t, r.cfg.Data.LabelColumn, vocab)
	if err != nil {
		return nil, err
	}
	trimmed := make([]string, len(texts))
	for i, text := range texts {
		trimmed[i] = trimWords(text, r.cfg.Model.MaxSeqLen)
	}
	return features.NewExamples(trimmed, labels), nil
}

// trimWords keeps at most maxWords whitespace-separated words.
func trimWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}

func (r *Runner) recordRun(datasetPath string, vocab []string, pooling model.Pooling, metrics *model.Metrics) error {
	if r.cfg.Artifact.LedgerPath == "" {
		return nil
	}
	ledger, err := runs.Open(r.cfg.Artifact.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	return ledger.Record(&runs.Run{
		DatasetPath: datasetPath,
		ModelID:     r.cfg.Model.ID,
		Pooling:     pooling.String(),
		LabelValues: vocab,
		Metrics: map[string]float64{
			"subset_accuracy":    metrics.SubsetAccuracy,
			"per_label_accuracy": metrics.PerLabelAccuracy,
		},
		ArtifactDir: r.cfg.Artifact.Dir,
	})
}

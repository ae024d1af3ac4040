package model

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ctrellis/textclass/textclass/features"

	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	data "github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
)

// TrainParams are the training-loop knobs the driver passes through.
type TrainParams struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
}

// Train fine-tunes the composite model on the train batch and evaluates on
// the held-out batch after each run. Returns validation metrics.
func (c *Classifier) Train(trainBatch, testBatch *features.Batch, params TrainParams) (*Metrics, error) {
	if trainBatch.Len() == 0 {
		return nil, fmt.Errorf("empty training batch")
	}

	trainDS, err := newDataset(c.backend, "train", trainBatch, params.BatchSize, true)
	if err != nil {
		return nil, fmt.Errorf("build train dataset: %w", err)
	}

	c.ctx.SetParam(optimizers.ParamLearningRate, params.LearningRate)
	modelFn := func(ctx *context.Context, spec any, inputs []*Node) []*Node {
		return []*Node{c.forward(ctx, inputs[0], inputs[1], inputs[2])}
	}
	trainer := train.NewTrainer(c.backend, c.ctx, modelFn,
		losses.BinaryCrossentropyLogits,
		optimizers.Adam().Done(),
		nil, nil)
	loop := train.NewLoop(trainer)

	slog.Info("Training", "epochs", params.Epochs, "batchSize", params.BatchSize,
		"examples", trainBatch.Len(), "learningRate", params.LearningRate)
	if _, err := loop.RunEpochs(trainDS, params.Epochs); err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	probs, err := c.Predict(testBatch)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	metrics := Evaluate(probs, testBatch.Labels)
	slog.Info("Validation", "examples", testBatch.Len(),
		"subsetAccuracy", metrics.SubsetAccuracy, "perLabelAccuracy", metrics.PerLabelAccuracy)
	return &metrics, nil
}

// Predict runs the forward pass over a featurized batch and returns per-class
// sigmoid probabilities, in input order.
func (c *Classifier) Predict(batch *features.Batch) ([][]float32, error) {
	if batch.Len() == 0 {
		return [][]float32{}, nil
	}
	idsT, maskT, segT, _ := batchTensors(batch)

	output := context.MustExecOnce(c.backend, c.ctx.Reuse(),
		func(ctx *context.Context, inputIDs, inputMask, segmentIDs *Node) *Node {
			return Sigmoid(c.forward(ctx, inputIDs, inputMask, segmentIDs))
		},
		idsT, maskT, segT)

	dims := output.Shape().Dimensions
	if len(dims) != 2 {
		return nil, fmt.Errorf("unexpected prediction rank %d", len(dims))
	}
	flat := tensors.MustCopyFlatData[float32](output)
	rows, cols := dims[0], dims[1]
	probs := make([][]float32, rows)
	for r := 0; r < rows; r++ {
		probs[r] = append([]float32(nil), flat[r*cols:(r+1)*cols]...)
	}
	return probs, nil
}

// newDataset wraps a featurized batch as a GoMLX in-memory dataset.
func newDataset(backend backends.Backend, name string, batch *features.Batch, batchSize int, training bool) (train.Dataset, error) {
	idsT, maskT, segT, labelT := batchTensors(batch)
	ds, err := data.InMemoryFromData(backend, name,
		[]any{idsT, maskT, segT}, []any{labelT})
	if err != nil {
		return nil, err
	}
	if training {
		return ds.BatchSize(batchSize, true).Shuffle(), nil
	}
	return ds.BatchSize(batchSize, false), nil
}

func batchTensors(batch *features.Batch) (ids, mask, segments, labels *tensors.Tensor) {
	n := batch.Len()
	seqLen := len(batch.InputIDs[0])
	numClasses := len(batch.Labels[0])

	flatIDs := make([]int64, n*seqLen)
	flatMask := make([]int64, n*seqLen)
	flatSegments := make([]int64, n*seqLen)
	flatLabels := make([]float32, n*numClasses)
	for i := 0; i < n; i++ {
		copy(flatIDs[i*seqLen:], batch.InputIDs[i])
		copy(flatMask[i*seqLen:], batch.InputMask[i])
		copy(flatSegments[i*seqLen:], batch.SegmentIDs[i])
		for j, v := range batch.Labels[i] {
			flatLabels[i*numClasses+j] = float32(v)
		}
	}

	ids = tensors.FromFlatDataAndDimensions(flatIDs, n, seqLen)
	mask = tensors.FromFlatDataAndDimensions(flatMask, n, seqLen)
	segments = tensors.FromFlatDataAndDimensions(flatSegments, n, seqLen)
	labels = tensors.FromFlatDataAndDimensions(flatLabels, n, numClasses)
	return ids, mask, segments, labels
}

// ArtifactInfo is the sidecar metadata written next to the checkpoint so the
// artifact can be re-loaded with consistent featurization and label order.
type ArtifactInfo struct {
	ModelID     string   `json:"model_id"`
	Pooling     string   `json:"pooling"`
	MaxSeqLen   int      `json:"max_seq_len"`
	LabelValues []string `json:"label_values"`
}

const artifactInfoFile = "labels.json"

// Save writes the trained weights as a GoMLX checkpoint plus the artifact
// metadata sidecar. Nothing is written before this point, so an aborted run
// leaves no partial artifact.
func (c *Classifier) Save(dir, modelID string, labelValues []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	checkpoint, err := checkpoints.Build(c.ctx).Dir(dir).Done()
	if err != nil {
		return fmt.Errorf("open checkpoint at %s: %w", dir, err)
	}
	if err := checkpoint.Save(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	info := ArtifactInfo{
		ModelID:     modelID,
		Pooling:     c.pooling.String(),
		MaxSeqLen:   c.maxSeqLen,
		LabelValues: labelValues,
	}
	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, artifactInfoFile), b, 0o644); err != nil {
		return fmt.Errorf("write artifact metadata: %w", err)
	}
	slog.Info("Saved model artifact", "dir", dir, "labels", len(labelValues))
	return nil
}

// VerifyArtifact re-reads a saved artifact: metadata sidecar plus checkpoint
// variables loaded into a fresh context. Returns the metadata and the number
// of restored variables.
func VerifyArtifact(dir string) (*ArtifactInfo, int, error) {
	b, err := os.ReadFile(filepath.Join(dir, artifactInfoFile))
	if err != nil {
		return nil, 0, fmt.Errorf("read artifact metadata: %w", err)
	}
	var info ArtifactInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, 0, fmt.Errorf("parse artifact metadata: %w", err)
	}
	if _, err := ParsePooling(info.Pooling); err != nil {
		return nil, 0, err
	}

	ctx := context.New()
	if _, err := checkpoints.Build(ctx).Dir(dir).Done(); err != nil {
		return nil, 0, fmt.Errorf("load checkpoint at %s: %w", dir, err)
	}
	numVars := 0
	ctx.EnumerateVariables(func(v *context.Variable) { numVars++ })
	return &info, numVars, nil
}

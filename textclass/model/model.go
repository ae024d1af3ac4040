// Package model assembles the pretrained encoder with a feed-forward
// classification head and fine-tunes the composite end to end. The encoder
// graph and weights come from the hub as ONNX and are loaded into a GoMLX
// context so the top layers stay differentiable; the optimizer, loss and
// training loop are GoMLX's.
package model

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctrellis/textclass/textclass/tokenizer"

	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/onnx-gomlx/onnx"
	"github.com/gomlx/onnx-gomlx/onnx/parser"
)

// Classifier composes the pretrained encoder with a hidden ReLU layer of the
// sequence-length width and a per-class sigmoid output layer.
type Classifier struct {
	backend backends.Backend
	ctx     *context.Context
	encoder onnx.Model

	pooling        Pooling
	maxSeqLen      int
	numClasses     int
	fineTuneLayers int

	hasSegmentInput  bool
	hasPooledOutput  bool
	frozenVariables  int
	encoderVariables int
}

// NewClassifier loads the encoder graph from the fetched model files and
// prepares its weights as context variables, freezing everything below the
// top fineTuneLayers encoder layers.
func NewClassifier(backend backends.Backend, files *tokenizer.ModelFiles, pooling Pooling, maxSeqLen, numClasses, fineTuneLayers int) (*Classifier, error) {
	encoder, err := parser.ParseFile(files.EncoderPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load encoder graph %s: %v", tokenizer.ErrModelFetch, files.EncoderPath, err)
	}

	ctx := context.New()
	if err := encoder.VariablesToContext(ctx); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("load encoder weights: %w", err)
	}

	c := &Classifier{
		backend:        backend,
		ctx:            ctx,
		encoder:        encoder,
		pooling:        pooling,
		maxSeqLen:      maxSeqLen,
		numClasses:     numClasses,
		fineTuneLayers: fineTuneLayers,
	}

	inputNames, _ := encoder.Inputs()
	for _, name := range inputNames {
		if name == "token_type_ids" {
			c.hasSegmentInput = true
		}
	}
	outputNames, _ := encoder.Outputs()
	c.hasPooledOutput = len(outputNames) > 1

	c.freezeEncoder()

	slog.Info("Assembled classifier",
		"pooling", pooling.String(),
		"maxSeqLen", maxSeqLen,
		"numClasses", numClasses,
		"fineTuneLayers", fineTuneLayers,
		"frozenVariables", c.frozenVariables,
		"encoderVariables", c.encoderVariables)

	return c, nil
}

// Close releases the encoder graph.
func (c *Classifier) Close() {
	if c.encoder != nil {
		c.encoder.Close()
		c.encoder = nil
	}
}

// Context exposes the variable context holding encoder and head weights.
func (c *Classifier) Context() *context.Context { return c.ctx }

var encoderLayerRe = regexp.MustCompile(`encoder[./]layer[./](\d+)[./]`)

// freezeEncoder marks encoder variables below the fine-tune depth as not
// trainable. Pooler parameters train only in first-pooling mode since the
// mean branch never touches them.
func (c *Classifier) freezeEncoder() {
	// Pass one: find the encoder depth.
	maxLayer := -1
	c.ctx.EnumerateVariables(func(v *context.Variable) {
		if m := encoderLayerRe.FindStringSubmatch(variablePath(v)); m != nil {
			if idx, err := strconv.Atoi(m[1]); err == nil && idx > maxLayer {
				maxLayer = idx
			}
		}
	})
	cutoff := maxLayer + 1 - c.fineTuneLayers

	c.ctx.EnumerateVariables(func(v *context.Variable) {
		path := variablePath(v)
		c.encoderVariables++
		trainable := false
		switch {
		case strings.Contains(path, "pooler"):
			trainable = c.pooling == PoolingFirst
		case strings.Contains(path, "/cls/") || strings.Contains(path, ".cls."):
			trainable = false
		default:
			if m := encoderLayerRe.FindStringSubmatch(path); m != nil {
				idx, err := strconv.Atoi(m[1])
				trainable = err == nil && idx >= cutoff
			}
		}
		v.Trainable = trainable
		if !trainable {
			c.frozenVariables++
		}
	})
}

func variablePath(v *context.Variable) string {
	return v.Scope() + "/" + v.Name()
}

// forward builds the classification graph: encoder, pooling, hidden ReLU
// layer of maxSeqLen units, then numClasses output logits. Sigmoid is applied
// by callers that need probabilities; training consumes the logits directly.
func (c *Classifier) forward(ctx *context.Context, inputIDs, inputMask, segmentIDs *Node) *Node {
	g := inputIDs.Graph()

	encoderInputs := map[string]*Node{
		"input_ids":      inputIDs,
		"attention_mask": inputMask,
	}
	if c.hasSegmentInput {
		encoderInputs["token_type_ids"] = segmentIDs
	}
	outputs := c.encoder.CallGraph(ctx, g, encoderInputs)

	seqOutput := outputs[0]
	var pooledOutput *Node
	if c.hasPooledOutput && outputs[1].Rank() == 2 {
		pooledOutput = outputs[1]
	}
	pooled := c.pooling.apply(seqOutput, pooledOutput, inputMask)

	hidden := layers.DenseWithBias(ctx.In("hidden"), pooled, c.maxSeqLen)
	hidden = activations.Relu(hidden)
	logits := layers.DenseWithBias(ctx.In("output"), hidden, c.numClasses)
	return logits
}

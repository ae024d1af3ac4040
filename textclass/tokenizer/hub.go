package tokenizer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/gomlx/go-huggingface/hub"
)

// ModelFiles holds the local paths of the files fetched from the hub for one
// pretrained model. TokenizerJSON and VocabPath are alternatives: at least
// one of them is set.
type ModelFiles struct {
	ModelID       string
	EncoderPath   string
	TokenizerJSON string
	VocabPath     string
	DoLowerCase   bool
}

// Fetch downloads (or resolves from the local cache) the encoder ONNX graph
// and the tokenizer vocabulary for the given model id. This is the one
// network boundary of the pipeline; all failures wrap ErrModelFetch.
func Fetch(modelID, modelFile, cacheDir string) (*ModelFiles, error) {
	repo := hub.New(modelID).WithCacheDir(cacheDir).WithProgressBar(true)
	if err := repo.DownloadInfo(false); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelFetch, modelID, err)
	}

	files := &ModelFiles{ModelID: modelID}

	encoderPath, err := repo.DownloadFile(modelFile)
	if err != nil {
		// Many repos keep the exported graph under onnx/.
		encoderPath, err = repo.DownloadFile("onnx/" + modelFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %s has no %s: %v", ErrModelFetch, modelID, modelFile, err)
		}
	}
	files.EncoderPath = encoderPath

	if p, err := repo.DownloadFile("tokenizer.json"); err == nil {
		files.TokenizerJSON = p
	} else if p, err := repo.DownloadFile("vocab.txt"); err == nil {
		files.VocabPath = p
	} else {
		return nil, fmt.Errorf("%w: %s has neither tokenizer.json nor vocab.txt", ErrModelFetch, modelID)
	}

	// Casing flag lives in tokenizer_config.json when present. Absence is not
	// an error; cased behavior is the default.
	if p, err := repo.DownloadFile("tokenizer_config.json"); err == nil {
		files.DoLowerCase = readDoLowerCase(p)
	}

	slog.Debug("Fetched pretrained model files",
		"model", modelID, "encoder", files.EncoderPath, "lowercase", files.DoLowerCase)

	return files, nil
}

func readDoLowerCase(path string) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var cfg struct {
		DoLowerCase bool `json:"do_lower_case"`
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return false
	}
	return cfg.DoLowerCase
}

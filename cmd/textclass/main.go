// Command textclass fine-tunes a pretrained multilingual text encoder for
// multi-label classification on a tab-separated dataset.
package main

import (
	"context"
	"fmt"
	"os"

	internal "github.com/ctrellis/textclass/textclass"
	"github.com/ctrellis/textclass/textclass/config"
	"github.com/ctrellis/textclass/textclass/pipeline"

	"github.com/gomlx/gomlx/backends"
	"github.com/spf13/cobra"

	_ "github.com/gomlx/gomlx/backends/default"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		textColumn  string
		labelColumn string
		modelID     string
		artifactDir string
	)

	cmd := &cobra.Command{
		Use:   internal.DefaultAppName + " <dataset.tsv>",
		Short: "Fine-tune a pretrained text encoder for multi-label classification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := internal.GetLogger()

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				logger.Error().Err(err).Msg("failed to load configuration")
				return err
			}
			if textColumn != "" {
				cfg.Data.TextColumn = textColumn
			}
			if labelColumn != "" {
				cfg.Data.LabelColumn = labelColumn
			}
			if modelID != "" {
				cfg.Model.ID = modelID
			}
			if artifactDir != "" {
				cfg.Artifact.Dir = artifactDir
			}
			if err := cfg.Validate(); err != nil {
				logger.Error().Err(err).Msg("invalid configuration")
				return err
			}

			backend := backends.MustNew()
			logger.Info().Str("backend", backend.Name()).Str("dataset", args[0]).Msg("starting run")

			runner := pipeline.New(cfg, backend)
			result, err := runner.Run(context.Background(), args[0])
			if err != nil {
				logger.Error().Err(err).Msg("run aborted")
				return err
			}

			logger.Info().
				Int("train", result.TrainSize).
				Int("test", result.TestSize).
				Int("labels", len(result.LabelValues)).
				Float64("subsetAccuracy", result.Metrics.SubsetAccuracy).
				Str("artifact", result.ArtifactDir).
				Msg("run complete")
			fmt.Fprintf(cmd.OutOrStdout(), "model saved to %s\n", result.ArtifactDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&textColumn, "text-column", "", "name of the text column")
	cmd.Flags().StringVar(&labelColumn, "label-column", "", "name of the label column")
	cmd.Flags().StringVar(&modelID, "model", "", "pretrained model id on the hub")
	cmd.Flags().StringVar(&artifactDir, "artifact-dir", "", "directory to write the trained model to")
	cmd.SilenceUsage = true
	return cmd
}

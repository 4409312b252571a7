package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uara/dashboard/internal/config"
	"github.com/uara/dashboard/internal/llm"
	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/internal/sizing"
	"github.com/uara/dashboard/pkg/logger"
)

func newSizeCheckCommand() *cobra.Command {
	var (
		title       string
		description string
		analyze     bool
	)

	cmd := &cobra.Command{
		Use:   "size-check",
		Short: "Check whether a request fits in one unit of work",
		Long: `Run the sizing quick check on a request and print the verdict as JSON.
With --analyze the configured LLM is consulted even when the quick check passes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" || description == "" {
				return errors.New("--title and --description are required")
			}

			cfg := config.Load()
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			svc := sizing.NewService(newAdvisor(cfg, log), log)

			var out any
			if analyze {
				out = model.SizeAssessment{RequestSplitResult: svc.Analyze(cmd.Context(), title, description)}
			} else {
				out = svc.Assess(cmd.Context(), title, description)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"score":  sizing.Score(title, description),
				"result": out,
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Request title")
	cmd.Flags().StringVar(&description, "description", "", "Request description")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Always consult the LLM")

	return cmd
}

// newAdvisor builds the LLM-backed advisor. Without credentials it always
// returns the fallback verdict.
func newAdvisor(cfg *config.Config, log *logger.Logger) *sizing.LLMAdvisor {
	var gen llm.StructuredGenerator
	if key := cfg.LLMAPIKey(); key != "" {
		client, err := llm.NewClient(llm.Provider(cfg.LLMProvider), key)
		if err != nil {
			log.Warn("LLM client unavailable, sizing falls back", zap.Error(err))
		} else {
			gen = llm.NewJSONGenerator(client, cfg.LLMModel, log)
		}
	} else {
		log.Info("no LLM credentials, sizing falls back")
	}
	return sizing.NewLLMAdvisor(gen, cfg.SizingTimeout, log)
}

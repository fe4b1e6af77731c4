// attngrader grades student notebooks implementing the scaled dot-product
// attention tutorial: tensor shape/value checks through notebook replay plus
// qualitative LLM comparison against the reference implementation.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"attngrader/internal/config"
	"attngrader/internal/grader"
	"attngrader/internal/llm"
	"attngrader/internal/logging"
)

var (
	configPath   string
	notebookPath string
	attemptNum   int
	clearCache   bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "attngrader",
	Short: "attngrader - automated grading for the attention mechanism tutorial",
	Long: `attngrader evaluates student notebooks implementing scaled dot-product
attention. Each of the four required functions is executed inside its real
notebook context and checked against tensor shape and value invariants, and
an LLM judge compares the student code against the reference implementation
for qualitative feedback.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logging.Configure(cfg.DebugMode || verbose)
		return nil
	},
}

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade a notebook and write the report artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		evaluator, cache, err := buildEvaluator(cfg)
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
			if clearCache {
				if err := cache.Clear(); err != nil {
					return fmt.Errorf("failed to clear verdict cache: %w", err)
				}
			}
		}

		g := grader.New(cfg, evaluator)
		var report *grader.Report
		if attemptNum > 0 {
			report, err = g.GradeNotebook(cmd.Context(), notebookPath, attemptNum)
		} else {
			report, err = g.RunEvaluation(cmd.Context(), notebookPath)
		}
		if err != nil {
			return err
		}

		renderReport(cmd.OutOrStdout(), report)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check which required functions the notebook defines",
	RunE: func(cmd *cobra.Command, args []string) error {
		completeness, err := grader.CheckCompleteness(notebookPath)
		if err != nil {
			return err
		}
		renderCompleteness(cmd.OutOrStdout(), completeness)
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <concept>",
	Short: "Ask the judge for an explanation of an attention concept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		evaluator, cache, err := buildEvaluator(cfg)
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
		}

		level, _ := cmd.Flags().GetString("level")
		explanation, err := evaluator.ExplainConcept(cmd.Context(), args[0], level)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), explanation)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-grade the notebook whenever it changes on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		evaluator, cache, err := buildEvaluator(cfg)
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
		}
		return watchNotebook(cmd.Context(), cmd.OutOrStdout(), cfg, evaluator, notebookPath)
	},
}

// buildEvaluator constructs the judge orchestrator from configuration. A
// broken primary provider is fatal; a broken fallback only loses redundancy.
func buildEvaluator(cfg *config.Config) (*llm.Evaluator, *llm.VerdictCache, error) {
	primary, err := buildProvider(cfg.Providers.Primary)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize primary provider: %w", err)
	}

	var fallback llm.Provider
	fallbackRetries := 0
	if cfg.Providers.Fallback != nil {
		fallback, err = buildProvider(*cfg.Providers.Fallback)
		if err != nil {
			logging.LLMWarn("fallback provider unavailable: %v", err)
			fallback = nil
		} else {
			fallbackRetries = cfg.Providers.Fallback.RetryAttempts
		}
	}

	var cache *llm.VerdictCache
	if cfg.Cache.Enabled {
		cache, err = llm.OpenVerdictCache(
			filepath.Join(cfg.Cache.CacheDir, "verdicts.db"),
			time.Duration(cfg.Cache.TTLSeconds)*time.Second,
		)
		if err != nil {
			return nil, nil, err
		}
	}

	evaluator := llm.NewEvaluator(llm.EvaluatorOptions{
		Primary:         primary,
		PrimaryRetries:  cfg.Providers.Primary.RetryAttempts,
		Fallback:        fallback,
		FallbackRetries: fallbackRetries,
		Cache:           cache,
		Limiter:         llm.NewRateLimiter(cfg.RateLimiting.RequestsPerMinute),
		Prompts:         llm.NewPromptTemplates(cfg.Educational.ExplanationStyle),
	})
	return evaluator, cache, nil
}

func buildProvider(pc config.ProviderConfig) (llm.Provider, error) {
	settings := llm.Settings{
		BaseURL:       pc.BaseURL,
		Models:        pc.Models,
		Temperature:   pc.Parameters.Temperature,
		MaxTokens:     pc.Parameters.MaxTokens,
		TopP:          pc.Parameters.TopP,
		Timeout:       time.Duration(pc.TimeoutSec) * time.Second,
		RetryAttempts: pc.RetryAttempts,
	}
	switch pc.Provider {
	case "ollama":
		return llm.NewOllamaProvider(settings), nil
	case "openai":
		return llm.NewOpenAIProvider(settings)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Provider)
	}
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config JSON (default .attngrader/config.json)")
	rootCmd.PersistentFlags().StringVarP(&notebookPath, "notebook", "n", "lesson.ipynb", "path to the student notebook")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	gradeCmd.Flags().IntVar(&attemptNum, "attempt", 0, "attempt number (0 = auto-increment)")
	gradeCmd.Flags().BoolVar(&clearCache, "clear-cache", false, "clear the verdict cache before grading")
	explainCmd.Flags().String("level", "intermediate", "student level (beginner, intermediate, advanced)")

	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(watchCmd)
}

package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kb/config"
	"kb/internal/adapter/gemini"
	"kb/internal/adapter/store"
)

var (
	cfgFile string
	cfg     *config.Config
	dataDir string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Personal knowledge base with semantic retrieval",
	Long: `kb ingests local documents (PDF, DOCX, TXT, Markdown), embeds them with
the Gemini API and answers questions over them in a conversational loop.

Example usage:
  kb ingest notes.pdf --category=research   # Ingest a file
  kb ingest ./docs                          # Ingest a directory
  kb chat                                   # Ask questions
  kb docs list                              # Show ingested documents`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		// A local .env may carry the API key.
		_ = godotenv.Load()

		if dataDir == "" {
			dataDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(dataDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = newLogger(cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./kb.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "dir", "d", "", "knowledge base directory (default is current directory)")
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zapCfg.Level = parsed
	}
	return zapCfg.Build()
}

// openStore opens the knowledge base database under the data directory,
// creating the .kb directory if needed.
func openStore() (*store.BoltStore, error) {
	if err := config.EnsureDataDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create .kb directory: %w", err)
	}
	st, err := store.NewBoltStore(config.StoreDBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	return st, nil
}

// newEmbedder creates the embedding provider from config.
func newEmbedder() (*gemini.Embedder, error) {
	client, err := gemini.NewClient(cfg.Embedding.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	return gemini.NewEmbedder(client, cfg.Embedding.Model), nil
}

// newGenerator creates the generation provider from config.
func newGenerator() (*gemini.Generator, error) {
	client, err := gemini.NewClient(cfg.Generation.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	return gemini.NewGenerator(client), nil
}

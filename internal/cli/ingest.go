package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"kb/internal/adapter/chunker"
	"kb/internal/adapter/fs"
	"kb/internal/adapter/parser"
	"kb/internal/usecase"
)

var ingestCategory string

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Ingest a file or directory into the knowledge base",
	Long: `Ingest parses documents, splits them into overlapping fragments, embeds
each fragment and stores the result. A directory is walked recursively
using the include/exclude patterns from the config.

Examples:
  kb ingest notes.pdf
  kb ingest report.docx --category=work
  kb ingest ./papers --category=research`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestCategory, "category", "c", "", "category to file the documents under")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	var files []string
	if info.IsDir() {
		walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
		files, err = walker.Walk(path)
		if err != nil {
			return fmt.Errorf("failed to scan directory: %w", err)
		}
		if len(files) == 0 {
			fmt.Println("No matching files found.")
			return nil
		}
	} else {
		files = []string{path}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := newEmbedder()
	if err != nil {
		return err
	}

	chk, err := chunker.NewFixedChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	pipeline := usecase.NewIngestPipeline(
		parser.NewExtractor(),
		chk,
		embedder,
		st,
		time.Duration(cfg.Ingest.EmbedDelayMS)*time.Millisecond,
		logger,
	)

	ctx := cmd.Context()
	ingested := 0
	for _, file := range files {
		name := filepath.Base(file)

		var bar *progressbar.ProgressBar
		progress := func(completed, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionEnableColorCodes(true),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionSetDescription(fmt.Sprintf("[cyan]Embedding[reset] %s", name)),
					progressbar.OptionOnCompletion(func() {
						fmt.Println()
					}),
				)
			}
			bar.Set(completed)
		}

		doc, err := pipeline.Ingest(ctx, file, ingestCategory, progress)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", name, err)
		}

		fmt.Printf("Ingested %s (id %d, category %s, %d fragments)\n",
			doc.Name, doc.ID, doc.Category, doc.ChunkCount)
		ingested++
	}

	if len(files) > 1 {
		fmt.Printf("\nIngested %d documents.\n", ingested)
	}
	return nil
}

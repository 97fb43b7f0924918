package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kb/internal/usecase"
)

var (
	chatCategories []string
	chatFloor      float64
	chatModel      string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions over the knowledge base",
	Long: `Chat starts an interactive loop. Each question is classified as either a
knowledge base search or plain conversation; searches retrieve the most
similar fragments and ground the answer in them.

Examples:
  kb chat
  kb chat --categories=work,research
  kb chat --floor=0.4 --model=gemini-1.5-pro`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringSliceVar(&chatCategories, "categories", nil, "restrict retrieval to these categories")
	chatCmd.Flags().Float64Var(&chatFloor, "floor", 0, "minimum similarity before answering from context (default from config)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "generation model (default from config)")
}

func runChat(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := newEmbedder()
	if err != nil {
		return err
	}
	generator, err := newGenerator()
	if err != nil {
		return err
	}

	model := cfg.Generation.Model
	if chatModel != "" {
		model = chatModel
	}
	if model == "" {
		// No model configured; prefer a flash-family model, else take the
		// first one the provider offers.
		models, err := generator.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}
		if len(models) == 0 {
			return fmt.Errorf("provider offers no generation models")
		}
		model = models[0]
		for _, m := range models {
			if strings.Contains(m, "flash") {
				model = m
				break
			}
		}
	}

	floor := cfg.Retrieve.SimilarityFloor
	if chatFloor > 0 {
		floor = chatFloor
	}

	router := usecase.NewQueryRouter(generator, cfg.Generation.RouterModel, cfg.Retrieve.RouterWindow, logger)
	session := usecase.NewChatSession(
		router, embedder, st, generator, model,
		cfg.Retrieve.TopK, cfg.Retrieve.HistoryWindow, logger,
	)
	opts := usecase.TurnOptions{
		Categories:      chatCategories,
		SimilarityFloor: floor,
	}

	fmt.Printf("Chatting with model %s. Type 'exit' or Ctrl-D to quit.\n\n", model)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		fmt.Println("Thinking...")
		answer, err := session.AnswerTurn(cmd.Context(), line, opts)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n\n", answer)
	}

	return scanner.Err()
}

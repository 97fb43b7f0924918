package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List generation models offered by the provider",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	generator, err := newGenerator()
	if err != nil {
		return err
	}

	models, err := generator.ListModels(cmd.Context())
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Println("No generation models available.")
		return nil
	}

	for _, m := range models {
		marker := " "
		if m == cfg.Generation.Model {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, m)
	}
	return nil
}

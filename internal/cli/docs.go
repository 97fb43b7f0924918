package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kb/internal/domain"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage ingested documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE:  runDocsList,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document and its fragments",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsDelete,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsDeleteCmd)
}

func runDocsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	docs, err := st.ListDocuments()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("The knowledge base is empty.")
		return nil
	}

	fmt.Printf("%-6s %-30s %-16s %-10s %s\n", "ID", "NAME", "CATEGORY", "FRAGMENTS", "CREATED")
	for _, doc := range docs {
		category := doc.Category
		if category == "" {
			category = domain.DefaultCategory
		}
		fmt.Printf("%-6d %-30s %-16s %-10d %s\n",
			doc.ID, doc.Name, category, doc.ChunkCount, doc.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteDocument(id); err != nil {
		return err
	}
	fmt.Printf("Deleted document %d.\n", id)
	return nil
}

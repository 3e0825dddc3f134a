package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"skillquiz-service/internal/catalog"
)

// NewCategoriesCmd prints the built-in catalog.
func NewCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List built-in quiz categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Builtin()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			name := color.New(color.FgCyan, color.Bold)
			for _, c := range cat.Categories() {
				fmt.Fprintf(out, "%s %s ", c.IconRef, name.Sprint(c.ID))
				fmt.Fprintf(out, "(%s, %d questions)\n    %s\n", c.DisplayName, c.QuestionCount, c.Description)
			}
			return nil
		},
	}
}

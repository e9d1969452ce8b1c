package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/evdealer/contractedit/internal/config"
	"github.com/evdealer/contractedit/internal/gateway"
	"github.com/evdealer/contractedit/internal/importer"
)

var (
	importTemplateID string
	importSubject    string
	importForce      bool
)

var importCmd = &cobra.Command{
	Use:   "import <draft.md>",
	Short: "Import a markdown contract draft as a template",
	Long: `Converts a markdown draft written by the legal team into an HTML contract
body, wraps it in a complete template document, and saves it to the backend.
If the template already has content, confirmation is required before it is
overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		gw := gateway.New(cfg.BackendURL)
		gw.SetSaveTimeout(time.Duration(cfg.SaveTimeoutSeconds) * time.Second)
		ctx := context.Background()

		// Overwriting an existing template is destructive; ask first.
		existing, err := gw.Load(ctx, importTemplateID)
		switch {
		case err == nil && !importForce:
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("Template %s (%s) already has content. Overwrite", importTemplateID, existing.Name),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				fmt.Println("Import cancelled")
				return nil
			}
		case err != nil && !errors.Is(err, gateway.ErrNotFound):
			return fmt.Errorf("checking existing template: %w", err)
		}

		imp := importer.New(gw, cfg.Language)
		res, exprs, err := imp.ImportFile(ctx, importTemplateID, importSubject, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Imported %s as template %s\n", args[0], importTemplateID)
		if len(exprs) > 0 {
			fmt.Printf("Placeholders: %d\n", len(exprs))
			for _, e := range exprs {
				fmt.Printf("  {{ %s }}\n", e)
			}
		}
		if res.DownloadURL != "" {
			fmt.Printf("Preview: %s\n", res.DownloadURL)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importTemplateID, "id", "", "template id to import into (required)")
	importCmd.Flags().StringVar(&importSubject, "subject", "", "template subject/title (required)")
	importCmd.Flags().BoolVar(&importForce, "force", false, "overwrite existing content without asking")
	importCmd.MarkFlagRequired("id")
	importCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(importCmd)
}

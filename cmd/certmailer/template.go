package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	templateStore "certmailer/internal/adapters/storage/template"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage the message body template",
}

var templateSetCmd = &cobra.Command{
	Use:   "set [source] [target]",
	Short: "Install a template file, replacing the target atomically",
	Args:  cobra.ExactArgs(2),
	RunE:  runTemplateSet,
}

func init() {
	templateCmd.AddCommand(templateSetCmd)
}

func runTemplateSet(_ *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading template source: %w", err)
	}
	if err := templateStore.NewFileStore().Save(args[1], content); err != nil {
		return err
	}
	fmt.Printf("Installed %s (%d bytes)\n", args[1], len(content))
	return nil
}

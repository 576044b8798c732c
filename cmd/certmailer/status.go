package main

import (
	"fmt"

	"github.com/spf13/cobra"

	ledgerDomain "certmailer/internal/domain/ledger"
)

var statusLedger string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fold the ledger and show current per-recipient delivery status",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusLedger, "ledger", "email_log.csv", "ledger path (.csv or .db)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	store, closeStore, err := openLedger(statusLedger)
	if err != nil {
		return err
	}
	defer closeStore()

	entries, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}

	view := ledgerDomain.Replay(entries)
	sent, failed := view.Counts()

	fmt.Printf("Entries: %d\n", len(entries))
	fmt.Printf("Sent:    %d\n", sent)
	fmt.Printf("Failed:  %d\n", failed)
	for _, key := range view.FailedKeys() {
		fmt.Printf("  failed: %s\n", key)
	}
	return nil
}

package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	artifactAdapter "certmailer/internal/adapters/artifact"
	emailAdapter "certmailer/internal/adapters/email"
	"certmailer/internal/adapters/markdown"
	rosterAdapter "certmailer/internal/adapters/roster"
	"certmailer/internal/adapters/storage"
	ledgerAdapter "certmailer/internal/adapters/storage/ledger"
	templateStore "certmailer/internal/adapters/storage/template"
	templateDomain "certmailer/internal/domain/template"
	"certmailer/internal/application/orchestrators"
)

var (
	flagCSV                 string
	flagTemplate            string
	flagSubject             string
	flagFormat              string
	flagArtifacts           string
	flagLedger              string
	flagCC                  []string
	flagWithAttachments     bool
	flagAttachmentsOptional bool
	flagSkipSent            bool
	flagStrictPlaceholders  bool
	flagMatch               string
	flagTimeout             time.Duration
	flagDryRun              bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one pass of personalized emails over the roster",
	RunE:  runSend,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Report what a send would do, without sending or writing the ledger",
	RunE:  runPreview,
}

func init() {
	for _, cmd := range []*cobra.Command{sendCmd, previewCmd} {
		cmd.Flags().StringVar(&flagCSV, "csv", "result.csv", "roster CSV with email and recipient columns")
		cmd.Flags().StringVar(&flagTemplate, "template", "template.html", "message body template file")
		cmd.Flags().StringVar(&flagSubject, "subject", "", "subject template (required)")
		cmd.Flags().StringVar(&flagFormat, "format", templateDomain.FormatHTML, "body format: html or markdown")
		cmd.Flags().StringVar(&flagArtifacts, "artifacts", "split_pages", "directory of per-recipient files")
		cmd.Flags().StringVar(&flagLedger, "ledger", "email_log.csv", "ledger path (.csv or .db)")
		cmd.Flags().StringArrayVar(&flagCC, "cc", nil, "CC address applied to every message (repeatable)")
		cmd.Flags().BoolVar(&flagWithAttachments, "with-attachments", false, "attach each recipient's artifact")
		cmd.Flags().BoolVar(&flagAttachmentsOptional, "attachments-optional", false, "send body-only when no artifact matches")
		cmd.Flags().BoolVar(&flagSkipSent, "skip-sent", true, "skip recipients the ledger already shows as sent")
		cmd.Flags().BoolVar(&flagStrictPlaceholders, "strict-placeholders", false, "fail a recipient on unknown template fields instead of rendering them blank")
		cmd.Flags().StringVar(&flagMatch, "match", artifactAdapter.MatchNormalized, "artifact match mode: normalized or exact")
	}
	sendCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "per-send transport timeout")
	sendCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "log sends instead of delivering them")
}

func runSend(cmd *cobra.Command, _ []string) error {
	input, err := buildInput()
	if err != nil {
		return err
	}

	store, closeStore, err := openLedger(flagLedger)
	if err != nil {
		return err
	}
	defer closeStore()

	var sender emailAdapter.Sender
	if flagDryRun {
		sender = emailAdapter.NewNoopSender()
		if input.FromAddress == "" {
			input.FromAddress = "Certmailer <dryrun@localhost>"
		}
	} else {
		apiKey := os.Getenv("RESEND_API_KEY")
		if apiKey == "" {
			return errors.New("RESEND_API_KEY is not set")
		}
		if input.FromAddress == "" {
			return errors.New("CERTMAILER_FROM is not set")
		}
		sender = emailAdapter.NewResendSender(apiKey, input.FromAddress)
	}

	deps := orchestrators.DispatchDeps{
		Ledger:      store,
		Sender:      sender,
		ToHTML:      markdown.ToHTML,
		GenerateID:  func() string { return uuid.New().String() },
		Now:         time.Now,
		SendTimeout: flagTimeout,
	}
	if input.WithAttachments {
		deps.Matcher, err = artifactAdapter.NewDirMatcher(flagArtifacts, flagMatch)
		if err != nil {
			return err
		}
	}

	report, runErr := orchestrators.ExecuteDispatch(cmd.Context(), input, deps)
	printReport(report)
	return runErr
}

func runPreview(cmd *cobra.Command, _ []string) error {
	input, err := buildInput()
	if err != nil {
		return err
	}
	if input.FromAddress == "" {
		input.FromAddress = "Certmailer <preview@localhost>"
	}

	store, closeStore, err := openLedger(flagLedger)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := orchestrators.DispatchDeps{Ledger: store, ToHTML: markdown.ToHTML}
	if input.WithAttachments {
		deps.Matcher, err = artifactAdapter.NewDirMatcher(flagArtifacts, flagMatch)
		if err != nil {
			return err
		}
	}

	report, err := orchestrators.ExecutePreview(cmd.Context(), input, deps)
	if err != nil {
		return err
	}

	fmt.Printf("Records:    %d\n", report.Total)
	fmt.Printf("Would send: %d\n", report.WouldSend)
	fmt.Printf("Would skip: %d\n", report.WouldSkip)
	if len(report.Problems) > 0 {
		fmt.Printf("Problems:   %d\n", len(report.Problems))
		for _, p := range report.Problems {
			fmt.Printf("  row %d  %s <%s>: %s\n", p.Row, p.Recipient, p.Email, p.Reason)
		}
	}
	return nil
}

// buildInput assembles the per-run options from flags and environment.
// All options travel in the input struct; nothing is ambient.
func buildInput() (orchestrators.DispatchInput, error) {
	if flagSubject == "" {
		return orchestrators.DispatchInput{}, errors.New("--subject is required")
	}

	csvFile, err := os.Open(flagCSV)
	if err != nil {
		return orchestrators.DispatchInput{}, fmt.Errorf("opening roster: %w", err)
	}
	defer csvFile.Close()

	dataset, err := rosterAdapter.Load(csvFile)
	if err != nil {
		return orchestrators.DispatchInput{}, err
	}

	body, err := templateStore.NewFileStore().Load(flagTemplate)
	if err != nil {
		return orchestrators.DispatchInput{}, err
	}

	policy := templateDomain.MissingBlank
	if flagStrictPlaceholders {
		policy = templateDomain.MissingError
	}

	return orchestrators.DispatchInput{
		Dataset:             dataset,
		Template:            templateDomain.Template{Subject: flagSubject, Body: body, Format: flagFormat},
		CCList:              flagCC,
		FromAddress:         envOrDefault("CERTMAILER_FROM", ""),
		ReplyTo:             envOrDefault("CERTMAILER_REPLY_TO", ""),
		WithAttachments:     flagWithAttachments,
		AttachmentsOptional: flagAttachmentsOptional,
		SkipAlreadySent:     flagSkipSent,
		MissingPolicy:       policy,
	}, nil
}

// openLedger picks the ledger backend from the path extension. Both
// backends are guarded by an exclusive advisory lock so a second
// concurrent run against the same ledger fails fast.
func openLedger(path string) (ledgerAdapter.Store, func(), error) {
	if filepath.Ext(path) != ".db" {
		store, err := ledgerAdapter.OpenCSVStore(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("locking ledger: %w", err)
	}
	if !locked {
		return nil, nil, fmt.Errorf("%w: %s", ledgerAdapter.ErrLedgerLocked, path)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		lock.Unlock()
		return nil, nil, fmt.Errorf("opening ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		lock.Unlock()
		return nil, nil, fmt.Errorf("ledger database unreachable: %w", err)
	}
	if err := storage.InitDB(db); err != nil {
		db.Close()
		lock.Unlock()
		return nil, nil, err
	}

	store := ledgerAdapter.NewSQLiteStore(db)
	return store, func() {
		db.Close()
		lock.Unlock()
	}, nil
}

func printReport(report orchestrators.DispatchReport) {
	fmt.Printf("Run:     %s\n", report.RunID)
	fmt.Printf("Sent:    %d\n", report.Sent)
	fmt.Printf("Skipped: %d\n", report.Skipped)
	fmt.Printf("Failed:  %d\n", report.Failed)
	fmt.Printf("Invalid: %d\n", report.Invalid)
	for _, f := range report.Failures {
		fmt.Printf("  row %d  %s <%s>: %s\n", f.Row, f.Recipient, f.Email, f.Reason)
	}
}

package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	artifactAdapter "certmailer/internal/adapters/artifact"
	emailAdapter "certmailer/internal/adapters/email"
	ledgerStore "certmailer/internal/adapters/storage/ledger"
	ledgerDomain "certmailer/internal/domain/ledger"
	rosterDomain "certmailer/internal/domain/roster"
	templateDomain "certmailer/internal/domain/template"
)

// defaultSendTimeout bounds a single transport call when the caller does
// not set one; a timed-out send is a transport failure, not a hang.
const defaultSendTimeout = 30 * time.Second

// ArtifactMatcher resolves the per-recipient artifact by display name.
type ArtifactMatcher interface {
	Resolve(recipientName string) (artifactAdapter.Artifact, error)
}

// HTMLConverter turns a markdown body into HTML.
type HTMLConverter func(body string) (string, error)

// DispatchInput carries everything one run needs. Options travel here
// per run, never in package state, so repeated runs with different
// options cannot interfere.
type DispatchInput struct {
	Dataset             rosterDomain.Dataset
	Template            templateDomain.Template
	CCList              []string // static CC applied to every message
	FromAddress         string
	ReplyTo             string
	WithAttachments     bool
	AttachmentsOptional bool // send body-only when no artifact matches
	SkipAlreadySent     bool
	MissingPolicy       string // templateDomain.MissingBlank or MissingError
}

// DispatchDeps holds external dependencies for a dispatch run.
type DispatchDeps struct {
	Ledger      ledgerStore.Store
	Sender      emailAdapter.Sender
	Matcher     ArtifactMatcher // required when WithAttachments is set
	ToHTML      HTMLConverter   // required for markdown templates
	GenerateID  func() string
	Now         func() time.Time
	SendTimeout time.Duration
}

// Failure describes one recipient the run could not deliver to.
type Failure struct {
	Row       int // 1-based dataset row, header excluded
	Recipient string
	Email     string
	Reason    string
}

// DispatchReport aggregates one run's outcome. Skipped recipients count
// as success; no partial success is ever dropped from the report.
type DispatchReport struct {
	RunID      string
	Sent       int
	Skipped    int
	Failed     int
	Invalid    int
	Failures   []Failure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Orchestrator errors
var (
	ErrNoSender     = errors.New("dispatch requires a sender")
	ErrNoLedger     = errors.New("dispatch requires a ledger store")
	ErrNoMatcher    = errors.New("attachments requested but no artifact matcher configured")
	ErrNoConverter  = errors.New("markdown template but no HTML converter configured")
	ErrLedgerDoomed = errors.New("ledger append failed; run aborted")
	ErrEmptyFrom    = errors.New("from address is required")
	ErrLedgerReplay = errors.New("ledger could not be replayed")
)

// ExecuteDispatch runs one pass over the dataset: render, gate on the
// ledger, send, record. Per-recipient failures are isolated — the loop
// always proceeds to the next record. Only a ledger append failure aborts
// the run, because the skip guarantee can no longer be trusted after one.
// PRE: Input dataset was produced by the roster loader; template validated
// POST: Every valid record was either skipped, sent, or failed with a
// durable ledger entry; the report reflects all of them
func ExecuteDispatch(ctx context.Context, input DispatchInput, deps DispatchDeps) (DispatchReport, error) {
	if err := checkDeps(input, deps); err != nil {
		return DispatchReport{}, err
	}
	if err := input.Template.Validate(); err != nil {
		return DispatchReport{}, err
	}

	sendTimeout := deps.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	report := DispatchReport{RunID: deps.GenerateID(), StartedAt: deps.Now()}

	entries, err := deps.Ledger.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrLedgerReplay, err)
	}
	view := ledgerDomain.Replay(entries)

	slog.Info("dispatch_event", "event", "run_started", "run_id", report.RunID,
		"records", len(input.Dataset.Records), "skip_already_sent", input.SkipAlreadySent,
		"with_attachments", input.WithAttachments)

	ccJoined := strings.Join(input.CCList, ", ")

	for i, record := range input.Dataset.Records {
		// Cooperative stop between records: everything recorded so far
		// stays valid and the report reflects partial completion.
		if err := ctx.Err(); err != nil {
			report.FinishedAt = deps.Now()
			slog.Info("dispatch_event", "event", "run_cancelled", "run_id", report.RunID, "row", i+1)
			return report, err
		}

		row := i + 1

		if err := record.Validate(); err != nil {
			// Never a real send target, so no ledger entry.
			report.Invalid++
			report.Failures = append(report.Failures, Failure{
				Row: row, Recipient: record.Recipient(), Email: record.Email(),
				Reason: "invalid record: " + err.Error(),
			})
			slog.Warn("dispatch_event", "event", "record_invalid", "run_id", report.RunID, "row", row, "error", err)
			continue
		}

		key := record.Email()

		if input.SkipAlreadySent && view.WasSent(key) {
			report.Skipped++
			slog.Info("dispatch_event", "event", "record_skipped", "run_id", report.RunID, "row", row, "email", key)
			continue
		}

		rendered, err := input.Template.Render(record, input.MissingPolicy)
		if err != nil {
			if ferr := recordFailure(ctx, deps, &report, view, row, record, ccJoined, "", "render failed: "+err.Error()); ferr != nil {
				return report, ferr
			}
			continue
		}

		body := rendered.Body
		if input.Template.Format == templateDomain.FormatMarkdown {
			body, err = deps.ToHTML(body)
			if err != nil {
				if ferr := recordFailure(ctx, deps, &report, view, row, record, ccJoined, "", "render failed: "+err.Error()); ferr != nil {
					return report, ferr
				}
				continue
			}
		}

		var attachments []emailAdapter.Attachment
		attachmentName := ""
		if input.WithAttachments {
			content, name, err := resolveAttachment(deps.Matcher, record.Recipient())
			switch {
			case err == nil:
				attachments = []emailAdapter.Attachment{{Filename: name, Content: content}}
				attachmentName = name
			case input.AttachmentsOptional:
				slog.Warn("dispatch_event", "event", "attachment_skipped", "run_id", report.RunID,
					"row", row, "recipient", record.Recipient(), "error", err)
			default:
				if ferr := recordFailure(ctx, deps, &report, view, row, record, ccJoined, "", "attachment unresolved: "+err.Error()); ferr != nil {
					return report, ferr
				}
				continue
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		result, sendErr := deps.Sender.Send(sendCtx, emailAdapter.SendRequest{
			To:          []string{key},
			From:        input.FromAddress,
			CC:          input.CCList,
			ReplyTo:     input.ReplyTo,
			Subject:     rendered.Subject,
			HTML:        body,
			Attachments: attachments,
		})
		cancel()

		if sendErr != nil {
			if ferr := recordFailure(ctx, deps, &report, view, row, record, ccJoined, attachmentName, "transport failure: "+sendErr.Error()); ferr != nil {
				return report, ferr
			}
			continue
		}

		entry := ledgerDomain.Entry{
			Timestamp:  deps.Now(),
			Recipient:  record.Recipient(),
			Email:      key,
			CC:         ccJoined,
			Attachment: attachmentName,
			Status:     ledgerDomain.StatusSent,
		}
		if err := deps.Ledger.Append(ctx, entry); err != nil {
			report.FinishedAt = deps.Now()
			return report, fmt.Errorf("%w: %v", ErrLedgerDoomed, err)
		}
		view.Observe(entry)
		report.Sent++
		slog.Info("dispatch_event", "event", "record_sent", "run_id", report.RunID,
			"row", row, "email", key, "message_id", result.MessageID, "attachment", attachmentName)
	}

	report.FinishedAt = deps.Now()
	slog.Info("dispatch_event", "event", "run_finished", "run_id", report.RunID,
		"sent", report.Sent, "skipped", report.Skipped, "failed", report.Failed, "invalid", report.Invalid)
	return report, nil
}

// checkDeps validates the run's wiring before any record is touched.
func checkDeps(input DispatchInput, deps DispatchDeps) error {
	if deps.Sender == nil {
		return ErrNoSender
	}
	if deps.Ledger == nil {
		return ErrNoLedger
	}
	if input.WithAttachments && deps.Matcher == nil {
		return ErrNoMatcher
	}
	if input.Template.Format == templateDomain.FormatMarkdown && deps.ToHTML == nil {
		return ErrNoConverter
	}
	if strings.TrimSpace(input.FromAddress) == "" {
		return ErrEmptyFrom
	}
	if deps.GenerateID == nil || deps.Now == nil {
		return errors.New("dispatch requires GenerateID and Now")
	}
	return nil
}

// resolveAttachment resolves and reads the artifact for a recipient.
// A file that matched but cannot be read counts as unresolved.
func resolveAttachment(matcher ArtifactMatcher, recipientName string) ([]byte, string, error) {
	art, err := matcher.Resolve(recipientName)
	if err != nil {
		return nil, "", err
	}
	content, err := art.ReadContent()
	if err != nil {
		return nil, "", fmt.Errorf("reading artifact %s: %w", art.Name, err)
	}
	return content, art.Name, nil
}

// recordFailure appends a Failed ledger entry for a per-recipient failure
// and folds it into the live view. The returned error is non-nil only for
// a ledger append failure, which is fatal to the run.
func recordFailure(ctx context.Context, deps DispatchDeps, report *DispatchReport, view ledgerDomain.View,
	row int, record rosterDomain.Record, cc, attachment, reason string) error {

	entry := ledgerDomain.Entry{
		Timestamp:  deps.Now(),
		Recipient:  record.Recipient(),
		Email:      record.Email(),
		CC:         cc,
		Attachment: attachment,
		Status:     ledgerDomain.StatusFailed,
		Detail:     reason,
	}
	if err := deps.Ledger.Append(ctx, entry); err != nil {
		report.FinishedAt = deps.Now()
		return fmt.Errorf("%w: %v", ErrLedgerDoomed, err)
	}
	view.Observe(entry)
	report.Failed++
	report.Failures = append(report.Failures, Failure{
		Row: row, Recipient: record.Recipient(), Email: record.Email(), Reason: reason,
	})
	slog.Warn("dispatch_event", "event", "record_failed", "run_id", report.RunID,
		"row", row, "email", record.Email(), "reason", reason)
	return nil
}

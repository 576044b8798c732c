package orchestrators

import (
	"context"
	"fmt"

	ledgerDomain "certmailer/internal/domain/ledger"
	templateDomain "certmailer/internal/domain/template"
)

// PreviewReport summarizes what a real run would do, without sending
// anything or writing the ledger.
type PreviewReport struct {
	Total     int
	WouldSend int
	WouldSkip int
	Problems  []Failure // invalid records, render failures, unresolved attachments
}

// ExecutePreview walks the dataset with the same validation, gating,
// rendering and attachment resolution as a dispatch run, but performs no
// sends and appends nothing to the ledger.
// PRE: Same input/deps shape as ExecuteDispatch; Sender may be nil
// POST: The ledger file and provider state are untouched
func ExecutePreview(ctx context.Context, input DispatchInput, deps DispatchDeps) (PreviewReport, error) {
	if deps.Ledger == nil {
		return PreviewReport{}, ErrNoLedger
	}
	if input.WithAttachments && deps.Matcher == nil {
		return PreviewReport{}, ErrNoMatcher
	}
	if input.Template.Format == templateDomain.FormatMarkdown && deps.ToHTML == nil {
		return PreviewReport{}, ErrNoConverter
	}
	if err := input.Template.Validate(); err != nil {
		return PreviewReport{}, err
	}

	entries, err := deps.Ledger.Load(ctx)
	if err != nil {
		return PreviewReport{}, fmt.Errorf("%w: %v", ErrLedgerReplay, err)
	}
	view := ledgerDomain.Replay(entries)

	report := PreviewReport{Total: len(input.Dataset.Records)}
	for i, record := range input.Dataset.Records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row := i + 1

		if err := record.Validate(); err != nil {
			report.Problems = append(report.Problems, Failure{
				Row: row, Recipient: record.Recipient(), Email: record.Email(),
				Reason: "invalid record: " + err.Error(),
			})
			continue
		}

		if input.SkipAlreadySent && view.WasSent(record.Email()) {
			report.WouldSkip++
			continue
		}

		rendered, err := input.Template.Render(record, input.MissingPolicy)
		if err != nil {
			report.Problems = append(report.Problems, Failure{
				Row: row, Recipient: record.Recipient(), Email: record.Email(),
				Reason: "render failed: " + err.Error(),
			})
			continue
		}
		if input.Template.Format == templateDomain.FormatMarkdown {
			if _, err := deps.ToHTML(rendered.Body); err != nil {
				report.Problems = append(report.Problems, Failure{
					Row: row, Recipient: record.Recipient(), Email: record.Email(),
					Reason: "render failed: " + err.Error(),
				})
				continue
			}
		}

		if input.WithAttachments {
			if _, err := deps.Matcher.Resolve(record.Recipient()); err != nil && !input.AttachmentsOptional {
				report.Problems = append(report.Problems, Failure{
					Row: row, Recipient: record.Recipient(), Email: record.Email(),
					Reason: "attachment unresolved: " + err.Error(),
				})
				continue
			}
		}

		report.WouldSend++
	}
	return report, nil
}

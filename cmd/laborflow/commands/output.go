package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/mm1618bu/laborflow/pkg/core/model"
)

// actionLabel colors a processing action for terminal output
func actionLabel(action model.ActionTaken) string {
	switch action {
	case model.ActionApproved:
		return color.New(color.FgGreen).Sprint(string(action))
	case model.ActionWaitlisted:
		return color.New(color.FgYellow).Sprint(string(action))
	case model.ActionRejected:
		return color.New(color.FgRed).Sprint(string(action))
	default:
		return color.New(color.FgHiBlack).Sprint(string(action))
	}
}

func offerStatusLabel(status model.OfferStatus) string {
	if status == model.OfferOpen {
		return color.New(color.FgGreen).Sprint(string(status))
	}
	return color.New(color.FgRed).Sprint(string(status))
}

func successMark(ok bool) string {
	if ok {
		return color.New(color.FgGreen).Sprint("✓")
	}
	return color.New(color.FgRed).Sprint("✗")
}

// printProcessingResult renders a processing run as a summary and a per-response table
func printProcessingResult(w io.Writer, result *model.ProcessingResult, dryRun bool) {
	title := "Processing complete"
	if dryRun {
		title = color.New(color.FgCyan).Sprint("Dry run (nothing persisted)")
	}
	fmt.Fprintf(w, "\n%s %s\n\n", successMark(true), title)
	fmt.Fprintf(w, "Offer:         %s\n", result.LaborActionID)
	fmt.Fprintf(w, "Positions:     %d/%d filled\n", result.PositionsFilled, result.PositionsAvailable)
	fmt.Fprintf(w, "Processed:     %d of %d responses\n", result.ProcessedCount, result.TotalResponses)
	fmt.Fprintf(w, "Approved:      %d\n", result.ApprovedCount)
	fmt.Fprintf(w, "Waitlisted:    %d\n", result.WaitlistedCount)
	fmt.Fprintf(w, "Rejected:      %d\n", result.RejectedCount)
	fmt.Fprintf(w, "No action:     %d\n", result.NoActionCount)
	fmt.Fprintf(w, "Notifications: %d\n", result.NotificationsSent)
	if result.OfferClosed {
		fmt.Fprintf(w, "Offer status:  %s\n", offerStatusLabel(model.OfferClosed))
	}

	if len(result.ProcessingDetails) == 0 {
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RESPONSE\tEMPLOYEE\tSCORE\tACTION\tREASON")
	for _, d := range result.ProcessingDetails {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", d.ResponseID, d.EmployeeID, d.PriorityScore, actionLabel(d.ActionTaken), d.Reason)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printWorkflowStatus(w io.Writer, status *model.WorkflowStatus) {
	fmt.Fprintf(w, "\nOffer %s (%s)\n\n", status.OfferID, offerStatusLabel(status.OfferStatus))
	fmt.Fprintf(w, "Positions:  %d/%d filled\n", status.PositionsFilled, status.PositionsAvailable)
	fmt.Fprintf(w, "Pending:    %d\n", status.PendingResponses)
	fmt.Fprintf(w, "Approved:   %d\n", status.ApprovedResponses)
	fmt.Fprintf(w, "Waitlisted: %d\n", status.WaitlistedResponses)
	fmt.Fprintf(w, "Workflow:   %s\n", enabledLabel(status.WorkflowEnabled))
	if status.LastProcessedAt != nil {
		fmt.Fprintf(w, "Last run:   %s\n", status.LastProcessedAt.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintf(w, "Last run:   %s\n", color.New(color.FgHiBlack).Sprint("never"))
	}
	fmt.Fprintln(w)
}

func enabledLabel(enabled bool) string {
	if enabled {
		return color.New(color.FgGreen).Sprint("enabled")
	}
	return color.New(color.FgYellow).Sprint("disabled")
}

func printBatchResult(w io.Writer, verb string, result *model.BatchResult) {
	fmt.Fprintf(w, "\n%s %d of %d responses %s\n\n", successMark(result.FailedCount == 0), result.SuccessfulCount, result.TotalRequested, verb)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, item := range result.Results {
		if item.Success {
			fmt.Fprintf(tw, "  %s\t%s\t\n", successMark(true), item.ResponseID)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s: %s\n", successMark(false), item.ResponseID, color.New(color.FgRed).Sprint(item.ErrorCode), item.Error)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printPromotionResult(w io.Writer, result *model.PromotionResult) {
	fmt.Fprintf(w, "\n%s Promoted %d from the waitlist (%d remaining)\n", successMark(true), result.PromotedCount, result.RemainingWaitlist)
	for _, p := range result.PromotedEmployees {
		fmt.Fprintf(w, "  #%d  %s (%s)\n", p.FromPosition, p.EmployeeID, p.ResponseID)
	}
	fmt.Fprintln(w)
}

func printWithdrawalResult(w io.Writer, result *model.WithdrawalResult) {
	fmt.Fprintf(w, "\n%s Withdrew %s (was %s)\n", successMark(true), result.ResponseID, result.PreviousStatus)
	fmt.Fprintf(w, "Positions filled: %d\n", result.PositionsFilled)
	if result.Promoted != nil {
		fmt.Fprintf(w, "Promoted:         %s (%s) from #%d\n", result.Promoted.EmployeeID, result.Promoted.ResponseID, result.Promoted.FromPosition)
	}
	fmt.Fprintln(w)
}

func printTrimResult(w io.Writer, result *model.TrimResult) {
	fmt.Fprintf(w, "\n%s Trimmed %d from the waitlist (%d remaining)\n", successMark(true), result.TrimmedCount, result.RemainingWaitlist)
	for _, id := range result.TrimmedResponses {
		fmt.Fprintf(w, "  %s\n", id)
	}
	fmt.Fprintln(w)
}

func printWaitlist(w io.Writer, offerID string, entries []model.WaitlistEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "\nWaitlist for %s is empty\n\n", offerID)
		return
	}
	fmt.Fprintf(w, "\nWaitlist for %s\n\n", offerID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tRESPONSE\tEMPLOYEE\tSCORE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", e.Position, e.ResponseID, e.EmployeeID, e.Score)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

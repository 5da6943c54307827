package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hhkuy/sums-qz/internal/domain"
)

// Reporter formats final tallies and hands them to the transport. A delivery
// failure is logged and never rolls back the finalized score.
type Reporter struct {
	sender Dispatcher
	log    *logrus.Logger
}

func NewReporter(sender Dispatcher, log *logrus.Logger) *Reporter {
	return &Reporter{sender: sender, log: log}
}

func (r *Reporter) Report(ctx context.Context, report domain.ScoreReport) {
	if err := r.sender.SendText(ctx, report.ConversationID, FormatReport(report)); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"conversation": report.ConversationID,
			"participant":  report.ParticipantID,
		}).Warn("result delivery failed")
	}
}

// FormatReport renders the summary with a per-question review in dispatch order.
func FormatReport(report domain.ScoreReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Final score: %d/%d\n", report.Correct, report.Total)
	for i, line := range report.Review {
		fmt.Fprintf(&b, "\nQuestion %d: %s\n", i+1, line.Question)
		fmt.Fprintf(&b, "Your answer: %s\n", line.Chosen)
		fmt.Fprintf(&b, "Correct answer: %s\n", line.Correct)
		if line.Explanation != "" {
			fmt.Fprintf(&b, "Explanation: %s\n", line.Explanation)
		}
	}
	return b.String()
}

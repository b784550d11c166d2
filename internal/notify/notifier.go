// Package notify delivers dispute alerts and summaries to Slack and email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"clarity-disputes/backend/internal/match"
	"clarity-disputes/backend/internal/store"
)

// AlertResult reports which channels accepted a high-risk alert.
type AlertResult struct {
	SlackSent bool   `json:"slack_sent"`
	EmailSent bool   `json:"email_sent"`
	Message   string `json:"message,omitempty"`
}

// Notifier fans dispute notifications out to the configured channels.
// A nil Slack client or mailer disables that channel.
type Notifier struct {
	slack      *SlackClient
	mailer     Mailer
	adminEmail string
}

// New constructs a Notifier.
func New(slack *SlackClient, mailer Mailer, adminEmail string) *Notifier {
	return &Notifier{slack: slack, mailer: mailer, adminEmail: strings.TrimSpace(adminEmail)}
}

// NotifyHighRisk alerts reviewers that t needs immediate human review.
func (n *Notifier) NotifyHighRisk(ctx context.Context, t store.Ticket) AlertResult {
	result := AlertResult{Message: "High risk alert processed"}
	result.SlackSent = n.postSlack(ctx, "high_risk_alert", t.ID, highRiskSlackText(t))
	result.EmailSent = n.sendEmail(ctx, t.ID, fmt.Sprintf("HIGH RISK DISPUTE ALERT - Ticket %s", t.ID), highRiskEmailHTML(t))
	return result
}

// SendResolutionUpdate announces a resolved ticket. It reports whether Slack accepted it.
func (n *Notifier) SendResolutionUpdate(ctx context.Context, t store.Ticket, resolutionType string) bool {
	text := fmt.Sprintf("✅ *DISPUTE RESOLVED* ✅\n\n*Ticket ID:* %s\n*Customer:* %s\n*Resolution:* %s\n*Value:* $%.2f\n*Status:* %s\n\nResolution completed successfully.",
		t.ID, t.CustomerEmail, resolutionType, t.DisputeValue, t.Status)
	return n.postSlack(ctx, "resolution_update", t.ID, text)
}

// Summary holds the figures of one daily report.
type Summary struct {
	Date               string  `json:"date"`
	NewTickets         int     `json:"new_tickets"`
	ResolvedToday      int     `json:"resolved_today"`
	PendingHumanReview int     `json:"pending_human_review"`
	ActiveTickets      int     `json:"active_tickets"`
	AutoResolutionRate float64 `json:"auto_resolution_rate"`
}

// Summarize computes the daily report for the UTC day containing now.
func Summarize(tickets []store.Ticket, now time.Time) Summary {
	day := now.UTC().Format("2006-01-02")
	s := Summary{Date: day}
	autoResolved := 0
	for _, t := range tickets {
		if t.CreatedAt.UTC().Format("2006-01-02") == day {
			s.NewTickets++
			if t.Status == store.StatusResolved || t.Status == store.StatusAutoResolved {
				s.ResolvedToday++
			}
		}
		if t.Status == store.StatusPendingHumanReview {
			s.PendingHumanReview++
		}
		if t.Status != store.StatusResolved {
			s.ActiveTickets++
		}
		if t.Status == store.StatusAutoResolved {
			autoResolved++
		}
	}
	if len(tickets) > 0 {
		s.AutoResolutionRate = float64(autoResolved) / float64(len(tickets)) * 100
	}
	return s
}

// SendDailySummary posts the daily report to Slack and returns it.
func (n *Notifier) SendDailySummary(ctx context.Context, tickets []store.Ticket, now time.Time) (Summary, bool) {
	s := Summarize(tickets, now)
	text := fmt.Sprintf("📊 *DAILY DISPUTE SUMMARY* - %s\n\n*Today's Activity:*\n• New Tickets: %d\n• Resolved: %d\n• Pending Human Review: %d\n\n*Overall Status:*\n• Total Active Tickets: %d\n• Auto-Resolution Rate: %.1f%%",
		s.Date, s.NewTickets, s.ResolvedToday, s.PendingHumanReview, s.ActiveTickets, s.AutoResolutionRate)
	return s, n.postSlack(ctx, "daily_summary", "", text)
}

func (n *Notifier) postSlack(ctx context.Context, kind, ticketID, text string) bool {
	entry := logrus.WithFields(logrus.Fields{"channel": "slack", "kind": kind, "ticket_id": ticketID})
	if !n.slack.Configured() {
		entry.Info("slack notification skipped: not configured")
		return false
	}
	if err := n.slack.Post(ctx, text); err != nil {
		entry.WithError(err).Warn("slack notification failed")
		return false
	}
	return true
}

func (n *Notifier) sendEmail(ctx context.Context, ticketID, subject, body string) bool {
	entry := logrus.WithFields(logrus.Fields{"channel": "email", "ticket_id": ticketID, "recipient": match.RedactEmail(n.adminEmail)})
	if n.mailer == nil || n.adminEmail == "" {
		entry.Info("email notification skipped: not configured")
		return false
	}
	if err := n.mailer.SendEmail(ctx, n.adminEmail, subject, body); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			entry.WithError(err).Info("email notification skipped")
		} else {
			entry.WithError(err).Warn("email notification failed")
		}
		return false
	}
	return true
}

func proposalType(t store.Ticket) string {
	var proposal struct {
		ResolutionType string `json:"resolution_type"`
	}
	if t.AIProposal(&proposal) && proposal.ResolutionType != "" {
		return proposal.ResolutionType
	}
	return "Pending analysis"
}

func ethicalScoreText(t store.Ticket) string {
	if t.EthicalScore == nil {
		return "N/A"
	}
	return fmt.Sprint(*t.EthicalScore)
}

func riskText(t store.Ticket) string {
	if t.RiskLevel == "" {
		return "HIGH"
	}
	return strings.ToUpper(t.RiskLevel)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func highRiskSlackText(t store.Ticket) string {
	var b strings.Builder
	b.WriteString("🚨 *HIGH RISK DISPUTE ALERT* 🚨\n\n")
	fmt.Fprintf(&b, "*Ticket ID:* %s\n", t.ID)
	fmt.Fprintf(&b, "*Title:* %s\n", t.Title)
	fmt.Fprintf(&b, "*Customer:* %s\n", t.CustomerEmail)
	fmt.Fprintf(&b, "*Dispute Value:* $%.2f\n", t.DisputeValue)
	fmt.Fprintf(&b, "*Risk Level:* %s\n", riskText(t))
	fmt.Fprintf(&b, "*Ethical Score:* %s\n\n", ethicalScoreText(t))
	fmt.Fprintf(&b, "*Description:*\n%s\n\n", truncate(t.Description, 200))
	fmt.Fprintf(&b, "*AI Proposal:*\n%s\n\n", proposalType(t))
	b.WriteString("⚠️ *This ticket requires immediate human review* ⚠️")
	return b.String()
}

func highRiskEmailHTML(t store.Ticket) string {
	esc := html.EscapeString
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(`<h2 style="color: #d32f2f;">🚨 HIGH RISK DISPUTE ALERT 🚨</h2>`)
	b.WriteString(`<table style="border-collapse: collapse; width: 100%;">`)
	row := func(label, value string) {
		fmt.Fprintf(&b, `<tr><td style="font-weight: bold;">%s:</td><td>%s</td></tr>`, label, esc(value))
	}
	row("Ticket ID", t.ID)
	row("Title", t.Title)
	row("Customer", t.CustomerEmail)
	row("Dispute Value", fmt.Sprintf("$%.2f", t.DisputeValue))
	row("Risk Level", riskText(t))
	row("Ethical Score", ethicalScoreText(t))
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<h3>Description:</h3><p>%s</p>", esc(t.Description))
	fmt.Fprintf(&b, "<h3>AI Proposal:</h3><p>%s</p>", esc(proposalType(t)))
	b.WriteString(`<p style="color: #d32f2f; font-weight: bold;">⚠️ This ticket requires immediate human review ⚠️</p>`)
	b.WriteString("<p>Please log into the dispute dashboard to review and take action.</p>")
	b.WriteString("</body></html>")
	return b.String()
}

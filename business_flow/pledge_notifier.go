package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/healthiphi/founder-pass/app/services"
	"github.com/healthiphi/founder-pass/models"
	"github.com/healthiphi/founder-pass/utils"
)

// PledgeNotifier delivers the pledge lifecycle messages
type PledgeNotifier interface {
	PledgeConfirmed(ctx context.Context, pledge *models.Pledge, secret string, totalSeats int64) error
	PledgeCancelled(ctx context.Context, pledge *models.Pledge) error
	// ThresholdReached notifies every pledger in order. One failed recipient does
	// not stop the rest; the joined error reports all failures.
	ThresholdReached(ctx context.Context, pledges []*models.Pledge) error
}

// EmailPledgeNotifier renders the lifecycle messages as email
type EmailPledgeNotifier struct {
	notifier services.NotificationService
	siteURL  string
	seatGoal int64
}

// NewEmailPledgeNotifier creates a notifier that links back to siteURL
func NewEmailPledgeNotifier(notifier services.NotificationService, siteURL string, seatGoal int64) *EmailPledgeNotifier {
	if seatGoal <= 0 {
		seatGoal = utils.VaultSeatGoal
	}
	return &EmailPledgeNotifier{
		notifier: notifier,
		siteURL:  strings.TrimRight(siteURL, "/"),
		seatGoal: seatGoal,
	}
}

func (n *EmailPledgeNotifier) PledgeConfirmed(ctx context.Context, pledge *models.Pledge, secret string, totalSeats int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := "Your Healthiphi Founder Pass pledge"
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", pledge.FullName)
	fmt.Fprintf(&b, "Thank you for reserving %d %s on the %s plan for €%d per month. ",
		pledge.Seats, pluralSeats(pledge.Seats), PlanName(pledge.Seats), pledge.TotalAmount)
	b.WriteString("Your card is vaulted and will not be charged until the founder cohort is complete.\n\n")
	fmt.Fprintf(&b, "%d of %d seats are now reserved.\n\n", totalSeats, n.seatGoal)
	fmt.Fprintf(&b, "Your cancellation secret is:\n%s\n\n", secret)
	b.WriteString("Keep it private. Together with your email address it lets you withdraw the pledge at any time before charging")
	if n.siteURL != "" {
		fmt.Fprintf(&b, ":\n%s/founder/cancel?email=%s", n.siteURL, url.QueryEscape(pledge.UserEmail))
	}
	b.WriteString("\n\nThe Healthiphi team")

	return n.notifier.SendEmail(pledge.UserEmail, subject, b.String())
}

func (n *EmailPledgeNotifier) PledgeCancelled(ctx context.Context, pledge *models.Pledge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := "Your Founder Pass pledge was cancelled"
	body := fmt.Sprintf("Hi %s,\n\nYour pledge for %d %s has been cancelled and your card will not be charged.\n\nYou are welcome back any time.\n\nThe Healthiphi team",
		pledge.FullName, pledge.Seats, pluralSeats(pledge.Seats))

	return n.notifier.SendEmail(pledge.UserEmail, subject, body)
}

func (n *EmailPledgeNotifier) ThresholdReached(ctx context.Context, pledges []*models.Pledge) error {
	subject := "The Healthiphi founder cohort is complete"
	var errs []error
	for _, pledge := range pledges {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		body := fmt.Sprintf("Hi %s,\n\nWe reached %d reserved seats. Your %d %s on the %s plan will be activated and billed at €%d per month.\n\nThank you for making this happen.\n\nThe Healthiphi team",
			pledge.FullName, n.seatGoal, pledge.Seats, pluralSeats(pledge.Seats), PlanName(pledge.Seats), pledge.TotalAmount)
		if err := n.notifier.SendEmail(pledge.UserEmail, subject, body); err != nil {
			log.Printf("threshold: failed to notify %s: %v", utils.MaskEmail(pledge.UserEmail), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func pluralSeats(n int) string {
	if n == 1 {
		return "seat"
	}
	return "seats"
}

type noopPledgeNotifier struct{}

func (noopPledgeNotifier) PledgeConfirmed(context.Context, *models.Pledge, string, int64) error {
	return nil
}
func (noopPledgeNotifier) PledgeCancelled(context.Context, *models.Pledge) error { return nil }
func (noopPledgeNotifier) ThresholdReached(context.Context, []*models.Pledge) error {
	return nil
}

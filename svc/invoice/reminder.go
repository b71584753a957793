package invoice

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/logger"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

const defaultBusinessName = "Pro Invoice"

var phoneJunk = regexp.MustCompile(`[^\d+]`)

// Reminder is a prefilled WhatsApp payment reminder.
type Reminder struct {
	Phone       string  `json:"phone"`
	Message     string  `json:"message"`
	Link        string  `json:"link"`
	Outstanding float64 `json:"outstanding"`
}

// ReminderMessage lists every unpaid invoice of c and builds a wa.me link.
func ReminderMessage(c *Customer, invoices []Invoice, businessName string) (*Reminder, error) {
	phone := phoneJunk.ReplaceAllString(c.Phone, "")
	if phone == "" {
		return nil, ErrNoPhone
	}

	var (
		lines       []string
		outstanding float64
	)
	for _, inv := range invoices {
		if inv.Status == StatusPaid {
			continue
		}
		outstanding += inv.Total
		lines = append(lines, fmt.Sprintf("• %s: %s", inv.Number, FormatINR(inv.Total)))
	}
	if len(lines) == 0 {
		return nil, ErrNothingOutstanding
	}
	outstanding = round2(outstanding)
	if strings.TrimSpace(businessName) == "" {
		businessName = defaultBusinessName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", c.Name)
	b.WriteString("This is a friendly reminder about your outstanding payment.\n\n")
	fmt.Fprintf(&b, "Outstanding Amount: %s\n\n", FormatINR(outstanding))
	b.WriteString("Invoices:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nPlease let us know if you have any questions.\n\n")
	b.WriteString("Thank you!\n")
	b.WriteString(businessName)

	msg := b.String()
	return &Reminder{
		Phone:       phone,
		Message:     msg,
		Link:        "https://wa.me/" + phone + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20"),
		Outstanding: outstanding,
	}, nil
}

// Reminder builds the WhatsApp reminder for one customer.
func (s *Service) Reminder(ctx context.Context, userID, customerID uuid.UUID) (*Reminder, error) {
	c, err := s.customers.Get(ctx, userID, customerID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByCustomer(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer invoices: %w", err)
	}
	return ReminderMessage(c, invoices, s.profile(ctx, userID).DisplayName(defaultBusinessName))
}

// profile returns the business profile or an empty one when unavailable.
func (s *Service) profile(ctx context.Context, userID uuid.UUID) *profile.BusinessProfile {
	if s.profiles == nil {
		return &profile.BusinessProfile{UserID: userID}
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "business profile unavailable",
			logger.Component("invoice"),
			logger.UserID(userID),
			logger.Error(err),
		)
		return &profile.BusinessProfile{UserID: userID}
	}
	return p
}

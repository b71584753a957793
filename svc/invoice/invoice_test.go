package invoice_test

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicer/pkg/email"
	"github.com/dmitrymomot/invoicer/pkg/subscription"
	"github.com/dmitrymomot/invoicer/svc/entitlement"
	"github.com/dmitrymomot/invoicer/svc/invoice"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type noSubscriptions struct{}

func (noSubscriptions) GetByUserID(context.Context, uuid.UUID) (*subscription.Subscription, error) {
	return nil, subscription.ErrSubscriptionNotFound
}

type gateFunc func(ctx context.Context, userID uuid.UUID) (entitlement.Result, error)

func (f gateFunc) CheckInvoiceLimit(ctx context.Context, userID uuid.UUID) (entitlement.Result, error) {
	return f(ctx, userID)
}

type profiles map[uuid.UUID]*profile.BusinessProfile

func (p profiles) Get(_ context.Context, userID uuid.UUID) (*profile.BusinessProfile, error) {
	if bp, ok := p[userID]; ok {
		return bp, nil
	}
	return nil, profile.ErrProfileNotFound
}

type captureMailer struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	err  error
}

func (c *captureMailer) SendEmail(_ context.Context, p email.SendEmailParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, p)
	return c.err
}

func sequence(values ...int) func(int) int {
	var mu sync.Mutex
	i := 0
	return func(int) int {
		mu.Lock()
		defer mu.Unlock()
		v := values[i%len(values)]
		i++
		return v
	}
}

type fixture struct {
	store *memStore
	inv   invoiceStore
	svc   *invoice.Service
	now   time.Time
}

func newFixture(t *testing.T, opts ...invoice.Option) *fixture {
	t.Helper()
	store := newMemStore()
	inv := invoiceStore{store}
	now := time.Date(2025, 3, 15, 14, 0, 0, 0, ist)
	clock := func() time.Time { return now }

	gate := entitlement.NewService(noSubscriptions{}, inv,
		entitlement.WithClock(clock),
		entitlement.WithLocation(ist),
	)
	base := []invoice.Option{
		invoice.WithClock(clock),
		invoice.WithLocation(ist),
		invoice.WithRand(sequence(42)),
	}
	svc := invoice.NewService(store, inv, gate, append(base, opts...)...)
	return &fixture{store: store, inv: inv, svc: svc, now: now}
}

func sampleParams() invoice.CreateParams {
	return invoice.CreateParams{
		Customer: invoice.CustomerInput{Name: "Ravi Kumar", Email: "Ravi@Example.com", Phone: "+91 98765-43210"},
		Items:    []invoice.LineItem{{Description: "Consulting", Quantity: 10, UnitPrice: 100}},
		TaxRate:  18,
	}
}

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		items   []invoice.LineItem
		taxRate float64
		want    invoice.Totals
	}{
		{
			name:    "ten at one hundred with gst",
			items:   []invoice.LineItem{{Quantity: 10, UnitPrice: 100}},
			taxRate: 18,
			want:    invoice.Totals{Subtotal: 1000, TaxAmount: 180, Total: 1180},
		},
		{
			name:    "no tax",
			items:   []invoice.LineItem{{Quantity: 2, UnitPrice: 49.99}, {Quantity: 1, UnitPrice: 0.02}},
			taxRate: 0,
			want:    invoice.Totals{Subtotal: 100, TaxAmount: 0, Total: 100},
		},
		{
			name:    "rounds to paise",
			items:   []invoice.LineItem{{Quantity: 3, UnitPrice: 33.333}},
			taxRate: 5,
			want:    invoice.Totals{Subtotal: 100, TaxAmount: 5, Total: 105},
		},
		{
			name: "empty",
			want: invoice.Totals{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, invoice.ComputeTotals(tt.items, tt.taxRate))
		})
	}
}

func TestNewInvoiceNumber(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-2501-007", invoice.NewInvoiceNumber(at, func(int) int { return 7 }))
	assert.Equal(t, "INV-2501-999", invoice.NewInvoiceNumber(at, func(n int) int { return n - 1 }))
}

func TestFormatINR(t *testing.T) {
	t.Parallel()

	got := invoice.FormatINR(1180)
	assert.True(t, strings.HasPrefix(got, "₹"), got)
	assert.True(t, strings.HasSuffix(got, "1,180.00"), got)
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("free user scenario", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		gate := entitlement.NewService(noSubscriptions{}, f.inv,
			entitlement.WithClock(func() time.Time { return f.now }),
			entitlement.WithLocation(ist),
		)

		before, err := gate.CheckInvoiceLimit(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 0, before.InvoicesToday)

		inv, err := f.svc.Create(context.Background(), userID, sampleParams())
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusDraft, inv.Status)
		assert.Equal(t, "INV-2503-042", inv.Number)
		assert.Equal(t, 1000.0, inv.Subtotal)
		assert.Equal(t, 180.0, inv.TaxAmount())
		assert.Equal(t, 1180.0, inv.Total)
		require.Len(t, inv.Items, 1)
		assert.Equal(t, 1000.0, inv.Items[0].Amount)

		after, err := gate.CheckInvoiceLimit(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 1, after.InvoicesToday)
		assert.True(t, after.CanCreate)
	})

	t.Run("dates default to today plus thirty days", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		inv, err := f.svc.Create(context.Background(), uuid.New(), sampleParams())
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, ist), inv.IssueDate)
		assert.Equal(t, time.Date(2025, 4, 14, 0, 0, 0, 0, ist), inv.DueDate)
	})

	t.Run("quota exhausted creates nothing", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		limit := entitlement.FreeDailyLimit
		gate := gateFunc(func(context.Context, uuid.UUID) (entitlement.Result, error) {
			return entitlement.Result{CanCreate: false, InvoicesToday: limit, Limit: &limit}, nil
		})
		svc := invoice.NewService(store, invoiceStore{store}, gate)

		_, err := svc.Create(context.Background(), uuid.New(), sampleParams())
		assert.ErrorIs(t, err, invoice.ErrDailyLimitReached)
		assert.Empty(t, store.customers)
		assert.Zero(t, store.inserts)
	})

	t.Run("fifth invoice of the day is the last", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, invoice.WithRand(sequence(1, 2, 3, 4, 5, 6)))
		userID := uuid.New()
		for range entitlement.FreeDailyLimit {
			_, err := f.svc.Create(context.Background(), userID, sampleParams())
			require.NoError(t, err)
		}
		_, err := f.svc.Create(context.Background(), userID, sampleParams())
		assert.ErrorIs(t, err, invoice.ErrDailyLimitReached)
	})

	t.Run("customer reused by email", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, invoice.WithRand(sequence(1, 2)))
		userID := uuid.New()

		first, err := f.svc.Create(context.Background(), userID, sampleParams())
		require.NoError(t, err)
		p := sampleParams()
		p.Customer.Email = " ravi@example.COM "
		second, err := f.svc.Create(context.Background(), userID, p)
		require.NoError(t, err)

		assert.Equal(t, first.CustomerID, second.CustomerID)
		assert.Len(t, f.store.customers, 1)
	})

	t.Run("customers are scoped by user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, invoice.WithRand(sequence(1, 2)))
		a, err := f.svc.Create(context.Background(), uuid.New(), sampleParams())
		require.NoError(t, err)
		b, err := f.svc.Create(context.Background(), uuid.New(), sampleParams())
		require.NoError(t, err)
		assert.NotEqual(t, a.CustomerID, b.CustomerID)
	})

	t.Run("number generated once without collision check", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, invoice.WithRand(sequence(1, 1, 2)))
		userID := uuid.New()

		first, err := f.svc.Create(context.Background(), userID, sampleParams())
		require.NoError(t, err)
		second, err := f.svc.Create(context.Background(), userID, sampleParams())
		require.NoError(t, err)

		assert.Equal(t, "INV-2503-001", first.Number)
		assert.Equal(t, "INV-2503-001", second.Number)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, 2, f.store.inserts)
	})

	t.Run("submitted total is stored as sent", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		userID := uuid.New()
		p := sampleParams()
		submitted := 1200.004
		p.ClientTotal = &submitted

		inv, err := f.svc.Create(context.Background(), userID, p)
		require.NoError(t, err)
		assert.Equal(t, 1200.0, inv.Total)
		assert.Equal(t, 1000.0, inv.Subtotal)

		stored, err := f.svc.Get(context.Background(), userID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, 1200.0, stored.Total)
	})

	t.Run("computed total used when none submitted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		inv, err := f.svc.Create(context.Background(), uuid.New(), sampleParams())
		require.NoError(t, err)
		assert.Equal(t, 1180.0, inv.Total)
	})

	t.Run("gate error aborts", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		gate := gateFunc(func(context.Context, uuid.UUID) (entitlement.Result, error) {
			return entitlement.Result{}, errors.New("db down")
		})
		svc := invoice.NewService(store, invoiceStore{store}, gate)
		_, err := svc.Create(context.Background(), uuid.New(), sampleParams())
		require.Error(t, err)
		assert.Zero(t, store.inserts)
	})
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	t.Run("forward flow with email on send", func(t *testing.T) {
		t.Parallel()
		mailer := &captureMailer{}
		userID := uuid.New()
		f := newFixture(t,
			invoice.WithMailer(mailer),
			invoice.WithProfiles(profiles{userID: {BusinessName: "Acme Traders", Email: "billing@acme.in"}}),
		)
		inv, err := f.svc.Create(context.Background(), userID, sampleParams())
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(context.Background(), userID, inv.ID, invoice.StatusPaid)
		assert.ErrorIs(t, err, invoice.ErrInvalidTransition)

		sent, err := f.svc.UpdateStatus(context.Background(), userID, inv.ID, invoice.StatusSent)
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusSent, sent.Status)

		require.Len(t, mailer.sent, 1)
		msg := mailer.sent[0]
		assert.Equal(t, "ravi@example.com", msg.SendTo)
		assert.Equal(t, "Invoice INV-2503-042 from Acme Traders", msg.Subject)
		assert.Equal(t, "billing@acme.in", msg.ReplyTo)
		assert.Contains(t, msg.BodyHTML, "Consulting")

		again, err := f.svc.UpdateStatus(context.Background(), userID, inv.ID, invoice.StatusSent)
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusSent, again.Status)
		assert.Len(t, mailer.sent, 1, "repeating the current status is a no-op")

		paid, err := f.svc.UpdateStatus(context.Background(), userID, inv.ID, invoice.StatusPaid)
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusPaid, paid.Status)

		_, err = f.svc.UpdateStatus(context.Background(), userID, inv.ID, invoice.StatusSent)
		assert.ErrorIs(t, err, invoice.ErrInvalidTransition)
		_, err = f.svc.UpdateStatus(context.Background(), userID, inv.ID, invoice.StatusDraft)
		assert.ErrorIs(t, err, invoice.ErrInvalidTransition)
	})

	t.Run("email failure does not undo the change", func(t *testing.T) {
		t.Parallel()
		mailer := &captureMailer{err: errors.New("smtp down")}
		f := newFixture(t, invoice.WithMailer(mailer))
		userID := uuid.New()
		inv, err := f.svc.Create(context.Background(), userID, sampleParams())
		require.NoError(t, err)

		sent, err := f.svc.UpdateStatus(context.Background(), userID, inv.ID, invoice.StatusSent)
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusSent, sent.Status)
	})

	t.Run("other users cannot see the invoice", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		inv, err := f.svc.Create(context.Background(), uuid.New(), sampleParams())
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(context.Background(), uuid.New(), inv.ID, invoice.StatusSent)
		assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)
	})

	t.Run("transition table", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			from, to invoice.Status
			want     bool
		}{
			{invoice.StatusDraft, invoice.StatusSent, true},
			{invoice.StatusSent, invoice.StatusPaid, true},
			{invoice.StatusSent, invoice.StatusOverdue, true},
			{invoice.StatusOverdue, invoice.StatusPaid, true},
			{invoice.StatusDraft, invoice.StatusPaid, false},
			{invoice.StatusPaid, invoice.StatusSent, false},
			{invoice.StatusOverdue, invoice.StatusSent, false},
			{invoice.StatusSent, invoice.StatusDraft, false},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, invoice.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
		}
	})
}

func seed(f *fixture, userID, customerID uuid.UUID, number string, status invoice.Status, due time.Time, total float64) invoice.Invoice {
	inv := invoice.Invoice{
		ID:         uuid.New(),
		UserID:     userID,
		CustomerID: customerID,
		Number:     number,
		IssueDate:  due.AddDate(0, 0, -30),
		DueDate:    due,
		Status:     status,
		Subtotal:   total,
		Total:      total,
		CreatedAt:  due.AddDate(0, 0, -30),
	}
	f.inv.put(inv)
	return inv
}

func TestReceivables(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	c := invoice.Customer{ID: uuid.New(), UserID: userID, Name: "Ravi", Email: "ravi@example.com"}
	require.NoError(t, f.store.Insert(context.Background(), &c))

	day := func(d int) time.Time { return time.Date(2025, 3, 15+d, 0, 0, 0, 0, ist) }
	late := seed(f, userID, c.ID, "INV-A", invoice.StatusSent, day(-3), 100)
	today := seed(f, userID, c.ID, "INV-B", invoice.StatusSent, day(0), 200)
	soon := seed(f, userID, c.ID, "INV-C", invoice.StatusSent, day(5), 300)
	seed(f, userID, c.ID, "INV-D", invoice.StatusPaid, day(-10), 400)
	seed(f, userID, c.ID, "INV-E", invoice.StatusDraft, day(-10), 500)

	rep, err := f.svc.Receivables(context.Background(), userID, f.now)
	require.NoError(t, err)
	require.Len(t, rep.Invoices, 3)

	assert.Equal(t, late.ID, rep.Invoices[0].ID)
	assert.Equal(t, invoice.StatusOverdue, rep.Invoices[0].Status)
	assert.Equal(t, -3, rep.Invoices[0].DaysUntilDue)
	assert.True(t, rep.Invoices[0].IsOverdue)

	assert.Equal(t, today.ID, rep.Invoices[1].ID)
	assert.Equal(t, invoice.StatusSent, rep.Invoices[1].Status, "due today is not overdue yet")
	assert.Equal(t, 0, rep.Invoices[1].DaysUntilDue)

	assert.Equal(t, soon.ID, rep.Invoices[2].ID)
	assert.Equal(t, 5, rep.Invoices[2].DaysUntilDue)

	assert.Equal(t, 600.0, rep.TotalOutstanding)
	assert.Equal(t, 100.0, rep.OverdueAmount)
	assert.Equal(t, 3, rep.UnpaidCount)
	assert.Equal(t, "Ravi", rep.Invoices[0].CustomerName())

	n, err := f.svc.SweepOverdue(context.Background(), userID, f.now)
	require.NoError(t, err)
	assert.Zero(t, n, "sweep is idempotent")

	n, err = f.svc.SweepAllOverdue(context.Background(), f.now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBuildStatement(t *testing.T) {
	t.Parallel()

	today := time.Date(2025, 6, 30, 0, 0, 0, 0, ist)
	due := func(daysAgo int) time.Time { return today.AddDate(0, 0, -daysAgo) }
	c := &invoice.Customer{Name: "Ravi"}
	invoices := []invoice.Invoice{
		{Status: invoice.StatusSent, DueDate: due(-10), Total: 10},
		{Status: invoice.StatusOverdue, DueDate: due(30), Total: 20},
		{Status: invoice.StatusOverdue, DueDate: due(31), Total: 40},
		{Status: invoice.StatusOverdue, DueDate: due(60), Total: 80},
		{Status: invoice.StatusOverdue, DueDate: due(61), Total: 160},
		{Status: invoice.StatusOverdue, DueDate: due(90), Total: 320},
		{Status: invoice.StatusOverdue, DueDate: due(91), Total: 640},
		{Status: invoice.StatusDraft, DueDate: due(0), Total: 1},
		{Status: invoice.StatusPaid, DueDate: due(200), Total: 1000},
	}

	st := invoice.BuildStatement(c, invoices, today)
	assert.Equal(t, 2271.0, st.TotalSales)
	assert.Equal(t, 1000.0, st.Paid)
	assert.Equal(t, 1271.0, st.Outstanding)
	assert.Equal(t, invoice.Aging{Current: 31, Days31To60: 120, Days61To90: 480, Over90: 640}, st.Aging)
}

func TestReminderMessage(t *testing.T) {
	t.Parallel()

	c := &invoice.Customer{Name: "Ravi", Phone: "+91 98765-43210"}
	invoices := []invoice.Invoice{
		{Number: "INV-2503-001", Status: invoice.StatusOverdue, Total: 1180},
		{Number: "INV-2503-002", Status: invoice.StatusPaid, Total: 500},
	}

	r, err := invoice.ReminderMessage(c, invoices, "")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", r.Phone)
	assert.Equal(t, 1180.0, r.Outstanding)

	amount := invoice.FormatINR(1180)
	want := "Hi Ravi,\n\n" +
		"This is a friendly reminder about your outstanding payment.\n\n" +
		"Outstanding Amount: " + amount + "\n\n" +
		"Invoices:\n" +
		"• INV-2503-001: " + amount + "\n\n" +
		"Please let us know if you have any questions.\n\n" +
		"Thank you!\n" +
		"Pro Invoice"
	assert.Equal(t, want, r.Message)

	require.True(t, strings.HasPrefix(r.Link, "https://wa.me/+919876543210?text="))
	u, err := url.Parse(r.Link)
	require.NoError(t, err)
	assert.Equal(t, want, u.Query().Get("text"))
	assert.NotContains(t, r.Link, "+Ravi", "spaces are percent-encoded")

	_, err = invoice.ReminderMessage(&invoice.Customer{Name: "X"}, invoices, "Acme")
	assert.ErrorIs(t, err, invoice.ErrNoPhone)
	_, err = invoice.ReminderMessage(c, invoices[1:], "Acme")
	assert.ErrorIs(t, err, invoice.ErrNothingOutstanding)
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	c := invoice.Customer{ID: uuid.New(), UserID: userID, Name: "Ravi", Email: "ravi@example.com"}
	require.NoError(t, f.store.Insert(context.Background(), &c))
	for i, st := range []invoice.Status{invoice.StatusPaid, invoice.StatusSent, invoice.StatusOverdue, invoice.StatusDraft, invoice.StatusPaid, invoice.StatusSent} {
		seed(f, userID, c.ID, "INV-"+string(rune('A'+i)), st, f.now.AddDate(0, 0, i), 100)
	}
	seed(f, uuid.New(), uuid.New(), "INV-OTHER", invoice.StatusPaid, f.now, 999)

	d, err := f.svc.Dashboard(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 6, d.InvoiceCount)
	assert.Equal(t, 1, d.CustomerCount)
	assert.Equal(t, 200.0, d.Revenue)
	assert.Equal(t, 300.0, d.Outstanding)
	require.Len(t, d.Recent, 5)
	assert.Equal(t, "INV-F", d.Recent[0].Number)
	assert.Equal(t, "Ravi", d.Recent[0].CustomerName())
}

func TestPaymentQR(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	bare := uuid.New()
	f := newFixture(t, invoice.WithProfiles(profiles{
		userID: {BusinessName: "Acme", UPIID: "acme@okhdfc"},
		bare:   {BusinessName: "No UPI"},
	}))

	inv, err := f.svc.Create(context.Background(), userID, sampleParams())
	require.NoError(t, err)
	png, err := f.svc.PaymentQR(context.Background(), userID, inv.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	other, err := f.svc.Create(context.Background(), bare, sampleParams())
	require.NoError(t, err)
	_, err = f.svc.PaymentQR(context.Background(), bare, other.ID)
	assert.ErrorIs(t, err, invoice.ErrNoUPIID)
}

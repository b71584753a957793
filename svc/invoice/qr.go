package invoice

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/qrcode"
)

const qrSize = 256

// PaymentQR renders a UPI QR code for the invoice total.
func (s *Service) PaymentQR(ctx context.Context, userID, id uuid.UUID) ([]byte, error) {
	inv, err := s.invoices.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	prof := s.profile(ctx, userID)
	if prof.UPIID == "" {
		return nil, ErrNoUPIID
	}
	return qrcode.UPI(qrcode.UPIPayment{
		VPA:    prof.UPIID,
		Payee:  prof.DisplayName(""),
		Amount: inv.Total,
		Note:   "Invoice " + inv.Number,
	}, qrSize)
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

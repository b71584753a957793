package invoice

import (
	"fmt"
	"time"
)

// NewInvoiceNumber formats INV-YYMM-NNN. intn must return a value in [0, n).
func NewInvoiceNumber(now time.Time, intn func(n int) int) string {
	return fmt.Sprintf("INV-%02d%02d-%03d", now.Year()%100, int(now.Month()), intn(1000))
}

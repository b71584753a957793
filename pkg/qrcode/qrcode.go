// Package qrcode renders PNG QR codes, including UPI payment requests that
// Indian banking apps can scan to pay an invoice.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent           = errors.New("content cannot be empty")
	ErrFailedToGenerateQRCode = errors.New("failed to generate QR code")
	ErrInvalidVPA             = errors.New("invalid UPI id")
	ErrInvalidAmount          = errors.New("amount must be positive")
)

const defaultSize = 256

// Generate returns a PNG image encoding content. A non-positive size uses 256px.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerateQRCode, err)
	}
	return png, nil
}

// GenerateBase64Image returns the PNG as a data URI for <img src>.
func GenerateBase64Image(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// UPIPayment is a single-use payment request in INR.
type UPIPayment struct {
	VPA    string // payee address, e.g. shop@okbank
	Payee  string
	Amount float64
	Note   string
}

var vpaRegex = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9.\-]{1,64}$`)

// URI builds the upi://pay deep link.
func (p UPIPayment) URI() (string, error) {
	vpa := strings.TrimSpace(p.VPA)
	if !vpaRegex.MatchString(vpa) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVPA, p.VPA)
	}
	if p.Amount <= 0 {
		return "", ErrInvalidAmount
	}

	var b strings.Builder
	b.WriteString("upi://pay?pa=")
	b.WriteString(url.PathEscape(vpa))
	if p.Payee != "" {
		b.WriteString("&pn=")
		b.WriteString(url.PathEscape(p.Payee))
	}
	b.WriteString("&am=")
	b.WriteString(strconv.FormatFloat(p.Amount, 'f', 2, 64))
	b.WriteString("&cu=INR")
	if p.Note != "" {
		b.WriteString("&tn=")
		b.WriteString(url.PathEscape(p.Note))
	}
	return b.String(), nil
}

// UPI renders p as a PNG QR code.
func UPI(p UPIPayment, size int) ([]byte, error) {
	uri, err := p.URI()
	if err != nil {
		return nil, err
	}
	return Generate(uri, size)
}

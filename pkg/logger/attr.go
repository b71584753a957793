package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". Nil errors produce an empty Attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the owning user under "user_id".
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RequestID records the request identifier under "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

func InvoiceID(id any) slog.Attr {
	return slog.Any("invoice_id", id)
}

func CustomerID(id any) slog.Attr {
	return slog.Any("customer_id", id)
}

// ExternalSubscriptionID records the payment provider's subscription id.
func ExternalSubscriptionID(id string) slog.Attr {
	return slog.String("external_subscription_id", id)
}

// EventType records a billing or domain event name.
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

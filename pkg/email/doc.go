// Package email sends transactional mail through Postmark, or writes it to
// disk in development.
//
// Both senders implement EmailSender and validate parameters before sending.
// Message bodies are templ components rendered to strings with Render:
//
//	body, err := email.Render(ctx, email.InvoiceSent(data))
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   customer.Email,
//		Subject:  email.InvoiceSentSubject(data),
//		BodyHTML: body,
//		Tag:      "invoice-sent",
//	})
package email

package gemini

import (
	"strings"
	"time"
)

const promptTemplate = `You are an AI assistant that helps parse natural language invoice requests into structured data.

Extract the following information from the user's request:
1. Customer details (name, email, phone, address if provided)
2. Line items (description, quantity, unit price)
3. Due date (if mentioned, otherwise leave empty)
4. Any special notes

Respond ONLY with a valid JSON object in this exact format:
{
  "customer": {
    "name": "Customer Name",
    "email": "email@example.com",
    "phone": "phone number",
    "address": "address"
  },
  "items": [
    {
      "description": "Item description",
      "quantity": 1,
      "unit_price": 100
    }
  ],
  "due_date": "2024-01-15",
  "notes": "Optional notes"
}

Rules:
- If customer email/phone/address not provided, set them as null
- If quantity not specified, assume 1
- If due date mentions "X days", calculate from today (today is {{today}})
- Unit prices should be numbers only (no currency symbols)
- Always return valid JSON, nothing else

User request: {{prompt}}`

func buildPrompt(prompt string, today time.Time) string {
	return strings.NewReplacer(
		"{{today}}", today.Format(time.DateOnly),
		"{{prompt}}", prompt,
	).Replace(promptTemplate)
}

// stripFences removes markdown code fences around the JSON payload.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func normalize(p *ParsedInvoice) {
	p.Customer.Name = strings.TrimSpace(p.Customer.Name)
	p.Customer.Email = nilIfBlank(p.Customer.Email)
	p.Customer.Phone = nilIfBlank(p.Customer.Phone)
	p.Customer.Address = nilIfBlank(p.Customer.Address)
	p.DueDate = nilIfBlank(p.DueDate)
	p.Notes = nilIfBlank(p.Notes)
	if p.Items == nil {
		p.Items = []ParsedItem{}
	}
	for i := range p.Items {
		if p.Items[i].Quantity <= 0 {
			p.Items[i].Quantity = 1
		}
	}
}

func nilIfBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

// Package email defines the parsed view of a received message, as recorded
// by the capture sink.
package email

import "time"

// Email represents a parsed email message with all its components.
type Email struct {
	// Envelope addresses from the SMTP transaction.
	MailFrom string
	RcptTo   []string

	From       string
	To         []string
	Cc         []string
	Subject    string
	MessageID  string
	DateHeader string
	// Date is the parsed DateHeader, zero when it could not be parsed.
	Date time.Time

	// ContentType is the top-level media type without parameters.
	ContentType string
	// Layout lists the media type of every leaf part in document order,
	// attachments included.
	Layout []string

	TextBody    string
	HtmlBody    string
	Attachments []Attachment
	RawHeaders  map[string][]string
	Size        int
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

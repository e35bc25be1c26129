// Package compose builds the MIME documents for each message shape.
//
// Every shape shares Subject, From, To and Date headers. The alternative
// shape stamps its Date with a zone abbreviation ("+0000 UTC") while the
// others use a numeric zone with a parenthesised comment ("-0700 (MST)"),
// so a receiver sees both notations in one run.
package compose

import (
	"fmt"
	"html"
	"mime"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/shineum/slurpgen/internal/failure"
	"github.com/shineum/slurpgen/internal/quote"
)

// DefaultSignature closes every generated body.
const DefaultSignature = "Adam Presley"

// attachmentContentType is the media type declared for every attachment.
const attachmentContentType = "image/png"

const (
	zoneNameDateLayout    = "Mon, 02 Jan 2006 15:04:05 -0700 MST"
	zoneCommentDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700 (MST)"
)

const (
	plainTextBody = "Hello,\nI am plain text mail #%d.\n\nSincerely,\n%s"
	quoteTextBody = "Hello,\nHere is today's quote.\n\n%s\n  -- %s\n\nSincerely,\n%s"
	quoteHtmlBody = "<p>Hello,</p><p>Here is today's quote.</p><p><em>%s</em><br />&nbsp;&nbsp;-- %s</p><p>Sincerely,<br />%s</p>"

	attachmentTextBody  = "Hello,\nI am plain text mail with an attachment.\n\nSincerely,\n%s"
	attachmentHtmlBody  = "<p>This is a <strong>HTML</strong> email with an attachment.</p>"
	namedAttachmentBody = "<p>This is a <strong>HTML</strong> email with an attachment done differently.</p>"
)

// Config holds the fixed inputs shared by every composed message.
type Config struct {
	From           string
	To             string
	Signature      string
	AttachmentPath string

	// ReadFile loads the attachment source. Defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// Content is the per-send input to Compose.
type Content struct {
	// Index numbers repeated shapes.
	Index int
	// Quote fills the alternative shape.
	Quote quote.Quote
	// Now stamps the Date header. The zero value means time.Now().
	Now time.Time
	// Filenames overrides the shape's attachment filenames. When set it
	// must hold exactly one name per attachment part. The driver never sets
	// it; it exists mainly so both filename conventions can be checked
	// against one name.
	Filenames []string
}

// Composer builds messages from a Config.
type Composer struct {
	from           string
	to             string
	signature      string
	attachmentPath string
	readFile       func(string) ([]byte, error)
}

// New creates a Composer.
func New(cfg Config) *Composer {
	if cfg.Signature == "" {
		cfg.Signature = DefaultSignature
	}
	if cfg.ReadFile == nil {
		cfg.ReadFile = os.ReadFile
	}
	return &Composer{
		from:           cfg.From,
		to:             cfg.To,
		signature:      cfg.Signature,
		attachmentPath: cfg.AttachmentPath,
		readFile:       cfg.ReadFile,
	}
}

// Compose builds the message for one shape. It fails with a
// failure.AttachmentRead error when the attachment source cannot be read.
func (c *Composer) Compose(shape Shape, content Content) (*Message, error) {
	now := content.Now
	if now.IsZero() {
		now = time.Now()
	}

	msg := &Message{
		Shape: shape,
		From:  c.from,
		To:    c.to,
		Date:  now.Format(zoneCommentDateLayout),
	}

	var filenames []string
	var payload []byte
	if n := shape.AttachmentCount(); n > 0 {
		filenames = shape.defaultFilenames()
		if content.Filenames != nil {
			if len(content.Filenames) != n {
				return nil, fmt.Errorf("%s takes %d attachment filenames, got %d", shape, n, len(content.Filenames))
			}
			filenames = content.Filenames
		}

		data, err := c.readFile(c.attachmentPath)
		if err != nil {
			return nil, failure.New(failure.AttachmentRead, "read attachment "+c.attachmentPath, err)
		}
		payload = data
	}

	switch shape {
	case PlainText:
		msg.Subject = fmt.Sprintf("Text Mail #%d", content.Index)
		msg.Root = textPart(fmt.Sprintf(plainTextBody, content.Index, c.signature))

	case Alternative:
		q := content.Quote
		msg.Subject = fmt.Sprintf("Quote From %s", q.Attribution)
		msg.Date = now.UTC().Format(zoneNameDateLayout)
		msg.Root = &Part{
			Kind: "alternative",
			Parts: []*Part{
				textPart(fmt.Sprintf(quoteTextBody, q.Text, q.Attribution, c.signature)),
				htmlPart(fmt.Sprintf(quoteHtmlBody,
					html.EscapeString(q.Text), html.EscapeString(q.Attribution), html.EscapeString(c.signature))),
			},
		}

	case TextWithAttachment:
		msg.Subject = "Text+Attachment Mail"
		msg.Root = &Part{
			Kind: "mixed",
			Parts: []*Part{
				textPart(fmt.Sprintf(attachmentTextBody, c.signature)),
				dispositionAttachment(filenames[0], payload),
			},
		}

	case HtmlWithDoubleAttachment:
		msg.Subject = "HTML+Attachment Mail"
		msg.Root = &Part{
			Kind: "mixed",
			Parts: []*Part{
				htmlPart(attachmentHtmlBody),
				dispositionAttachment(filenames[0], payload),
				dispositionAttachment(filenames[1], payload),
			},
		}

	case HtmlWithNamedAttachment:
		msg.Subject = "HTML+Attachment Mail 2"
		msg.Root = &Part{
			Kind: "mixed",
			Parts: []*Part{
				htmlPart(namedAttachmentBody),
				namedAttachment(filenames[0], payload),
			},
		}

	default:
		return nil, fmt.Errorf("unknown message shape %d", int(shape))
	}

	return msg, nil
}

func textPart(body string) *Part {
	return bodyPart("text/plain", body)
}

func htmlPart(body string) *Part {
	return bodyPart("text/html", body)
}

func bodyPart(mediaType, body string) *Part {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", mime.FormatMediaType(mediaType, map[string]string{"charset": "utf-8"}))
	h.Set("Content-Transfer-Encoding", EncodingQuotedPrintable)
	return &Part{Header: h, Content: []byte(body)}
}

// dispositionAttachment carries the filename as a quoted parameter on
// Content-Disposition and leaves Content-Type bare.
func dispositionAttachment(filename string, payload []byte) *Part {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", attachmentContentType)
	h.Set("Content-Disposition", `attachment; filename="`+quoteParam(filename)+`"`)
	h.Set("Content-Transfer-Encoding", EncodingBase64)
	return &Part{Header: h, Content: payload}
}

// namedAttachment carries the filename as the Content-Type name parameter
// and leaves Content-Disposition without parameters.
func namedAttachment(filename string, payload []byte) *Part {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", mime.FormatMediaType(attachmentContentType, map[string]string{"name": filename}))
	h.Set("Content-Disposition", "attachment")
	h.Set("Content-Transfer-Encoding", EncodingBase64)
	return &Part{Header: h, Content: payload}
}

func quoteParam(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

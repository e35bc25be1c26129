package compose

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"sort"
	"strings"
)

// Transfer encodings used for leaf parts.
const (
	EncodingQuotedPrintable = "quoted-printable"
	EncodingBase64          = "base64"
)

// base64LineLength is the RFC 2045 limit for encoded lines.
const base64LineLength = 76

// Part is a node in a message body tree. A multipart node has a Kind
// ("alternative", "mixed") and ordered Parts; a leaf has a Header and
// decoded Content, encoded on output per its Content-Transfer-Encoding.
type Part struct {
	Kind    string
	Parts   []*Part
	Header  textproto.MIMEHeader
	Content []byte
}

// IsMultipart reports whether the part is a container.
func (p *Part) IsMultipart() bool {
	return p.Kind != ""
}

// MediaType returns the part's media type without parameters.
func (p *Part) MediaType() string {
	if p.IsMultipart() {
		return "multipart/" + p.Kind
	}
	mediaType, _, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mediaType
}

// Leaves returns the non-container parts in document order.
func (p *Part) Leaves() []*Part {
	if !p.IsMultipart() {
		return []*Part{p}
	}
	var leaves []*Part
	for _, child := range p.Parts {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// Message is one composed mail, ready to be serialised and delivered to a
// single recipient.
type Message struct {
	Shape   Shape
	From    string
	To      string
	Subject string
	Date    string
	Root    *Part
}

// EnvelopeFrom returns the bare sender address for MAIL FROM. The From
// header keeps any display name.
func (m *Message) EnvelopeFrom() string {
	return envelopeAddress(m.From)
}

// EnvelopeTo returns the bare recipient address for RCPT TO.
func (m *Message) EnvelopeTo() string {
	return envelopeAddress(m.To)
}

func envelopeAddress(s string) string {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return s
	}
	return addr.Address
}

// Bytes serialises the message as an RFC 5322 document with CRLF line
// endings. Multipart boundaries are random, so two calls differ in their
// boundary strings only.
func (m *Message) Bytes() ([]byte, error) {
	header, body, err := renderPart(m.Root)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeaderLine(&buf, "From", m.From)
	writeHeaderLine(&buf, "To", m.To)
	writeHeaderLine(&buf, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeaderLine(&buf, "Date", m.Date)
	writeHeaderLine(&buf, "MIME-Version", "1.0")

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range header[k] {
			writeHeaderLine(&buf, k, v)
		}
	}

	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

func writeHeaderLine(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// renderPart returns the header and encoded body of a part. Container
// parts get a fresh boundary written into their Content-Type.
func renderPart(p *Part) (textproto.MIMEHeader, []byte, error) {
	if p == nil {
		return nil, nil, fmt.Errorf("message has no body")
	}

	if !p.IsMultipart() {
		body, err := encodeContent(p.Header.Get("Content-Transfer-Encoding"), p.Content)
		if err != nil {
			return nil, nil, err
		}
		return p.Header, body, nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, child := range p.Parts {
		childHeader, childBody, err := renderPart(child)
		if err != nil {
			return nil, nil, err
		}
		pw, err := writer.CreatePart(childHeader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s part: %w", child.MediaType(), err)
		}
		if _, err := pw.Write(childBody); err != nil {
			return nil, nil, fmt.Errorf("failed to write %s part: %w", child.MediaType(), err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to close multipart/%s: %w", p.Kind, err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", mime.FormatMediaType("multipart/"+p.Kind, map[string]string{
		"boundary": writer.Boundary(),
	}))
	return header, buf.Bytes(), nil
}

func encodeContent(encoding string, content []byte) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case EncodingBase64:
		return []byte(encodeBase64WithLineBreaks(content)), nil
	case EncodingQuotedPrintable:
		var buf bytes.Buffer
		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write(content); err != nil {
			return nil, fmt.Errorf("failed to quoted-printable encode content: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("failed to quoted-printable encode content: %w", err)
		}
		return buf.Bytes(), nil
	case "", "7bit", "8bit":
		return content, nil
	default:
		return nil, fmt.Errorf("unsupported transfer encoding %q", encoding)
	}
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for i := 0; i < len(encoded); i += base64LineLength {
		end := i + base64LineLength
		if end > len(encoded) {
			end = len(encoded)
		}
		b.WriteString(encoded[i:end])
		b.WriteString("\r\n")
	}
	return b.String()
}

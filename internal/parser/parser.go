// Package parser provides RFC 5322 email message parsing with MIME multipart support.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/shineum/slurpgen/internal/email"
)

// Parse parses a raw RFC 5322 email message into an Email struct.
// It handles plain text messages, multipart messages with text/html bodies,
// and attachments. Unrecognized MIME parts are logged as warnings.
func Parse(raw []byte) (*email.Email, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &email.Email{
		RawHeaders: make(map[string][]string),
		Size:       len(raw),
	}

	// Copy all headers
	for key, values := range msg.Header {
		result.RawHeaders[key] = values
	}

	// Extract standard header fields
	result.From = msg.Header.Get("From")
	result.Subject = decodeHeader(msg.Header.Get("Subject"))
	result.MessageID = msg.Header.Get("Message-Id")
	result.To = parseAddressList(msg.Header.Get("To"))
	result.Cc = parseAddressList(msg.Header.Get("Cc"))
	result.DateHeader = msg.Header.Get("Date")
	result.Date = parseDate(result.DateHeader)

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// If content type is unparseable, treat as plain text
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read message body: %w", readErr)
		}
		result.ContentType = "text/plain"
		result.Layout = []string{"text/plain"}
		result.TextBody = string(body)
		return result, nil
	}
	result.ContentType = mediaType

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if err := parseMultipart(msg.Body, boundary, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := decodeBody(msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	result.Layout = []string{mediaType}
	switch mediaType {
	case "text/plain":
		result.TextBody = string(body)
	case "text/html":
		result.HtmlBody = string(body)
	default:
		slog.Warn("unrecognized top-level content type",
			"content_type", mediaType,
		)
		result.TextBody = string(body)
	}

	return result, nil
}

// parseMultipart processes a multipart MIME message body, extracting text/plain,
// text/html parts and attachments.
func parseMultipart(body io.Reader, boundary string, result *email.Email) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = "text/plain"
		}

		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", partContentType,
				"error", err,
			)
			continue
		}

		contentDisposition := part.Header.Get("Content-Disposition")
		isAttachment := strings.HasPrefix(strings.ToLower(contentDisposition), "attachment")

		// Check for nested multipart
		if strings.HasPrefix(mediaType, "multipart/") {
			nestedBoundary := params["boundary"]
			if nestedBoundary == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(part, nestedBoundary, result); err != nil {
				slog.Warn("failed to parse nested multipart",
					"error", err,
				)
			}
			continue
		}

		// multipart.Reader strips quoted-printable itself; base64 is left to us.
		content, err := decodeBody(part.Header.Get("Content-Transfer-Encoding"), part)
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}
		result.Layout = append(result.Layout, mediaType)

		if isAttachment {
			result.Attachments = append(result.Attachments, email.Attachment{
				Filename:    ExtractFilename(part.Header, params),
				ContentType: mediaType,
				Content:     content,
			})
			continue
		}

		switch mediaType {
		case "text/plain":
			if result.TextBody == "" {
				result.TextBody = string(content)
			}
		case "text/html":
			if result.HtmlBody == "" {
				result.HtmlBody = string(content)
			}
		default:
			// Check if it has a filename even without attachment disposition
			filename := ExtractFilename(part.Header, params)
			if filename != "" {
				result.Attachments = append(result.Attachments, email.Attachment{
					Filename:    filename,
					ContentType: mediaType,
					Content:     content,
				})
			} else {
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
					"disposition", contentDisposition,
				)
			}
		}
	}

	return nil
}

// decodeBody reads a body, undoing its Content-Transfer-Encoding.
func decodeBody(encoding string, r io.Reader) ([]byte, error) {
	encoding = strings.ToLower(strings.TrimSpace(encoding))

	if encoding == "quoted-printable" {
		return io.ReadAll(quotedprintable.NewReader(r))
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch encoding {
	case "base64":
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			// Try with RawStdEncoding for unpadded base64
			decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 content: %w", err)
			}
		}
		return decoded, nil
	default:
		// "7bit", "8bit", "binary" or empty
		return raw, nil
	}
}

// ExtractFilename returns a part's filename, checking the Content-Disposition
// filename parameter first and the Content-Type name parameter second.
// contentTypeParams are the already-parsed Content-Type parameters.
func ExtractFilename(header map[string][]string, contentTypeParams map[string]string) string {
	if cd := firstValue(header, "Content-Disposition"); cd != "" {
		if _, dispParams, err := mime.ParseMediaType(cd); err == nil {
			if fn := dispParams["filename"]; fn != "" {
				return fn
			}
		}
	}
	if name, ok := contentTypeParams["name"]; ok && name != "" {
		return name
	}
	// Generate a fallback name from the media type
	if mediaType, _, err := mime.ParseMediaType(firstValue(header, "Content-Type")); err == nil {
		parts := strings.SplitN(mediaType, "/", 2)
		if len(parts) == 2 {
			return "attachment." + parts[1]
		}
	}
	return "attachment"
}

func firstValue(header map[string][]string, key string) string {
	if v := header[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// parseDate accepts the RFC 5322 forms and the looser variants real mailers
// produce, returning the zero time when nothing matches.
func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		slog.Debug("unparseable Date header", "date", value, "error", err)
		return time.Time{}
	}
	return t
}

// decodeHeader decodes RFC 2047 encoded words, returning the input as-is on failure.
func decodeHeader(value string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// parseAddressList splits a comma-separated address list into individual addresses.
func parseAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		// Fall back to simple comma split if RFC 5322 parsing fails
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}

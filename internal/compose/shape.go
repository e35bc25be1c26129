package compose

import (
	"fmt"
	"strings"
)

// Shape is one of the fixed message layouts the generator produces.
type Shape int

const (
	// PlainText is a single text/plain body.
	PlainText Shape = iota + 1
	// Alternative is multipart/alternative holding plain text then HTML.
	Alternative
	// TextWithAttachment is multipart/mixed holding plain text and one
	// attachment named through Content-Disposition.
	TextWithAttachment
	// HtmlWithDoubleAttachment is multipart/mixed holding HTML and two
	// attachments named through Content-Disposition.
	HtmlWithDoubleAttachment
	// HtmlWithNamedAttachment is multipart/mixed holding HTML and one
	// attachment named through the Content-Type name parameter.
	HtmlWithNamedAttachment
)

var shapeNames = []struct {
	shape Shape
	name  string
}{
	{Alternative, "alternative"},
	{PlainText, "plain-text"},
	{TextWithAttachment, "text-attachment"},
	{HtmlWithDoubleAttachment, "html-double-attachment"},
	{HtmlWithNamedAttachment, "html-named-attachment"},
}

// All returns every shape in the default run order.
func All() []Shape {
	shapes := make([]Shape, 0, len(shapeNames))
	for _, s := range shapeNames {
		shapes = append(shapes, s.shape)
	}
	return shapes
}

// Names returns the textual names of every shape in the default run order.
func Names() []string {
	names := make([]string, 0, len(shapeNames))
	for _, s := range shapeNames {
		names = append(names, s.name)
	}
	return names
}

func (s Shape) String() string {
	for _, n := range shapeNames {
		if n.shape == s {
			return n.name
		}
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// ParseShape maps a textual shape name to its Shape. Matching ignores case
// and surrounding whitespace.
func ParseShape(name string) (Shape, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range shapeNames {
		if n.name == name {
			return n.shape, nil
		}
	}
	return 0, fmt.Errorf("unknown message shape %q (valid: %s)", name, strings.Join(Names(), ", "))
}

// ParseShapes maps a list of names to shapes, failing on the first unknown one.
func ParseShapes(names []string) ([]Shape, error) {
	shapes := make([]Shape, 0, len(names))
	for _, name := range names {
		s, err := ParseShape(name)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	return shapes, nil
}

// Repeats reports whether the shape is sent once per configured count
// rather than once per run.
func (s Shape) Repeats() bool {
	return s == PlainText || s == Alternative
}

// NeedsQuote reports whether composing the shape uses a quote.
func (s Shape) NeedsQuote() bool {
	return s == Alternative
}

// defaultFilenames is the attachment naming per shape.
func (s Shape) defaultFilenames() []string {
	switch s {
	case TextWithAttachment:
		return []string{"screenshot.png"}
	case HtmlWithDoubleAttachment:
		return []string{"screenshot1.png", "screenshot2.png"}
	case HtmlWithNamedAttachment:
		return []string{"screenshot1.png"}
	default:
		return nil
	}
}

// AttachmentCount is the number of attachment parts the shape carries.
func (s Shape) AttachmentCount() int {
	return len(s.defaultFilenames())
}

package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShape(t *testing.T) {
	t.Parallel()

	for _, shape := range All() {
		got, err := ParseShape(strings.ToUpper(" " + shape.String() + " "))
		require.NoError(t, err)
		assert.Equal(t, shape, got)
	}

	_, err := ParseShape("carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plain-text")
}

func TestParseShapes(t *testing.T) {
	t.Parallel()

	shapes, err := ParseShapes([]string{"plain-text", "html-named-attachment"})
	require.NoError(t, err)
	assert.Equal(t, []Shape{PlainText, HtmlWithNamedAttachment}, shapes)

	_, err = ParseShapes([]string{"plain-text", "nope"})
	assert.Error(t, err)
}

func TestAll_DefaultOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Shape{
		Alternative,
		PlainText,
		TextWithAttachment,
		HtmlWithDoubleAttachment,
		HtmlWithNamedAttachment,
	}, All())
	assert.Len(t, Names(), 5)
}

func TestShapeProperties(t *testing.T) {
	t.Parallel()

	assert.True(t, PlainText.Repeats())
	assert.True(t, Alternative.Repeats())
	assert.False(t, TextWithAttachment.Repeats())

	assert.True(t, Alternative.NeedsQuote())
	assert.False(t, PlainText.NeedsQuote())

	assert.Equal(t, 0, PlainText.AttachmentCount())
	assert.Equal(t, 1, TextWithAttachment.AttachmentCount())
	assert.Equal(t, 2, HtmlWithDoubleAttachment.AttachmentCount())
	assert.Equal(t, 1, HtmlWithNamedAttachment.AttachmentCount())

	assert.Equal(t, "shape(0)", Shape(0).String())
}

func TestEncodeBase64WithLineBreaks(t *testing.T) {
	t.Parallel()

	encoded := encodeBase64WithLineBreaks(make([]byte, 200))
	lines := strings.Split(strings.TrimSuffix(encoded, "\r\n"), "\r\n")
	require.Len(t, lines, 4)
	for _, line := range lines[:3] {
		assert.Len(t, line, 76)
	}
}

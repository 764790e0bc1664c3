package service

import (
	"html"
	"strings"
	"unicode"

	nethtml "golang.org/x/net/html"

	"github.com/bscott/mailgate/internal/mail"
)

// ReadingOptions limits how much text is read from a body.
type ReadingOptions struct {
	// Length is the maximum number of characters. Zero or less means no
	// limit.
	Length int
}

// PreviewTextProcessor derives a short plain text from a message body.
type PreviewTextProcessor struct{}

// Process returns the preview of body. The plain part is preferred; html is
// reduced to its text. Whitespace is collapsed. A nil opts returns the full
// text.
func (PreviewTextProcessor) Process(body *mail.MessageBody, opts *ReadingOptions) string {
	if body == nil {
		return ""
	}
	var text string
	switch {
	case body.TextPlain != nil && strings.TrimSpace(body.TextPlain.Contents) != "":
		text = body.TextPlain.Contents
	case body.TextHTML != nil:
		text = HTMLToText(body.TextHTML.Contents)
	}
	text = strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")

	if opts == nil || opts.Length <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= opts.Length {
		return text
	}
	return string(runes[:opts.Length])
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true,
}

// HTMLToText extracts the text of an html document. Block elements start a
// new line; script and style contents are dropped.
func HTMLToText(s string) string {
	var b strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			// io.EOF or a read error; either way the text so far is all
			return strings.TrimSpace(b.String())
		case nethtml.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if blockElements[tag] {
				newline(&b)
			}
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				newline(&b)
			}
		}
	}
}

func newline(b *strings.Builder) {
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
}

// TextToHTML escapes plain text and turns its line breaks into <br> tags.
func TextToHTML(s string) string {
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}

package service

import (
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"

	"github.com/spec-kit/desk-bridge/internal/domain"
)

const (
	defaultAuthor = "Support Agent"
	// Telegram rejects messages above 4096 characters; leave room for the header.
	maxContentRunes = 3800
)

var (
	lineBreakTags = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|h[1-6]|tr|blockquote)\s*>`)
	extraNewlines = regexp.MustCompile(`\n{3,}`)
	// markupTags matches the elements agent replies are written with. Anything else that
	// starts with '<' is treated as text.
	markupTags = regexp.MustCompile(`(?i)</?(a|b|i|u|s|em|strong|ins|strike|del|code|pre|br|p|div|span|li|ul|ol|h[1-6]|tr|td|th|table|tbody|blockquote|font|img|hr|script|style)(\s[^>]*)?/?>`)
)

var errUnbalanced = errors.New("markup cannot be balanced")

// contentFormatter reduces agent-authored HTML to the subset Telegram accepts.
type contentFormatter struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

func newContentFormatter() *contentFormatter {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre")
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowURLSchemes("http", "https", "mailto", "tg")
	rich.RequireParseableURLs(true)

	return &contentFormatter{rich: rich, plain: bluemonday.StrictPolicy()}
}

// Content converts block markup to newlines and keeps the inline tags Telegram renders.
// Text without markup is escaped verbatim.
func (f *contentFormatter) Content(s string) string {
	if !markupTags.MatchString(s) {
		return f.text(html.EscapeString(s))
	}

	s = lineBreakTags.ReplaceAllString(s, "\n")
	out := strings.TrimSpace(extraNewlines.ReplaceAllString(f.rich.Sanitize(s), "\n\n"))
	if balanced, err := balanceTags(out); err == nil && utf8.RuneCountInString(balanced) <= maxContentRunes {
		return balanced
	}
	// Cutting rich markup can leave an unclosed tag, so long or broken content falls back to plain text.
	return f.text(f.plain.Sanitize(s))
}

func (f *contentFormatter) text(escaped string) string {
	return truncateEscaped(strings.TrimSpace(extraNewlines.ReplaceAllString(escaped, "\n\n")), maxContentRunes)
}

// balanceTags closes tags left open, drops stray end tags and closes inner tags before an
// outer one so the result nests the way Telegram requires.
func balanceTags(s string) (string, error) {
	var (
		b     strings.Builder
		stack []string
	)
	closeTo := func(depth int) {
		for len(stack) > depth {
			b.WriteString("</" + stack[len(stack)-1] + ">")
			stack = stack[:len(stack)-1]
		}
	}

	z := xhtml.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return "", fmt.Errorf("%w: %v", errUnbalanced, z.Err())
			}
			closeTo(0)
			return b.String(), nil
		case xhtml.TextToken:
			b.Write(z.Raw())
		case xhtml.StartTagToken:
			name, _ := z.TagName()
			b.Write(z.Raw())
			stack = append(stack, strings.ToLower(string(name)))
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == tag {
					closeTo(i)
					break
				}
			}
		case xhtml.SelfClosingTagToken, xhtml.CommentToken, xhtml.DoctypeToken:
		default:
			return "", errUnbalanced
		}
	}
}

func truncateEscaped(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if amp := strings.LastIndex(cut, "&"); amp > strings.LastIndex(cut, ";") {
		cut = cut[:amp]
	}
	return cut + "…"
}

// FormatReply renders a ticket-system event as a chat message.
func (r *TicketRelay) FormatReply(event domain.RelayEvent) domain.ChatMessage {
	label := "Comment"
	if event.Kind == domain.RelayKindReply {
		label = "Reply"
	}
	number := strings.TrimSpace(event.TicketNumber)
	if number == "" {
		number = "N/A"
	}
	author := strings.TrimSpace(event.Author)
	if author == "" {
		author = defaultAuthor
	}

	text := fmt.Sprintf("💬 <b>%s on Ticket #%s</b>\n👤 %s\n\n%s",
		label,
		html.EscapeString(number),
		html.EscapeString(author),
		r.formatter.Content(event.Content),
	)
	return domain.ChatMessage{Text: text, ParseMode: domain.ParseModeHTML}
}

// FormatConfirmation acknowledges a created ticket.
func FormatConfirmation(ticket *domain.Ticket) domain.ChatMessage {
	return domain.ChatMessage{
		Text:      fmt.Sprintf("✅ Ticket #%s created!", html.EscapeString(ticket.DisplayNumber())),
		ParseMode: domain.ParseModeHTML,
	}
}

// FailureNotice tells the group a ticket could not be created without leaking the cause.
func FailureNotice() domain.ChatMessage {
	return domain.ChatMessage{
		Text:      "❌ Sorry, couldn't create ticket. Please try again later.",
		ParseMode: domain.ParseModeHTML,
	}
}

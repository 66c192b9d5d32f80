package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	tb "gopkg.in/tucnak/telebot.v2"
)

// MaxMessageLength is the Telegram limit for a text message, in runes.
const MaxMessageLength = 4096

const readMore = "ادامه خبر"

type botSender interface {
	Send(to tb.Recipient, what interface{}, options ...interface{}) (*tb.Message, error)
}

// Telegram posts news items to a channel.
type Telegram struct {
	bot     botSender
	channel string
	policy  *bluemonday.Policy
}

func NewTelegram(token, apiURL, channel string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("empty telegram token")
	}

	bot, err := tb.NewBot(tb.Settings{
		URL:    apiURL,
		Token:  token,
		Client: &http.Client{Timeout: 30 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return newTelegram(bot, channel), nil
}

func newTelegram(bot botSender, channel string) *Telegram {
	// https://core.telegram.org/bots/api#html-style
	p := bluemonday.NewPolicy()
	p.AllowAttrs("href").OnElements("a")
	p.AllowElements("b", "strong", "i", "em")

	return &Telegram{bot: bot, channel: channel, policy: p}
}

// Publish sends the post and returns the Telegram message ID.
func (t *Telegram) Publish(ctx context.Context, post Post) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg, err := t.bot.Send(recipient{chatID: t.channel}, t.messageHTML(post), tb.ModeHTML)
	if err != nil {
		return 0, fmt.Errorf("failed to send telegram message: %w", err)
	}

	return int64(msg.ID), nil
}

func (t *Telegram) messageHTML(post Post) string {
	var footer string
	if post.SourceURL != "" {
		footer = fmt.Sprintf("\n\n<a href=\"%s\">%s</a>", html.EscapeString(post.SourceURL), readMore)
	}

	header := fmt.Sprintf("<b>%s</b>", html.EscapeString(strings.TrimSpace(post.Title)))

	body := post.Summary
	if strings.TrimSpace(body) == "" {
		body = post.Content
	}
	// bluemonday doesn't remove escaped HTML tags
	body = strings.TrimSpace(t.policy.Sanitize(html.UnescapeString(body)))

	budget := MaxMessageLength - utf8.RuneCountInString(header) - utf8.RuneCountInString(footer) - 2
	if budget <= 0 {
		return truncateRunes(header+footer, MaxMessageLength)
	}
	if body != "" {
		body = truncateRunes(body, budget)
		return header + "\n\n" + body + footer
	}
	return header + footer
}

// truncateRunes cuts s to at most n runes, ending with an ellipsis when cut.
// A cut never splits an HTML tag or entity, and tags left open by the cut are
// closed within the limit.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)
	for limit := n - 1; limit > 0; {
		out := strings.TrimSpace(cutMarkup(runes[:limit]))
		closers := closingTags(out)
		total := utf8.RuneCountInString(out) + 1 + utf8.RuneCountInString(closers)
		if total <= n {
			return out + "…" + closers
		}
		limit -= total - n
	}
	return "…"
}

// cutMarkup drops a trailing partial tag or entity.
func cutMarkup(runes []rune) string {
	if open := lastIndexRune(runes, '<'); open >= 0 && lastIndexRune(runes, '>') < open {
		runes = runes[:open]
	}
	if amp := lastIndexRune(runes, '&'); amp >= 0 && lastIndexRune(runes, ';') < amp {
		runes = runes[:amp]
	}
	return string(runes)
}

// closingTags returns the end tags for elements still open in s, innermost
// first.
func closingTags(s string) string {
	var open []string
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			var b strings.Builder
			for i := len(open) - 1; i >= 0; i-- {
				b.WriteString("</" + open[i] + ">")
			}
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			open = append(open, string(name))
		case html.EndTagToken:
			name, _ := z.TagName()
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == string(name) {
					open = open[:i]
					break
				}
			}
		}
	}
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

type recipient struct {
	chatID string
}

func (r recipient) Recipient() string {
	if strings.HasPrefix(r.chatID, "@") || strings.HasPrefix(r.chatID, "-") {
		return r.chatID
	}
	if _, err := strconv.ParseInt(r.chatID, 10, 64); err == nil {
		return r.chatID
	}
	return "@" + r.chatID
}

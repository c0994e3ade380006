// Package teleboy is a small Telegram Bot API client: it fetches pending
// updates, derives a directory of chats from them and sends text messages,
// escaping MarkdownV2 and splitting long texts into chunks.
package teleboy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"
	"github.com/jehaby/teleboy/internal/telegram"
)

const (
	methodGetUpdates  = "getUpdates"
	methodSendMessage = "sendMessage"
)

// StatusError is the transport error for non-200 responses.
type StatusError = telegram.StatusError

// Requester performs a Bot API method call and returns the raw JSON body.
type Requester interface {
	Request(ctx context.Context, method string, params url.Values) (json.RawMessage, error)
}

type Client struct {
	cfg  Config
	req  Requester
	log  *slog.Logger
	rec  Recorder
	http *http.Client
}

type Option func(*Client)

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRecorder registers an observer for every dispatched message unit.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.rec = r }
}

// WithHTTPClient overrides the HTTP client used by the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRequester replaces the transport entirely.
func WithRequester(r Requester) Option {
	return func(c *Client) { c.req = r }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, log: slog.Default(), rec: nopRecorder{}}
	for _, o := range opts {
		o(c)
	}
	if c.req == nil {
		tc, err := telegram.NewClient(cfg.BaseURL, cfg.Token, cfg.Timeout, c.log)
		if err != nil {
			return nil, err
		}
		if c.http != nil {
			tc.WithDoer(c.http)
		}
		c.req = tc
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// FetchUpdates calls getUpdates and returns the response body unchanged.
func (c *Client) FetchUpdates(ctx context.Context) (json.RawMessage, error) {
	return c.req.Request(ctx, methodGetUpdates, nil)
}

// ListChats builds a ChatDirectory from pending updates. A failed fetch and a
// fetch without chats both yield an empty directory; use FetchUpdates with
// ChatDirectoryFromUpdates to tell them apart.
func (c *Client) ListChats(ctx context.Context) ChatDirectory {
	raw, err := c.FetchUpdates(ctx)
	if err != nil {
		c.log.Warn("fetch updates failed", "err", err)
		return ChatDirectory{}
	}
	dir := ChatDirectoryFromUpdates(raw)
	c.log.Debug("chats listed", "count", len(dir))
	return dir
}

type sendOptions struct {
	topicID   string
	parseMode models.ParseMode
}

type SendOption func(*sendOptions)

// WithTopic sends into a forum topic; "" and "0" mean no topic.
func WithTopic(id string) SendOption {
	return func(o *sendOptions) { o.topicID = id }
}

// WithParseMode overrides the MarkdownV2 default. Escaping only applies to
// MarkdownV2; an empty mode omits parse_mode from the request.
func WithParseMode(mode models.ParseMode) SendOption {
	return func(o *sendOptions) { o.parseMode = mode }
}

// SendMessage sends text to chatID. With MarkdownV2 the text is escaped first,
// then texts of ChunkSize runes or more are split into chunks, each sent as its
// own request. Every chunk is attempted; the returned error joins the failures.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, opts ...SendOption) error {
	o := sendOptions{topicID: c.cfg.TopicID, parseMode: models.ParseModeMarkdown}
	for _, fn := range opts {
		fn(&o)
	}

	if o.parseMode == models.ParseModeMarkdown {
		text = EscapeMarkdownV2(text)
	}

	if utf8.RuneCountInString(text) < c.cfg.ChunkSize {
		return c.dispatch(ctx, chatID, text, o, 1, 1)
	}

	chunks := SplitChunks(text, c.cfg.ChunkSize)
	var errs []error
	for i, chunk := range chunks {
		if err := c.dispatch(ctx, chatID, chunk, o, i+1, len(chunks)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendToChats sends text to each chat in order with default options. A failure
// for one chat does not stop the others.
func (c *Client) SendToChats(ctx context.Context, text string, chatIDs []string) error {
	var errs []error
	for _, id := range chatIDs {
		if err := c.SendMessage(ctx, id, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) dispatch(ctx context.Context, chatID, text string, o sendOptions, part, parts int) error {
	params := url.Values{}
	params.Set("text", text)
	params.Set("chat_id", chatID)
	if o.parseMode != "" {
		params.Set("parse_mode", string(o.parseMode))
	}
	if topicSet(o.topicID) {
		params.Set("message_thread_id", o.topicID)
	}

	res, err := c.req.Request(ctx, methodSendMessage, params)
	if err != nil {
		c.log.Info("message not sent", "chat_id", chatID, "part", part, "parts", parts, "err", err)
	} else {
		c.log.Info("message sent", "chat_id", chatID, "part", part, "parts", parts, "result", string(res))
	}
	c.rec.Record(ctx, Dispatch{
		ChatID:  chatID,
		TopicID: o.topicID,
		Part:    part,
		Parts:   parts,
		Length:  utf8.RuneCountInString(text),
		Err:     err,
	})
	return err
}

func topicSet(id string) bool {
	return id != "" && id != "0"
}

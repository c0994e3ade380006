package teleboy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	params url.Values
}

// fakeRequester records calls and answers every call the same way.
type fakeRequester struct {
	calls []call
	resp  json.RawMessage
	errs  map[string]error // keyed by chat_id
	err   error
}

func (f *fakeRequester) Request(_ context.Context, method string, params url.Values) (json.RawMessage, error) {
	f.calls = append(f.calls, call{method: method, params: params})
	if f.err != nil {
		return nil, f.err
	}
	if err, ok := f.errs[params.Get("chat_id")]; ok {
		return nil, err
	}
	return f.resp, nil
}

func (f *fakeRequester) texts() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.params.Get("text"))
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, cfg Config, f *fakeRequester, opts ...Option) *Client {
	t.Helper()
	if cfg.Token == "" {
		cfg.Token = "your_token"
	}
	opts = append([]Option{WithRequester(f), WithLogger(discardLogger())}, opts...)
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Token: "t", ChunkSize: -1})
	require.Error(t, err)

	_, err = New(Config{Token: "t", Timeout: -1})
	require.Error(t, err)

	c, err := New(Config{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, c.Config().ChunkSize)
	assert.Equal(t, DefaultTimeout, c.Config().Timeout)
	assert.Equal(t, DefaultBaseURL, c.Config().BaseURL)

	c, err = New(Config{Token: "t", ChunkSize: 30, BaseURL: "http://local/bot"})
	require.NoError(t, err)
	assert.Equal(t, 30, c.Config().ChunkSize)
	assert.Equal(t, "http://local/bot", c.Config().BaseURL)
}

func TestFetchUpdates_ReturnsRawResult(t *testing.T) {
	f := &fakeRequester{resp: json.RawMessage(`{"ok":true,"result":[]}`)}
	c := newTestClient(t, Config{}, f)

	raw, err := c.FetchUpdates(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"result":[]}`, string(raw))
	require.Len(t, f.calls, 1)
	assert.Equal(t, "getUpdates", f.calls[0].method)
	assert.Empty(t, f.calls[0].params)
}

func TestListChats(t *testing.T) {
	f := &fakeRequester{resp: json.RawMessage(`{"result": [{"message": {"chat": {"id": 123, "title": "Test Group", "type": "group"}}}], "ok": true}`)}
	c := newTestClient(t, Config{}, f)
	assert.Equal(t, ChatDirectory{123: "Test Group"}, c.ListChats(context.Background()))
}

func TestListChats_ErrorsCollapseToEmpty(t *testing.T) {
	f := &fakeRequester{err: &StatusError{Method: "getUpdates", StatusCode: http.StatusNotFound}}
	c := newTestClient(t, Config{}, f)
	assert.Equal(t, ChatDirectory{}, c.ListChats(context.Background()))

	f = &fakeRequester{resp: json.RawMessage(`{"ok": false}`)}
	c = newTestClient(t, Config{}, f)
	assert.Empty(t, c.ListChats(context.Background()))
}

func TestSendMessage_Single(t *testing.T) {
	f := &fakeRequester{resp: json.RawMessage(`{"status":"sent"}`)}
	c := newTestClient(t, Config{}, f)

	require.NoError(t, c.SendMessage(context.Background(), "123", "Test message"))
	require.Len(t, f.calls, 1)
	got := f.calls[0]
	assert.Equal(t, "sendMessage", got.method)
	assert.Equal(t, "123", got.params.Get("chat_id"))
	assert.Equal(t, "Test message", got.params.Get("text"))
	assert.Equal(t, "MarkdownV2", got.params.Get("parse_mode"))
	assert.False(t, got.params.Has("message_thread_id"))
}

func TestSendMessage_EscapesBeforeSending(t *testing.T) {
	f := &fakeRequester{}
	c := newTestClient(t, Config{}, f)

	require.NoError(t, c.SendMessage(context.Background(), "1", "a.b_c"))
	assert.Equal(t, []string{`a\.b\_c`}, f.texts())
}

func TestSendMessage_OtherParseModes(t *testing.T) {
	f := &fakeRequester{}
	c := newTestClient(t, Config{}, f)

	require.NoError(t, c.SendMessage(context.Background(), "1", "<b>a.b</b>", WithParseMode(models.ParseModeHTML)))
	require.NoError(t, c.SendMessage(context.Background(), "1", "a.b", WithParseMode("")))
	require.Len(t, f.calls, 2)
	assert.Equal(t, "<b>a.b</b>", f.calls[0].params.Get("text"))
	assert.Equal(t, "HTML", f.calls[0].params.Get("parse_mode"))
	assert.Equal(t, "a.b", f.calls[1].params.Get("text"))
	assert.False(t, f.calls[1].params.Has("parse_mode"))
}

func TestSendMessage_Chunks(t *testing.T) {
	f := &fakeRequester{}
	c := newTestClient(t, Config{ChunkSize: 10}, f)

	text := strings.Repeat("abcde", 5)
	require.NoError(t, c.SendMessage(context.Background(), "1", text))
	texts := f.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, []int{10, 10, 5}, []int{len(texts[0]), len(texts[1]), len(texts[2])})
	assert.Equal(t, text, strings.Join(texts, ""))
}

func TestSendMessage_LongTextCoveredWithoutGaps(t *testing.T) {
	f := &fakeRequester{resp: json.RawMessage(`{"status":"sent"}`)}
	c := newTestClient(t, Config{ChunkSize: 30}, f)

	text := "A very long test message that needs to" +
		"be chunked into smaller parts because it exceeds the chunk size."
	require.NoError(t, c.SendMessage(context.Background(), "123", text))

	texts := f.texts()
	require.Greater(t, len(texts), 1)
	for i, tx := range texts[:len(texts)-1] {
		assert.Equal(t, 30, utf8.RuneCountInString(tx), "chunk %d", i)
	}
	assert.Equal(t, EscapeMarkdownV2(text), strings.Join(texts, ""))
}

func TestSendMessage_ExactlyChunkSizeIsOneChunk(t *testing.T) {
	f := &fakeRequester{}
	c := newTestClient(t, Config{ChunkSize: 4}, f)

	require.NoError(t, c.SendMessage(context.Background(), "1", "abcd"))
	assert.Equal(t, []string{"abcd"}, f.texts())
}

func TestSendMessage_EscapeCountsTowardsChunkSize(t *testing.T) {
	f := &fakeRequester{}
	c := newTestClient(t, Config{ChunkSize: 4}, f)

	// escaping grows "a.b." to 6 runes, so it is cut although the input is 4
	require.NoError(t, c.SendMessage(context.Background(), "1", "a.b."))
	assert.Equal(t, []string{`a\.b`, `\.`}, f.texts())
}

func TestSendMessage_Topic(t *testing.T) {
	cases := []struct {
		name    string
		def     string
		opts    []SendOption
		want    string
		present bool
	}{
		{name: "default from config", def: "42", want: "42", present: true},
		{name: "explicit overrides default", def: "42", opts: []SendOption{WithTopic("7")}, want: "7", present: true},
		{name: "zero is unset", opts: []SendOption{WithTopic("0")}},
		{name: "explicit empty clears default", def: "42", opts: []SendOption{WithTopic("")}},
		{name: "none"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeRequester{}
			c := newTestClient(t, Config{TopicID: tc.def}, f)
			require.NoError(t, c.SendMessage(context.Background(), "1", "hi", tc.opts...))
			require.Len(t, f.calls, 1)
			assert.Equal(t, tc.present, f.calls[0].params.Has("message_thread_id"))
			assert.Equal(t, tc.want, f.calls[0].params.Get("message_thread_id"))
		})
	}
}

func TestSendMessage_FailedChunkDoesNotAbort(t *testing.T) {
	f := &fakeRequester{err: errors.New("boom")}
	var got []Dispatch
	c := newTestClient(t, Config{ChunkSize: 2}, f, WithRecorder(RecorderFunc(func(_ context.Context, d Dispatch) {
		got = append(got, d)
	})))

	err := c.SendMessage(context.Background(), "1", "abcdef")
	require.Error(t, err)
	assert.Len(t, f.calls, 3)
	require.Len(t, got, 3)
	for i, d := range got {
		assert.Equal(t, i+1, d.Part)
		assert.Equal(t, 3, d.Parts)
		assert.Equal(t, 2, d.Length)
		assert.Error(t, d.Err)
	}
}

func TestSendToChats_PreservesOrderDespiteFailures(t *testing.T) {
	f := &fakeRequester{errs: map[string]error{
		"a": &StatusError{Method: "sendMessage", StatusCode: http.StatusBadRequest},
	}}
	c := newTestClient(t, Config{}, f)

	err := c.SendToChats(context.Background(), "hello", []string{"a", "b", "c"})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)

	var ids []string
	for _, cl := range f.calls {
		ids = append(ids, cl.params.Get("chat_id"))
		assert.Equal(t, "hello", cl.params.Get("text"))
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestClient_DefaultTransport(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/getUpdates") {
			_, _ = w.Write([]byte(`{"ok":true,"result":[{"message":{"chat":{"id":1,"type":"private","first_name":"Ann"}}}]}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	c, err := New(Config{Token: "tok", BaseURL: srv.URL + "/bot"},
		WithLogger(discardLogger()), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	assert.Equal(t, ChatDirectory{1: "Ann "}, c.ListChats(context.Background()))

	err = c.SendMessage(context.Background(), "1", "hi")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Equal(t, []string{"/bottok/getUpdates", "/bottok/sendMessage"}, paths)
}

func TestSendMessage_LogsEveryChunk(t *testing.T) {
	var buf bytes.Buffer
	f := &fakeRequester{errs: map[string]error{"bad": errors.New("boom")}}
	c := newTestClient(t, Config{ChunkSize: 2}, f, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	require.Error(t, c.SendMessage(context.Background(), "bad", "abcd"))
	require.NoError(t, c.SendMessage(context.Background(), "ok", "ab"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Contains(t, l, "level=INFO")
	}
	assert.Contains(t, lines[0], `msg="message not sent" chat_id=bad part=1 parts=2`)
	assert.Contains(t, lines[1], `msg="message not sent" chat_id=bad part=2 parts=2`)
	assert.Contains(t, lines[2], `msg="message sent" chat_id=ok part=1 parts=1`)
}

func TestListChats_MalformedBaseURLDoesNotLogToken(t *testing.T) {
	var buf bytes.Buffer
	c, err := New(Config{Token: "SECRET123:abc", BaseURL: "http://[::1"},
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	assert.Empty(t, c.ListChats(context.Background()))
	assert.Contains(t, buf.String(), "fetch updates failed")
	assert.NotContains(t, buf.String(), "SECRET123")
}

func TestFetchUpdates_TimeoutWithCustomHTTPClient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Config{Token: "tok", BaseURL: srv.URL + "/bot", Timeout: 50 * time.Millisecond},
		WithLogger(discardLogger()), WithHTTPClient(&http.Client{}))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.FetchUpdates(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

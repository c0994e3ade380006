package teleboy

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/go-telegram/bot/models"
)

// Update is one inbound item from getUpdates. Only the fields needed to
// build a chat directory are decoded; absent objects stay nil.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	Chat *Chat `json:"chat,omitempty"`
}

// Chat mirrors the Bot API chat object. Missing name parts decode to "".
type Chat struct {
	ID        int64           `json:"id"`
	Type      models.ChatType `json:"type"`
	Title     string          `json:"title,omitempty"`
	FirstName string          `json:"first_name,omitempty"`
	LastName  string          `json:"last_name,omitempty"`
}

// Label is the display name used in a ChatDirectory: the title for groups,
// otherwise first and last name joined by a single space.
func (c Chat) Label() string {
	if c.Type == models.ChatTypeGroup {
		return c.Title
	}
	return c.FirstName + " " + c.LastName
}

// ChatDirectory maps chat id to a display label.
type ChatDirectory map[int64]string

// IDs returns the directory keys in ascending order.
func (d ChatDirectory) IDs() []int64 {
	ids := make([]int64, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// updatesResponse is the getUpdates envelope. Result entries are decoded one by
// one so a malformed entry does not discard the rest.
type updatesResponse struct {
	OK     *bool             `json:"ok"`
	Error  json.RawMessage   `json:"error,omitempty"`
	Result []json.RawMessage `json:"result"`
}

// ChatDirectoryFromUpdates derives a ChatDirectory from a raw getUpdates
// response. Empty, undecodable, error-marked or ok=false responses give an
// empty directory; entries without a chat object, or with an empty one, are
// skipped.
func ChatDirectoryFromUpdates(raw []byte) ChatDirectory {
	out := ChatDirectory{}
	if len(raw) == 0 {
		return out
	}
	var resp updatesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return out
	}
	if len(resp.Error) > 0 {
		return out
	}
	if resp.OK != nil && !*resp.OK {
		return out
	}
	for _, item := range resp.Result {
		var u Update
		if err := json.Unmarshal(item, &u); err != nil {
			continue
		}
		if u.Message == nil || u.Message.Chat == nil || *u.Message.Chat == (Chat{}) {
			continue
		}
		out[u.Message.Chat.ID] = u.Message.Chat.Label()
	}
	return out
}

var markdownV2Escaper = strings.NewReplacer(
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`~`, `\~`,
	"`", "\\`",
	`>`, `\>`,
	`#`, `\#`,
	`+`, `\+`,
	`-`, `\-`,
	`=`, `\=`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`.`, `\.`,
	`!`, `\!`,
)

// EscapeMarkdownV2 prefixes each of _ [ ] ( ) ~ ` > # + - = | { } . ! with a
// backslash in a single pass. Asterisks and backslashes are left alone.
func EscapeMarkdownV2(text string) string {
	return markdownV2Escaper.Replace(text)
}

// SplitChunks cuts text into consecutive pieces of size runes; the last piece
// holds the remainder. Cuts are positional and ignore word or markup boundaries.
func SplitChunks(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}
	r := []rune(text)
	if len(r) == 0 {
		return []string{text}
	}
	chunks := make([]string, 0, (len(r)+size-1)/size)
	for i := 0; i < len(r); i += size {
		end := min(i+size, len(r))
		chunks = append(chunks, string(r[i:end]))
	}
	return chunks
}

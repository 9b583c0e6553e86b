package telegram

import (
	"fmt"
	"strconv"
	"unicode/utf16"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// MessageLengthLimit is the platform's maximum text length.
const MessageLengthLimit = 4096

// ParseChatID converts a stringified chat id from a job payload.
func ParseChatID(chatID string) (telego.ChatID, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	return tu.ID(id), nil
}

// BestPhoto returns the highest-resolution size, or nil when sizes is empty.
func BestPhoto(sizes []telego.PhotoSize) *telego.PhotoSize {
	var best *telego.PhotoSize
	for i := range sizes {
		p := &sizes[i]
		if best == nil || p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}

// ExtractLinks collects every URL present in the message's text and caption
// entities.
func ExtractLinks(msg *telego.Message) []string {
	if msg == nil {
		return nil
	}
	links := entityLinks(msg.Text, msg.Entities)
	return append(links, entityLinks(msg.Caption, msg.CaptionEntities)...)
}

// entityLinks resolves url and text_link entities. Entity offsets count
// UTF-16 code units, not bytes.
func entityLinks(text string, entities []telego.MessageEntity) []string {
	if len(entities) == 0 {
		return nil
	}

	var units []uint16
	var out []string
	for _, e := range entities {
		switch e.Type {
		case "url":
			if units == nil {
				units = utf16.Encode([]rune(text))
			}
			if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(units) {
				continue
			}
			out = append(out, string(utf16.Decode(units[e.Offset:e.Offset+e.Length])))
		case "text_link":
			if e.URL != "" {
				out = append(out, e.URL)
			}
		}
	}
	return out
}

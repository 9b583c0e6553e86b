package telegram

import (
	"testing"

	"github.com/mymmrac/telego"
)

func TestBestPhoto(t *testing.T) {
	tests := []struct {
		name  string
		sizes []telego.PhotoSize
		want  string // file id of the expected pick, "" for nil
	}{
		{
			name:  "no sizes",
			sizes: nil,
			want:  "",
		},
		{
			name: "single size",
			sizes: []telego.PhotoSize{
				{FileID: "a", Width: 100, Height: 100},
			},
			want: "a",
		},
		{
			name: "largest area wins",
			sizes: []telego.PhotoSize{
				{FileID: "thumb", Width: 90, Height: 90},
				{FileID: "large", Width: 1280, Height: 960},
				{FileID: "medium", Width: 320, Height: 240},
			},
			want: "large",
		},
		{
			name: "wide beats tall of smaller area",
			sizes: []telego.PhotoSize{
				{FileID: "tall", Width: 100, Height: 400},
				{FileID: "wide", Width: 500, Height: 100},
			},
			want: "wide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BestPhoto(tt.sizes)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("BestPhoto = %+v, want nil", got)
				}
				return
			}
			if got == nil || got.FileID != tt.want {
				t.Fatalf("BestPhoto = %+v, want file id %q", got, tt.want)
			}
		})
	}
}

func TestExtractLinks(t *testing.T) {
	tests := []struct {
		name string
		msg  telego.Message
		want []string
	}{
		{
			name: "nil entities",
			msg:  telego.Message{Text: "no links here"},
			want: nil,
		},
		{
			name: "plain url entity",
			msg: telego.Message{
				Text: "look https://fa.example/v/1",
				Entities: []telego.MessageEntity{
					{Type: "url", Offset: 5, Length: 22},
				},
			},
			want: []string{"https://fa.example/v/1"},
		},
		{
			name: "offsets count utf-16 units",
			msg: telego.Message{
				// The fox emoji occupies two utf-16 units, so the url
				// starts at unit 3 even though it is rune 2.
				Text: "\U0001f98a https://fa.example/v/1",
				Entities: []telego.MessageEntity{
					{Type: "url", Offset: 3, Length: 22},
				},
			},
			want: []string{"https://fa.example/v/1"},
		},
		{
			name: "text link entity",
			msg: telego.Message{
				Text: "source",
				Entities: []telego.MessageEntity{
					{Type: "text_link", Offset: 0, Length: 6, URL: "https://e621.net/posts/1"},
				},
			},
			want: []string{"https://e621.net/posts/1"},
		},
		{
			name: "caption entities also collected",
			msg: telego.Message{
				Caption: "https://fa.example/v/2",
				CaptionEntities: []telego.MessageEntity{
					{Type: "url", Offset: 0, Length: 22},
				},
			},
			want: []string{"https://fa.example/v/2"},
		},
		{
			name: "out of range offsets are skipped",
			msg: telego.Message{
				Text: "short",
				Entities: []telego.MessageEntity{
					{Type: "url", Offset: 3, Length: 50},
				},
			},
			want: nil,
		},
		{
			name: "non-link entities are ignored",
			msg: telego.Message{
				Text: "bold https://fa.example/v/3",
				Entities: []telego.MessageEntity{
					{Type: "bold", Offset: 0, Length: 4},
					{Type: "url", Offset: 5, Length: 22},
				},
			},
			want: []string{"https://fa.example/v/3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractLinks(&tt.msg)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractLinks = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("ExtractLinks[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractLinksNilMessage(t *testing.T) {
	if got := ExtractLinks(nil); got != nil {
		t.Fatalf("ExtractLinks(nil) = %v, want nil", got)
	}
}

func TestParseChatID(t *testing.T) {
	id, err := ParseChatID("-1001234567890")
	if err != nil {
		t.Fatalf("ParseChatID returned error: %v", err)
	}
	if id.ID != -1001234567890 {
		t.Fatalf("ParseChatID id = %d, want -1001234567890", id.ID)
	}

	if _, err := ParseChatID("@channelname"); err == nil {
		t.Fatal("expected an error for a non-numeric chat id")
	}
}

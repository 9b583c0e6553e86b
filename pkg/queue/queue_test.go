package queue

import (
	"encoding/json"
	"strings"
	"testing"
)

// The payload encodings are shared with the previous generation of this
// service, so the field names and shapes are a wire contract.

func TestChannelEditWireFormat(t *testing.T) {
	groupID := "alb-1"
	payload := ChannelEdit{
		ChatID:       "-1001",
		MessageID:    77,
		MediaGroupID: &groupID,
		Firsts: [][2]string{
			{"FurAffinity", "https://www.furaffinity.net/view/9/"},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	want := `{"chat_id":"-1001","message_id":77,"media_group_id":"alb-1","firsts":[["FurAffinity","https://www.furaffinity.net/view/9/"]]}`
	if string(data) != want {
		t.Fatalf("encoded = %s, want %s", data, want)
	}
}

func TestChannelEditOmitsMediaGroupWhenAbsent(t *testing.T) {
	data, err := json.Marshal(ChannelEdit{ChatID: "-1001", MessageID: 77})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if strings.Contains(string(data), "media_group_id") {
		t.Fatalf("encoded = %s, want media_group_id omitted", data)
	}
}

func TestGroupSourceWireFormat(t *testing.T) {
	payload := GroupSource{ChatID: "-200", ReplyToMessageID: 5, Text: "sources"}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	want := `{"chat_id":"-200","reply_to_message_id":5,"text":"sources"}`
	if string(data) != want {
		t.Fatalf("encoded = %s, want %s", data, want)
	}
}

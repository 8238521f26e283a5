package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/roostchat/roost/internal/models"
)

func TestDecodeKnownEvents(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			name: "status change",
			raw:  `{"event":"status-change","data":{"status":"away","awayText":"brb"}}`,
			want: StatusChange{Status: "away", AwayText: "brb"},
		},
		{
			name: "message send",
			raw:  `{"event":"message:send","data":{"toUserId":"bob","content":"hi"}}`,
			want: SendMessage{ToUserID: "bob", Content: "hi"},
		},
		{
			name: "mark read",
			raw:  `{"event":"message:read","data":{"fromUserId":"alice"}}`,
			want: MarkRead{FromUserID: "alice"},
		},
		{
			name: "typing",
			raw:  `{"event":"typing","data":{"toUserId":"bob","isTyping":true}}`,
			want: Typing{ToUserID: "bob", IsTyping: true},
		},
		{
			name: "heartbeat without data",
			raw:  `{"event":"heartbeat"}`,
			want: Heartbeat{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"event":"warp-drive","data":{}}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("got %v, want ErrUnknownEvent", err)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"event":"message:send"}`,
		`{"event":"message:send","data":"nope"}`,
		`{"event":"status-change","data":[1,2]}`,
	} {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Errorf("Decode(%q) accepted a malformed frame", raw)
		}
	}
}

func TestEnvelopeMarshal(t *testing.T) {
	raw, err := BuddyStatusChange("alice", models.StatusAway, "brb").Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		Event string `json:"event"`
		Data  struct {
			UserID   string `json:"userId"`
			Status   string `json:"status"`
			AwayText string `json:"awayText"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if decoded.Event != NameBuddyStatusChange || decoded.Data.Status != "away" || decoded.Data.AwayText != "brb" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestBuddyStatusChangeOmitsEmptyAwayText(t *testing.T) {
	ev := BuddyStatusChange("alice", models.StatusOnline, "")
	if _, present := ev.Data.(map[string]any)["awayText"]; present {
		t.Error("empty away text must be omitted from the payload")
	}
}

func TestConnectionEstablishedNeverSendsNullList(t *testing.T) {
	raw, err := ConnectionEstablished("alice", nil, nil).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Data struct {
			Online []string `json:"online"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Data.Online == nil {
		t.Error("online list serialized as null instead of []")
	}
}

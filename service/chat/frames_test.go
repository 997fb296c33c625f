package chat

import (
	"encoding/json"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	raw := []byte(`{"newMessage":{"recipient":"2","text":"hi","file":{"info":"a.png","data":"image/png;base64,AAAA"}}}`)
	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	msg := env.NewMessage
	if msg.Recipient != "2" || msg.Text != "hi" {
		t.Fatalf("bad envelope %+v", msg)
	}
	if msg.File == nil || msg.File.Info != "a.png" {
		t.Fatalf("bad file payload %+v", msg.File)
	}
	if !msg.Valid() {
		t.Fatal("complete envelope must be valid")
	}
}

func TestParseEnvelopeRejectsOtherShapes(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"online":[]}`,
		`[1,2,3]`,
		`garbage`,
	} {
		if _, err := ParseEnvelope([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestNewMessageValidation(t *testing.T) {
	cases := []struct {
		msg  NewMessage
		want bool
	}{
		{NewMessage{Recipient: "2", Text: "hi"}, true},
		{NewMessage{Recipient: "2", File: &FilePayload{Info: "a", Data: "b"}}, true},
		{NewMessage{Recipient: "2"}, false},
		{NewMessage{Text: "hi"}, false},
		{NewMessage{}, false},
	}
	for i, c := range cases {
		if got := c.msg.Valid(); got != c.want {
			t.Fatalf("case %d: Valid()=%v, want %v", i, got, c.want)
		}
	}
}

func TestBuildDeliveryFileNull(t *testing.T) {
	var d DeliveryPayload
	if err := json.Unmarshal(BuildDelivery("id1", "hi", "1", "2", ""), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.File != nil {
		t.Fatal("no attachment must encode file as null")
	}

	if err := json.Unmarshal(BuildDelivery("id1", "", "1", "2", "ref.png"), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.File == nil || *d.File != "ref.png" {
		t.Fatalf("bad file ref %+v", d.File)
	}
}

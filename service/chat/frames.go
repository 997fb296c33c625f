package chat

import (
	"encoding/json"

	errs "MChat/tools/errs"
	"MChat/tools/security"
)

// Wire shapes. Inbound is the single newMessage envelope; outbound is the
// presence snapshot or a delivery. Unrecognized shapes are dropped at
// ingress rather than propagated half-parsed.

type FilePayload struct {
	Info string `json:"info"` // original filename with extension
	Data string `json:"data"` // "<mime>;base64,<payload>"
}

type NewMessage struct {
	Recipient string       `json:"recipient"`
	Text      string       `json:"text,omitempty"`
	File      *FilePayload `json:"file,omitempty"`
}

type Envelope struct {
	NewMessage *NewMessage `json:"newMessage"`
}

// ParseEnvelope decodes an inbound frame. A frame without the newMessage
// tag is not an envelope.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal envelope")
	}
	if env.NewMessage == nil {
		return nil, errs.New("envelope missing newMessage")
	}
	return &env, nil
}

// Valid checks the router's drop rules: a recipient plus at least one of
// text/file.
func (n *NewMessage) Valid() bool {
	if n.Recipient == "" {
		return false
	}
	return n.Text != "" || n.File != nil
}

type PresencePayload struct {
	Online []security.Identity `json:"online"`
}

func BuildPresence(online []security.Identity) []byte {
	if online == nil {
		online = []security.Identity{}
	}
	payload, _ := json.Marshal(PresencePayload{Online: online})
	return payload
}

// DeliveryPayload mirrors the persisted message; File is null when the
// message carried no attachment.
type DeliveryPayload struct {
	ID        string  `json:"_id"`
	Text      string  `json:"text"`
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	File      *string `json:"file"`
}

func BuildDelivery(id, text, sender, recipient, file string) []byte {
	d := DeliveryPayload{ID: id, Text: text, Sender: sender, Recipient: recipient}
	if file != "" {
		d.File = &file
	}
	payload, _ := json.Marshal(d)
	return payload
}

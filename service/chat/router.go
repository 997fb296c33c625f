package chat

import (
	"context"

	"MChat/logger"
	"MChat/module/chat/model"
	"MChat/service/storage"
)

// MessageStore persists one message and returns its assigned id.
type MessageStore interface {
	Insert(ctx context.Context, m *model.Message) (string, error)
}

// AttachmentStore writes attachment bytes addressable by name.
type AttachmentStore interface {
	Save(name string, data []byte) error
}

// Router validates an inbound envelope, persists the message, and fans the
// delivery out to the recipient's live connections. Sender connections do
// not get an echo; only the recipient's do.
type Router struct {
	mgr   *ConnManager
	store MessageStore
	files AttachmentStore
}

func NewRouter(mgr *ConnManager, store MessageStore, files AttachmentStore) *Router {
	return &Router{mgr: mgr, store: store, files: files}
}

// Route handles one raw frame from sender's read loop. Every failure mode
// here is absorbed: nothing is ever reported back over the socket.
func (r *Router) Route(ctx context.Context, sender *WsConn, raw []byte) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		sample := raw
		if len(sample) > 256 {
			sample = sample[:256]
		}
		logger.Infof("[router] drop unparseable frame conn=%s err=%v sample=%q", sender.ConnID, err, sample)
		return
	}
	msg := env.NewMessage
	if !msg.Valid() {
		logger.Infof("[router] drop invalid envelope conn=%s", sender.ConnID)
		return
	}
	if !sender.Bound() {
		// unbound connections can listen but never send; the sender field
		// only ever comes from the connection's bound identity
		logger.Infof("[router] drop envelope from unbound conn=%s", sender.ConnID)
		return
	}

	fileRef := ""
	if msg.File != nil {
		fileRef = r.ingest(msg.File)
	}

	doc := &model.Message{
		Sender:    sender.Identity.UserID,
		Recipient: msg.Recipient,
		Text:      msg.Text,
		File:      fileRef,
	}
	id, perr := r.store.Insert(ctx, doc)
	if perr != nil {
		// at-most-once: log and still fan out with an empty id
		logger.Errorf("[router] persist err sender=%s recipient=%s err=%v",
			doc.Sender, doc.Recipient, perr)
	}

	payload := BuildDelivery(id, doc.Text, doc.Sender, doc.Recipient, doc.File)
	delivered := 0
	r.mgr.ForEachWithIdentity(msg.Recipient, func(w *WsConn) {
		if w.trySend(payload) {
			delivered++
		}
	})
	logger.Infof("[router] delivered id=%s sender=%s recipient=%s conns=%d",
		id, doc.Sender, doc.Recipient, delivered)
}

// ingest decodes and durably stores the attachment, returning the
// reference name, or "" if it was dropped. A dropped attachment never
// blocks the text part of the message.
func (r *Router) ingest(file *FilePayload) string {
	raw, err := storage.DecodeDataURL(file.Data)
	if err != nil {
		logger.Warnf("[router] attachment decode err info=%s err=%v", file.Info, err)
		return ""
	}
	name := storage.GenerateName(file.Info)
	if err := r.files.Save(name, raw); err != nil {
		logger.Warnf("[router] attachment store err name=%s err=%v", name, err)
		return ""
	}
	return name
}

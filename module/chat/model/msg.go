package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MsgTableName = "messages"

// Message is one persisted chat event between two identities. Text and
// File are both optional, but a message never has neither. Documents are
// append only: never updated, never deleted by the relay.
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Sender    string             `bson:"sender" json:"sender"`
	Recipient string             `bson:"recipient" json:"recipient"`
	Text      string             `bson:"text,omitempty" json:"text"`
	File      string             `bson:"file,omitempty" json:"file"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const UserTableName = "users"

// User is one registered account. Password holds the bcrypt hash, never
// the plaintext.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username  string             `bson:"username" json:"username"`
	Password  string             `bson:"password" json:"-"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

// PublicUser is the directory listing shape: id and name only.
type PublicUser struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Username string             `bson:"username" json:"username"`
}

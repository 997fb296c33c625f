package message

import (
	"context"
	"time"

	"MChat/module/chat/model"
	mgoSrv "MChat/service/mgo"
	errs "MChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store appends messages and retrieves them by participant pair. That is
// the whole contract; ordering inside a pair is by created_at.
type Store struct {
	db *mongo.Database
}

func NewStore() *Store { return &Store{} }

func NewStoreWithDB(db *mongo.Database) *Store { return &Store{db: db} }

// coll errors instead of panicking when the shared mongo client is in an
// outage window; Insert then surfaces that error and the router keeps its
// logged at-most-once fan-out.
func (s *Store) coll() (*mongo.Collection, error) {
	db := s.db
	if db == nil {
		var ok bool
		if db, ok = mgoSrv.TryGetDB(); !ok {
			return nil, errs.ErrStorage.WithDetail("mongo not connected")
		}
	}
	return db.Collection(model.MsgTableName), nil
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	c, err := s.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "sender", Value: 1},
			{Key: "recipient", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	return errs.Wrap(err)
}

// Insert persists one message and returns the assigned id. CreatedAt is
// stamped here, at persistence time.
func (s *Store) Insert(ctx context.Context, m *model.Message) (string, error) {
	c, err := s.coll()
	if err != nil {
		return "", err
	}
	m.CreatedAt = time.Now()
	res, err := c.InsertOne(ctx, m)
	if err != nil {
		return "", errs.WrapMsg(err, "insert message", "sender", m.Sender, "recipient", m.Recipient)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errs.New("unexpected inserted id type")
	}
	m.ID = oid
	return oid.Hex(), nil
}

// ListBetween returns every message where both participants are in {a, b},
// ascending by creation time.
func (s *Store) ListBetween(ctx context.Context, a, b string) ([]model.Message, error) {
	c, err := s.coll()
	if err != nil {
		return nil, err
	}
	filter := bson.M{
		"sender":    bson.M{"$in": bson.A{a, b}},
		"recipient": bson.M{"$in": bson.A{a, b}},
	}
	cur, err := c.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list messages", "a", a, "b", b)
	}
	defer cur.Close(ctx)

	var out []model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode messages")
	}
	return out, nil
}

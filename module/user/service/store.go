package service

import (
	"context"
	"time"

	"MChat/module/user/model"
	mgoSrv "MChat/service/mgo"
	errs "MChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the user record collection. Username carries a unique index,
// see EnsureIndexes.
type Store struct {
	db *mongo.Database
}

func NewStore() *Store { return &Store{} }

// NewStoreWithDB is for tests that bring their own database handle.
func NewStoreWithDB(db *mongo.Database) *Store { return &Store{db: db} }

// coll errors instead of panicking when the shared mongo client is in an
// outage window, so callers degrade to their logged failure paths.
func (s *Store) coll() (*mongo.Collection, error) {
	db := s.db
	if db == nil {
		var ok bool
		if db, ok = mgoSrv.TryGetDB(); !ok {
			return nil, errs.ErrStorage.WithDetail("mongo not connected")
		}
	}
	return db.Collection(model.UserTableName), nil
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	c, err := s.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errs.Wrap(err)
}

// Create inserts the user and fills in the assigned id.
func (s *Store) Create(ctx context.Context, u *model.User) error {
	c, err := s.coll()
	if err != nil {
		return err
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	res, err := c.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrDuplicate.WithDetail("username " + u.Username)
		}
		return errs.WrapMsg(err, "insert user", "username", u.Username)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	c, err := s.coll()
	if err != nil {
		return nil, err
	}
	var u model.User
	err = c.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrRecordNotFound.WithDetail("username " + username)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user", "username", username)
	}
	return &u, nil
}

// List returns every account as {_id, username} for the directory.
func (s *Store) List(ctx context.Context) ([]model.PublicUser, error) {
	c, err := s.coll()
	if err != nil {
		return nil, err
	}
	cur, err := c.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1, "username": 1}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list users")
	}
	defer cur.Close(ctx)

	var out []model.PublicUser
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode users")
	}
	return out, nil
}

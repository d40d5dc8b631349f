package tree

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	typeRoot = "root"
	typeDir  = "dir"
	typeFile = "file"
)

// node is the on-the-wire shape of every document in the tree
// collection: a root marker, a directory, or a file. Exactly which
// fields are populated depends on Type, mirroring the schema-less
// single-collection layout of the original MongoDB-backed store.
type node struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Type    string             `bson:"type"`
	Name    string             `bson:"name,omitempty"`
	Parent  primitive.ObjectID `bson:"parent,omitempty"`
	Servers []string           `bson:"servers,omitempty"`
}

// store is the persistence seam the Tree talks to. mongoStore is the
// real implementation; tests substitute an in-memory fake so directory
// tree logic can be exercised without a live MongoDB.
type store interface {
	InsertOne(ctx context.Context, n node) (primitive.ObjectID, error)
	FindOne(ctx context.Context, filter bson.M) (*node, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	Find(ctx context.Context, filter bson.M) ([]node, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

// mongoStore adapts store to a real *mongo.Collection.
type mongoStore struct {
	coll *mongo.Collection
}

func newMongoStore(coll *mongo.Collection) *mongoStore {
	return &mongoStore{coll: coll}
}

func (s *mongoStore) InsertOne(ctx context.Context, n node) (primitive.ObjectID, error) {
	res, err := s.coll.InsertOne(ctx, n)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (s *mongoStore) FindOne(ctx context.Context, filter bson.M) (*node, error) {
	var n node
	err := s.coll.FindOne(ctx, filter).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *mongoStore) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	res, err := s.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *mongoStore) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *mongoStore) Find(ctx context.Context, filter bson.M) ([]node, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var nodes []node
	if err := cur.All(ctx, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *mongoStore) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	return s.coll.CountDocuments(ctx, filter)
}

// EnsureIndexes creates the partial unique index on (parent, name)
// that enforces invariant 3 from the spec: within a directory, the
// coordinator never allows two entries with the same name.
func (s *mongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"type": bson.M{"$ne": typeRoot}}),
	})
	return err
}

// isDuplicateKey reports whether err is a duplicate-key failure: a
// MongoDB rejection by the unique (parent, name) index, or the
// memStore's memDuplicateKeyError.
func isDuplicateKey(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	_, ok := err.(memDuplicateKeyError)
	return ok
}

// memStore is an in-process store, used by NewInMemory for tests and
// local runs that should not require a live MongoDB.
type memStore struct {
	docs []node
}

type memDuplicateKeyError struct{}

func (memDuplicateKeyError) Error() string { return "duplicate key" }

func memMatches(n node, filter bson.M) bool {
	for k, v := range filter {
		switch k {
		case "type":
			if sub, ok := v.(bson.M); ok {
				if ne, ok := sub["$ne"].(string); ok && n.Type == ne {
					return false
				}
				continue
			}
			if n.Type != v.(string) {
				return false
			}
		case "name":
			if n.Name != v.(string) {
				return false
			}
		case "parent":
			if n.Parent != v.(primitive.ObjectID) {
				return false
			}
		case "_id":
			if n.ID != v.(primitive.ObjectID) {
				return false
			}
		}
	}
	return true
}

func (s *memStore) InsertOne(_ context.Context, n node) (primitive.ObjectID, error) {
	if n.Type != typeRoot {
		for _, existing := range s.docs {
			if existing.Type != typeRoot && existing.Parent == n.Parent && existing.Name == n.Name {
				return primitive.NilObjectID, memDuplicateKeyError{}
			}
		}
	}
	n.ID = primitive.NewObjectID()
	s.docs = append(s.docs, n)
	return n.ID, nil
}

func (s *memStore) FindOne(_ context.Context, filter bson.M) (*node, error) {
	for _, n := range s.docs {
		if memMatches(n, filter) {
			cp := n
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) DeleteOne(_ context.Context, filter bson.M) (int64, error) {
	for i, n := range s.docs {
		if memMatches(n, filter) {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *memStore) DeleteMany(_ context.Context, filter bson.M) (int64, error) {
	var kept []node
	var count int64
	for _, n := range s.docs {
		if memMatches(n, filter) {
			count++
			continue
		}
		kept = append(kept, n)
	}
	s.docs = kept
	return count, nil
}

func (s *memStore) Find(_ context.Context, filter bson.M) ([]node, error) {
	var out []node
	for _, n := range s.docs {
		if memMatches(n, filter) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	out, err := s.Find(ctx, filter)
	return int64(len(out)), err
}

func (s *memStore) EnsureIndexes(context.Context) error { return nil }

// NewInMemory builds a Tree backed by a process-local store instead of
// MongoDB. It exists for tests and for running the name server without
// a metadata database during development. Duplicate (parent, name)
// detection here is done by memStore.InsertOne returning
// memDuplicateKeyError, which isDuplicateKey accepts, so CreateFile and
// MakeDir report it the same way they would a real
// mongo.IsDuplicateKeyError failure.
func NewInMemory(ctx context.Context) (*Tree, error) {
	return newWithStore(ctx, &memStore{})
}

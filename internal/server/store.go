// store.go - MongoDB document store.
//
// All persistence goes through the Store interface so handlers can be
// unit-tested against an in-memory implementation. The Mongo implementation
// relies on single-document atomicity only: singleton merges are
// last-write-wins and reel mutations use $push/$pull on one document.
package server

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("already exists")
)

// Store is the persistence boundary for all four collections.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, id string, fields map[string]any) (*User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	CreatePost(ctx context.Context, p *BlogPost) error
	PostByID(ctx context.Context, id string) (*BlogPost, error)
	ListPosts(ctx context.Context, publishedOnly bool) ([]BlogPost, error)
	UpdatePost(ctx context.Context, id string, fields map[string]any) (*BlogPost, error)
	DeletePost(ctx context.Context, id string) error

	LandingPage(ctx context.Context) (*LandingPage, error)
	UpdateLandingPage(ctx context.Context, fields map[string]any) (*LandingPage, error)
	AddReel(ctx context.Context, r Reel) (*LandingPage, error)
	RemoveReel(ctx context.Context, reelID string) error
	ReplaceReels(ctx context.Context, reels []Reel) (*LandingPage, error)

	SiteSettings(ctx context.Context) (*SiteSettings, error)
	UpdateSiteSettings(ctx context.Context, fields map[string]any) (*SiteSettings, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type mongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	posts    *mongo.Collection
	landing  *mongo.Collection
	settings *mongo.Collection
}

// OpenStore connects to MongoDB, verifies connectivity, and ensures the
// indexes the handlers depend on. The caller treats any error as fatal:
// the service is unusable without its document store.
func OpenStore(mongoURI, dbName string) (Store, error) {
	if mongoURI == "" {
		return nil, errors.New("MONGO_URI is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	db := client.Database(dbName)
	s := &mongoStore{
		client:   client,
		users:    db.Collection("users"),
		posts:    db.Collection("blogposts"),
		landing:  db.Collection("landingpage"),
		settings: db.Collection("sitesettings"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *mongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	// The singleton collections are addressed by a fixed key; the unique
	// index makes the first-read upsert race-safe.
	for _, coll := range []*mongo.Collection{s.landing, s.settings} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// An unparseable id can never reference a stored document.
		return primitive.NilObjectID, errNotFound
	}
	return oid, nil
}

// --- Users ---

func (s *mongoStore) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	res, err := s.users.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errDuplicate
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (s *mongoStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *mongoStore) UserByID(ctx context.Context, id string) (*User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var u User
	err = s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *mongoStore) UpdateUser(ctx context.Context, id string, fields map[string]any) (*User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u User
	err = s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, errDuplicate
		}
		return nil, err
	}
	return &u, nil
}

func (s *mongoStore) DeleteUser(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errNotFound
	}
	return nil
}

func (s *mongoStore) ListUsers(ctx context.Context) ([]User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Blog posts ---

func (s *mongoStore) CreatePost(ctx context.Context, p *BlogPost) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Media == nil {
		p.Media = []string{}
	}
	res, err := s.posts.InsertOne(ctx, p)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid
	}
	return nil
}

func (s *mongoStore) PostByID(ctx context.Context, id string) (*BlogPost, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var p BlogPost
	err = s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *mongoStore) ListPosts(ctx context.Context, publishedOnly bool) ([]BlogPost, error) {
	filter := bson.M{}
	if publishedOnly {
		filter["published"] = true
	}
	cur, err := s.posts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []BlogPost
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *mongoStore) UpdatePost(ctx context.Context, id string, fields map[string]any) (*BlogPost, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p BlogPost
	err = s.posts.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *mongoStore) DeletePost(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errNotFound
	}
	return nil
}

// --- Landing page singleton ---

// LandingPage returns the singleton, creating the default document on first
// read.
func (s *mongoStore) LandingPage(ctx context.Context) (*LandingPage, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var lp LandingPage
	err := s.landing.FindOneAndUpdate(ctx,
		bson.M{"key": landingPageKey},
		bson.M{"$setOnInsert": defaultLandingPage()},
		opts,
	).Decode(&lp)
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

func (s *mongoStore) UpdateLandingPage(ctx context.Context, fields map[string]any) (*LandingPage, error) {
	if _, err := s.LandingPage(ctx); err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var lp LandingPage
	err := s.landing.FindOneAndUpdate(ctx,
		bson.M{"key": landingPageKey},
		bson.M{"$set": set},
		opts,
	).Decode(&lp)
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

func (s *mongoStore) AddReel(ctx context.Context, r Reel) (*LandingPage, error) {
	if _, err := s.LandingPage(ctx); err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var lp LandingPage
	err := s.landing.FindOneAndUpdate(ctx,
		bson.M{"key": landingPageKey},
		bson.M{
			"$push": bson.M{"reels": r},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
		opts,
	).Decode(&lp)
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

// RemoveReel pulls the matching reel; unknown ids report errNotFound.
// The filter matches on reels.id so the pull and the existence check are a
// single atomic operation. $pull keeps the remaining reels in their
// original relative order.
func (s *mongoStore) RemoveReel(ctx context.Context, reelID string) error {
	res, err := s.landing.UpdateOne(ctx,
		bson.M{"key": landingPageKey, "reels.id": reelID},
		bson.M{
			"$pull": bson.M{"reels": bson.M{"id": reelID}},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errNotFound
	}
	return nil
}

func (s *mongoStore) ReplaceReels(ctx context.Context, reels []Reel) (*LandingPage, error) {
	if reels == nil {
		reels = []Reel{}
	}
	return s.UpdateLandingPage(ctx, map[string]any{"reels": reels})
}

// --- Site settings singleton ---

func (s *mongoStore) SiteSettings(ctx context.Context) (*SiteSettings, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var st SiteSettings
	err := s.settings.FindOneAndUpdate(ctx,
		bson.M{"key": siteSettingsKey},
		bson.M{"$setOnInsert": defaultSiteSettings()},
		opts,
	).Decode(&st)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *mongoStore) UpdateSiteSettings(ctx context.Context, fields map[string]any) (*SiteSettings, error) {
	if _, err := s.SiteSettings(ctx); err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var st SiteSettings
	err := s.settings.FindOneAndUpdate(ctx,
		bson.M{"key": siteSettingsKey},
		bson.M{"$set": set},
		opts,
	).Decode(&st)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

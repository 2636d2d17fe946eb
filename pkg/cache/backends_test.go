package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeRedis struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.data[key] = value.([]byte)
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := NewRedisCacheWithClient(fake, "")

	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Fatalf("Get on empty = %v, %v", hit, err)
	}
	if err := c.Set(ctx, "k", []byte("v"), TTLGeodata); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.data["maptoposter:k"]; !ok {
		t.Error("key should carry the default prefix")
	}
	if fake.ttls["maptoposter:k"] != TTLGeodata {
		t.Errorf("ttl = %v, want %v", fake.ttls["maptoposter:k"], TTLGeodata)
	}
	data, hit, err := c.Get(ctx, "k")
	if !hit || err != nil || string(data) != "v" {
		t.Errorf("Get = %q, %v, %v", data, hit, err)
	}
	_ = c.Delete(ctx, "k")
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("deleted key should miss")
	}
}

type fakeCollection struct {
	docs map[string]mongoEntry
}

func (f *fakeCollection) FindOne(_ context.Context, filter any, _ ...*options.FindOneOptions) *mongo.SingleResult {
	id := filter.(bson.M)["_id"].(string)
	doc, ok := f.docs[id]
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (f *fakeCollection) ReplaceOne(_ context.Context, filter any, repl any, _ ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	id := filter.(bson.M)["_id"].(string)
	f.docs[id] = repl.(mongoEntry)
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func (f *fakeCollection) DeleteOne(_ context.Context, filter any, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	id := filter.(bson.M)["_id"].(string)
	_, ok := f.docs[id]
	delete(f.docs, id)
	if ok {
		return &mongo.DeleteResult{DeletedCount: 1}, nil
	}
	return &mongo.DeleteResult{}, nil
}

func (f *fakeCollection) DeleteMany(context.Context, any, ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	n := len(f.docs)
	f.docs = map[string]mongoEntry{}
	return &mongo.DeleteResult{DeletedCount: int64(n)}, nil
}

func TestMongoCache(t *testing.T) {
	ctx := context.Background()
	coll := &fakeCollection{docs: map[string]mongoEntry{}}
	c := NewMongoCacheWithCollection(coll)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Fatalf("Get on empty = %v, %v", hit, err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "k")
	if !hit || err != nil || string(data) != "v" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}

	now = now.Add(2 * time.Hour)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired document should miss")
	}
	if len(coll.docs) != 0 {
		t.Error("expired document should be deleted")
	}

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	if n, err := c.Clear(ctx); err != nil || n != 2 {
		t.Errorf("Clear() = %d, %v; want 2", n, err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

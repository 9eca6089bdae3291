package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipebox/models"
)

// TagStore reads and writes the tags collection.
type TagStore struct {
	coll *mongo.Collection
}

func NewTagStore(coll *mongo.Collection) *TagStore {
	return &TagStore{coll: coll}
}

// FindByID returns models.ErrNotFound when no tag has the id.
func (s *TagStore) FindByID(ctx context.Context, id string) (models.Tag, error) {
	var tag models.Tag
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&tag)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Tag{}, models.ErrNotFound
	}
	if err != nil {
		return models.Tag{}, fmt.Errorf("find tag %s: %w", id, err)
	}
	return tag, nil
}

func (s *TagStore) FindGlobal(ctx context.Context) ([]models.Tag, error) {
	return s.find(ctx, bson.M{"isGlobal": true})
}

func (s *TagStore) FindByUser(ctx context.Context, userID string) ([]models.Tag, error) {
	return s.find(ctx, bson.M{"userId": userID})
}

func (s *TagStore) find(ctx context.Context, filter bson.M) ([]models.Tag, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	defer cursor.Close(ctx)

	tags := []models.Tag{}
	if err := cursor.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

func (s *TagStore) Insert(ctx context.Context, tag models.Tag) error {
	if _, err := s.coll.InsertOne(ctx, tag); err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (s *TagStore) InsertMany(ctx context.Context, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	docs := make([]interface{}, len(tags))
	for i, t := range tags {
		docs[i] = t
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert tags: %w", err)
	}
	return nil
}

func (s *TagStore) CountGlobal(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"isGlobal": true})
	if err != nil {
		return 0, fmt.Errorf("count global tags: %w", err)
	}
	return n, nil
}

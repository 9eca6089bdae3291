package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RecipeChangeStream watches the recipes collection through a MongoDB change
// stream. It needs a replica set; standalone servers reject Watch.
type RecipeChangeStream struct {
	coll *mongo.Collection
}

func NewRecipeChangeStream(coll *mongo.Collection) *RecipeChangeStream {
	return &RecipeChangeStream{coll: coll}
}

// Watch calls notify for every change to a recipe owned by userID until ctx is
// done. Deletes carry no document, so every delete notifies.
func (s *RecipeChangeStream) Watch(ctx context.Context, userID string, notify func()) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.userId": userID},
			bson.M{"operationType": "delete"},
		}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := s.coll.Watch(ctx, pipeline, opts)
	if err != nil {
		return fmt.Errorf("watch recipes: %w", err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		notify()
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("recipe change stream: %w", err)
	}
	return nil
}

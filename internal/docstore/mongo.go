package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hazard-reporter/internal/common/logger"
)

// Mongo stores each collection as a MongoDB collection with the document
// id as _id.
type Mongo struct {
	db     *mongo.Database
	logger logger.Logger
}

func NewMongo(db *mongo.Database, log logger.Logger) *Mongo {
	return &Mongo{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "docstore", "driver": "mongo"}),
	}
}

func (m *Mongo) GetDoc(ctx context.Context, collection, id string) (map[string]interface{}, error) {
	var doc bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return fromBSON(doc), nil
}

func (m *Mongo) SetDoc(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	_, err := m.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": id},
		bson.M(fields),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	return nil
}

func (m *Mongo) UpdateDoc(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	return m.update(ctx, collection, id, bson.M{"$set": bson.M(fields)})
}

func (m *Mongo) Increment(ctx context.Context, collection, id, field string, delta int) error {
	return m.update(ctx, collection, id, bson.M{"$inc": bson.M{field: delta}})
}

func (m *Mongo) update(ctx context.Context, collection, id string, update bson.M) error {
	result, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Query(ctx context.Context, collection string, filters []Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	cursor, err := m.db.Collection(collection).Find(ctx, mongoFilter(filters))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var out []Document
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		id := fmt.Sprint(doc["_id"])
		out = append(out, Document{ID: id, Fields: fromBSON(doc)})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	m.logger.Debug("query", map[string]interface{}{"collection": collection, "filters": len(filters), "results": len(out)})
	return out, nil
}

func mongoFilter(filters []Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		cond, ok := out[f.Field].(bson.M)
		if !ok {
			cond = bson.M{}
			out[f.Field] = cond
		}
		switch f.Op {
		case OpEqual:
			cond["$eq"] = f.Value
		case OpGreaterEqual:
			cond["$gte"] = f.Value
		case OpLessEqual:
			cond["$lte"] = f.Value
		}
	}
	return out
}

func fromBSON(doc bson.M) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		out[k] = v
	}
	return out
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	flightsCollection     = "flights"
	shortCodeIndexName    = "shortCode_unique"
	indexOptionsConflict  = 85
	indexKeySpecsConflict = 86
)

// MongoFlightRepository implements FlightRepository
type MongoFlightRepository struct {
	collection *mongo.Collection
}

// NewMongoFlightRepository creates a new flight repository and ensures the
// short code index exists.
func NewMongoFlightRepository(ctx context.Context, db *mongo.Database) (repository.FlightRepository, error) {
	collection := db.Collection(flightsCollection)

	if err := ensureFlightIndexes(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to create flight indexes: %w", err)
	}

	return &MongoFlightRepository{
		collection: collection,
	}, nil
}

// flightIndexes returns the flights collection indexes. The short code index
// only covers non-empty strings, so flights without a code never collide.
func flightIndexes() []mongo.IndexModel {
	shortCodeIndex := mongo.IndexModel{
		Keys: bson.M{"shortCode": 1},
		Options: options.Index().
			SetName(shortCodeIndexName).
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"shortCode": bson.M{"$gt": ""}}),
	}

	// Index on teeTime for listing the day's flights in order
	teeTimeIndex := mongo.IndexModel{
		Keys: bson.M{"teeTime": 1},
	}

	return []mongo.IndexModel{shortCodeIndex, teeTimeIndex}
}

// ensureFlightIndexes creates the indexes, rebuilding the short code index
// when an older definition with different options is already in place.
func ensureFlightIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, flightIndexes())
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || (cmdErr.Code != indexOptionsConflict && cmdErr.Code != indexKeySpecsConflict) {
		return err
	}
	if _, err := collection.Indexes().DropOne(ctx, shortCodeIndexName); err != nil {
		return err
	}
	_, err = collection.Indexes().CreateMany(ctx, flightIndexes())
	return err
}

// Create inserts a flight together with its short code
func (r *MongoFlightRepository) Create(ctx context.Context, flight *entity.Flight) error {
	now := time.Now()
	if flight.ID == "" {
		flight.ID = primitive.NewObjectID().Hex()
	}
	flight.CreatedAt = now
	flight.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, flight)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entity.ErrWriteConflict
		}
		return fmt.Errorf("failed to insert flight: %w", err)
	}
	return nil
}

// FindByID finds a flight by id
func (r *MongoFlightRepository) FindByID(ctx context.Context, id string) (*entity.Flight, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByShortCode finds a flight through the short code index
func (r *MongoFlightRepository) FindByShortCode(ctx context.Context, code string) (*entity.Flight, error) {
	return r.findOne(ctx, bson.M{"shortCode": code})
}

// FindAll returns every flight, oldest first
func (r *MongoFlightRepository) FindAll(ctx context.Context) ([]*entity.Flight, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list flights: %w", err)
	}
	defer cursor.Close(ctx)

	var flights []*entity.Flight
	if err := cursor.All(ctx, &flights); err != nil {
		return nil, fmt.Errorf("failed to decode flights: %w", err)
	}
	return flights, nil
}

// ListShortCodes returns the distinct codes in use
func (r *MongoFlightRepository) ListShortCodes(ctx context.Context) (map[string]struct{}, error) {
	filter := bson.M{"shortCode": bson.M{"$type": "string", "$ne": ""}}
	values, err := r.collection.Distinct(ctx, "shortCode", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list short codes: %w", err)
	}

	codes := make(map[string]struct{}, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			codes[s] = struct{}{}
		}
	}
	return codes, nil
}

// AssignShortCode sets the code only if the stored value still equals expected
func (r *MongoFlightRepository) AssignShortCode(ctx context.Context, id string, expected *string, code string) error {
	filter := bson.M{"_id": id}
	if expected == nil || *expected == "" {
		filter["$or"] = []bson.M{
			{"shortCode": bson.M{"$exists": false}},
			{"shortCode": nil},
			{"shortCode": ""},
		}
	} else {
		filter["shortCode"] = *expected
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"shortCode": code,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entity.ErrWriteConflict
		}
		return fmt.Errorf("failed to assign short code: %w", err)
	}

	if result.MatchedCount == 0 {
		// Distinguish a missing flight from a lost compare-and-set
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return entity.ErrCodeAlreadyAssigned
	}
	return nil
}

// ReassignShortCode replaces the code unconditionally
func (r *MongoFlightRepository) ReassignShortCode(ctx context.Context, id string, code string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"shortCode": code,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entity.ErrWriteConflict
		}
		return fmt.Errorf("failed to reassign short code: %w", err)
	}
	if result.MatchedCount == 0 {
		return entity.ErrFlightNotFound
	}
	return nil
}

// Delete removes a flight, freeing its code
func (r *MongoFlightRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete flight: %w", err)
	}
	if result.DeletedCount == 0 {
		return entity.ErrFlightNotFound
	}
	return nil
}

func (r *MongoFlightRepository) findOne(ctx context.Context, filter bson.M) (*entity.Flight, error) {
	var flight entity.Flight
	err := r.collection.FindOne(ctx, filter).Decode(&flight)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrFlightNotFound
		}
		return nil, err
	}
	return &flight, nil
}

package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fiscaal-rapportage/internal/config"
	"fiscaal-rapportage/internal/models"
	"fiscaal-rapportage/internal/services"
)

// MongoDBClient wraps the MongoDB client for dossier persistence
type MongoDBClient struct {
	client      *mongo.Client
	database    *mongo.Database
	dossiers    *mongo.Collection
	expressJobs *mongo.Collection
}

// NewMongoDBClient creates a new MongoDB client for dossier storage
func NewMongoDBClient(cfg config.MongoDBConfig) (*MongoDBClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Build connection URI
	uri := cfg.URI
	if uri == "" {
		// Build URI from components if URI not provided
		if cfg.Username != "" && cfg.Password != "" {
			// Use url.UserPassword to properly encode username and password
			userInfo := url.UserPassword(cfg.Username, cfg.Password)
			uri = fmt.Sprintf("mongodb://%s@%s:%s/%s?authSource=%s",
				userInfo.String(),
				cfg.Host,
				cfg.Port,
				cfg.Database,
				url.QueryEscape(cfg.AuthSource),
			)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%s/%s",
				cfg.Host,
				cfg.Port,
				cfg.Database,
			)
		}
	}

	// Log connection attempt (mask password for security)
	logURI := uri
	if cfg.Password != "" && cfg.Username != "" {
		authSource := cfg.AuthSource
		if authSource == "" {
			authSource = "admin"
		}
		logURI = fmt.Sprintf("mongodb://%s:***@%s:%s/%s?authSource=%s",
			cfg.Username, cfg.Host, cfg.Port, cfg.Database, url.QueryEscape(authSource))
	}
	log.Printf("Attempting to connect to MongoDB at %s", logURI)

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB at %s: %w", logURI, err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", logURI, err)
	}

	database := client.Database(cfg.Database)
	dossiers := database.Collection(cfg.Collection)
	expressJobs := database.Collection("express_jobs")

	// Indexes for dashboard queries: status filter and sort fields
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "clientName", Value: 1}}},
	}
	if _, err := dossiers.Indexes().CreateMany(ctx, indexes); err != nil {
		// Index might already exist, that's okay
		log.Printf("Note: MongoDB index creation: %v", err)
	}

	jobIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "dossierId", Value: 1}, {Key: "startedAt", Value: -1}},
	}
	if _, err := expressJobs.Indexes().CreateOne(ctx, jobIndex); err != nil {
		log.Printf("Note: MongoDB express_jobs index creation: %v", err)
	}

	return &MongoDBClient{
		client:      client,
		database:    database,
		dossiers:    dossiers,
		expressJobs: expressJobs,
	}, nil
}

// Close closes the MongoDB client connection
func (c *MongoDBClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// InsertDossier stores a new dossier
func (c *MongoDBClient) InsertDossier(ctx context.Context, dossier *models.Dossier) error {
	if _, err := c.dossiers.InsertOne(ctx, dossier); err != nil {
		return fmt.Errorf("failed to insert dossier: %w", err)
	}
	return nil
}

// GetDossier retrieves a dossier by ID. Returns (nil, nil) when not found.
func (c *MongoDBClient) GetDossier(ctx context.Context, id string) (*models.Dossier, error) {
	var dossier models.Dossier
	err := c.dossiers.FindOne(ctx, bson.M{"_id": id}).Decode(&dossier)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dossier: %w", err)
	}
	return &dossier, nil
}

// UpdateDossier replaces the stored dossier document
func (c *MongoDBClient) UpdateDossier(ctx context.Context, dossier *models.Dossier) error {
	result, err := c.dossiers.ReplaceOne(ctx, bson.M{"_id": dossier.ID}, dossier)
	if err != nil {
		return fmt.Errorf("failed to update dossier: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: dossier %s", services.ErrNotFound, dossier.ID)
	}
	return nil
}

// DeleteDossier removes a dossier. Returns false when it did not exist.
func (c *MongoDBClient) DeleteDossier(ctx context.Context, id string) (bool, error) {
	result, err := c.dossiers.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete dossier: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// ListDossiers returns one dashboard page plus the total match count
func (c *MongoDBClient) ListDossiers(ctx context.Context, opts models.ListOptions) ([]models.Dossier, int64, error) {
	opts.Normalize()

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = opts.Status
	}
	if opts.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(opts.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"clientName": pattern},
		}
	}

	total, err := c.dossiers.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count dossiers: %w", err)
	}

	direction := -1
	if opts.SortDir == "asc" {
		direction = 1
	}
	findOptions := options.Find().
		SetSort(bson.D{{Key: opts.SortBy, Value: direction}}).
		SetSkip(int64((opts.Page - 1) * opts.PageSize)).
		SetLimit(int64(opts.PageSize))

	cursor, err := c.dossiers.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list dossiers: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.Dossier{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed to decode dossiers: %w", err)
	}

	return items, total, nil
}

// ArchiveExportedBefore archives exported dossiers whose last update is older
// than the cutoff. Returns the number of dossiers archived.
func (c *MongoDBClient) ArchiveExportedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := c.dossiers.UpdateMany(ctx,
		bson.M{
			"status":    models.DossierStatusExported,
			"updatedAt": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":    models.DossierStatusArchived,
			"updatedAt": time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to archive dossiers: %w", err)
	}
	return result.ModifiedCount, nil
}

// ArchiveExpressJob persists a finished express job for audit before it is
// purged from the in-memory registry
func (c *MongoDBClient) ArchiveExpressJob(ctx context.Context, job *models.ExpressJob) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := c.expressJobs.ReplaceOne(ctx, bson.M{"_id": job.ID}, job, opts); err != nil {
		return fmt.Errorf("failed to archive express job: %w", err)
	}
	return nil
}

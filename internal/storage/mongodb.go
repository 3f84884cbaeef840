// mongodb.go - MongoDB persistence: analysis history, user accounts, sessions

package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
	"github.com/bosocmputer/meal_calorie_gemini/internal/pipeline"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoClient *mongo.Client
var mongoDB *mongo.Database

const (
	historyCollection  = "history"
	usersCollection    = "users"
	sessionsCollection = "sessions"
)

var (
	// ErrNotFound is returned when a requested record does not exist or is
	// owned by another user.
	ErrNotFound = errors.New("record not found")

	// ErrEmailTaken is returned when registering an email that already has
	// an account.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrSessionExpired is returned for session tokens past their expiry.
	ErrSessionExpired = errors.New("session expired")
)

// InitMongoDB initializes MongoDB connection
func InitMongoDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(configs.MONGO_URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err = client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoClient = client
	mongoDB = client.Database(configs.MONGO_DB_NAME)

	// One account per email; a duplicate registration surfaces as
	// ErrEmailTaken instead of a second document.
	emailIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := mongoDB.Collection(usersCollection).Indexes().CreateOne(ctx, emailIndex); err != nil {
		log.Printf("⚠️  Failed to ensure unique email index: %v", err)
	}

	log.Println("✅ Connected to MongoDB successfully!")
	return nil
}

// CloseMongoDB closes MongoDB connection
func CloseMongoDB() {
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
		log.Println("MongoDB connection closed")
	}
}

// PingMongoDB verifies the connection, for health checks.
func PingMongoDB() error {
	if mongoClient == nil {
		return errors.New("mongodb is not initialized")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return mongoClient.Ping(ctx, nil)
}

// --- Analysis History ---

// HistoryEntry is one saved analysis. Entries are created when the user opts
// to save a result, deleted on explicit request, and never mutated.
type HistoryEntry struct {
	ID          string                  `bson:"_id" json:"id"`
	UserID      string                  `bson:"user_id" json:"user_id"`
	Timestamp   time.Time               `bson:"timestamp" json:"timestamp"`
	MealContext string                  `bson:"meal_context,omitempty" json:"meal_context,omitempty"`
	Result      pipeline.AnalysisResult `bson:"result" json:"result"`
	ImageBase64 string                  `bson:"image_base64,omitempty" json:"image_base64,omitempty"`
}

// SaveHistory persists one analysis for the user and returns the record id.
func SaveHistory(userID, mealContext string, result *pipeline.AnalysisResult, imageBase64 string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := HistoryEntry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Timestamp:   time.Now().UTC(),
		MealContext: mealContext,
		Result:      *result,
		ImageBase64: imageBase64,
	}

	if _, err := mongoDB.Collection(historyCollection).InsertOne(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to save history entry: %w", err)
	}
	return entry.ID, nil
}

// ListHistory returns the user's saved analyses, most recent first.
func ListHistory(userID string) ([]HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := mongoDB.Collection(historyCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []HistoryEntry{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return entries, nil
}

// DeleteHistory removes one entry. The filter is scoped to the owner, so a
// foreign id behaves exactly like a missing one.
func DeleteHistory(userID, entryID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := mongoDB.Collection(historyCollection).DeleteOne(ctx, bson.M{"_id": entryID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- User Accounts ---

// UserAccount is a registered user. Passwords are stored as bcrypt hashes.
type UserAccount struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// CreateUser inserts a new account and returns it.
func CreateUser(email, passwordHash string) (*UserAccount, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user := UserAccount{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := mongoDB.Collection(usersCollection).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail looks an account up by email.
func GetUserByEmail(email string) (*UserAccount, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var user UserAccount
	err := mongoDB.Collection(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// --- Sessions ---

// Session is an opaque bearer token with an expiry.
type Session struct {
	Token     string    `bson:"_id" json:"token"`
	UserID    string    `bson:"user_id" json:"user_id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

// CreateSession stores a session token for the user.
func CreateSession(token, userID string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session := Session{Token: token, UserID: userID, ExpiresAt: expiresAt}
	if _, err := mongoDB.Collection(sessionsCollection).InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession resolves a bearer token. Expired sessions are deleted on sight
// and reported as ErrSessionExpired.
func GetSession(token string) (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var session Session
	err := mongoDB.Collection(sessionsCollection).FindOne(ctx, bson.M{"_id": token}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		_, _ = mongoDB.Collection(sessionsCollection).DeleteOne(ctx, bson.M{"_id": token})
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// DeleteSession removes a session token (logout).
func DeleteSession(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := mongoDB.Collection(sessionsCollection).DeleteOne(ctx, bson.M{"_id": token}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

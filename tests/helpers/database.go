package helpers

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// GetTestDatabasePool creates a database connection pool for testing
func GetTestDatabasePool(ctx context.Context) (*pgxpool.Pool, error) {
	databaseURL := buildDatabaseURL()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// buildDatabaseURL constructs the database URL from environment variables
func buildDatabaseURL() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		dbname = "media_studio_test"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=prefer",
		user, password, host, port, dbname)
}

// TestDatabase provides database utilities for testing
type TestDatabase struct {
	Pool *pgxpool.Pool
	ctx  context.Context
}

// NewTestDatabase creates a new test database instance
func NewTestDatabase(t *testing.T) *TestDatabase {
	ctx := context.Background()

	pool, err := GetTestDatabasePool(ctx)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return &TestDatabase{
		Pool: pool,
		ctx:  ctx,
	}
}

// Close closes the database connection
func (db *TestDatabase) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CleanupTables removes test data from all tables. Order matters because
// generation_tasks references both users and generation_models.
func (db *TestDatabase) CleanupTables(t *testing.T) {
	tables := []string{
		"generation_tasks",
		"generation_models",
		"users",
	}

	for _, table := range tables {
		_, err := db.Pool.Exec(db.ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("Warning: Failed to cleanup table %s: %v", table, err)
		}
	}
}

// CreateTestUser creates a test user and returns the user ID.
// The password argument must already be a bcrypt hash.
func (db *TestDatabase) CreateTestUser(t *testing.T, email, hashedPassword string) string {
	var userID string

	err := db.Pool.QueryRow(db.ctx, `
		INSERT INTO users (id, name, email, hashed_password, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW(), NOW())
		RETURNING id
	`, "Test User", email, hashedPassword).Scan(&userID)

	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}

// CreateTestModel creates a generation model row and returns the model ID
func (db *TestDatabase) CreateTestModel(t *testing.T, slug, adapterName, outputType string) string {
	var modelID string

	err := db.Pool.QueryRow(db.ctx, `
		INSERT INTO generation_models
			(id, slug, name, output_type, adapter_name, provider_id, provider_slug, provider_name, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $5, $6, NOW(), NOW())
		RETURNING id
	`, slug, "Test Model "+slug, outputType, adapterName, "test-provider", "Test Provider").Scan(&modelID)

	if err != nil {
		t.Fatalf("Failed to create test model: %v", err)
	}

	return modelID
}

// CreateTestTask creates a generation task row and returns the task ID
func (db *TestDatabase) CreateTestTask(t *testing.T, modelID, userID, prompt string) string {
	var taskID string

	err := db.Pool.QueryRow(db.ctx, `
		INSERT INTO generation_tasks (id, model_id, user_id, prompt, status, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, 'PENDING', NOW(), NOW())
		RETURNING id
	`, modelID, userID, prompt).Scan(&taskID)

	if err != nil {
		t.Fatalf("Failed to create test task: %v", err)
	}

	return taskID
}

// GetTaskCount returns the number of non-deleted tasks in the database
func (db *TestDatabase) GetTaskCount(t *testing.T) int {
	var count int
	err := db.Pool.QueryRow(db.ctx, "SELECT COUNT(*) FROM generation_tasks WHERE deleted_at IS NULL").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to get task count: %v", err)
	}
	return count
}

// GetUserCount returns the number of users in the database
func (db *TestDatabase) GetUserCount(t *testing.T) int {
	var count int
	err := db.Pool.QueryRow(db.ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to get user count: %v", err)
	}
	return count
}

// HashPassword hashes a password using bcrypt for testing
func (db *TestDatabase) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

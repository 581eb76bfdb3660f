package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/factoidhq/factoid-gateway/internal/shared/models"
)

type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateGenerationRequest inserts a new pending request row and returns it.
func (db *DB) CreateGenerationRequest(ctx context.Context, clientHash string, source models.RequestSource, modelKey string, temperature *float32, expectedCost float64, retryOf *string) (*models.GenerationRequest, error) {
	req := &models.GenerationRequest{
		ID:              uuid.New().String(),
		ClientHash:      clientHash,
		RequestSource:   source,
		ModelKey:        modelKey,
		Temperature:     temperature,
		Status:          models.StatusPending,
		ExpectedCostUSD: &expectedCost,
		RetryOf:         retryOf,
		CreatedAt:       time.Now().UTC(),
	}

	query := `
		INSERT INTO generation_requests (
			id, client_hash, request_source, model_key, temperature,
			status, expected_cost_usd, retry_of, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := db.conn.ExecContext(ctx, query,
		req.ID,
		req.ClientHash,
		string(req.RequestSource),
		req.ModelKey,
		req.Temperature,
		string(req.Status),
		req.ExpectedCostUSD,
		req.RetryOf,
		req.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}

	return req, nil
}

// MarkRequestRunning transitions a request to running and stamps started_at.
func (db *DB) MarkRequestRunning(ctx context.Context, requestID string) error {
	query := `
		UPDATE generation_requests
		SET status = $1, started_at = NOW()
		WHERE id = $2 AND started_at IS NULL
	`
	_, err := db.conn.ExecContext(ctx, query, string(models.StatusRunning), requestID)
	return err
}

// MarkRequestSucceeded records the terminal success state with cost and usage.
func (db *DB) MarkRequestSucceeded(ctx context.Context, requestID string, actualCost float64, promptTokens, completionTokens int) error {
	query := `
		UPDATE generation_requests
		SET status = $1, actual_cost_usd = $2, token_usage_prompt = $3,
		    token_usage_completion = $4, completed_at = NOW()
		WHERE id = $5
	`
	_, err := db.conn.ExecContext(ctx, query,
		string(models.StatusSucceeded), actualCost, promptTokens, completionTokens, requestID)
	return err
}

// MarkRequestFailed records the terminal failure state with the error detail.
func (db *DB) MarkRequestFailed(ctx context.Context, requestID string, detail string) error {
	query := `
		UPDATE generation_requests
		SET status = $1, error_message = $2, completed_at = NOW()
		WHERE id = $3
	`
	_, err := db.conn.ExecContext(ctx, query, string(models.StatusFailed), detail, requestID)
	return err
}

// InsertFactoid persists a validated factoid payload as a durable record.
func (db *DB) InsertFactoid(ctx context.Context, payload models.FactoidPayload, requestID string, modelKey string, cost float64) (*models.Factoid, error) {
	factoid := &models.Factoid{
		ID:        uuid.New().String(),
		Text:      payload.Text,
		Subject:   payload.Subject,
		Emoji:     payload.Emoji,
		CreatedBy: &requestID,
		ModelKey:  modelKey,
		CostUSD:   &cost,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO factoids (
			id, text, subject, emoji, votes_up, votes_down,
			created_by, model_key, cost_usd, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 0, 0, $5, $6, $7, $8, $9)
	`

	_, err := db.conn.ExecContext(ctx, query,
		factoid.ID,
		factoid.Text,
		factoid.Subject,
		factoid.Emoji,
		factoid.CreatedBy,
		factoid.ModelKey,
		factoid.CostUSD,
		factoid.CreatedAt,
		factoid.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert factoid: %w", err)
	}

	return factoid, nil
}

// RecentFactoids returns the most recent factoids, newest first. Used to
// seed the generation prompt with examples to avoid duplicates.
func (db *DB) RecentFactoids(ctx context.Context, limit int) ([]models.Factoid, error) {
	query := `
		SELECT id, text, subject, emoji, votes_up, votes_down,
		       created_by, model_key, cost_usd, created_at, updated_at
		FROM factoids
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent factoids: %w", err)
	}
	defer rows.Close()

	var factoids []models.Factoid
	for rows.Next() {
		var f models.Factoid
		if err := rows.Scan(
			&f.ID,
			&f.Text,
			&f.Subject,
			&f.Emoji,
			&f.VotesUp,
			&f.VotesDown,
			&f.CreatedBy,
			&f.ModelKey,
			&f.CostUSD,
			&f.CreatedAt,
			&f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan factoid: %w", err)
		}
		factoids = append(factoids, f)
	}

	return factoids, rows.Err()
}

// GetFactoid returns one factoid by ID.
func (db *DB) GetFactoid(ctx context.Context, id string) (*models.Factoid, error) {
	query := `
		SELECT id, text, subject, emoji, votes_up, votes_down,
		       created_by, model_key, cost_usd, created_at, updated_at
		FROM factoids
		WHERE id = $1
	`

	var f models.Factoid
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&f.ID,
		&f.Text,
		&f.Subject,
		&f.Emoji,
		&f.VotesUp,
		&f.VotesDown,
		&f.CreatedBy,
		&f.ModelKey,
		&f.CostUSD,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("factoid not found")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &f, nil
}

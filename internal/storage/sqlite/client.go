package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/storage/models"
)

type Client struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewClient(dbPath string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		input_text TEXT NOT NULL,
		model_output TEXT
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		api_key TEXT PRIMARY KEY COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS conversation_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		user_input TEXT NOT NULL,
		model_output TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns(conversation_id, id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	c.logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertRun(ctx context.Context, run *models.Run) error {
	query := `INSERT INTO runs (run_id, timestamp, input_text, model_output) VALUES (?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query, run.RunID, run.Timestamp, run.InputText, run.ModelOutput)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	c.logger.Info("Run recorded", zap.String("run_id", run.RunID))
	return nil
}

func (c *Client) InsertKey(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO api_keys (api_key) VALUES (?)`, key)
	if err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// KeyExists matches registered keys case-insensitively; the api_keys
// column collates NOCASE.
func (c *Client) KeyExists(ctx context.Context, key string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM api_keys WHERE api_key = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to look up api key: %w", err)
	}
	return count > 0, nil
}

func (c *Client) AppendTurn(ctx context.Context, turn *models.Turn) error {
	query := `INSERT INTO conversation_turns (conversation_id, user_input, model_output, created_at) VALUES (?, ?, ?, ?)`

	createdAt := turn.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	_, err := c.db.ExecContext(ctx, query, turn.ConversationID, turn.UserInput, turn.ModelOutput, createdAt)
	if err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}
	return nil
}

// Turns returns every recorded turn for the conversation in chronological
// order.
func (c *Client) Turns(ctx context.Context, conversationID string) ([]models.Turn, error) {
	query := `
		SELECT conversation_id, user_input, model_output, created_at
		FROM conversation_turns
		WHERE conversation_id = ?
		ORDER BY id ASC
	`

	rows, err := c.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		if err := rows.Scan(&t.ConversationID, &t.UserInput, &t.ModelOutput, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

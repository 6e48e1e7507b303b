// Package archive keeps generated diary drafts in a sqlite database.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/teilomillet/wave/server/diary"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultLimit bounds List when the caller passes no limit.
const DefaultLimit = 20

// MaxLimit is the largest page List returns.
const MaxLimit = 100

// Entry is one archived draft.
type Entry struct {
	ID           int64         `db:"id" json:"id"`
	Title        string        `db:"title" json:"title"`
	Emotion      diary.Emotion `db:"emotion" json:"emotion"`
	Content      string        `db:"content" json:"content"`
	Provider     string        `db:"provider" json:"provider"`
	MessageCount int           `db:"message_count" json:"message_count"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Archive stores drafts. It is safe for concurrent use.
type Archive struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open connects to the sqlite file at path and applies pending migrations.
func Open(path string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("connect to archive: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrateUp(db.DB, logger); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("closing archive after migration failure", zap.Error(closeErr))
		}
		return nil, err
	}

	logger.Info("diary archive ready", zap.String("path", path))
	return &Archive{db: db, logger: logger, now: time.Now}, nil
}

func migrateUp(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load archive migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("archive schema up to date")
			return nil
		}
		return fmt.Errorf("apply archive migrations: %w", err)
	}
	logger.Info("archive migrations applied")
	return nil
}

// Save records a draft built from messageCount messages and returns the
// stored entry.
func (a *Archive) Save(ctx context.Context, d diary.Draft, messageCount int) (Entry, error) {
	e := Entry{
		Title:        d.Title,
		Emotion:      d.Emotion,
		Content:      d.Content,
		Provider:     d.Provider,
		MessageCount: messageCount,
		CreatedAt:    a.now().UTC(),
	}

	res, err := a.db.NamedExecContext(ctx, `
		INSERT INTO diary_drafts (title, emotion, content, provider, message_count, created_at)
		VALUES (:title, :emotion, :content, :provider, :message_count, :created_at)`, e)
	if err != nil {
		return Entry{}, fmt.Errorf("save draft: %w", err)
	}

	e.ID, err = res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("read draft id: %w", err)
	}
	return e, nil
}

// List returns the newest drafts first.
func (a *Archive) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	entries := []Entry{}
	err := a.db.SelectContext(ctx, &entries, `
		SELECT id, title, emotion, content, provider, message_count, created_at
		FROM diary_drafts
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return entries, nil
}

// Ping checks the database connection.
func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Archive) Close() error {
	return a.db.Close()
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DefaultMaxRevisions is how many past versions are kept per design.
const DefaultMaxRevisions = 10

type sqliteStore struct {
	db           *sql.DB
	maxRevisions int
	now          func() time.Time
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string, maxRevisions int) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// serialise writers on a single connection
	db.SetMaxOpenConns(1)

	designTableStmt := `
	CREATE TABLE IF NOT EXISTS designs (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT,
		garment_color TEXT,
		document BLOB,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(designTableStmt); err != nil {
		log.Fatalf("failed to create designs table: %v", err)
	}

	revisionTableStmt := `
	CREATE TABLE IF NOT EXISTS revisions (
		id TEXT PRIMARY KEY,
		design_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);`
	if _, err = db.Exec(revisionTableStmt); err != nil {
		log.Fatalf("failed to create revisions table: %v", err)
	}

	if maxRevisions <= 0 {
		maxRevisions = DefaultMaxRevisions
	}
	return &sqliteStore{db: db, maxRevisions: maxRevisions, now: time.Now}
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) List(ctx context.Context, ownerID string) ([]*core.Design, error) {
	log := logrus.WithField("user_id", ownerID)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, garment_color, created_at, updated_at FROM designs WHERE user_id = ? ORDER BY updated_at DESC",
		ownerID)
	if err != nil {
		log.WithError(err).Error("Failed to list designs")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close design rows")
		}
	}()

	designs := []*core.Design{}
	for rows.Next() {
		var (
			d                  core.Design
			name, color        sql.NullString
			createdAt, updated int64
		)
		if err := rows.Scan(&d.DesignID, &name, &color, &createdAt, &updated); err != nil {
			return nil, err
		}
		d.OwnerUserID = ownerID
		d.Name = name.String
		d.GarmentColor = core.GarmentColor(color.String)
		d.CreatedAt = time.UnixMilli(createdAt).UTC()
		d.UpdatedAt = time.UnixMilli(updated).UTC()
		designs = append(designs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Infof("Listed %d designs", len(designs))
	return designs, nil
}

func (s *sqliteStore) Get(ctx context.Context, ownerID, designID string) (*core.Design, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID})

	var (
		d                  core.Design
		name, color        sql.NullString
		data               []byte
		createdAt, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT name, garment_color, document, created_at, updated_at FROM designs WHERE user_id = ? AND id = ?",
		ownerID, designID).Scan(&name, &color, &data, &createdAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Design not found for user")
			return nil, fmt.Errorf("design %s: %w", designID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve design")
		return nil, err
	}
	if err := json.Unmarshal(data, &d.CanvasDocument); err != nil {
		log.WithError(err).Error("Failed to unmarshal stored document")
		return nil, err
	}

	d.DesignID = designID
	d.OwnerUserID = ownerID
	d.Name = name.String
	d.GarmentColor = core.GarmentColor(color.String)
	d.CreatedAt = time.UnixMilli(createdAt).UTC()
	d.UpdatedAt = time.UnixMilli(updated).UTC()

	log.Info("Design retrieved successfully")
	return &d, nil
}

// Save creates or updates a design and records the saved document as a
// revision, trimming history to the configured maximum.
func (s *sqliteStore) Save(ctx context.Context, design *core.Design) (bool, error) {
	if design.OwnerUserID == "" || design.DesignID == "" {
		return false, fmt.Errorf("owner id and design id are required")
	}
	log := logrus.WithFields(logrus.Fields{"user_id": design.OwnerUserID, "design_id": design.DesignID})

	data, err := json.Marshal(design.CanvasDocument)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() // Rollback on any error

	var createdAt int64
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM designs WHERE user_id = ? AND id = ?",
		design.OwnerUserID, design.DesignID).Scan(&createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	exists := err == nil

	now := s.now().UnixMilli()
	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE designs SET name = ?, garment_color = ?, document = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			design.Name, string(design.GarmentColor), data, now, design.OwnerUserID, design.DesignID)
	} else {
		createdAt = now
		_, err = tx.ExecContext(ctx,
			"INSERT INTO designs (id, user_id, name, garment_color, document, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			design.DesignID, design.OwnerUserID, design.Name, string(design.GarmentColor), data, now, now)
	}
	if err != nil {
		log.WithError(err).Error("Failed to save design")
		return false, err
	}

	if err := s.addRevision(ctx, tx, design, data, now); err != nil {
		log.WithError(err).Error("Failed to record revision")
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	design.CreatedAt = time.UnixMilli(createdAt).UTC()
	design.UpdatedAt = time.UnixMilli(now).UTC()
	log.WithField("created", !exists).Info("Design saved successfully")
	return !exists, nil
}

func (s *sqliteStore) Delete(ctx context.Context, ownerID, designID string) error {
	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID})

	res, err := s.db.ExecContext(ctx, "DELETE FROM designs WHERE user_id = ? AND id = ?", ownerID, designID)
	if err != nil {
		log.WithError(err).Error("Failed to delete design")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.Warn("Design not found for deletion")
		return fmt.Errorf("design %s: %w", designID, core.ErrNotFound)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM revisions WHERE user_id = ? AND design_id = ?", ownerID, designID); err != nil {
		log.WithError(err).Warn("Failed to delete design revisions")
	}

	log.Info("Design deleted successfully")
	return nil
}

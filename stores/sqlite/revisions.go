package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tshirt-studio/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

func (s *sqliteStore) addRevision(ctx context.Context, tx *sql.Tx, design *core.Design, data []byte, createdAt int64) error {
	id := ulid.Make().String()
	_, err := tx.ExecContext(ctx,
		"INSERT INTO revisions (id, design_id, user_id, name, created_at, data) VALUES (?, ?, ?, ?, ?, ?)",
		id, design.DesignID, design.OwnerUserID, design.Name, createdAt, data)
	if err != nil {
		return err
	}

	// keep the newest maxRevisions; ulids order revisions saved within the same millisecond
	_, err = tx.ExecContext(ctx,
		`DELETE FROM revisions WHERE user_id = ? AND design_id = ? AND id NOT IN (
			SELECT id FROM revisions WHERE user_id = ? AND design_id = ? ORDER BY created_at DESC, id DESC LIMIT ?)`,
		design.OwnerUserID, design.DesignID, design.OwnerUserID, design.DesignID, s.maxRevisions)
	return err
}

// ListRevisions lists the stored revisions of a design, newest first,
// without their data.
func (s *sqliteStore) ListRevisions(ctx context.Context, ownerID, designID string) ([]core.Revision, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID})
	log.Debug("Listing revisions for design")

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, design_id, name, created_at FROM revisions WHERE user_id = ? AND design_id = ? ORDER BY created_at DESC, id DESC",
		ownerID, designID)
	if err != nil {
		log.WithError(err).Error("Failed to list revisions")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close revision rows")
		}
	}()

	revisions := []core.Revision{}
	for rows.Next() {
		var (
			r    core.Revision
			name sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.DesignID, &name, &r.CreatedAt); err != nil {
			log.WithError(err).Error("Failed to scan revision")
			continue
		}
		r.Name = name.String
		revisions = append(revisions, r)
	}

	log.Info("Revisions listed successfully")
	return revisions, nil
}

// GetRevision returns one revision with its document data.
func (s *sqliteStore) GetRevision(ctx context.Context, ownerID, revisionID string) (*core.Revision, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "revision_id": revisionID})

	var (
		r    core.Revision
		name sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, design_id, name, created_at, data FROM revisions WHERE user_id = ? AND id = ?",
		ownerID, revisionID).Scan(&r.ID, &r.DesignID, &name, &r.CreatedAt, &r.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Revision not found")
			return nil, fmt.Errorf("revision %s: %w", revisionID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve revision")
		return nil, err
	}
	r.Name = name.String

	log.Info("Revision retrieved successfully")
	return &r, nil
}

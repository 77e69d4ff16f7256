package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

const ext = ".json"

// fsStore keeps one JSON file per design under basePath/<owner>/.
type fsStore struct {
	basePath string
	now      func() time.Time
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath, now: time.Now}
}

// validName rejects ids that would escape their directory.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid id %q: must not be a path", name)
	}
	return nil
}

func (s *fsStore) ownerPath(ownerID string) (string, error) {
	if err := validName(ownerID); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, ownerID), nil
}

func (s *fsStore) designPath(ownerID, designID string) (string, error) {
	dir, err := s.ownerPath(ownerID)
	if err != nil {
		return "", err
	}
	if err := validName(designID); err != nil {
		return "", err
	}
	return filepath.Join(dir, designID+ext), nil
}

func readDesign(path string) (*core.Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d core.Design
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *fsStore) List(ctx context.Context, ownerID string) ([]*core.Design, error) {
	dir, err := s.ownerPath(ownerID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("user_id", ownerID).WithField("path", dir)

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("User directory does not exist, returning empty list.")
			return []*core.Design{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	designs := make([]*core.Design, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ext {
			continue
		}
		d, err := readDesign(filepath.Join(dir, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read design file %s, skipping", file.Name())
			continue
		}
		d.OwnerUserID = ownerID
		d.CanvasDocument = core.CanvasDocument{}
		designs = append(designs, d)
	}
	sort.Slice(designs, func(i, j int) bool { return designs[i].UpdatedAt.After(designs[j].UpdatedAt) })

	log.Infof("Listed %d designs", len(designs))
	return designs, nil
}

func (s *fsStore) Get(ctx context.Context, ownerID, designID string) (*core.Design, error) {
	path, err := s.designPath(ownerID, designID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID, "path": path})

	d, err := readDesign(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Design file not found")
			return nil, fmt.Errorf("design %s: %w", designID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read design file")
		return nil, err
	}
	d.OwnerUserID = ownerID

	log.Info("Design retrieved successfully")
	return d, nil
}

func (s *fsStore) Save(ctx context.Context, design *core.Design) (bool, error) {
	path, err := s.designPath(design.OwnerUserID, design.DesignID)
	if err != nil {
		return false, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": design.OwnerUserID, "design_id": design.DesignID, "path": path})

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return false, err
	}

	now := s.now().UTC()
	existing, err := readDesign(path)
	switch {
	case err == nil:
		design.CreatedAt = existing.CreatedAt
	case errors.Is(err, os.ErrNotExist):
		design.CreatedAt = now
	default:
		log.WithError(err).Error("Failed to read existing design")
		return false, err
	}
	design.UpdatedAt = now

	data, err := json.Marshal(design)
	if err != nil {
		log.WithError(err).Error("Failed to marshal design for saving")
		return false, err
	}

	// write then rename so readers never see a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write design file")
		return false, err
	}
	if err := os.Rename(tmp, path); err != nil {
		log.WithError(err).Error("Failed to replace design file")
		return false, err
	}

	log.Info("Design saved successfully")
	return existing == nil, nil
}

func (s *fsStore) Delete(ctx context.Context, ownerID, designID string) error {
	path, err := s.designPath(ownerID, designID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID, "path": path})

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Design file not found for deletion")
			return fmt.Errorf("design %s: %w", designID, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to delete design file")
		return err
	}

	log.Info("Design deleted successfully")
	return nil
}

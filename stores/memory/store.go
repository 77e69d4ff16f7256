package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

// memStore keeps designs in a map keyed by owner, then design id.
type memStore struct {
	mu      sync.RWMutex
	designs map[string]map[string]*core.Design
	now     func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		designs: make(map[string]map[string]*core.Design),
		now:     time.Now,
	}
}

func clone(d *core.Design) *core.Design {
	c := *d
	c.CanvasDocument.Objects = append([]core.DrawableObject(nil), d.CanvasDocument.Objects...)
	return &c
}

// List returns metadata for all designs owned by a user, newest first.
func (s *memStore) List(ctx context.Context, ownerID string) ([]*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.designs[ownerID]
	designs := make([]*core.Design, 0, len(owned))
	for _, d := range owned {
		// the list view carries no document
		designs = append(designs, &core.Design{
			DesignID:     d.DesignID,
			OwnerUserID:  d.OwnerUserID,
			Name:         d.Name,
			GarmentColor: d.GarmentColor,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}
	sort.Slice(designs, func(i, j int) bool { return designs[i].UpdatedAt.After(designs[j].UpdatedAt) })

	logrus.WithField("user_id", ownerID).Infof("Listed %d designs", len(designs))
	return designs, nil
}

// Get returns a single design, ensuring it belongs to the user.
func (s *memStore) Get(ctx context.Context, ownerID, designID string) (*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID})
	d, ok := s.designs[ownerID][designID]
	if !ok {
		log.Warn("Design not found for user")
		return nil, fmt.Errorf("design %s: %w", designID, core.ErrNotFound)
	}

	log.Info("Design retrieved successfully")
	return clone(d), nil
}

// Save creates or updates a design for its owner.
func (s *memStore) Save(ctx context.Context, design *core.Design) (bool, error) {
	if design.OwnerUserID == "" {
		return false, fmt.Errorf("owner id cannot be empty")
	}
	if design.DesignID == "" {
		return false, fmt.Errorf("design id cannot be empty for save operation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": design.OwnerUserID, "design_id": design.DesignID})

	owned, ok := s.designs[design.OwnerUserID]
	if !ok {
		owned = make(map[string]*core.Design)
		s.designs[design.OwnerUserID] = owned
	}

	now := s.now().UTC()
	existing, exists := owned[design.DesignID]
	if exists {
		design.CreatedAt = existing.CreatedAt
	} else {
		design.CreatedAt = now
	}
	design.UpdatedAt = now

	owned[design.DesignID] = clone(design)
	log.Info("Design saved successfully")
	return !exists, nil
}

// Delete removes a design, ensuring it belongs to the user.
func (s *memStore) Delete(ctx context.Context, ownerID, designID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": ownerID, "design_id": designID})
	if _, ok := s.designs[ownerID][designID]; !ok {
		log.Warn("Design not found for deletion")
		return fmt.Errorf("design %s: %w", designID, core.ErrNotFound)
	}

	delete(s.designs[ownerID], designID)
	log.Info("Design deleted successfully")
	return nil
}

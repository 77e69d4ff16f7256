package revisions

import (
	"encoding/json"
	"errors"
	"net/http"

	"tshirt-studio/core"
	"tshirt-studio/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// RevisionResponse is a single revision with its document inlined.
type RevisionResponse struct {
	ID             string          `json:"id"`
	DesignID       string          `json:"designId"`
	Name           string          `json:"name"`
	CreatedAt      int64           `json:"createdAt"`
	CanvasDocument json.RawMessage `json:"canvasDocument"`
}

// HandleListRevisions lists the stored revisions of a design, newest first
func HandleListRevisions(store core.RevisionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.OwnerID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}
		designID := chi.URLParam(r, "designId")

		revisions, err := store.ListRevisions(r.Context(), ownerID, designID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"userID":   ownerID,
				"designID": designID,
			}).Error("Failed to list revisions")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list revisions"})
			return
		}

		if revisions == nil {
			revisions = []core.Revision{}
		}
		for i := range revisions {
			revisions[i].Data = nil
		}

		render.JSON(w, r, revisions)
	}
}

// HandleGetRevision retrieves a specific revision
func HandleGetRevision(store core.RevisionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := middleware.OwnerID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}
		revisionID := chi.URLParam(r, "revisionId")

		rev, err := store.GetRevision(r.Context(), ownerID, revisionID)
		if err != nil {
			log := logrus.WithFields(logrus.Fields{
				"error":      err,
				"userID":     ownerID,
				"revisionID": revisionID,
			})
			if errors.Is(err, core.ErrNotFound) {
				log.Warn("Revision not found")
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Revision not found"})
				return
			}
			log.Error("Failed to get revision")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get revision"})
			return
		}

		render.JSON(w, r, RevisionResponse{
			ID:             rev.ID,
			DesignID:       rev.DesignID,
			Name:           rev.Name,
			CreatedAt:      rev.CreatedAt,
			CanvasDocument: json.RawMessage(rev.Data),
		})
	}
}

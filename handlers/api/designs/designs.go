package designs

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"tshirt-studio/codec"
	"tshirt-studio/compositor"
	"tshirt-studio/core"
	"tshirt-studio/middleware"
	"tshirt-studio/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxDocumentSize bounds a PUT body.
const maxDocumentSize = 10 << 20

type (
	SaveDesignRequest struct {
		Name           string          `json:"name"`
		CanvasDocument json.RawMessage `json:"canvasDocument"`
	}

	SaveDesignResponse struct {
		DesignID  string    `json:"designId"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Notifier is told about every stored design.
	Notifier interface {
		DesignSaved(designID string, updatedAt time.Time)
	}
)

func requestOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := middleware.OwnerID(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return "", false
	}
	return ownerID, true
}

func designParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	designID := chi.URLParam(r, "designId")
	if err := uuid.Validate(designID); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Design id must be a UUID"})
		return "", false
	}
	return designID, true
}

func HandleListDesigns(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requestOwner(w, r)
		if !ok {
			return
		}

		designs, err := store.List(r.Context(), ownerID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": ownerID,
			}).Error("Failed to list designs")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list designs"})
			return
		}

		if designs == nil {
			designs = []*core.Design{}
		}

		render.JSON(w, r, designs)
	}
}

func HandleGetDesign(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requestOwner(w, r)
		if !ok {
			return
		}
		designID, ok := designParam(w, r)
		if !ok {
			return
		}

		design, err := store.Get(r.Context(), ownerID, designID)
		if err != nil {
			writeStoreError(w, r, err, ownerID, designID, "Failed to get design")
			return
		}

		render.JSON(w, r, design)
	}
}

// HandleSaveDesign creates or updates a design. The document is validated
// before anything is stored; the garment color is taken from its
// background.
func HandleSaveDesign(store stores.Store, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requestOwner(w, r)
		if !ok {
			return
		}
		designID, ok := designParam(w, r)
		if !ok {
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize+1))
		if err != nil || len(body) > maxDocumentSize {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		var req SaveDesignRequest
		if err := json.Unmarshal(body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		doc, err := codec.Unmarshal(req.CanvasDocument)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"userID":   ownerID,
				"designID": designID,
			}).Warn("Rejected canvas document")
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		color := doc.Background
		if color == "" {
			color = core.DefaultGarmentColor
		}
		name := req.Name
		if name == "" {
			name = core.DefaultDesignName
		}

		design := &core.Design{
			DesignID:       designID,
			OwnerUserID:    ownerID,
			Name:           name,
			GarmentColor:   color,
			CanvasDocument: doc,
		}
		created, err := store.Save(r.Context(), design)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"userID":   ownerID,
				"designID": designID,
			}).Error("Failed to save design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save design"})
			return
		}

		logrus.WithFields(logrus.Fields{
			"userID":   ownerID,
			"designID": designID,
			"created":  created,
			"objects":  len(doc.Objects),
		}).Info("Design saved")

		if notifier != nil {
			notifier.DesignSaved(designID, design.UpdatedAt)
		}

		if created {
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, SaveDesignResponse{DesignID: designID, UpdatedAt: design.UpdatedAt})
	}
}

func HandleDeleteDesign(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requestOwner(w, r)
		if !ok {
			return
		}
		designID, ok := designParam(w, r)
		if !ok {
			return
		}

		if err := store.Delete(r.Context(), ownerID, designID); err != nil {
			writeStoreError(w, r, err, ownerID, designID, "Failed to delete design")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandlePreview renders the stored design over its garment as a PNG.
func HandlePreview(store stores.Store, comp *compositor.Compositor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requestOwner(w, r)
		if !ok {
			return
		}
		designID, ok := designParam(w, r)
		if !ok {
			return
		}

		design, err := store.Get(r.Context(), ownerID, designID)
		if err != nil {
			writeStoreError(w, r, err, ownerID, designID, "Failed to get design")
			return
		}

		doc := design.CanvasDocument
		if doc.Background == "" {
			doc.Background = design.GarmentColor
		}

		var buf bytes.Buffer
		if err := comp.WritePreviewPNG(r.Context(), &buf, doc); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"userID":   ownerID,
				"designID": designID,
			}).Error("Failed to render preview")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to render preview"})
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(buf.Bytes())
	}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error, ownerID, designID, msg string) {
	fields := logrus.Fields{
		"error":    err,
		"userID":   ownerID,
		"designID": designID,
	}
	if errors.Is(err, core.ErrNotFound) {
		logrus.WithFields(fields).Warn(msg)
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Design not found"})
		return
	}
	logrus.WithFields(fields).Error(msg)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, map[string]string{"error": msg})
}

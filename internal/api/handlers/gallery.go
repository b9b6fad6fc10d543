package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/idscan/internal/gallery"
	"github.com/your-org/idscan/internal/scan"
	"github.com/your-org/idscan/internal/storage"
	"github.com/your-org/idscan/pkg/dto"
)

// SavedFunc is called after the gallery was written to durable storage.
type SavedFunc func(backend string, records int, savedAt time.Time)

type GalleryHandler struct {
	store   *gallery.Store
	svc     *scan.Service
	backend string
	onSaved SavedFunc
}

func NewGalleryHandler(store *gallery.Store, svc *scan.Service, backend string, onSaved SavedFunc) *GalleryHandler {
	return &GalleryHandler{store: store, svc: svc, backend: backend, onSaved: onSaved}
}

// Groups lists group names, optionally filtered by the q substring.
func (h *GalleryHandler) Groups(c *gin.Context) {
	groups := h.store.SearchGroups(c.Query("q"))
	c.JSON(http.StatusOK, dto.GroupListResponse{Groups: groups, Total: len(groups)})
}

// Labels lists the labels of one group, optionally filtered by q.
func (h *GalleryHandler) Labels(c *gin.Context) {
	group := c.Param("group")
	labels := h.store.SearchLabels(group, c.Query("q"))
	c.JSON(http.StatusOK, dto.LabelListResponse{Group: group, Labels: labels, Total: len(labels)})
}

func (h *GalleryHandler) Profile(c *gin.Context) {
	rec, ok := h.store.Find(c.Param("label"), c.Param("group"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "face not found"})
		return
	}
	c.JSON(http.StatusOK, dto.NewProfile(rec))
}

func (h *GalleryHandler) List(c *gin.Context) {
	records := h.store.Records()
	resp := dto.GalleryResponse{Records: make([]dto.ProfileResponse, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, dto.NewProfile(r))
		resp.Descriptors += len(r.Descriptors)
	}
	resp.Total = len(resp.Records)
	c.JSON(http.StatusOK, resp)
}

// Upsert enrols faces from an uploaded image (multipart) or from descriptors
// (JSON). The gallery is only written to storage by Flush.
func (h *GalleryHandler) Upsert(c *gin.Context) {
	var req dto.FaceRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	enroll := scan.EnrollRequest{Label: req.Label, FullName: req.FullName, Group: req.Group}

	var (
		res scan.EnrollResult
		err error
	)
	if isMultipart(c) {
		img, uerr := readUpload(c, "image")
		if uerr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": uerr.Error()})
			return
		}
		res, err = h.svc.EnrollImage(c.Request.Context(), enroll, img)
	} else {
		res, err = h.svc.EnrollDescriptors(enroll, req.Descriptors)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.FaceResponse{Created: res.Created, Faces: res.Faces, Message: res.Message})
}

// Flush writes the gallery to the configured backend.
func (h *GalleryHandler) Flush(c *gin.Context) {
	out := h.store.Flush(c.Request.Context())
	if !out.Success {
		c.JSON(http.StatusBadGateway, out)
		return
	}
	if h.onSaved != nil {
		h.onSaved(h.backend, h.store.Len(), time.Now())
	}
	c.JSON(http.StatusOK, out)
}

// Reload replaces the gallery with the durable copy.
func (h *GalleryHandler) Reload(c *gin.Context) {
	out := h.store.Load(c.Request.Context())
	if !out.Success {
		c.JSON(http.StatusBadGateway, out)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Import replaces the in-memory gallery with an uploaded JSON gallery file.
func (h *GalleryHandler) Import(c *gin.Context) {
	data, err := readUpload(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, err := storage.Decode(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, storage.Outcome{
			Success: false,
			Message: "Failed to import face data. Error: " + err.Error(),
		})
		return
	}
	h.store.Replace(records)
	c.JSON(http.StatusOK, storage.Outcome{
		Success: true,
		Message: fmt.Sprintf("Imported %d known faces. Save to persist them.", h.store.Len()),
	})
}

// Export downloads the in-memory gallery as a JSON gallery file.
func (h *GalleryHandler) Export(c *gin.Context) {
	data, err := storage.Encode(h.store.Records())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+storage.RemoteFileName+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

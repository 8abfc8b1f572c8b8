package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/hongminglow/bountyboard/internal/http/respond"
	"github.com/hongminglow/bountyboard/internal/logging"
	"github.com/hongminglow/bountyboard/internal/marketplace"
	"github.com/hongminglow/bountyboard/internal/middleware"
	"github.com/hongminglow/bountyboard/internal/models"
	"github.com/hongminglow/bountyboard/internal/models/dto"
	"github.com/hongminglow/bountyboard/internal/uploads"
)

const presignTTL = 15 * time.Minute

// UploadHandler stores submission attachments in object storage.
type UploadHandler struct {
	objects uploads.ObjectStore
	svc     *marketplace.Service
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(objects uploads.ObjectStore, svc *marketplace.Service) *UploadHandler {
	return &UploadHandler{objects: objects, svc: svc}
}

// Register attaches upload routes to the router.
func (h *UploadHandler) Register(r *mux.Router) {
	r.HandleFunc("/uploads", middleware.RequireAuth(h.upload)).Methods(http.MethodPost)
	r.HandleFunc("/uploads/url", middleware.RequireAuth(h.url)).Methods(http.MethodGet)
}

func (h *UploadHandler) upload(w http.ResponseWriter, r *http.Request) {
	if caller(r).Role != models.RoleFreelancer {
		respond.Error(w, http.StatusForbidden, "only freelancers upload deliverables")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "file must be at most 10 MiB")
			return
		}
		respond.Error(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer file.Close()

	if header.Size > uploads.MaxSize {
		respond.Error(w, http.StatusRequestEntityTooLarge, "file must be at most 10 MiB")
		return
	}
	head := make([]byte, uploads.SniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		respond.Error(w, http.StatusBadRequest, "could not read the uploaded file")
		return
	}
	contentType, err := uploads.Sniff(head[:n], header.Header.Get("Content-Type"))
	if err != nil {
		respond.Error(w, http.StatusUnsupportedMediaType, uploads.ErrUnsupportedType.Error())
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respond.Error(w, http.StatusBadRequest, "could not read the uploaded file")
		return
	}

	key := uploads.NewKey(header.Filename)
	if err := h.objects.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		if errors.Is(err, uploads.ErrNotConfigured) {
			respond.Error(w, http.StatusServiceUnavailable, "uploads are not configured")
			return
		}
		logging.FromContext(r.Context()).WithError(err).Error("store upload")
		respond.Error(w, http.StatusBadGateway, "could not store the file, please try again")
		return
	}
	respond.JSON(w, http.StatusCreated, "uploaded", dto.UploadResponse{Key: key, Size: header.Size, ContentType: contentType})
}

func (h *UploadHandler) url(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if !uploads.ValidKey(key) {
		respond.Error(w, http.StatusBadRequest, "invalid key")
		return
	}
	submissionID, err := strconv.ParseInt(r.URL.Query().Get("submission_id"), 10, 64)
	if err != nil || submissionID <= 0 {
		respond.Error(w, http.StatusBadRequest, "submission_id is required")
		return
	}
	if err := h.svc.AuthorizeAttachment(r.Context(), caller(r), submissionID, key); err != nil {
		respond.Fail(w, r, err)
		return
	}
	link, err := h.objects.PresignGet(r.Context(), key, presignTTL)
	if err != nil {
		if errors.Is(err, uploads.ErrNotConfigured) {
			respond.Error(w, http.StatusServiceUnavailable, "uploads are not configured")
			return
		}
		logging.FromContext(r.Context()).WithError(err).Error("presign upload")
		respond.Error(w, http.StatusBadGateway, "could not create a download link")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", map[string]any{"url": link, "expires_in": int(presignTTL.Seconds())})
}

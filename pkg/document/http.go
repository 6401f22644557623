package document

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/docledger/middleware/pkg/app/errors"
	apphttp "github.com/docledger/middleware/pkg/app/http"
	"github.com/docledger/middleware/pkg/auth"
)

// jsonBodyLimit bounds the JSON bodies of the non-upload routes.
const jsonBodyLimit = 1 << 20

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service        Service
	maxUploadBytes int64
	logger         *zap.Logger
}

// RegisterRoutes registers the document endpoints on the given chi router.
// The router is expected to already carry the authentication gate.
func RegisterRoutes(r chi.Router, service Service, maxUploadBytes int64, logger *zap.Logger) {
	h := &HTTP{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}

	r.Post("/upload", apphttp.HandleError(h.upload))
	r.Post("/incrementAllowedUploads", apphttp.HandleError(h.incrementAllowedUploads))
	r.Post("/deleteDocument", apphttp.HandleError(h.deleteDocument))
	r.Get("/getAllDocuments", apphttp.HandleError(h.getAllDocuments))
	r.Get("/getUploadedDocumentCount", apphttp.HandleError(h.getUploadedDocumentCount))
	r.Get("/getAllowedUploads", apphttp.HandleError(h.getAllowedUploads))
}

// upload handles the multipart document upload.
func (h *HTTP) upload(w http.ResponseWriter, r *http.Request) error {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "Authentication failed")
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return apperrors.BadRequestError(err, "invalid multipart body or file too large")
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return apperrors.BadRequestError(err, "file is required")
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read file")
	}

	req := &UploadRequest{
		FileBytes:       fileBytes,
		Name:            r.FormValue("name"),
		Description:     r.FormValue("description"),
		ContractAddress: r.FormValue("contractAddress"),
	}

	result, err := h.service.Upload(r.Context(), session, req)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, result)
	return nil
}

func (h *HTTP) incrementAllowedUploads(w http.ResponseWriter, r *http.Request) error {
	var req IncrementRequest
	if err := h.decodeJSON(r, &req); err != nil {
		return err
	}

	result, err := h.service.IncrementAllowedUploads(r.Context(), &req)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, result)
	return nil
}

func (h *HTTP) deleteDocument(w http.ResponseWriter, r *http.Request) error {
	var req DeleteRequest
	if err := h.decodeJSON(r, &req); err != nil {
		return err
	}

	result, err := h.service.DeleteDocument(r.Context(), &req)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, result)
	return nil
}

func (h *HTTP) getAllDocuments(w http.ResponseWriter, r *http.Request) error {
	documents, err := h.service.AllDocuments(r.Context(), r.URL.Query().Get("userAddress"))
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"documents": documents})
	return nil
}

func (h *HTTP) getUploadedDocumentCount(w http.ResponseWriter, r *http.Request) error {
	count, err := h.service.UploadedDocumentCount(r.Context(), r.URL.Query().Get("userAddress"))
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"count": count})
	return nil
}

func (h *HTTP) getAllowedUploads(w http.ResponseWriter, r *http.Request) error {
	allowed, err := h.service.AllowedUploads(r.Context(), r.URL.Query().Get("userAddress"))
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"allowedUploads": allowed})
	return nil
}

func (h *HTTP) decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, jsonBodyLimit))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}

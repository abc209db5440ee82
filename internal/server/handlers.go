package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/specsheet/internal/config"
	"github.com/hyperjump/specsheet/internal/extract"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/internal/sheet"
	"github.com/hyperjump/specsheet/internal/storage"
	"go.uber.org/zap"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultPageSize = 50
	maxPageSize     = 500
)

var errNoFiles = errors.New("no files uploaded")

// statusFor maps pipeline and storage errors to HTTP status codes.
func statusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, errNoFiles):
		return http.StatusBadRequest
	case errors.As(err, &tooBig), errors.Is(err, extract.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, extract.ErrNotPDF), errors.Is(err, extract.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// readUploads reads every file of the multipart "files" (or "file") field, in form order.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]models.DocumentInput, error) {
	limit := s.config.Server.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, fmt.Errorf("upload exceeds %d MB: %w", s.config.Server.MaxUploadMB, err)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, errNoFiles
		}
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	headers = append(headers, r.MultipartForm.File["file"]...)
	docs := make([]models.DocumentInput, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		docs = append(docs, models.DocumentInput{Name: filepath.Base(fh.Filename), Content: content})
	}
	if len(docs) == 0 {
		return nil, errNoFiles
	}
	return docs, nil
}

// convertUploads processes and stores the uploaded documents as one batch.
func (s *Server) convertUploads(w http.ResponseWriter, r *http.Request) (*models.Batch, error) {
	docs, err := s.readUploads(w, r)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("extract request", zap.Int("documents", len(docs)))
	batch, err := s.processor.Process(r.Context(), docs)
	if err != nil {
		return nil, err
	}
	if len(docs) == 1 {
		batch.Name = docs[0].Name
	} else {
		batch.Name = fmt.Sprintf("%s and %d more", docs[0].Name, len(docs)-1)
	}
	if err := s.storage.CreateBatch(r.Context(), batch); err != nil {
		return nil, fmt.Errorf("store batch: %w", err)
	}
	return batch, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, "")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	batch, err := s.convertUploads(w, r)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("upload failed", zap.Error(err))
		}
		s.renderIndex(w, r, status, err.Error())
		return
	}
	http.Redirect(w, r, "/batches/"+batch.ID, http.StatusSeeOther)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	batch, err := s.storage.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			s.renderIndex(w, r, status, "batch not found")
			return
		}
		s.logger.Error("preview failed", zap.Error(err))
		s.renderIndex(w, r, status, err.Error())
		return
	}
	s.render(w, http.StatusOK, "preview.html", newPreviewPage(batch, s.config.Export.DefaultFileName))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	batch, err := s.storage.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	buf, err := sheet.Write(batch.Columns, batch.Rows, sheet.Options{SheetName: s.config.Export.SheetName})
	if err != nil {
		s.logger.Error("write spreadsheet failed", zap.String("batch", batch.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := sheet.SanitizeFileName(r.URL.Query().Get("name"), s.config.Export.DefaultFileName)
	s.logger.Debug("download", zap.String("batch", batch.ID), zap.String("name", name))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	batch, err := s.convertUploads(w, r)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("extract failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, batch)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	batches, err := s.storage.ListBatches(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list batches failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountBatches(r.Context())
	if err != nil {
		s.logger.Error("count batches failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if batches == nil {
		batches = []*models.BatchSummary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"batches": batches,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.storage.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, batch)
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete batch request", zap.String("id", id))
	if err := s.storage.DeleteBatch(r.Context(), id); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("deletion failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"columns": s.fields.Columns(),
		"fields":  s.fields.Definitions(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchCount, err := s.storage.CountBatches(ctx)
	if err != nil {
		s.logger.Error("status: count batches failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rowCount, err := s.storage.CountRows(ctx)
	if err != nil {
		s.logger.Error("status: count rows failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"batches": batchCount,
		"rows":    rowCount,
	}

	s.configMu.Lock()
	configInfo := map[string]interface{}{
		"extraction_mode":   s.config.Extraction.Mode,
		"collision":         s.config.Extraction.Collision,
		"skip_unreadable":   s.config.Extraction.SkipUnreadable,
		"fields":            len(s.fields.Columns()),
		"database_path":     s.config.Storage.DatabasePath,
		"max_upload_mb":     s.config.Server.MaxUploadMB,
		"watch_directories": s.config.Watch.Directories,
	}
	s.configMu.Unlock()
	if s.watch != nil {
		configInfo["watch_directories"] = s.watch.Directories()
	}
	if diskBytes, err := storage.DiskUsageBytes(storage.DatabaseFiles(s.config.Storage.DatabasePath)...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	dirs := s.watch.Directories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": dirs})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories copies the watcher's roots into the config and saves it when a
// config path is known.
func (s *Server) persistWatchDirectories() {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if s.configPath == "" {
		return
	}
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

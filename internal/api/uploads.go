package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hardbanrecords/hardban-lab/internal/api/middleware"
)

const (
	uploadFormField  = "file"
	multipartMemory  = 8 << 20
	uploadDirPerm    = 0o750
	uploadedFilePerm = 0o640

	uploadURLPrefix       = "/uploads/"
	uploadContentSecurity = "default-src 'none'; sandbox"
)

// allowedUploadTypes maps accepted file extensions onto their media family.
var allowedUploadTypes = map[string]string{ //nolint:gochecknoglobals
	".mp3":  "audio",
	".wav":  "audio",
	".flac": "audio",
	".aac":  "audio",
	".ogg":  "audio",
	".m4a":  "audio",
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".webp": "image",
	".pdf":  "document",
	".epub": "document",
	".docx": "document",
	".txt":  "document",
}

type uploadResponse struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Kind         string `json:"kind"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

// handleUpload stores the multipart "file" field under a generated name in UploadDir.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.UploadMaxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, r, s.logger, PayloadTooLarge(
				"Upload exceeds "+strconv.FormatInt(s.config.UploadMaxBytes, 10)+" bytes"))

			return
		}

		WriteErrorResponse(w, r, s.logger, BadRequest("Request must be multipart/form-data"))

		return
	}

	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(`Missing form field "file"`))

		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))

	kind, ok := allowedUploadTypes[ext]
	if !ok {
		WriteErrorResponse(w, r, s.logger, UnsupportedMediaType("File type "+ext+" is not allowed"))

		return
	}

	id := uuid.NewString()
	name := id + ext

	size, err := s.saveUpload(file, name)
	if err != nil {
		s.logger.Error("Failed to store upload",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("filename", name),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to store upload"))

		return
	}

	s.logger.Info("File uploaded",
		slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		slog.String("upload_id", id),
		slog.String("kind", kind),
		slog.Int64("size", size),
		slog.String("user_id", callerID(r)),
	)

	s.writeJSON(w, r, http.StatusCreated, uploadResponse{
		ID:           id,
		Filename:     name,
		OriginalName: filepath.Base(header.Filename),
		Kind:         kind,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         size,
		URL:          uploadURLPrefix + name,
	})
}

// handleGetUpload serves a stored upload by the name handleUpload returned. Only
// generated names resolve, and files are opened through an os.Root on UploadDir.
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !isUploadName(name) {
		WriteErrorResponse(w, r, s.logger, NotFound("Upload not found"))

		return
	}

	root, err := os.OpenRoot(s.config.UploadDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			WriteErrorResponse(w, r, s.logger, NotFound("Upload not found"))

			return
		}

		s.logger.Error("Failed to open upload dir",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to read upload"))

		return
	}
	defer root.Close()

	file, err := root.Open(name)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, NotFound("Upload not found"))

		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		WriteErrorResponse(w, r, s.logger, NotFound("Upload not found"))

		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", uploadContentSecurity)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	http.ServeContent(w, r, name, info.ModTime(), file)
}

// isUploadName reports whether name has the <uuid><allowed ext> form of stored uploads.
func isUploadName(name string) bool {
	ext := filepath.Ext(name)
	if _, ok := allowedUploadTypes[ext]; !ok {
		return false
	}

	_, err := uuid.Parse(strings.TrimSuffix(name, ext))

	return err == nil && len(name) == len(uuid.Nil.String())+len(ext)
}

func (s *Server) saveUpload(src io.Reader, name string) (int64, error) {
	if err := os.MkdirAll(s.config.UploadDir, uploadDirPerm); err != nil {
		return 0, fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(s.config.UploadDir, name)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, uploadedFilePerm)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", name, err)
	}

	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return 0, fmt.Errorf("failed to write %s: %w", name, err)
	}

	return size, nil
}

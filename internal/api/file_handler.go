package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/service"

	"github.com/gin-gonic/gin"
)

// Search result bounds per request.
const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

// FileHandler exposes a FileManager over HTTP.
type FileHandler struct {
	files          *service.FileManager
	maxUploadBytes int64
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(files *service.FileManager, maxUploadBytes int64) *FileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = service.DefaultMaxUploadBytes
	}
	return &FileHandler{files: files, maxUploadBytes: maxUploadBytes}
}

// --- DTOs ---

// BatchDeleteRequest lists the paths to delete.
type BatchDeleteRequest struct {
	Paths []string `json:"paths" binding:"required"`
}

// CreateDirectoryRequest names the directory to create.
type CreateDirectoryRequest struct {
	Name       string `json:"name" binding:"required"`
	ParentPath string `json:"parentPath"`
}

// MoveRequest names a source and a destination path.
type MoveRequest struct {
	Source      string `json:"source" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Overwrite   bool   `json:"overwrite"`
}

// SearchResponse carries the entries found by a search.
type SearchResponse struct {
	Query     string                `json:"query"`
	Results   []domain.VirtualEntry `json:"results"`
	Truncated bool                  `json:"truncated"`
}

// workspace opens the workspace named by the route and the folder/public
// query parameters, writing the error response on failure.
func (h *FileHandler) workspace(c *gin.Context) (*service.Workspace, bool) {
	public, err := optionalBool(c.Query("public"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "public must be a boolean")
		return nil, false
	}
	ws, err := h.files.Open(c.Request.Context(), pathScope(c), service.WorkspaceOptions{
		Folder: domain.FolderType(c.Query("folder")),
		Public: public,
	})
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return ws, true
}

// List handles GET /files.
func (h *FileHandler) List(c *gin.Context) {
	limit, err := optionalInt(c.Query("limit"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := optionalInt(c.Query("offset"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "offset must be an integer")
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	listing, err := ws.List(c.Request.Context(), service.ListOptions{
		Path:      c.Query("path"),
		FileType:  c.Query("file_type"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Upload handles POST /files/upload (multipart field "file").
func (h *FileHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	public, err := optionalBool(c.PostForm("public"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "public must be a boolean")
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	req, err := h.uploadRequest(fh, c.PostForm("folder_path"), public)
	if err != nil {
		respondError(c, err)
		return
	}

	entry, err := ws.Upload(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// UploadMultiple handles POST /files/upload-multiple (multipart field "files").
func (h *FileHandler) UploadMultiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		abortWithError(c, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}
	public, err := optionalBool(c.PostForm("public"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "public must be a boolean")
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	folderPath := c.PostForm("folder_path")
	reqs := make([]service.UploadRequest, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		req, err := h.uploadRequest(fh, folderPath, public)
		if err != nil {
			respondError(c, err)
			return
		}
		reqs = append(reqs, req)
	}

	result, err := ws.UploadMultiple(c.Request.Context(), reqs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// uploadRequest reads one multipart file, refusing more than the size limit.
func (h *FileHandler) uploadRequest(fh *multipart.FileHeader, folderPath string, public bool) (service.UploadRequest, error) {
	if fh.Size > h.maxUploadBytes {
		return service.UploadRequest{}, domain.NewDomainError(domain.ErrCodeSizeLimitExceeded,
			fh.Filename+" exceeds the maximum upload size", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return service.UploadRequest{}, domain.InvalidPathf("cannot read upload %s: %v", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return service.UploadRequest{}, domain.InvalidPathf("cannot read upload %s: %v", fh.Filename, err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = "" // browsers send this for anything unknown
	}
	return service.UploadRequest{
		Filename:    fh.Filename,
		Content:     content,
		ContentType: contentType,
		FolderPath:  folderPath,
		Public:      public,
	}, nil
}

// Delete handles DELETE /files/*path.
func (h *FileHandler) Delete(c *gin.Context) {
	isDir, err := optionalBool(c.Query("is_directory"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "is_directory must be a boolean")
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.Delete(c.Request.Context(), c.Param("path"), isDir); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BatchDelete handles POST /files/batch-delete.
func (h *FileHandler) BatchDelete(c *gin.Context) {
	var req BatchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	result, err := ws.BatchDelete(c.Request.Context(), req.Paths)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateDirectory handles POST /files/directory.
func (h *FileHandler) CreateDirectory(c *gin.Context) {
	var req CreateDirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	entry, err := ws.CreateDirectory(c.Request.Context(), req.Name, req.ParentPath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Move handles PUT /files/move.
func (h *FileHandler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	report, err := ws.Move(c.Request.Context(), req.Source, req.Destination, service.MoveOptions{Overwrite: req.Overwrite})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Metadata handles GET /files/metadata/*path.
func (h *FileHandler) Metadata(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	entry, err := ws.Metadata(c.Request.Context(), c.Param("path"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Search handles GET /files/search.
func (h *FileHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		abortWithError(c, http.StatusBadRequest, "query is required")
		return
	}
	limit, err := optionalInt(c.Query("limit"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	resp := SearchResponse{Query: query, Results: []domain.VirtualEntry{}}
	for entry, err := range ws.Search(c.Request.Context(), query, c.Query("path")) {
		if err != nil {
			respondError(c, err)
			return
		}
		if len(resp.Results) == limit {
			resp.Truncated = true
			break
		}
		resp.Results = append(resp.Results, entry)
	}
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /files/health.
func (h *FileHandler) Health(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.Health(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "bucket": ws.Bucket()})
}

func optionalBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

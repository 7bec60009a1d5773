package api

import (
	"net/http"

	"polysynergy/file-manager/internal/service"

	"github.com/gin-gonic/gin"
)

// URLHandler exposes the URL refresher.
type URLHandler struct {
	refresher *service.URLRefresher
	files     *service.FileManager
}

// NewURLHandler creates a new URLHandler. Refreshing is limited to the
// buckets of the scope in the route.
func NewURLHandler(refresher *service.URLRefresher, files *service.FileManager) *URLHandler {
	return &URLHandler{refresher: refresher, files: files}
}

// RefreshRequest carries the text whose URLs should be re-signed.
type RefreshRequest struct {
	Text string `json:"text"`
}

// RefreshResponse is the rewritten text and what happened to each URL.
type RefreshResponse struct {
	Text   string                `json:"text"`
	Report service.RefreshReport `json:"report"`
}

// Refresh handles POST /urls/refresh.
func (h *URLHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	scope := pathScope(c)
	// Open only authorizes; no store call is made.
	if _, err := h.files.Open(c.Request.Context(), scope, service.WorkspaceOptions{}); err != nil {
		respondError(c, err)
		return
	}
	buckets, err := h.files.Buckets(scope)
	if err != nil {
		respondError(c, err)
		return
	}

	text, report := h.refresher.RefreshTextIn(c.Request.Context(), req.Text, buckets)
	if report.Outcomes == nil {
		report.Outcomes = []service.URLOutcome{}
	}
	c.JSON(http.StatusOK, RefreshResponse{Text: text, Report: report})
}

package api

import (
	"errors"
	"net/http"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// statusFor maps domain error codes onto HTTP statuses.
func statusFor(code string) int {
	switch code {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeConflict:
		return http.StatusConflict
	case domain.ErrCodePermissionDenied:
		return http.StatusForbidden
	case domain.ErrCodeSizeLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case domain.ErrCodeBatchLimitExceeded, domain.ErrCodeInvalidPath, domain.ErrCodeInvalidIdentifier:
		return http.StatusBadRequest
	case domain.ErrCodeTransientStoreError, domain.ErrCodeCredentialsUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. A partial move also carries
// its report so the client can see what was already written.
func respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := statusFor(code)
	body := gin.H{"error": err.Error(), "code": code}

	var moveErr *service.MoveError
	if errors.As(err, &moveErr) {
		body["phase"] = moveErr.Phase
		body["report"] = moveErr.Report
	}
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("code", code).Msg("request failed")
		if status == http.StatusInternalServerError && moveErr == nil {
			body["error"] = "internal error"
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

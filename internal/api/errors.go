package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/zjrosen/dcmcache/internal/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrDatasetNotFound, http.StatusNotFound, "DATASET_NOT_FOUND"},
	{domain.ErrFileNotFound, http.StatusNotFound, "FILE_NOT_FOUND"},
	{domain.ErrEntityNotFound, http.StatusNotFound, "ENTITY_NOT_FOUND"},
	{domain.ErrEntityAlreadyExists, http.StatusConflict, "ENTITY_ALREADY_EXISTS"},
	{domain.ErrStaleAttach, http.StatusConflict, "ATTACH_DISCARDED"},
	{domain.ErrInvalidFile, http.StatusUnprocessableEntity, "INVALID_FILE"},
	{domain.ErrInvalidImage, http.StatusUnprocessableEntity, "INVALID_IMAGE"},
	{domain.ErrReconstructionFailed, http.StatusBadGateway, "RECONSTRUCTION_FAILED"},
	{domain.ErrConversionFailed, http.StatusBadGateway, "CONVERSION_FAILED"},
	{domain.ErrToolkitInitFailed, http.StatusInternalServerError, "TOOLKIT_INIT_FAILED"},
	{domain.ErrNoCacheDirectory, http.StatusInternalServerError, "NO_CACHE_DIRECTORY"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
}

// statusFor maps err to an HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func writeBadRequest(c *gin.Context, code, msg string, details map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: code, Details: details})
}

// writeBindError reports a request body that failed to decode or validate.
// Validation failures list the offending fields.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
		writeBadRequest(c, "VALIDATION_FAILED", "request validation failed", details)
		return
	}
	writeBadRequest(c, "INVALID_REQUEST", "invalid request body", nil)
}

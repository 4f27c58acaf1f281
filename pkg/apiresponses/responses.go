/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apiresponses

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/mail"
	"github.com/telekom/autofix-notifier/pkg/system"
)

// APIError represents a standardized error response.
type APIError struct {
	Error         string `json:"error"`
	Code          string `json:"code,omitempty"`
	Details       string `json:"details,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// DispatchResult is returned for every accepted notification request.
type DispatchResult struct {
	Status        string `json:"status"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// RespondBadRequest sends a 400 Bad Request response.
// Use this for client errors like malformed JSON or invalid parameters.
func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, APIError{
		Error:         message,
		Code:          "BAD_REQUEST",
		CorrelationID: c.GetString(system.CorrelationIDKey),
	})
}

// RespondBadRequestWithDetails sends a 400 Bad Request with additional details.
func RespondBadRequestWithDetails(c *gin.Context, message, details string) {
	c.JSON(http.StatusBadRequest, APIError{
		Error:         message,
		Code:          "BAD_REQUEST",
		Details:       details,
		CorrelationID: c.GetString(system.CorrelationIDKey),
	})
}

// RespondUnprocessableEntity sends a 422 Unprocessable Entity response.
// Use this when the request body is syntactically correct but semantically invalid.
func RespondUnprocessableEntity(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, APIError{
		Error:         message,
		Code:          "UNPROCESSABLE_ENTITY",
		CorrelationID: c.GetString(system.CorrelationIDKey),
	})
}

// RespondInternalError sends a 500 Internal Server Error response.
// It logs the error with full details but returns a sanitized message to the client.
func RespondInternalError(c *gin.Context, operation string, err error, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw(fmt.Sprintf("Failed to %s", operation), "error", err)
	}
	c.JSON(http.StatusInternalServerError, APIError{
		Error:         fmt.Sprintf("failed to %s", operation),
		Code:          "INTERNAL_ERROR",
		CorrelationID: c.GetString(system.CorrelationIDKey),
	})
}

// RespondBadGateway sends a 502 Bad Gateway response.
// Used when the mail service rejects or cannot be reached.
func RespondBadGateway(c *gin.Context, message string) {
	if message == "" {
		message = "bad gateway"
	}
	c.JSON(http.StatusBadGateway, APIError{
		Error:         message,
		Code:          "BAD_GATEWAY",
		CorrelationID: c.GetString(system.CorrelationIDKey),
	})
}

// RespondDispatchError maps a dispatch failure to a response. Missing
// templates are the caller's problem (422), delivery failures are upstream
// problems (502), everything else is internal.
func RespondDispatchError(c *gin.Context, operation string, err error, log *zap.SugaredLogger) {
	switch {
	case errors.Is(err, mail.ErrTemplateNotFound):
		RespondUnprocessableEntity(c, err.Error())
	case errors.Is(err, mail.ErrDeliveryFailed):
		if log != nil {
			log.Warnw(fmt.Sprintf("Failed to %s", operation), "error", err)
		}
		RespondBadGateway(c, fmt.Sprintf("failed to %s: mail service rejected the message", operation))
	default:
		RespondInternalError(c, operation, err, log)
	}
}

// RespondSent sends a 200 OK dispatch result.
func RespondSent(c *gin.Context) {
	c.JSON(http.StatusOK, DispatchResult{
		Status:        "sent",
		CorrelationID: c.GetString(system.CorrelationIDKey),
	})
}

// RespondOK sends a 200 OK response with the given data.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

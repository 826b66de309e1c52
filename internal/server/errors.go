package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/byteedu/internal/governance"
	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/MarcoPoloResearchLab/byteedu/internal/users"
	"github.com/MarcoPoloResearchLab/byteedu/internal/verification"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type codedError interface {
	Code() string
}

// respondError maps domain errors onto status codes. Anything unrecognised
// is logged and reported as an internal error.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var validationErr *records.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "field": validationErr.Field, "reason": validationErr.Reason})
	case errors.Is(err, verification.ErrInvalidSubmission),
		errors.Is(err, governance.ErrInvalidBallot),
		errors.Is(err, users.ErrInvalidDID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "reason": err.Error()})
	case errors.Is(err, governance.ErrUnknownProposal):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_proposal"})
	case errors.Is(err, governance.ErrProposalClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "proposal_closed"})
	case errors.Is(err, governance.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient_balance", "reason": err.Error()})
	default:
		payload := gin.H{"error": "internal_error"}
		var coded codedError
		if errors.As(err, &coded) {
			payload["code"] = coded.Code()
		}
		h.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, payload)
	}
}

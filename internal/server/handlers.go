package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/governance"
	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/MarcoPoloResearchLab/byteedu/internal/scoring"
	"github.com/MarcoPoloResearchLab/byteedu/internal/verification"
	"github.com/gin-gonic/gin"
)

type balancePayload struct {
	Balance int64 `json:"balance"`
}

type amountPayload struct {
	Amount *int64 `json:"amount"`
}

type castVotePayload struct {
	Amount int64  `json:"amount"`
	Choice string `json:"choice"`
}

type streamEventPayload struct {
	Collections []string `json:"collections,omitempty"`
	Timestamp   string   `json:"timestamp"`
	Source      string   `json:"source"`
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	profile, err := h.store.Profile(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var patch records.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	profile, err := h.store.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleTokenBalance(c *gin.Context) {
	balance, err := h.store.TokenBalance(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balancePayload{Balance: balance})
}

func (h *httpHandler) handleSetTokenBalance(c *gin.Context) {
	var request balancePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	balance, err := h.store.SetTokenBalance(c.Request.Context(), request.Balance)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balancePayload{Balance: balance})
}

func (h *httpHandler) handleAddTokens(c *gin.Context) {
	h.adjustTokens(c, h.store.AddTokens)
}

func (h *httpHandler) handleDeductTokens(c *gin.Context) {
	h.adjustTokens(c, h.store.DeductTokens)
}

func (h *httpHandler) adjustTokens(c *gin.Context, adjust func(context.Context, int64) (int64, error)) {
	var request amountPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Amount == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	balance, err := adjust(c.Request.Context(), *request.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balancePayload{Balance: balance})
}

func (h *httpHandler) handleBadges(c *gin.Context) {
	badges, err := h.store.Badges(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": badges})
}

func (h *httpHandler) handleEarnBadge(c *gin.Context) {
	badge, found, err := h.store.EarnBadge(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_badge"})
		return
	}
	c.JSON(http.StatusOK, badge)
}

func (h *httpHandler) handleResetBadges(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.store.ResetBadges(ctx); err != nil {
		h.respondError(c, err)
		return
	}
	badges, err := h.store.Badges(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"badges": badges})
}

func (h *httpHandler) handleContributions(c *gin.Context) {
	contributions, err := h.store.Contributions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	filter := strings.TrimSpace(c.Query("type"))
	if filter != "" && !strings.EqualFold(filter, "all") {
		kind, ok := records.ParseContributionType(filter)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "field": "type"})
			return
		}
		matching := make([]records.Contribution, 0, len(contributions))
		for _, contribution := range contributions {
			if contribution.Type == kind {
				matching = append(matching, contribution)
			}
		}
		contributions = matching
	}
	c.JSON(http.StatusOK, gin.H{"contributions": contributions})
}

func (h *httpHandler) handleAddContribution(c *gin.Context) {
	var contribution records.Contribution
	if err := c.ShouldBindJSON(&contribution); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.store.AddContribution(c.Request.Context(), contribution); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contribution)
}

func (h *httpHandler) handleVotes(c *gin.Context) {
	votes, err := h.store.Votes(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}

func (h *httpHandler) handleAddVote(c *gin.Context) {
	var vote records.Vote
	if err := c.ShouldBindJSON(&vote); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.store.AddVote(c.Request.Context(), vote); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vote)
}

func (h *httpHandler) handleSubmitVerification(c *gin.Context) {
	var submission verification.Submission
	if err := c.ShouldBindJSON(&submission); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	receipt, err := h.verification.Submit(c.Request.Context(), submission)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *httpHandler) handleProposals(c *gin.Context) {
	filter := governance.Filter{Category: c.Query("category")}
	for name, target := range map[string]*int{"page": &filter.Page, "per_page": &filter.PerPage} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "field": name})
			return
		}
		*target = value
	}
	page, err := h.governance.Proposals(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleCastVote(c *gin.Context) {
	proposalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "field": "id"})
		return
	}
	var request castVotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	receipt, err := h.governance.CastVote(c.Request.Context(), governance.Ballot{
		ProposalID: proposalID,
		Amount:     request.Amount,
		Choice:     request.Choice,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *httpHandler) handlePassport(c *gin.Context) {
	snapshot, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scoring.Summarize(snapshot))
}

func (h *httpHandler) handleStudents(c *gin.Context) {
	students, err := h.roster.Students(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *httpHandler) handleInitializeStorage(c *gin.Context) {
	result, err := h.store.InitializeStorage(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"previousVersion": result.PreviousVersion,
		"badgesRefreshed": result.BadgesRefreshed,
		"seeded":          result.Seeded,
	})
}

// handleStream relays realtime messages for the signed-in DID as
// server-sent events, with periodic heartbeats.
func (h *httpHandler) handleStream(c *gin.Context) {
	did := c.GetString(didContextKey)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, did)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, streamEventPayload{
				Collections: message.Collections,
				Timestamp:   message.Timestamp.UTC().Format(time.RFC3339),
				Source:      realtimeSourceBackend,
			})
			return true
		case now := <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, streamEventPayload{
				Timestamp: now.UTC().Format(time.RFC3339),
				Source:    realtimeSourceBackend,
			})
			return true
		}
	})
}

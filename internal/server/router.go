package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/auth"
	"github.com/MarcoPoloResearchLab/byteedu/internal/governance"
	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/MarcoPoloResearchLab/byteedu/internal/roster"
	"github.com/MarcoPoloResearchLab/byteedu/internal/users"
	"github.com/MarcoPoloResearchLab/byteedu/internal/verification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const didContextKey = "byteedu_did"

const defaultHeartbeatInterval = 15 * time.Second

var (
	errMissingStore        = errors.New("records store dependency required")
	errMissingVerification = errors.New("verification service dependency required")
	errMissingGovernance   = errors.New("governance service dependency required")
	errMissingRoster       = errors.New("roster dependency required")
	errMissingDirectory    = errors.New("account directory dependency required")
	errMissingTokenIssuer  = errors.New("token issuer dependency required")
	errMissingSessions     = errors.New("session validator dependency required")
	errMissingRealtime     = errors.New("realtime dispatcher dependency required")
)

type SessionIssuer interface {
	Issue(ctx context.Context, identity auth.Identity) (string, int64, error)
}

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

type Dependencies struct {
	Store             *records.Store
	Verification      *verification.Service
	Governance        *governance.Service
	Roster            *roster.Importer
	Directory         *users.Directory
	TokenIssuer       SessionIssuer
	Sessions          SessionValidator
	Realtime          *RealtimeDispatcher
	Metrics           *HTTPMetrics
	MetricsHandler    http.Handler
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Store == nil:
		return nil, errMissingStore
	case deps.Verification == nil:
		return nil, errMissingVerification
	case deps.Governance == nil:
		return nil, errMissingGovernance
	case deps.Roster == nil:
		return nil, errMissingRoster
	case deps.Directory == nil:
		return nil, errMissingDirectory
	case deps.TokenIssuer == nil:
		return nil, errMissingTokenIssuer
	case deps.Sessions == nil:
		return nil, errMissingSessions
	case deps.Realtime == nil:
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.middleware())
	}
	router.Use(corsMiddleware())

	handler := &httpHandler{
		store:        deps.Store,
		verification: deps.Verification,
		governance:   deps.Governance,
		roster:       deps.Roster,
		directory:    deps.Directory,
		tokens:       deps.TokenIssuer,
		sessions:     deps.Sessions,
		realtime:     deps.Realtime,
		heartbeat:    heartbeat,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}
	router.GET("/accounts", handler.handleAccounts)
	router.POST("/session", handler.handleSignIn)
	router.GET("/session", handler.handleSessionStatus)
	router.DELETE("/session", handler.handleSignOut)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/profile", handler.handleProfile)
	protected.PATCH("/profile", handler.handleUpdateProfile)
	protected.GET("/tokens", handler.handleTokenBalance)
	protected.PUT("/tokens", handler.handleSetTokenBalance)
	protected.POST("/tokens/add", handler.handleAddTokens)
	protected.POST("/tokens/deduct", handler.handleDeductTokens)
	protected.GET("/badges", handler.handleBadges)
	protected.POST("/badges/:id/earn", handler.handleEarnBadge)
	protected.POST("/badges/reset", handler.handleResetBadges)
	protected.GET("/contributions", handler.handleContributions)
	protected.POST("/contributions", handler.handleAddContribution)
	protected.GET("/votes", handler.handleVotes)
	protected.POST("/votes", handler.handleAddVote)
	protected.POST("/verifications", handler.handleSubmitVerification)
	protected.GET("/proposals", handler.handleProposals)
	protected.POST("/proposals/:id/votes", handler.handleCastVote)
	protected.GET("/passport", handler.handlePassport)
	protected.GET("/students", handler.handleStudents)
	protected.POST("/storage/initialize", handler.handleInitializeStorage)
	protected.GET("/stream", handler.handleStream)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return true },
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	store        *records.Store
	verification *verification.Service
	governance   *governance.Service
	roster       *roster.Importer
	directory    *users.Directory
	tokens       SessionIssuer
	sessions     SessionValidator
	realtime     *RealtimeDispatcher
	heartbeat    time.Duration
	logger       *zap.Logger
}

type signInRequestPayload struct {
	DID string `json:"did"`
}

type signInResponsePayload struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   int64           `json:"expires_in"`
	TokenType   string          `json:"token_type"`
	Profile     records.Profile `json:"profile"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"accounts": h.directory.Accounts()})
}

func (h *httpHandler) handleSignIn(c *gin.Context) {
	var request signInRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.DID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	account, err := h.directory.Resolve(request.DID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	user := account.Profile(users.CurrentSemester)
	if account.Address != "" {
		student, found, err := h.roster.Lookup(ctx, account.Address)
		if err != nil {
			h.logger.Error("roster lookup failed", zap.String("address", account.Address), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "roster_unavailable"})
			return
		}
		if found {
			user.Region = student.Region
		}
	}
	profile, err := h.store.SetCurrentUser(ctx, user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, expiresIn, err := h.tokens.Issue(ctx, auth.Identity{DID: profile.DID, DisplayName: profile.Name})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, int(expiresIn), "/", "", false, true)
	c.JSON(http.StatusOK, signInResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Profile:     profile,
	})
}

func (h *httpHandler) handleSessionStatus(c *gin.Context) {
	ctx := c.Request.Context()
	authenticated, err := h.store.IsAuthenticated(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	claims, tokenErr := h.sessions.ValidateRequest(c.Request)
	if !authenticated || tokenErr != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	currentUser, err := h.store.CurrentUser(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "did": claims.DID, "currentUser": currentUser})
}

func (h *httpHandler) handleSignOut(c *gin.Context) {
	if err := h.store.Logout(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.SetCookie(h.sessions.CookieName(), "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// authorizeRequest admits requests carrying a valid session token while the
// store still reports a signed-in student.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Debug("session validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	authenticated, err := h.store.IsAuthenticated(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		c.Abort()
		return
	}
	if !authenticated {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signed_out"})
		return
	}
	c.Set(didContextKey, claims.DID)
	c.Next()
}

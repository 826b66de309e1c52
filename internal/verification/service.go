// Package verification turns an uploaded achievement into a verified
// contribution and pays out its token reward.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/byteedu/internal/records"
	"github.com/MarcoPoloResearchLab/byteedu/internal/scoring"
	"go.uber.org/zap"
)

const maxFileNameLength = 255

var (
	// ErrInvalidSubmission reports a submission rejected before scoring.
	ErrInvalidSubmission = errors.New("verification: invalid submission")

	errMissingStore      = errors.New("records store is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "verification.service.new"
	opSubmit     = "verification.submit"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

type ServiceConfig struct {
	Store      *records.Store
	Roller     scoring.Roller
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Submission is an uploaded file awaiting verification.
type Submission struct {
	FileName string `json:"fileName"`
	Type     string `json:"type"`
}

// Receipt describes a completed verification.
type Receipt struct {
	Contribution  records.Contribution `json:"contribution"`
	TokensAwarded int64                `json:"tokensAwarded"`
	Balance       int64                `json:"balance"`
	TxHash        string               `json:"txHash"`
	BadgeEligible bool                 `json:"badgeEligible"`
}

type Service struct {
	store      *records.Store
	roller     scoring.Roller
	idProvider IDProvider
	clock      func() time.Time
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	roller := cfg.Roller
	if roller == nil {
		roller = scoring.NewRandomRoller()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = cfg.Store.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:      cfg.Store,
		roller:     roller,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Submit scores the submission, records it as a verified contribution and
// credits the reward.
func (s *Service) Submit(ctx context.Context, submission Submission) (Receipt, error) {
	fileName := strings.TrimSpace(submission.FileName)
	if fileName == "" {
		return Receipt{}, fmt.Errorf("%w: file name is required", ErrInvalidSubmission)
	}
	if len(fileName) > maxFileNameLength {
		return Receipt{}, fmt.Errorf("%w: file name exceeds %d characters", ErrInvalidSubmission, maxFileNameLength)
	}
	kind, ok := records.ParseContributionType(submission.Type)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: unknown contribution type %q", ErrInvalidSubmission, submission.Type)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opSubmit, "id_failed", err)
		return Receipt{}, newServiceError(opSubmit, "id_failed", err)
	}
	txHash, err := s.store.Hashes().TxHash()
	if err != nil {
		s.logError(opSubmit, "hash_failed", err)
		return Receipt{}, newServiceError(opSubmit, "hash_failed", err)
	}

	score := scoring.ImpactScore(kind, s.roller)
	reward := scoring.TokenReward(score, s.roller)
	contribution := records.Contribution{
		ID:          id,
		FileName:    fileName,
		Type:        kind,
		UploadDate:  s.clock().UTC(),
		ImpactScore: score,
		Verified:    true,
	}
	if err := s.store.AddContribution(ctx, contribution); err != nil {
		return Receipt{}, err
	}
	balance, err := s.store.AddTokens(ctx, reward)
	if err != nil {
		s.logError(opSubmit, "reward_failed", err, zap.String("contribution_id", id))
		return Receipt{}, err
	}

	s.logger.Info("contribution verified",
		zap.String("contribution_id", id),
		zap.String("type", string(kind)),
		zap.Int("impact_score", score),
		zap.Int64("reward", reward))
	return Receipt{
		Contribution:  contribution,
		TokensAwarded: reward,
		Balance:       balance,
		TxHash:        txHash,
		BadgeEligible: scoring.BadgeEligible(score),
	}, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	if s.logger == nil || err == nil {
		return
	}
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("verification service error", attrs...)
}

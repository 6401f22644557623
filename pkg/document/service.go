package document

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docledger/middleware/internal/metrics"
	apperrors "github.com/docledger/middleware/pkg/app/errors"
	"github.com/docledger/middleware/pkg/auth"
	"github.com/docledger/middleware/pkg/journal"
	"github.com/docledger/middleware/pkg/ledger"
	"github.com/docledger/middleware/pkg/storage"
)

// Registry contract methods.
const (
	methodUpload          = "uploadDocument"
	methodIncrement       = "incrementAllowedUploads"
	methodDelete          = "deleteDocument"
	methodGetAllDocuments = "getAllDocuments"
	methodGetCount        = "getUploadedDocumentCount"
	methodGetAllowed      = "getAllowedUploads"
)

// journalTimeout bounds best-effort journal writes so a slow database never
// stalls a pipeline.
const journalTimeout = 5 * time.Second

// Ledger is the narrow transaction interface the pipelines need. Defined
// here to keep the orchestrator decoupled from the RPC client.
type Ledger interface {
	Estimate(ctx context.Context, call ledger.Call) (ledger.CostEstimate, error)
	Submit(ctx context.Context, call ledger.Call, cost ledger.CostEstimate) (*ledger.Receipt, error)
	Query(ctx context.Context, contract common.Address, method string, args ...interface{}) (interface{}, error)
}

// Service defines the write pipelines and the read-only query façade.
type Service interface {
	Upload(ctx context.Context, session *auth.Session, req *UploadRequest) (*UploadResult, error)
	IncrementAllowedUploads(ctx context.Context, req *IncrementRequest) (*TxResult, error)
	DeleteDocument(ctx context.Context, req *DeleteRequest) (*TxResult, error)

	AllDocuments(ctx context.Context, userAddress string) (interface{}, error)
	UploadedDocumentCount(ctx context.Context, userAddress string) (interface{}, error)
	AllowedUploads(ctx context.Context, userAddress string) (interface{}, error)
}

type docService struct {
	store    storage.Store
	ledger   Ledger
	journal  journal.Store
	registry common.Address
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates the document service. jrnl may be nil when the upload
// journal is not configured.
func NewService(
	store storage.Store,
	ldg Ledger,
	jrnl journal.Store,
	registry common.Address,
	logger *zap.Logger,
) Service {
	return &docService{
		store:    store,
		ledger:   ldg,
		journal:  jrnl,
		registry: registry,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Upload runs the core pipeline: validate, store the bytes, then estimate
// and submit the registry call. Validation failures happen before any
// external call. Once the bytes are stored, every failure carries the
// produced content address so an operator can reconcile orphaned content.
func (s *docService) Upload(
	ctx context.Context,
	session *auth.Session,
	req *UploadRequest,
) (*UploadResult, error) {
	start := time.Now()

	if err := s.validate.Struct(req); err != nil {
		metrics.PipelineRuns.WithLabelValues(methodUpload, "validation_failed").Inc()
		return nil, apperrors.BadRequestError(err, "file, name, description and contractAddress are required")
	}

	runID := uuid.New().String()
	owner := common.HexToAddress(session.AccountAddress)
	// The upload records against the caller-supplied contract; quota and
	// delete calls always target the configured registry.
	target := common.HexToAddress(req.ContractAddress)

	contentAddress, err := s.store.Put(ctx, req.FileBytes)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("store", storeErrorKind(err)).Inc()
		metrics.PipelineRuns.WithLabelValues(methodUpload, "store_failed").Inc()
		s.record(ctx, &journal.Entry{
			RunID:     runID,
			Method:    methodUpload,
			Owner:     session.AccountAddress,
			Stage:     journal.StageStore,
			ErrorKind: storeErrorKind(err),
		})
		return nil, storeFailure(err)
	}
	metrics.StoredBytes.Observe(float64(len(req.FileBytes)))

	call := ledger.NewCall(target, methodUpload, owner, req.Name, req.Description, contentAddress)

	receipt, err := s.estimateAndSubmit(ctx, runID, session.AccountAddress, call, contentAddress)
	if err != nil {
		return nil, err
	}

	metrics.PipelineRuns.WithLabelValues(methodUpload, "ok").Inc()
	metrics.PipelineDuration.WithLabelValues(methodUpload).Observe(time.Since(start).Seconds())

	return &UploadResult{
		Receipt:        receipt,
		ContentAddress: contentAddress,
	}, nil
}

// IncrementAllowedUploads raises a user's quota on the configured registry.
func (s *docService) IncrementAllowedUploads(
	ctx context.Context,
	req *IncrementRequest,
) (*TxResult, error) {
	start := time.Now()

	if err := s.validate.Struct(req); err != nil {
		metrics.PipelineRuns.WithLabelValues(methodIncrement, "validation_failed").Inc()
		return nil, apperrors.BadRequestError(err, "userAddress and a non-zero additionalUploads are required")
	}

	runID := uuid.New().String()
	user := common.HexToAddress(req.UserAddress)
	call := ledger.NewCall(s.registry, methodIncrement, user, new(big.Int).SetUint64(*req.AdditionalUploads))

	receipt, err := s.estimateAndSubmit(ctx, runID, req.UserAddress, call, "")
	if err != nil {
		return nil, err
	}

	metrics.PipelineRuns.WithLabelValues(methodIncrement, "ok").Inc()
	metrics.PipelineDuration.WithLabelValues(methodIncrement).Observe(time.Since(start).Seconds())

	return &TxResult{Receipt: receipt}, nil
}

// DeleteDocument removes a document by index. Index zero is the first
// document and is a valid value; presence is checked on the pointer.
func (s *docService) DeleteDocument(
	ctx context.Context,
	req *DeleteRequest,
) (*TxResult, error) {
	start := time.Now()

	if err := s.validate.Struct(req); err != nil {
		metrics.PipelineRuns.WithLabelValues(methodDelete, "validation_failed").Inc()
		return nil, apperrors.BadRequestError(err, "userAddress and index are required")
	}

	runID := uuid.New().String()
	user := common.HexToAddress(req.UserAddress)
	call := ledger.NewCall(s.registry, methodDelete, user, new(big.Int).SetUint64(*req.Index))

	receipt, err := s.estimateAndSubmit(ctx, runID, req.UserAddress, call, "")
	if err != nil {
		return nil, err
	}

	metrics.PipelineRuns.WithLabelValues(methodDelete, "ok").Inc()
	metrics.PipelineDuration.WithLabelValues(methodDelete).Observe(time.Since(start).Seconds())

	return &TxResult{Receipt: receipt}, nil
}

// estimateAndSubmit runs the two-step ledger state machine with the exact
// same immutable call for both steps. contentAddress, when non-empty, is
// attached to failures and journal entries for reconciliation.
func (s *docService) estimateAndSubmit(
	ctx context.Context,
	runID string,
	owner string,
	call ledger.Call,
	contentAddress string,
) (*ledger.Receipt, error) {
	cost, err := s.ledger.Estimate(ctx, call)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("ledger", ledgerErrorKind(err)).Inc()
		metrics.PipelineRuns.WithLabelValues(call.Method(), "estimation_failed").Inc()
		s.record(ctx, &journal.Entry{
			RunID:          runID,
			Method:         call.Method(),
			Owner:          owner,
			ContentAddress: contentAddress,
			Stage:          journal.StageEstimate,
			ErrorKind:      ledgerErrorKind(err),
		})
		return nil, s.withContentAddress(ledgerFailure(err, "ledger estimation failed"), contentAddress)
	}

	receipt, err := s.ledger.Submit(ctx, call, cost)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("ledger", ledgerErrorKind(err)).Inc()
		metrics.PipelineRuns.WithLabelValues(call.Method(), "submission_failed").Inc()
		s.record(ctx, &journal.Entry{
			RunID:          runID,
			Method:         call.Method(),
			Owner:          owner,
			ContentAddress: contentAddress,
			Stage:          journal.StageSubmit,
			ErrorKind:      ledgerErrorKind(err),
			FeeEther:       cost.FeeEther(),
		})
		return nil, s.withContentAddress(ledgerFailure(err, "ledger submission failed"), contentAddress)
	}

	s.record(ctx, &journal.Entry{
		RunID:          runID,
		Method:         call.Method(),
		Owner:          owner,
		ContentAddress: contentAddress,
		TxHash:         receipt.TxHash,
		Stage:          journal.StageConfirmed,
		FeeEther:       cost.FeeEther(),
	})

	return receipt, nil
}

// AllDocuments returns the user's document records as the ledger reports
// them.
func (s *docService) AllDocuments(ctx context.Context, userAddress string) (interface{}, error) {
	if err := s.validateUserAddress(userAddress); err != nil {
		return nil, err
	}
	return s.query(ctx, methodGetAllDocuments, common.HexToAddress(userAddress))
}

// UploadedDocumentCount returns how many documents the user has recorded.
func (s *docService) UploadedDocumentCount(ctx context.Context, userAddress string) (interface{}, error) {
	if err := s.validateUserAddress(userAddress); err != nil {
		return nil, err
	}
	return s.query(ctx, methodGetCount, common.HexToAddress(userAddress))
}

// AllowedUploads returns the user's remaining upload quota.
func (s *docService) AllowedUploads(ctx context.Context, userAddress string) (interface{}, error) {
	if err := s.validateUserAddress(userAddress); err != nil {
		return nil, err
	}
	return s.query(ctx, methodGetAllowed, common.HexToAddress(userAddress))
}

func (s *docService) query(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	value, err := s.ledger.Query(ctx, s.registry, method, args...)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("ledger", ledgerErrorKind(err)).Inc()
		return nil, ledgerFailure(err, "ledger query failed")
	}
	return value, nil
}

func (s *docService) validateUserAddress(userAddress string) error {
	if err := s.validate.Var(userAddress, "required,eth_addr"); err != nil {
		return apperrors.BadRequestError(err, "userAddress is required and must be a valid address")
	}
	return nil
}

// record journals a pipeline run. Best effort: failures are logged, never
// propagated, and an in-flight write survives request cancellation.
func (s *docService) record(ctx context.Context, entry *journal.Entry) {
	if s.journal == nil {
		return
	}
	entry.CreatedAt = time.Now()

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := s.journal.Record(recCtx, entry); err != nil {
		s.logger.Warn("Failed to record journal entry",
			zap.String("run_id", entry.RunID),
			zap.String("method", entry.Method),
			zap.Error(err))
	}
}

func (s *docService) withContentAddress(err *apperrors.ServiceError, contentAddress string) error {
	if contentAddress == "" {
		return err
	}
	return err.WithMeta("contentAddress", contentAddress)
}

// storeFailure maps a content-store error onto the service taxonomy. A
// timeout is distinct because the bytes may or may not have been pinned.
func storeFailure(err error) *apperrors.ServiceError {
	if errors.Is(err, storage.ErrTimeout) {
		return apperrors.TimeoutError(err, "content store timed out")
	}
	return apperrors.DependencyError(err, "content store failure")
}

// ledgerFailure maps a ledger error onto the service taxonomy. A timeout on
// submission leaves the transaction's final state unknown, so it is reported
// distinctly from a rejection.
func ledgerFailure(err error, message string) *apperrors.ServiceError {
	if errors.Is(err, ledger.ErrTimeout) {
		return apperrors.TimeoutError(err, message+": final state unknown")
	}
	return apperrors.DependencyError(err, message)
}

func storeErrorKind(err error) string {
	switch {
	case errors.Is(err, storage.ErrTimeout):
		return "timeout"
	case errors.Is(err, storage.ErrRejected):
		return "rejected"
	default:
		return "unreachable"
	}
}

func ledgerErrorKind(err error) string {
	switch {
	case errors.Is(err, ledger.ErrEstimationFailed):
		return "estimation_failed"
	case errors.Is(err, ledger.ErrRejected):
		return "rejected"
	case errors.Is(err, ledger.ErrTimeout):
		return "timeout"
	default:
		return "unreachable"
	}
}

package document

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/docledger/middleware/pkg/auth"
)

const serviceName = "DocumentService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the document Service.
// It logs method entry/exit, duration and errors; file bytes are never
// logged, only their size.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) Upload(
	ctx context.Context,
	session *auth.Session,
	req *UploadRequest,
) (result *UploadResult, err error) {
	start := time.Now()

	ls.logger.Info("Upload started",
		zap.String("service", serviceName),
		zap.String("method", "Upload"),
		zap.String("owner", session.AccountAddress),
		zap.String("name", req.Name),
		zap.Int("file_bytes", len(req.FileBytes)),
		zap.String("contract", req.ContractAddress),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Upload failed",
				zap.String("service", serviceName),
				zap.String("method", "Upload"),
				zap.String("owner", session.AccountAddress),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Upload completed",
				zap.String("service", serviceName),
				zap.String("method", "Upload"),
				zap.String("owner", session.AccountAddress),
				zap.String("content_address", result.ContentAddress),
				zap.String("tx_hash", result.Receipt.TxHash),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Upload(ctx, session, req)
}

func (ls *logService) IncrementAllowedUploads(
	ctx context.Context,
	req *IncrementRequest,
) (result *TxResult, err error) {
	start := time.Now()

	ls.logger.Info("IncrementAllowedUploads started",
		zap.String("service", serviceName),
		zap.String("method", "IncrementAllowedUploads"),
		zap.String("user_address", req.UserAddress),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("IncrementAllowedUploads failed",
				zap.String("service", serviceName),
				zap.String("method", "IncrementAllowedUploads"),
				zap.String("user_address", req.UserAddress),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("IncrementAllowedUploads completed",
				zap.String("service", serviceName),
				zap.String("method", "IncrementAllowedUploads"),
				zap.String("user_address", req.UserAddress),
				zap.String("tx_hash", result.Receipt.TxHash),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.IncrementAllowedUploads(ctx, req)
}

func (ls *logService) DeleteDocument(
	ctx context.Context,
	req *DeleteRequest,
) (result *TxResult, err error) {
	start := time.Now()

	ls.logger.Info("DeleteDocument started",
		zap.String("service", serviceName),
		zap.String("method", "DeleteDocument"),
		zap.String("user_address", req.UserAddress),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("DeleteDocument failed",
				zap.String("service", serviceName),
				zap.String("method", "DeleteDocument"),
				zap.String("user_address", req.UserAddress),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("DeleteDocument completed",
				zap.String("service", serviceName),
				zap.String("method", "DeleteDocument"),
				zap.String("user_address", req.UserAddress),
				zap.String("tx_hash", result.Receipt.TxHash),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.DeleteDocument(ctx, req)
}

func (ls *logService) AllDocuments(ctx context.Context, userAddress string) (interface{}, error) {
	return ls.logQuery(ctx, "AllDocuments", userAddress, ls.svc.AllDocuments)
}

func (ls *logService) UploadedDocumentCount(ctx context.Context, userAddress string) (interface{}, error) {
	return ls.logQuery(ctx, "UploadedDocumentCount", userAddress, ls.svc.UploadedDocumentCount)
}

func (ls *logService) AllowedUploads(ctx context.Context, userAddress string) (interface{}, error) {
	return ls.logQuery(ctx, "AllowedUploads", userAddress, ls.svc.AllowedUploads)
}

// logQuery wraps the read-only methods; queries log at debug to keep the
// hot read path quiet.
func (ls *logService) logQuery(
	ctx context.Context,
	method string,
	userAddress string,
	fn func(context.Context, string) (interface{}, error),
) (interface{}, error) {
	start := time.Now()

	value, err := fn(ctx, userAddress)
	if err != nil {
		ls.logger.Error(method+" failed",
			zap.String("service", serviceName),
			zap.String("method", method),
			zap.String("user_address", userAddress),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	ls.logger.Debug(method+" completed",
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.String("user_address", userAddress),
		zap.Duration("duration", time.Since(start)),
	)
	return value, nil
}

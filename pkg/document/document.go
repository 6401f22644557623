// Package document implements the authenticated upload pipeline and the
// read-only query façade over the document registry.
package document

import (
	"github.com/docledger/middleware/pkg/ledger"
)

// UploadRequest carries one document upload. All fields are mandatory and
// validated before any external call is made.
type UploadRequest struct {
	FileBytes       []byte `validate:"required"`
	Name            string `validate:"required"`
	Description     string `validate:"required"`
	ContractAddress string `validate:"required,eth_addr"`
}

// IncrementRequest raises a user's upload quota.
type IncrementRequest struct {
	UserAddress       string  `json:"userAddress" validate:"required,eth_addr"`
	AdditionalUploads *uint64 `json:"additionalUploads" validate:"required,gt=0"`
}

// DeleteRequest removes one document by index. Index is a pointer so that a
// present zero (the first document) is distinguishable from an absent field.
type DeleteRequest struct {
	UserAddress string  `json:"userAddress" validate:"required,eth_addr"`
	Index       *uint64 `json:"index" validate:"required"`
}

// UploadResult is returned on a fully successful upload pipeline run.
type UploadResult struct {
	Receipt        *ledger.Receipt `json:"receipt"`
	ContentAddress string          `json:"contentAddress"`
}

// TxResult is returned by the quota and delete pipelines.
type TxResult struct {
	Receipt *ledger.Receipt `json:"receipt"`
}

package journal

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// EntryDao is a data access object that maps directly to the 'upload_journal' table in PostgreSQL.
type EntryDao struct {
	bun.BaseModel  `bun:"table:upload_journal,alias:j"`
	ID             int64     `bun:"id,pk,autoincrement"`
	RunID          string    `bun:"run_id,unique,notnull,type:varchar(36)"`
	Method         string    `bun:"method,notnull,type:varchar(64)"`
	Owner          string    `bun:"owner,notnull,type:varchar(42)"`
	ContentAddress *string   `bun:"content_address,type:varchar(128)"`
	TxHash         *string   `bun:"tx_hash,type:varchar(66)"`
	Stage          string    `bun:"stage,notnull,type:varchar(16)"`
	ErrorKind      *string   `bun:"error_kind,type:varchar(32)"`
	FeeEther       *string   `bun:"fee_ether,nullzero,type:numeric(38,18)"`
	CreatedAt      time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// toEntryDao converts an Entry to EntryDao.
func toEntryDao(entry *Entry) *EntryDao {
	dao := &EntryDao{
		RunID:     entry.RunID,
		Method:    entry.Method,
		Owner:     entry.Owner,
		Stage:     entry.Stage,
		CreatedAt: entry.CreatedAt,
	}

	if entry.ContentAddress != "" {
		dao.ContentAddress = &entry.ContentAddress
	}
	if entry.TxHash != "" {
		dao.TxHash = &entry.TxHash
	}
	if entry.ErrorKind != "" {
		dao.ErrorKind = &entry.ErrorKind
	}
	if !entry.FeeEther.IsZero() {
		fee := entry.FeeEther.String()
		dao.FeeEther = &fee
	}

	return dao
}

// toEntry converts an EntryDao to Entry.
func toEntry(dao *EntryDao) *Entry {
	entry := &Entry{
		RunID:     dao.RunID,
		Method:    dao.Method,
		Owner:     dao.Owner,
		Stage:     dao.Stage,
		CreatedAt: dao.CreatedAt,
	}

	if dao.ContentAddress != nil {
		entry.ContentAddress = *dao.ContentAddress
	}
	if dao.TxHash != nil {
		entry.TxHash = *dao.TxHash
	}
	if dao.ErrorKind != nil {
		entry.ErrorKind = *dao.ErrorKind
	}
	if dao.FeeEther != nil {
		if fee, err := decimal.NewFromString(*dao.FeeEther); err == nil {
			entry.FeeEther = fee
		}
	}

	return entry
}

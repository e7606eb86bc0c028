package migrations

import (
	"gorm.io/gorm"
)

// AddBidLedgerIndex speeds up the per-auction ledger query, which always
// filters by auction and orders by timestamp.
func AddBidLedgerIndex(db *gorm.DB) error {
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_bids_auction_timestamp ON bids(auction_id, timestamp)",
	).Error
}

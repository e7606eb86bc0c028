package auction

import (
	"errors"

	"github.com/finalcall/auction-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetAuction(auctionID uint) (*types.Auction, error) {
	var auction types.Auction
	if err := d.db.First(&auction, auctionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

func (d *Database) GetAuctionByItemID(itemID int64) (*types.Auction, error) {
	var auction types.Auction
	if err := d.db.Where("item_id = ?", itemID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

func (d *Database) ListAuctions() ([]types.Auction, error) {
	var auctions []types.Auction
	if err := d.db.Order("id").Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

// GetActiveAuctionsByType returns every ACTIVE auction of the given type,
// used by the price-decay and status passes of the scheduler.
func (d *Database) GetActiveAuctionsByType(auctionType string) ([]types.Auction, error) {
	var auctions []types.Auction
	err := d.db.
		Where("auction_type = ? AND status = ?", auctionType, types.StatusActive).
		Order("id").
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

func (d *Database) CreateAuction(auction *types.Auction) error {
	return d.db.Create(auction).Error
}

func (d *Database) SaveAuction(auction *types.Auction) error {
	return d.db.Save(auction).Error
}

// SaveAuctionWithBid commits the mutated auction and the new bid record in a
// single transaction so a persistence failure never leaves a half-applied bid.
func (d *Database) SaveAuctionWithBid(auction *types.Auction, bid *types.Bid) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(auction).Error; err != nil {
			return err
		}
		return tx.Create(bid).Error
	})
}

func (d *Database) GetBidsForAuction(auctionID uint) ([]types.Bid, error) {
	var bids []types.Bid
	err := d.db.
		Where("auction_id = ?", auctionID).
		Order("timestamp DESC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (d *Database) HasBids(auctionID uint) (bool, error) {
	var count int64
	if err := d.db.Model(&types.Bid{}).Where("auction_id = ?", auctionID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

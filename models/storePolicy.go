package models

import (
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/utils"
	"gorm.io/gorm"
)

// StorePolicy holds the lot allocation settings of a store.
// It is read per call; nothing caches it across requests.
type StorePolicy struct {
	StoreId                         string                    `gorm:"primaryKey;size:64" json:"store_id" validate:"required"`
	UseWholesalePriceOrderColumn    WholesalePriceOrderColumn `gorm:"size:20;not null;default:arrived_at" json:"use_wholesale_price_order_column" validate:"required,oneof=arrived_at unit_price"`
	UseWholesalePriceOrderRule      WholesalePriceOrderRule   `gorm:"size:10;not null;default:asc" json:"use_wholesale_price_order_rule" validate:"required,oneof=asc desc"`
	ReturnWholesalePriceOrderColumn WholesalePriceOrderColumn `gorm:"size:20;not null;default:arrived_at" json:"return_wholesale_price_order_column" validate:"required,oneof=arrived_at unit_price"`
	ReturnWholesalePriceOrderRule   WholesalePriceOrderRule   `gorm:"size:10;not null;default:desc" json:"return_wholesale_price_order_rule" validate:"required,oneof=asc desc"`
	WholesalePriceKeepRule          WholesalePriceKeepRule    `gorm:"size:20;not null;default:individual" json:"wholesale_price_keep_rule" validate:"required,oneof=individual average"`
	CreatedAt                       time.Time                 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                       time.Time                 `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultStorePolicy consumes oldest lots first and re-credits the newest.
func DefaultStorePolicy(storeId string) *StorePolicy {
	return &StorePolicy{
		StoreId:                         storeId,
		UseWholesalePriceOrderColumn:    WholesalePriceOrderColumnArrivedAt,
		UseWholesalePriceOrderRule:      WholesalePriceOrderRuleAsc,
		ReturnWholesalePriceOrderColumn: WholesalePriceOrderColumnArrivedAt,
		ReturnWholesalePriceOrderRule:   WholesalePriceOrderRuleDesc,
		WholesalePriceKeepRule:          WholesalePriceKeepRuleIndividual,
	}
}

func (p *StorePolicy) Validate() error {
	if p == nil {
		return NewValidationError("store policy is required")
	}
	fields, err := utils.ValidateStruct(p)
	if err != nil {
		return &ValidationError{Message: "invalid store policy", Fields: fields}
	}
	return nil
}

func (p *StorePolicy) UseOrder() WholesalePriceOrder {
	return WholesalePriceOrder{Column: p.UseWholesalePriceOrderColumn, Rule: p.UseWholesalePriceOrderRule}
}

func (p *StorePolicy) ReturnOrder() WholesalePriceOrder {
	return WholesalePriceOrder{Column: p.ReturnWholesalePriceOrderColumn, Rule: p.ReturnWholesalePriceOrderRule}
}

func (p *StorePolicy) KeepsAverage() bool {
	return p.WholesalePriceKeepRule == WholesalePriceKeepRuleAverage
}

// GetStorePolicy reads the store's policy row, falling back to DefaultStorePolicy.
func GetStorePolicy(tx *gorm.DB, storeId string) (*StorePolicy, error) {
	var policy StorePolicy
	err := tx.Where("store_id = ?", storeId).First(&policy).Error
	if err != nil {
		if utils.IsRecordNotFound(err) {
			return DefaultStorePolicy(storeId), nil
		}
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

func SaveStorePolicy(tx *gorm.DB, policy *StorePolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	return tx.Save(policy).Error
}

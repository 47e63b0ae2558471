package models

import (
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BundleItem is the lifecycle record of a composite product.
// ProductId is the backing product whose stock holds the packaged units.
type BundleItem struct {
	ID              int              `gorm:"primary_key" json:"id"`
	StoreId         string           `gorm:"index;size:64;not null" json:"store_id"`
	ProductId       int              `gorm:"index;not null;default:0" json:"product_id"`
	Name            string           `gorm:"size:255" json:"name"`
	Status          BundleItemStatus `gorm:"index;size:20;not null;default:DRAFT" json:"status"`
	StartAt         *time.Time       `json:"start_at"`
	ExpireAt        *time.Time       `json:"expire_at"`
	InitStockNumber int              `gorm:"not null;default:0" json:"init_stock_number"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// BundleItemProduct is one recipe row: Quantity units of ProductId per packaged unit.
type BundleItemProduct struct {
	ID           int       `gorm:"primary_key" json:"id"`
	StoreId      string    `gorm:"index;size:64;not null" json:"store_id"`
	BundleItemId int       `gorm:"index;not null" json:"bundle_item_id"`
	ProductId    int       `gorm:"index;not null" json:"product_id"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewBundleItemProduct struct {
	ProductId int `json:"product_id" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"required,gt=0"`
}

func (b *BundleItem) GetStoreId() string {
	return b.StoreId
}

func GetBundleItem(tx *gorm.DB, storeId string, id int) (*BundleItem, error) {
	var item BundleItem
	if err := tx.Where("store_id = ? AND id = ?", storeId, id).First(&item).Error; err != nil {
		if utils.IsRecordNotFound(err) {
			return nil, &NotFoundError{Resource: "bundle item", Id: id}
		}
		return nil, err
	}
	return &item, nil
}

func GetBundleItemForUpdate(tx *gorm.DB, storeId string, id int) (*BundleItem, error) {
	var item BundleItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND id = ?", storeId, id).
		First(&item).Error
	if err != nil {
		if utils.IsRecordNotFound(err) {
			return nil, &NotFoundError{Resource: "bundle item", Id: id}
		}
		return nil, err
	}
	return &item, nil
}

// ListSchedulableBundleItemIds returns the ids of the store's non-deleted bundle items in id order.
func ListSchedulableBundleItemIds(tx *gorm.DB, storeId string) ([]int, error) {
	var ids []int
	err := tx.Model(&BundleItem{}).
		Where("store_id = ? AND status <> ?", storeId, BundleItemStatusDeleted).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func UpdateBundleItemStatus(tx *gorm.DB, item *BundleItem, status BundleItemStatus) error {
	if !status.IsValid() {
		return NewValidationError("invalid bundle item status %q", status)
	}
	err := tx.Model(&BundleItem{}).
		Where("store_id = ? AND id = ?", item.StoreId, item.ID).
		UpdateColumns(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return err
	}
	item.Status = status
	return nil
}

func GetBundleRecipe(tx *gorm.DB, storeId string, bundleItemId int) ([]*BundleItemProduct, error) {
	var rows []*BundleItemProduct
	err := tx.Where("store_id = ? AND bundle_item_id = ?", storeId, bundleItemId).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceBundleRecipe deletes the bundle's recipe rows and inserts the new ones.
func ReplaceBundleRecipe(tx *gorm.DB, storeId string, bundleItemId int, recipe []NewBundleItemProduct) ([]*BundleItemProduct, error) {
	if len(recipe) == 0 {
		return nil, NewValidationError("bundle recipe cannot be empty")
	}
	seen := make(map[int]struct{}, len(recipe))
	for i := range recipe {
		if fields, err := utils.ValidateStruct(recipe[i]); err != nil {
			return nil, &ValidationError{Message: "invalid bundle recipe row", Fields: fields}
		}
		if _, dup := seen[recipe[i].ProductId]; dup {
			return nil, NewValidationError("product %d appears twice in bundle recipe", recipe[i].ProductId)
		}
		seen[recipe[i].ProductId] = struct{}{}
	}

	if err := tx.Where("store_id = ? AND bundle_item_id = ?", storeId, bundleItemId).
		Delete(&BundleItemProduct{}).Error; err != nil {
		return nil, err
	}
	rows := make([]*BundleItemProduct, 0, len(recipe))
	for _, r := range recipe {
		rows = append(rows, &BundleItemProduct{
			StoreId:      storeId,
			BundleItemId: bundleItemId,
			ProductId:    r.ProductId,
			Quantity:     r.Quantity,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

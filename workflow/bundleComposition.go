package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/stock_ledger/config"
	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ReleaseBundleInput decomposes packaged units of a bundle back out of its backing product.
// ProductId defaults to the bundle's backing product; an explicit one must point back at the bundle.
// ItemCount nil means all remaining stock; an explicit count must be positive.
type ReleaseBundleInput struct {
	StoreId      string
	BundleItemId int
	ProductId    *int
	ItemCount    *int
	Description  string
}

type ReleaseBundleResult struct {
	BundleItem *models.BundleItem
	// Mutation is nil when there was nothing to release.
	Mutation *StockMutationResult
}

// ReleaseBundle decreases the backing product's stock and marks the bundle DELETED.
// A partial release (ItemCount set) only marks it DELETED when the backing stock reaches zero.
func ReleaseBundle(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, input ReleaseBundleInput) (result *ReleaseBundleResult, err error) {
	ctx, span := startSpan(ctx, "ReleaseBundle", input.StoreId, attribute.Int("bundle_item_id", input.BundleItemId))
	defer func() { endSpan(span, err) }()

	err = WithTransaction(ctx, tx, func(tx *gorm.DB) error {
		item, err := models.GetBundleItemForUpdate(tx, input.StoreId, input.BundleItemId)
		if err != nil {
			return err
		}
		result, err = releaseBundleItem(ctx, tx, logger, item, input)
		return err
	})
	if err != nil {
		config.LogError(logger, "bundleComposition.go", "ReleaseBundle", "releasing bundle", input, err)
		return nil, err
	}
	return result, nil
}

func releaseBundleItem(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, item *models.BundleItem, input ReleaseBundleInput) (*ReleaseBundleResult, error) {
	productId := item.ProductId
	if input.ProductId != nil {
		productId = *input.ProductId
	}
	if productId <= 0 {
		return nil, &models.NotFoundError{Resource: "bundle product", Id: item.ID}
	}
	product, err := models.GetProduct(tx, item.StoreId, productId)
	if err != nil {
		return nil, err
	}
	backsItem := product.BundleItemId != nil && *product.BundleItemId == item.ID
	if !backsItem && (input.ProductId != nil || product.BundleItemId != nil) {
		return nil, &models.NotFoundError{Resource: "bundle product", Id: productId}
	}

	count := product.StockNumber
	if input.ItemCount != nil {
		count = *input.ItemCount
		if count <= 0 {
			return nil, models.NewValidationError("release count must be positive, got %d", count)
		}
	}

	result := &ReleaseBundleResult{BundleItem: item}
	if count > 0 {
		description := input.Description
		if description == "" {
			description = fmt.Sprintf("release bundle %d", item.ID)
		}
		mutation, err := DecreaseStock(ctx, tx, logger, StockMutationInput{
			StoreId:     item.StoreId,
			ProductId:   productId,
			Count:       count,
			SourceKind:  models.StockSourceKindBundleRelease,
			SourceId:    item.ID,
			Description: description,
		})
		if err != nil {
			return nil, err
		}
		result.Mutation = mutation
	}

	remaining := product.StockNumber - count
	if result.Mutation != nil {
		remaining = result.Mutation.StockNumber
	}
	if input.ItemCount == nil || remaining <= 0 {
		if err := models.UpdateBundleItemStatus(tx, item, models.BundleItemStatusDeleted); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// MaterializeBundle packages count units of the bundle into its backing product.
// The unit price of the new lot is the sum of each constituent's average wholesale price times its recipe quantity.
func MaterializeBundle(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, storeId string, bundleItemId int, count int) (result *StockMutationResult, err error) {
	ctx, span := startSpan(ctx, "MaterializeBundle", storeId,
		attribute.Int("bundle_item_id", bundleItemId),
		attribute.Int("count", count))
	defer func() { endSpan(span, err) }()

	err = WithTransaction(ctx, tx, func(tx *gorm.DB) error {
		item, err := models.GetBundleItemForUpdate(tx, storeId, bundleItemId)
		if err != nil {
			return err
		}
		result, err = materializeBundleItem(ctx, tx, logger, item, count)
		return err
	})
	if err != nil {
		config.LogError(logger, "bundleComposition.go", "MaterializeBundle", "materializing bundle",
			map[string]any{"store_id": storeId, "bundle_item_id": bundleItemId, "count": count}, err)
		return nil, err
	}
	return result, nil
}

func materializeBundleItem(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, item *models.BundleItem, count int) (*StockMutationResult, error) {
	if item.ProductId <= 0 {
		return nil, &models.NotFoundError{Resource: "bundle product", Id: item.ID}
	}
	unitPrice, err := bundleUnitPrice(tx, item)
	if err != nil {
		return nil, err
	}
	return IncreaseStock(ctx, tx, logger, StockMutationInput{
		StoreId:     item.StoreId,
		ProductId:   item.ProductId,
		Count:       count,
		SourceKind:  models.StockSourceKindBundle,
		SourceId:    item.ID,
		Description: fmt.Sprintf("package bundle %d", item.ID),
		UnitPrice:   &unitPrice,
	})
}

func bundleUnitPrice(tx *gorm.DB, item *models.BundleItem) (decimal.Decimal, error) {
	recipe, err := models.GetBundleRecipe(tx, item.StoreId, item.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(recipe) == 0 {
		return decimal.Zero, models.NewValidationError("bundle item %d has no recipe", item.ID)
	}
	ids := make([]int, 0, len(recipe))
	for _, r := range recipe {
		ids = append(ids, r.ProductId)
	}
	products, err := models.GetProductsByIds(tx, item.StoreId, ids)
	if err != nil {
		return decimal.Zero, err
	}
	unitPrice := decimal.Zero
	for _, r := range recipe {
		p, ok := products[r.ProductId]
		if !ok {
			return decimal.Zero, &models.NotFoundError{Resource: "product", Id: r.ProductId}
		}
		unitPrice = unitPrice.Add(p.AverageWholesalePrice.Mul(decimal.NewFromInt(int64(r.Quantity))))
	}
	return unitPrice, nil
}

type EditBundleInput struct {
	StoreId      string
	BundleItemId int
	Recipe       []models.NewBundleItemProduct
}

type EditBundleResult struct {
	BundleItem *models.BundleItem
	Recipe     []*models.BundleItemProduct
	Released   *ReleaseBundleResult
	Restocked  *StockMutationResult
}

// EditBundle replaces a bundle's recipe.
//
// A DRAFT bundle only gets its recipe replaced. A published bundle with no unit sold yet
// (backing stock still equals InitStockNumber) is released, put back to its prior status,
// given the new recipe and restocked to InitStockNumber at the new recipe's cost.
// Anything else is a ConflictError.
func EditBundle(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, input EditBundleInput) (result *EditBundleResult, err error) {
	ctx, span := startSpan(ctx, "EditBundle", input.StoreId, attribute.Int("bundle_item_id", input.BundleItemId))
	defer func() { endSpan(span, err) }()

	err = WithTransaction(ctx, tx, func(tx *gorm.DB) error {
		item, err := models.GetBundleItemForUpdate(tx, input.StoreId, input.BundleItemId)
		if err != nil {
			return err
		}
		result = &EditBundleResult{BundleItem: item}

		switch item.Status {
		case models.BundleItemStatusDraft:
			result.Recipe, err = models.ReplaceBundleRecipe(tx, item.StoreId, item.ID, input.Recipe)
			return err
		case models.BundleItemStatusDeleted:
			return &models.ConflictError{Message: fmt.Sprintf("bundle item %d is already deleted", item.ID)}
		}

		if item.ProductId <= 0 {
			return &models.NotFoundError{Resource: "bundle product", Id: item.ID}
		}
		product, err := models.GetProduct(tx, item.StoreId, item.ProductId)
		if err != nil {
			return err
		}
		if product.StockNumber != item.InitStockNumber {
			return &models.ConflictError{Message: fmt.Sprintf("bundle item %d is already sold", item.ID)}
		}

		priorStatus := item.Status
		result.Released, err = releaseBundleItem(ctx, tx, logger, item, ReleaseBundleInput{
			StoreId:      item.StoreId,
			BundleItemId: item.ID,
			Description:  fmt.Sprintf("edit bundle %d", item.ID),
		})
		if err != nil {
			return err
		}
		if err := models.UpdateBundleItemStatus(tx, item, priorStatus); err != nil {
			return err
		}
		result.Recipe, err = models.ReplaceBundleRecipe(tx, item.StoreId, item.ID, input.Recipe)
		if err != nil {
			return err
		}
		if item.InitStockNumber > 0 {
			result.Restocked, err = materializeBundleItem(ctx, tx, logger, item, item.InitStockNumber)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "bundleComposition.go", "EditBundle", "editing bundle", input, err)
		return nil, err
	}
	return result, nil
}

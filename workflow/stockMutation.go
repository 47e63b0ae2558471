package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/config"
	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"bitbucket.org/mmdatafocus/stock_ledger/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// StockMutationInput describes one increase or decrease of a product's stock.
//
// Policy is optional; when nil the store's policy row is read inside the transaction.
// UnitPrice only applies to increases: set it for a fresh receipt, leave it nil for a return.
// StockDate is the ledger date of the history row and the arrival time of any new lot.
type StockMutationInput struct {
	StoreId     string                 `validate:"required"`
	ProductId   int                    `validate:"gt=0"`
	Count       int                    `validate:"gt=0"`
	SourceKind  models.StockSourceKind `validate:"required"`
	SourceId    int                    `validate:"gte=0"`
	Description string                 `validate:"max=255"`
	UnitPrice   *decimal.Decimal
	StockDate   time.Time
	Policy      *models.StorePolicy
}

func (in StockMutationInput) validate() error {
	if fields, err := utils.ValidateStruct(in); err != nil {
		if len(fields) == 0 {
			return models.NewValidationError("invalid stock mutation: %s", err.Error())
		}
		return &models.ValidationError{Message: "invalid stock mutation", Fields: fields}
	}
	if !in.SourceKind.IsValid() {
		return models.NewValidationError("invalid stock source kind %q", in.SourceKind)
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return models.NewValidationError("unit price cannot be negative, got %s", in.UnitPrice.String())
	}
	if in.Policy != nil {
		if err := in.Policy.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type StockMutationResult struct {
	Product      *models.Product
	StockNumber  int
	StockHistory *models.StockHistory
	// WholesalePrice is the cost consumed or restored; nil for infinite-stock products.
	WholesalePrice *decimal.Decimal
	Summary        models.WholesalePriceSummary
	Collapsed      bool
}

// DecreaseStock takes input.Count units out of the product, consuming lots in the store's use order.
// It runs inside tx when tx is a transaction, else in its own transaction.
// On InsufficientStockError nothing is written.
func DecreaseStock(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, input StockMutationInput) (result *StockMutationResult, err error) {
	ctx, span := startSpan(ctx, "DecreaseStock", input.StoreId,
		attribute.Int("product_id", input.ProductId),
		attribute.Int("count", input.Count),
		attribute.String("source_kind", string(input.SourceKind)))
	defer func() { endSpan(span, err) }()

	if err = input.validate(); err != nil {
		return nil, err
	}
	ctx, correlationId := utils.EnsureCorrelationId(ctx)

	err = WithTransaction(ctx, tx, func(tx *gorm.DB) error {
		product, policy, lots, err := lockStockForMutation(tx, input)
		if err != nil {
			return err
		}
		allocation, err := models.AllocateWholesalePrices(product, lots, input.Count, policy.UseOrder())
		if err != nil {
			return err
		}

		if allocation.IsInfinite() {
			history, err := appendMutationHistory(ctx, tx, product, input, -input.Count, product.StockNumber, nil, correlationId)
			if err != nil {
				return err
			}
			result = &StockMutationResult{Product: product, StockNumber: product.StockNumber, StockHistory: history}
			return nil
		}

		for _, c := range allocation.Consumptions {
			if err := models.SetWholesalePriceRemaining(tx, c.Lot, c.Lot.RemainingItemCount-c.Count); err != nil {
				return err
			}
		}

		summary, collapsed, err := settleWholesalePrices(tx, logger, product, policy, lots, product.StockNumber-input.Count)
		if err != nil {
			return err
		}
		history, err := appendMutationHistory(ctx, tx, product, input, -input.Count, summary.Count, allocation.Cost, correlationId)
		if err != nil {
			return err
		}
		result = &StockMutationResult{
			Product:        product,
			StockNumber:    summary.Count,
			StockHistory:   history,
			WholesalePrice: allocation.Cost,
			Summary:        summary,
			Collapsed:      collapsed,
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "stockMutation.go", "DecreaseStock", "decreasing stock", input, err)
		return nil, err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"store_id":       input.StoreId,
			"product_id":     input.ProductId,
			"qty":            -input.Count,
			"stock_number":   result.StockNumber,
			"correlation_id": correlationId,
		}).Debug("stock decreased")
	}
	return result, nil
}

// IncreaseStock adds input.Count units to the product.
// With UnitPrice the units form a new lot; without it they re-credit consumed lots in the store's return order.
func IncreaseStock(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, input StockMutationInput) (result *StockMutationResult, err error) {
	ctx, span := startSpan(ctx, "IncreaseStock", input.StoreId,
		attribute.Int("product_id", input.ProductId),
		attribute.Int("count", input.Count),
		attribute.String("source_kind", string(input.SourceKind)))
	defer func() { endSpan(span, err) }()

	if err = input.validate(); err != nil {
		return nil, err
	}
	ctx, correlationId := utils.EnsureCorrelationId(ctx)

	err = WithTransaction(ctx, tx, func(tx *gorm.DB) error {
		product, policy, lots, err := lockStockForMutation(tx, input)
		if err != nil {
			return err
		}
		restoration, err := models.PlanWholesalePriceRestore(product, lots, input.Count, policy.ReturnOrder(), input.UnitPrice)
		if err != nil {
			return err
		}

		if restoration.IsInfinite() {
			history, err := appendMutationHistory(ctx, tx, product, input, input.Count, product.StockNumber, nil, correlationId)
			if err != nil {
				return err
			}
			result = &StockMutationResult{Product: product, StockNumber: product.StockNumber, StockHistory: history}
			return nil
		}

		for _, c := range restoration.Credits {
			if err := models.SetWholesalePriceRemaining(tx, c.Lot, c.Lot.RemainingItemCount+c.Count); err != nil {
				return err
			}
		}
		if restoration.NewLotCount > 0 {
			arrivedAt := input.StockDate
			if arrivedAt.IsZero() {
				arrivedAt = time.Now().UTC()
			}
			lot := &models.WholesalePrice{
				StoreId:            product.StoreId,
				ProductId:          product.ID,
				ResourceType:       product.WholesalePriceResourceType(),
				UnitPrice:          restoration.NewLotUnitPrice,
				OriginalItemCount:  restoration.NewLotCount,
				RemainingItemCount: restoration.NewLotCount,
				ArrivedAt:          arrivedAt,
				SourceKind:         input.SourceKind,
				SourceId:           input.SourceId,
			}
			if err := models.CreateWholesalePrice(tx, lot); err != nil {
				return err
			}
			lots = append(lots, lot)
		}

		summary, collapsed, err := settleWholesalePrices(tx, logger, product, policy, lots, product.StockNumber+input.Count)
		if err != nil {
			return err
		}
		history, err := appendMutationHistory(ctx, tx, product, input, input.Count, summary.Count, restoration.Cost, correlationId)
		if err != nil {
			return err
		}
		result = &StockMutationResult{
			Product:        product,
			StockNumber:    summary.Count,
			StockHistory:   history,
			WholesalePrice: restoration.Cost,
			Summary:        summary,
			Collapsed:      collapsed,
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "stockMutation.go", "IncreaseStock", "increasing stock", input, err)
		return nil, err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"store_id":       input.StoreId,
			"product_id":     input.ProductId,
			"qty":            input.Count,
			"stock_number":   result.StockNumber,
			"correlation_id": correlationId,
		}).Debug("stock increased")
	}
	return result, nil
}

// lockStockForMutation locks the product row and then its lots.
// Always product first, so two mutations of the same product queue on the product row.
func lockStockForMutation(tx *gorm.DB, input StockMutationInput) (*models.Product, *models.StorePolicy, []*models.WholesalePrice, error) {
	product, err := models.GetProductForUpdate(tx, input.StoreId, input.ProductId)
	if err != nil {
		return nil, nil, nil, err
	}
	policy := input.Policy
	if policy == nil {
		policy, err = models.GetStorePolicy(tx, input.StoreId)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if product.IsInfinite() {
		return product, policy, nil, nil
	}
	lots, err := models.LockWholesalePrices(tx, input.StoreId, input.ProductId)
	if err != nil {
		return nil, nil, nil, err
	}
	return product, policy, lots, nil
}

// appendMutationHistory writes the ledger row, stamped with the acting user when the context carries one.
func appendMutationHistory(ctx context.Context, tx *gorm.DB, product *models.Product, input StockMutationInput, qty int, stockNumber int, cost *decimal.Decimal, correlationId string) (*models.StockHistory, error) {
	history := &models.StockHistory{
		StoreId:        product.StoreId,
		ProductId:      product.ID,
		StockDate:      input.StockDate,
		Qty:            qty,
		StockNumber:    stockNumber,
		SourceKind:     input.SourceKind,
		SourceId:       input.SourceId,
		Description:    input.Description,
		WholesalePrice: cost,
		CorrelationId:  correlationId,
	}
	history.IsInfiniteStock = utils.NewFalse()
	if product.IsInfinite() {
		history.IsInfiniteStock = utils.NewTrue()
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		history.UserId = userId
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		history.UserName = userName
	}
	if err := models.AppendStockHistory(tx, history); err != nil {
		return nil, err
	}
	return history, nil
}

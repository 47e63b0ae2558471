package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/stock_ledger/config"
	"bitbucket.org/mmdatafocus/stock_ledger/models"
	"bitbucket.org/mmdatafocus/stock_ledger/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const bundleStatusLockTTL = 10 * time.Minute

type BundleStatusTransition string

const (
	BundleStatusTransitionNone    BundleStatusTransition = "none"
	BundleStatusTransitionPublish BundleStatusTransition = "publish"
	BundleStatusTransitionExpire  BundleStatusTransition = "expire"
)

// NextBundleStatusTransition decides what the scheduler does with item on `today` (local midnight).
// Dates are compared by calendar day in today's location.
// Expiry wins over publishing: an item whose expire_at is on or before yesterday is released.
func NextBundleStatusTransition(item *models.BundleItem, today time.Time) BundleStatusTransition {
	if item == nil || item.Status.IsTerminal() {
		return BundleStatusTransitionNone
	}
	loc := today.Location()
	if item.ExpireAt != nil && !utils.StartOfDay(*item.ExpireAt, loc).After(today.AddDate(0, 0, -1)) {
		return BundleStatusTransitionExpire
	}
	if item.StartAt != nil && !utils.StartOfDay(*item.StartAt, loc).After(today) && item.Status != models.BundleItemStatusPublished {
		return BundleStatusTransitionPublish
	}
	return BundleStatusTransitionNone
}

type BundleStatusRunEntry struct {
	BundleItemId int                    `json:"bundle_item_id"`
	Transition   BundleStatusTransition `json:"transition"`
	Error        string                 `json:"error,omitempty"`
}

// BundleStatusRunLog records what one scheduler run did per item.
type BundleStatusRunLog struct {
	RunId      string                 `json:"run_id"`
	StoreId    string                 `json:"store_id"`
	Today      time.Time              `json:"today"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Entries    []BundleStatusRunEntry `json:"entries"`
}

func (l *BundleStatusRunLog) Failures() []BundleStatusRunEntry {
	failed := make([]BundleStatusRunEntry, 0)
	for _, e := range l.Entries {
		if e.Error != "" {
			failed = append(failed, e)
		}
	}
	return failed
}

// StoreToday is local midnight of now in the store timezone.
func StoreToday(now time.Time) time.Time {
	return utils.StartOfDay(now, config.StoreLocation())
}

// RunBundleStatusScheduler walks every non-deleted bundle item of the store and applies its
// transition, one transaction per item. A failing item is recorded in the run log and the run
// moves on; items already committed stay committed.
// locker may be nil, in which case no cross-process run lock is taken.
func RunBundleStatusScheduler(ctx context.Context, db *gorm.DB, logger *logrus.Logger, locker *redislock.Client, storeId string, today time.Time) (runLog *BundleStatusRunLog, err error) {
	ctx, span := startSpan(ctx, "RunBundleStatusScheduler", storeId)
	defer func() { endSpan(span, err) }()

	release, err := utils.ObtainStoreLock(ctx, locker, "bundle-status", storeId, bundleStatusLockTTL)
	if err != nil {
		config.LogError(logger, "bundleStatusScheduler.go", "RunBundleStatusScheduler", "obtaining run lock", storeId, err)
		return nil, err
	}
	defer release()

	runLog = &BundleStatusRunLog{
		RunId:     uuid.NewString(),
		StoreId:   storeId,
		Today:     today,
		StartedAt: time.Now().UTC(),
		Entries:   make([]BundleStatusRunEntry, 0),
	}
	ctx = utils.SetCorrelationIdInContext(ctx, runLog.RunId)

	ids, err := models.ListSchedulableBundleItemIds(db.WithContext(ctx), storeId)
	if err != nil {
		config.LogError(logger, "bundleStatusScheduler.go", "RunBundleStatusScheduler", "listing bundle items", storeId, err)
		return nil, err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return runLog, ctx.Err()
		}
		transition, itemErr := ProcessBundleItemStatus(ctx, db, logger, storeId, id, today)
		entry := BundleStatusRunEntry{BundleItemId: id, Transition: transition}
		if itemErr != nil {
			entry.Error = itemErr.Error()
		}
		runLog.Entries = append(runLog.Entries, entry)
	}
	runLog.FinishedAt = time.Now().UTC()

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"run_id":   runLog.RunId,
			"store_id": storeId,
			"today":    today.Format("2006-01-02"),
			"items":    len(runLog.Entries),
			"failures": len(runLog.Failures()),
		}).Info("bundle status run finished")
	}
	return runLog, nil
}

// ProcessBundleItemStatus applies one item's transition in its own transaction and returns any error.
func ProcessBundleItemStatus(ctx context.Context, db *gorm.DB, logger *logrus.Logger, storeId string, bundleItemId int, today time.Time) (transition BundleStatusTransition, err error) {
	ctx, span := startSpan(ctx, "ProcessBundleItemStatus", storeId, attribute.Int("bundle_item_id", bundleItemId))
	defer func() { endSpan(span, err) }()

	transition = BundleStatusTransitionNone
	err = WithTransaction(ctx, db, func(tx *gorm.DB) error {
		item, err := models.GetBundleItemForUpdate(tx, storeId, bundleItemId)
		if err != nil {
			return err
		}
		transition = NextBundleStatusTransition(item, today)
		switch transition {
		case BundleStatusTransitionPublish:
			if item.InitStockNumber > 0 {
				if _, err := materializeBundleItem(ctx, tx, logger, item, item.InitStockNumber); err != nil {
					return err
				}
			}
			return models.UpdateBundleItemStatus(tx, item, models.BundleItemStatusPublished)
		case BundleStatusTransitionExpire:
			_, err := releaseBundleItem(ctx, tx, logger, item, ReleaseBundleInput{
				StoreId:      storeId,
				BundleItemId: item.ID,
				Description:  fmt.Sprintf("expire bundle %d", item.ID),
			})
			return err
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "bundleStatusScheduler.go", "ProcessBundleItemStatus", "applying bundle status transition",
			map[string]any{"store_id": storeId, "bundle_item_id": bundleItemId, "transition": transition}, err)
		return transition, err
	}
	return transition, nil
}

package models

import (
	"fmt"
	"strings"
)

type StockSourceKind string

const (
	StockSourceKindSale              StockSourceKind = "sale"
	StockSourceKindPurchase          StockSourceKind = "purchase"
	StockSourceKindReturn            StockSourceKind = "return"
	StockSourceKindBundle            StockSourceKind = "bundle"
	StockSourceKindBundleRelease     StockSourceKind = "bundle_release"
	StockSourceKindAppraisalCreate   StockSourceKind = "appraisal_create"
	StockSourceKindConsignment       StockSourceKind = "consignment"
	StockSourceKindConsignmentCancel StockSourceKind = "consignment_cancel"
	StockSourceKindLoss              StockSourceKind = "loss"
	StockSourceKindCorrection        StockSourceKind = "correction"
	StockSourceKindCollapse          StockSourceKind = "collapse"
)

var stockSourceKinds = map[string]StockSourceKind{
	"sale":               StockSourceKindSale,
	"purchase":           StockSourceKindPurchase,
	"return":             StockSourceKindReturn,
	"bundle":             StockSourceKindBundle,
	"bundle_release":     StockSourceKindBundleRelease,
	"appraisal_create":   StockSourceKindAppraisalCreate,
	"consignment":        StockSourceKindConsignment,
	"consignment_cancel": StockSourceKindConsignmentCancel,
	"loss":               StockSourceKindLoss,
	"correction":         StockSourceKindCorrection,
	"collapse":           StockSourceKindCollapse,
}

func (k StockSourceKind) IsValid() bool {
	_, ok := stockSourceKinds[string(k)]
	return ok
}

func ParseStockSourceKind(s string) (StockSourceKind, error) {
	k, ok := stockSourceKinds[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("invalid stock source kind %q", s)
	}
	return k, nil
}

// WholesalePriceOrderColumn is the lot attribute an allocation policy sorts by.
type WholesalePriceOrderColumn string

const (
	WholesalePriceOrderColumnArrivedAt WholesalePriceOrderColumn = "arrived_at"
	WholesalePriceOrderColumnUnitPrice WholesalePriceOrderColumn = "unit_price"
)

func (c WholesalePriceOrderColumn) IsValid() bool {
	return c == WholesalePriceOrderColumnArrivedAt || c == WholesalePriceOrderColumnUnitPrice
}

type WholesalePriceOrderRule string

const (
	WholesalePriceOrderRuleAsc  WholesalePriceOrderRule = "asc"
	WholesalePriceOrderRuleDesc WholesalePriceOrderRule = "desc"
)

func (r WholesalePriceOrderRule) IsValid() bool {
	return r == WholesalePriceOrderRuleAsc || r == WholesalePriceOrderRuleDesc
}

// WholesalePriceKeepRule decides whether lots are kept individually or collapsed to an average.
type WholesalePriceKeepRule string

const (
	WholesalePriceKeepRuleIndividual WholesalePriceKeepRule = "individual"
	WholesalePriceKeepRuleAverage    WholesalePriceKeepRule = "average"
)

func (r WholesalePriceKeepRule) IsValid() bool {
	return r == WholesalePriceKeepRuleIndividual || r == WholesalePriceKeepRuleAverage
}

// WholesalePriceResourceType distinguishes plain product lots from bundle lots.
type WholesalePriceResourceType string

const (
	WholesalePriceResourceTypeProduct WholesalePriceResourceType = "product"
	WholesalePriceResourceTypeBundle  WholesalePriceResourceType = "bundle"
)

type BundleItemStatus string

const (
	BundleItemStatusDraft     BundleItemStatus = "DRAFT"
	BundleItemStatusPublished BundleItemStatus = "PUBLISHED"
	BundleItemStatusDeleted   BundleItemStatus = "DELETED"
)

func (s BundleItemStatus) IsValid() bool {
	return s == BundleItemStatusDraft || s == BundleItemStatusPublished || s == BundleItemStatusDeleted
}

// IsTerminal reports whether no transition may leave the status.
func (s BundleItemStatus) IsTerminal() bool {
	return s == BundleItemStatusDeleted
}

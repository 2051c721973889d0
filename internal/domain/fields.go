package domain

import "sort"

// FieldKind distinguishes how a metric column is stored and compared.
type FieldKind string

const (
	FieldText FieldKind = "TEXT"
	FieldReal FieldKind = "REAL"
)

// Field describes one column of a store-metrics record.
type Field struct {
	Key   string
	Label string
	Kind  FieldKind
}

// Well-known field keys referenced outside the registry.
const (
	FieldRawID       = "rawId"
	FieldDisplayName = "MDShow"
)

// registry is the single source of truth for the record schema. The store
// derives its table columns from it, the reconciler derives its comparable
// field set, and the report derives its row labels.
var registry = []Field{
	{Key: "rawId", Label: "原始数据ID", Kind: FieldText},
	{Key: "area", Label: "区域", Kind: FieldText},
	{Key: "createDateShow", Label: "日期", Kind: FieldText},
	{Key: "MDShow", Label: "门店名称", Kind: FieldText},
	{Key: "totalScore", Label: "最终得分", Kind: FieldReal},

	{Key: "monthlyCanceledRate", Label: "月累计取消率", Kind: FieldText},
	{Key: "dailyCanceledRate", Label: "当日取消率", Kind: FieldText},
	{Key: "monthlyMerchantRefundRate", Label: "月累计商责退单率", Kind: FieldText},
	{Key: "monthlyOosRefundRate", Label: "月累计缺货退款率", Kind: FieldText},
	{Key: "monthlyJdOosRate", Label: "月累计京东秒送缺货出率", Kind: FieldText},
	{Key: "monthlyBadReviews", Label: "月累计差评总数", Kind: FieldText},
	{Key: "monthlyBadReviewRate", Label: "月累计差评率", Kind: FieldText},
	{Key: "monthlyPartialRefundRate", Label: "月累计部分退款率", Kind: FieldText},

	{Key: "dailyMeituanRating", Label: "当日美团评分", Kind: FieldText},
	{Key: "dailyElemeRating", Label: "当日饿了么评分", Kind: FieldText},
	{Key: "dailyMeituanReplyRate", Label: "当日美团近7日首条消息1分钟人工回复率", Kind: FieldText},
	{Key: "effectReply", Label: "有效回复", Kind: FieldText},
	{Key: "monthlyMeituanPunctualityRate", Label: "月累计美团配送准时率", Kind: FieldText},
	{Key: "monthlyElemeOntimeRate", Label: "月累计饿了么及时送达率", Kind: FieldText},
	{Key: "monthlyJdFulfillmentRate", Label: "月累计京东秒送订单履约率", Kind: FieldText},
	{Key: "meituanComprehensiveExperienceDivision", Label: "美团综合体体验分", Kind: FieldText},

	{Key: "monthlyAvgStockRate", Label: "月平均有货率", Kind: FieldText},
	{Key: "monthlyAvgTop500StockRate", Label: "月平均TOP500有货率", Kind: FieldText},
	{Key: "monthlyAvgDirectStockRate", Label: "月平均直配直送有货率", Kind: FieldText},
	{Key: "dailyTop500StockRate", Label: "当日TOP500有货率", Kind: FieldText},
	{Key: "dailyWarehouseSoldOut", Label: "当日仓配售罄数", Kind: FieldText},
	{Key: "dailyWarehouseStockRate", Label: "当日仓配有货率", Kind: FieldText},
	{Key: "dailyDirectSoldOut", Label: "当日直送售罄数", Kind: FieldText},
	{Key: "dailyDirectStockRate", Label: "当日直送有货率", Kind: FieldText},
	{Key: "dailyHybridSoldOut", Label: "当日直配售罄数", Kind: FieldText},
	{Key: "dailyStockAvailability", Label: "当日有货率", Kind: FieldText},
	{Key: "dailyHybridStockRate", Label: "当日直配有货率", Kind: FieldText},
	{Key: "stockNoLocation", Label: "有库存无库位数", Kind: FieldText},
	{Key: "expiryManagement", Label: "效期管理", Kind: FieldText},
	{Key: "inventoryLockOrders", Label: "库存锁定单数", Kind: FieldText},
	{Key: "trainingCompleted", Label: "培训完结", Kind: FieldText},

	{Key: "monthlyManhourPer100Orders", Label: "月累计百单编制工时", Kind: FieldReal},
	{Key: "monthlyTotalLoss", Label: "月累计综合损溢额", Kind: FieldReal},
	{Key: "monthlyTotalLossRate", Label: "月累计综合损溢率", Kind: FieldText},
	{Key: "monthlyAvgDeliveryFee", Label: "本月累计单均配送费", Kind: FieldReal},
	{Key: "dailyAvgDeliveryFee", Label: "当日单均配送费", Kind: FieldReal},

	{Key: "monthlyCumulativeCancelRateScore", Label: "月累计取消率得分", Kind: FieldText},
	{Key: "monthlyMerchantLiabilityRefundRateScore", Label: "月累计商责退单率得分", Kind: FieldText},
	{Key: "monthlyStockoutRefundRateScore", Label: "月累计缺货退款率得分", Kind: FieldText},
	{Key: "monthlyNegativeReviewRateScore", Label: "月累计差评率得分", Kind: FieldText},
	{Key: "monthlyPartialRefundRateScore", Label: "月累计部分退款率得分", Kind: FieldText},
	{Key: "dailyMeituanRatingScore", Label: "当日美团评分得分", Kind: FieldText},
	{Key: "dailyElemeRatingScore", Label: "当日饿了么评分得分", Kind: FieldText},
	{Key: "monthlyMeituanDeliveryPunctualityRateScore", Label: "月累计美团配送准时率得分", Kind: FieldText},
	{Key: "monthlyElemeTimelyDeliveryRateScore", Label: "月累计饿了么及时送达率得分", Kind: FieldText},

	{Key: "validReplyWeightingPenalty", Label: "有效回复降权", Kind: FieldText},
	{Key: "monthlyAverageStockRateWeightingPenalty", Label: "月平均有货率降权", Kind: FieldText},
	{Key: "monthlyAverageTop500StockRateWeightingPenalty", Label: "月平均TOP500有货率降权", Kind: FieldText},
	{Key: "monthlyAverageDirectStockRateWeightingPenalty", Label: "月平均直配直送有货率降权", Kind: FieldText},
	{Key: "newProductComplianceListingWeightingPenalty", Label: "新品合规上新降权", Kind: FieldText},
	{Key: "expiryManagementWeightingPenalty", Label: "效期管理降权", Kind: FieldText},
	{Key: "inventoryLockWeightingPenalty", Label: "库存锁定降权", Kind: FieldText},
	{Key: "monthlyCumulativeHundredOrdersManhourWeightingPenalty", Label: "月累计百单编制工时降权", Kind: FieldText},
	{Key: "totalScoreWithoutWeightingPenalty", Label: "总得分（不含降权）", Kind: FieldText},
	{Key: "monthlyCumulativeMerchantLiabilityRefundRateWeightingPenalty", Label: "月累计商责退单率降权", Kind: FieldText},
	{Key: "monthlyCumulativeOutOfStockRefundRateWeightingPenalty", Label: "月累计缺货退款率降权", Kind: FieldText},
	{Key: "meituanComplexExperienceScoreWeightingPenalty", Label: "美团综合体体验分降权", Kind: FieldText},
	{Key: "meituanRatingWeightingPenalty", Label: "美团评分降权", Kind: FieldText},
	{Key: "elemeRatingWeightingPenalty", Label: "饿了么评分降权", Kind: FieldText},
	{Key: "partialRefundWeightingPenalty", Label: "部分退款降权", Kind: FieldText},
	{Key: "trainingCompletedWeightingPenalty", Label: "培训完结降权", Kind: FieldText},
	{Key: "totalWeightingPenalty", Label: "总降权", Kind: FieldText},
}

// spreadsheetMetrics maps metric row labels found in uploaded workbooks to
// registry keys. Workbook labels differ slightly from portal labels.
var spreadsheetMetrics = map[string]string{
	"月累计取消率":      "monthlyCanceledRate",
	"当日取消率":       "dailyCanceledRate",
	"月累计商责退款率":    "monthlyMerchantRefundRate",
	"月累计部分退款率":    "monthlyPartialRefundRate",
	"当日美团评分":      "dailyMeituanRating",
	"当日饿了么评分":     "dailyElemeRating",
	"月累计美团配送准时率":  "monthlyMeituanPunctualityRate",
	"月累计饿了么及时送达率": "monthlyElemeOntimeRate",
	"月平均有货率":      "monthlyAvgStockRate",
	"月平均TOP500有货率": "monthlyAvgTop500StockRate",
	"月平均直送直配有货率":  "monthlyAvgDirectStockRate",
	"月累计缺货退款率":    "monthlyOosRefundRate",
	"月累计差评率":      "monthlyBadReviewRate",
	"月累计差评总数":     "monthlyBadReviews",
	"当日美团近7日首条消息1分钟人工回复率": "dailyMeituanReplyRate",
	"有效回复":         "effectReply",
	"月累计京东秒送订单履约率": "monthlyJdFulfillmentRate",
	"美团综合体体验分":     "meituanComprehensiveExperienceDivision",
}

// Registry returns the schema fields in their canonical column order.
func Registry() []Field {
	out := make([]Field, len(registry))
	copy(out, registry)
	return out
}

// FieldKeys returns all registry keys in canonical order.
func FieldKeys() []string {
	keys := make([]string, len(registry))
	for i, f := range registry {
		keys[i] = f.Key
	}
	return keys
}

// FieldByKey looks up a registry field.
func FieldByKey(key string) (Field, bool) {
	for _, f := range registry {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// FieldLabel returns the human label for a key, or the key itself.
func FieldLabel(key string) string {
	if f, ok := FieldByKey(key); ok {
		return f.Label
	}
	return key
}

// ComparableFieldKeys returns the registry keys reachable from workbook
// metric labels, sorted. This is the default reconciliation field selection.
func ComparableFieldKeys() []string {
	seen := make(map[string]struct{}, len(spreadsheetMetrics))
	for _, key := range spreadsheetMetrics {
		seen[key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SpreadsheetMetricKey resolves a workbook metric label to a registry key;
// unknown labels map to themselves so the caller can report them.
func SpreadsheetMetricKey(label string) (string, bool) {
	key, ok := spreadsheetMetrics[label]
	if !ok {
		return label, false
	}
	return key, true
}

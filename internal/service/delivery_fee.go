package service

import "strings"

// FeeTable computes delivery fees from the order subtotal and destination region.
type FeeTable struct {
	FreeThreshold int64
	DefaultFee    int64
	RegionFees    map[string]int64
}

// NewFeeTable builds a FeeTable, lower-casing region names so lookups match
// regardless of how they were configured.
func NewFeeTable(freeThreshold, defaultFee int64, regionFees map[string]int64) FeeTable {
	fees := make(map[string]int64, len(regionFees))
	for region, fee := range regionFees {
		fees[normalizeRegion(region)] = fee
	}
	return FeeTable{FreeThreshold: freeThreshold, DefaultFee: defaultFee, RegionFees: fees}
}

// DefaultFeeTable is the reference fee schedule.
func DefaultFeeTable() FeeTable {
	return NewFeeTable(1000000, 5000, map[string]int64{
		"lagos": 1000,
		"abuja": 2000,
		"kano":  3000,
	})
}

func normalizeRegion(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}

// Fee returns 0 at or above the free-shipping threshold, otherwise the fee for
// the case-insensitive region, falling back to the default fee.
func (t FeeTable) Fee(subtotal int64, region string) int64 {
	if subtotal >= t.FreeThreshold {
		return 0
	}
	if fee, ok := t.RegionFees[normalizeRegion(region)]; ok {
		return fee
	}
	return t.DefaultFee
}

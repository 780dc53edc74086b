package document

import (
	"docflow/config"
	"time"
)

const customRetentionYears = -1

// ComputeRetentionExpiry returns when a document created at createdAt may be disposed of,
// nil when the policy keeps it indefinitely. customYears applies to the custom policy only.
// Anniversaries of Feb 29 fall back to Feb 28 in non-leap years.
func ComputeRetentionExpiry(catalog *config.Catalog, policyName string, createdAt time.Time, customYears int) *time.Time {
	policy, found := catalog.FindRetentionPolicy(policyName)
	if !found {
		return nil
	}
	years := policy.Years
	if years == customRetentionYears {
		years = customYears
	}
	if years <= 0 {
		return nil
	}

	expiry := createdAt.AddDate(years, 0, 0)
	if createdAt.Month() == time.February && createdAt.Day() == 29 && expiry.Month() != time.February {
		expiry = createdAt.AddDate(0, 0, -1).AddDate(years, 0, 0)
	}
	return &expiry
}

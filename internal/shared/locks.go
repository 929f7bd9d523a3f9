package shared

import (
	"fmt"
	"time"
)

// PhotoSweepLockKey builds the redis key guarding a single evidence sweep run per day.
func PhotoSweepLockKey(day time.Time) string {
	return fmt.Sprintf("cashrecon:evidence:sweep:%s:lock", day.UTC().Format("2006-01-02"))
}

// SettingsCacheKey builds the redis key for cached store settings.
func SettingsCacheKey(storeID int64) string {
	return fmt.Sprintf("cashrecon:settings:store:%d", storeID)
}

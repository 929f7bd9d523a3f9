// Package settings exposes the per-store reconciliation configuration. The engine only reads it.
package settings

import (
	"fmt"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// Settings mirrors store_reconciliation_settings.
type Settings struct {
	StoreID               int64 `json:"store_id"`
	LedgerEnabled         bool  `json:"ledger_enabled"`
	DepositToleranceCents int64 `json:"deposit_tolerance_cents"`
	DenomToleranceCents   int64 `json:"denom_tolerance_cents"`
	ExpectedDrawerCents   int64 `json:"expected_drawer_cents"`
	PhotoRetentionDays    int   `json:"photo_retention_days"`
	PhotoPurgeDayOfMonth  int   `json:"photo_purge_day_of_month"`
}

var (
	// ErrNotFound indicates the store has no reconciliation settings.
	ErrNotFound = shared.E(shared.KindNotFound, "settings: store not configured")
	// ErrInvalid indicates stored settings that the engine refuses to act on.
	ErrInvalid = shared.E(shared.KindInvalidInput, "settings: invalid configuration")
)

// Validate rejects negative tolerances and out-of-range purge days.
func (s Settings) Validate() error {
	switch {
	case s.DepositToleranceCents < 0:
		return fmt.Errorf("%w: deposit tolerance %d", ErrInvalid, s.DepositToleranceCents)
	case s.DenomToleranceCents < 0:
		return fmt.Errorf("%w: denomination tolerance %d", ErrInvalid, s.DenomToleranceCents)
	case s.ExpectedDrawerCents < 0:
		return fmt.Errorf("%w: expected drawer %d", ErrInvalid, s.ExpectedDrawerCents)
	case s.PhotoRetentionDays <= 0:
		return fmt.Errorf("%w: photo retention days %d", ErrInvalid, s.PhotoRetentionDays)
	case s.PhotoPurgeDayOfMonth < 1 || s.PhotoPurgeDayOfMonth > 28:
		return fmt.Errorf("%w: purge day %d", ErrInvalid, s.PhotoPurgeDayOfMonth)
	}
	return nil
}

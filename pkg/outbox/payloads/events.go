package payloads

import (
	"time"

	"github.com/google/uuid"
)

// CartMergedEvent is emitted once a guest cart has been folded into a user cart.
type CartMergedEvent struct {
	UserID        uuid.UUID `json:"user_id"`
	GuestLines    int       `json:"guest_lines"`
	MigratedLines int       `json:"migrated_lines"`
	FailedLines   int       `json:"failed_lines"`
	MergedAt      time.Time `json:"merged_at"`
}

// CartRetentionPurgedEvent reports one retention sweep over both cart tables.
type CartRetentionPurgedEvent struct {
	RunID            uuid.UUID `json:"run_id"`
	GuestLinesPurged int64     `json:"guest_lines_purged"`
	UserLinesPurged  int64     `json:"user_lines_purged"`
	UserCutoff       time.Time `json:"user_cutoff"`
	RanAt            time.Time `json:"ran_at"`
}

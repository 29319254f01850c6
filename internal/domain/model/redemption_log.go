package model

import "time"

// RedemptionEntry records one successful code activation. Entries are
// append-only; the ID is a ULID so the log sorts by time.
type RedemptionEntry struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	ChildID     string    `json:"child_id"`
	IP          string    `json:"ip"`
	Site        string    `json:"site"`
	ActivatedAt time.Time `json:"activated_at"`
	Duration    int       `json:"duration"` // minutes
}

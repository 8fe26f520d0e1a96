package models

import "time"

// VaultStatus is the singleton aggregate of all active pledges
type VaultStatus struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	TotalPledges    int64      `gorm:"not null;default:0" json:"total_pledges"`
	TotalSeats      int64      `gorm:"not null;default:0" json:"total_seats"`
	PledgeReachedAt *time.Time `json:"pledge_reached_at,omitempty"`
	UpdatedAt       time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (VaultStatus) TableName() string {
	return "vault_status"
}

// GoalReached reports whether the threshold timestamp has been recorded
func (v *VaultStatus) GoalReached() bool {
	return v.PledgeReachedAt != nil
}

// VaultTotals is the result of an atomic counter adjustment
type VaultTotals struct {
	TotalPledges    int64      `gorm:"column:total_pledges"`
	TotalSeats      int64      `gorm:"column:total_seats"`
	PledgeReachedAt *time.Time `gorm:"column:pledge_reached_at"`
}

// VaultDrift compares the stored aggregate against the pledges table
type VaultDrift struct {
	StoredPledges int64 `json:"stored_pledges"`
	StoredSeats   int64 `json:"stored_seats"`
	ActualPledges int64 `json:"actual_pledges"`
	ActualSeats   int64 `json:"actual_seats"`
	Repaired      bool  `json:"repaired"`
}

// HasDrift reports whether the stored aggregate disagrees with the pledges table
func (d VaultDrift) HasDrift() bool {
	return d.StoredPledges != d.ActualPledges || d.StoredSeats != d.ActualSeats
}

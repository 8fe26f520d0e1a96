package dto

// VaultStatusResponse is the public view of campaign progress
type VaultStatusResponse struct {
	TotalPledges    int64   `json:"total_pledges"`
	TotalSeats      int64   `json:"total_seats"`
	SeatGoal        int64   `json:"seat_goal"`
	SeatsRemaining  int64   `json:"seats_remaining"`
	ProgressPercent float64 `json:"progress_percent"`
	Stage           string  `json:"stage"`
	GoalReached     bool    `json:"goal_reached"`
	PledgeReachedAt *string `json:"pledge_reached_at,omitempty"`
}

// ReconcileVaultResponse reports drift between the aggregate and the pledges table
type ReconcileVaultResponse struct {
	StoredPledges int64 `json:"stored_pledges"`
	StoredSeats   int64 `json:"stored_seats"`
	ActualPledges int64 `json:"actual_pledges"`
	ActualSeats   int64 `json:"actual_seats"`
	Drift         bool  `json:"drift"`
	Repaired      bool  `json:"repaired"`
}

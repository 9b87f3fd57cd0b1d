package lottery

// RoundResult is the audit view of a finished round: the recorded seed, the
// settlement summary and every winner.
type RoundResult struct {
	Round      Round          `json:"round"`
	Tickets    int64          `json:"tickets"`
	Settlement *Settlement    `json:"settlement,omitempty"`
	Winners    []WinnerRecord `json:"winners"`
}

// Final reports whether the result can no longer change.
func (r RoundResult) Final() bool {
	return r.Round.Status.Terminal()
}

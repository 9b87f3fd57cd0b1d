package redis

const (
	// PrefixRoundResult caches the audit view of a finished round.
	PrefixRoundResult = "lotto:result:"
)

// RoundResultKey is lotto:result:{round_id}.
func RoundResultKey(roundID string) string { return PrefixRoundResult + roundID }

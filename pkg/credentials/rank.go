package credentials

import (
	"sort"
	"time"
)

// Rank orders credentials for selection: fewest consecutive errors first, then
// least total usage. Ties keep their input order.
//
// The input slice is not modified.
func Rank(creds []Credential) []Credential {
	ranked := make([]Credential, len(creds))
	copy(ranked, creds)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ErrorsSinceLastSuccess != b.ErrorsSinceLastSuccess {
			return a.ErrorsSinceLastSuccess < b.ErrorsSinceLastSuccess
		}
		return a.TotalRequests() < b.TotalRequests()
	})

	return ranked
}

// applyOutcome is the in-memory form of the counter transition. The SQL
// backends express the same transition as a single UPDATE statement.
func applyOutcome(c *Credential, outcome Outcome, now func() time.Time) {
	if outcome.Success {
		c.SuccessCount++
		c.ErrorsSinceLastSuccess = 0
		c.FirstErrorAt = nil
		c.ErrorStreakStartedAt = nil
		return
	}

	c.ErrorCount++
	c.ErrorsSinceLastSuccess++
	if c.FirstErrorAt == nil || c.ErrorStreakStartedAt == nil {
		ts := now()
		if c.FirstErrorAt == nil {
			c.FirstErrorAt = &ts
		}
		if c.ErrorStreakStartedAt == nil {
			started := ts
			c.ErrorStreakStartedAt = &started
		}
	}
}

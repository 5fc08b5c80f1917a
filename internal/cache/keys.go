package cache

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// AnalysisKey identifies a completed alarm analysis by its alarm triple.
func AnalysisKey(date, eqpID, kpi string) string {
	return fmt.Sprintf("analysis:alarm:%s:%s:%s", date, eqpID, kpi)
}

// QuestionKey identifies a completed question-answer run by a hash of the
// normalized question text.
func QuestionKey(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	return fmt.Sprintf("qa:question:%x", md5.Sum([]byte(normalized)))
}

// SessionKey identifies a phase-1-complete analysis awaiting human selection.
func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// RateLimitKey identifies a rate-limit counter for one client.
func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}

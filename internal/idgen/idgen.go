// Package idgen derives the deterministic UUIDv5 identifiers the analysis
// core requires: trade, session, and report ids must be stable across
// re-runs of the same input so that serialized artifacts are byte-identical.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// temperNamespace anchors every UUIDv5 derivation in this package. It is an
// arbitrary fixed UUID, not derived from anything — changing it would change
// every id the system has ever produced.
var temperNamespace = uuid.MustParse("7f6a6e0a-6e2f-4c1a-9f34-2a8c2e6f9b10")

// TradeID derives the stable id for a trade at index within sessionID.
func TradeID(sessionID string, index int) string {
	name := fmt.Sprintf("%s:%d", sessionID, index)
	return uuid.NewSHA1(temperNamespace, []byte(name)).String()
}

// SessionID derives the stable id for a user's session on date (YYYY-MM-DD).
func SessionID(userID, date string) string {
	name := fmt.Sprintf("%s:%s", userID, date)
	return uuid.NewSHA1(temperNamespace, []byte(name)).String()
}

// ReportID derives the stable id for a TemperReport.
func ReportID(sessionID, date string) string {
	name := fmt.Sprintf("%s:%s", sessionID, date)
	return uuid.NewSHA1(temperNamespace, []byte(name)).String()
}

package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// timeSensitiveFuncs disqualify a statement from result caching: their output
// changes between executions with identical text and parameters.
var timeSensitiveFuncs = []string{
	"NOW(",
	"CURRENT_TIMESTAMP",
	"CURRENT_DATE",
	"CURRENT_TIME",
	"CURDATE(",
	"CURTIME(",
	"SYSDATE(",
	"UNIX_TIMESTAMP(",
	"RAND(",
	"UUID(",
	"LAST_INSERT_ID(",
}

// normalizeSQL collapses whitespace and uppercases keywords-insensitively so
// textually equivalent statements share one cache and prepared-handle slot.
func normalizeSQL(sqlText string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(sqlText)), " ")
}

// commandWord returns the leading SQL verb, uppercased.
func commandWord(normalized string) string {
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// isCacheable reports whether a normalized statement is eligible for result
// caching: a SELECT with no time-sensitive functions. The row-count cap is
// enforced after execution.
func isCacheable(normalized string) bool {
	if commandWord(normalized) != "SELECT" {
		return false
	}
	upper := strings.ToUpper(normalized)
	for _, fn := range timeSensitiveFuncs {
		if strings.Contains(upper, fn) {
			return false
		}
	}
	return true
}

// cacheKey fingerprints a statement and its parameters. The primary table
// name is kept in the key so invalidateByPattern("users:*") works without a
// reverse index.
func cacheKey(normalized string, params []interface{}) string {
	h := sha256.New()
	h.Write([]byte(normalized))
	for _, p := range params {
		fmt.Fprintf(h, "|%v", p)
	}
	return "query:" + tableHint(normalized) + ":" + hex.EncodeToString(h.Sum(nil))
}

// tableHint extracts the first identifier after FROM, or "misc" when the
// statement has no FROM clause.
func tableHint(normalized string) string {
	fields := strings.Fields(normalized)
	for i, f := range fields {
		if strings.EqualFold(f, "FROM") && i+1 < len(fields) {
			table := strings.Trim(fields[i+1], "`\"(),;")
			if table != "" {
				return strings.ToLower(table)
			}
		}
	}
	return "misc"
}

// Package logs tails the daemon log file for `confcap logs`.
//
// Reads are bounded: a negative offset returns the last N lines, a
// non-negative offset continues from a previous call, and follow mode polls
// until new lines arrive or the wait expires. Filters apply to JSON log
// lines and fall back to substring search for console output.
package logs

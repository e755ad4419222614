// Package logging wraps log/slog with the stable, grep-able line names
// spec.md §6 requires, grounded on the teacher's `*slog.Logger` parameter-
// passing style (cmd/bd/daemon_event_loop.go) rather than a package-global
// logger.
package logging

import (
	"log/slog"
	"os"
)

// Stable log line names (spec.md §6) — grep targets, never reworded.
const (
	LineRobotsDisallow        = "ROBOTS_DISALLOW"
	LineSSLFallbackVerifyFalse = "SSL_FALLBACK_VERIFY_FALSE"
	LineRISHTTPFallbackUsed   = "RIS_HTTP_FALLBACK_USED"
	LineSkipContainer         = "SKIP_CONTAINER"
	LineSkipNoProcedureSignal = "SKIP_NO_PROCEDURE_SIGNAL"
	LineSkipLowConfidenceNoSignal = "SKIP_LOW_CONFIDENCE_NO_SIGNAL"
	LineMunicipalitySummary   = "MUNICIPALITY_SUMMARY"
)

// New builds the process-wide structured logger: JSON to stdout, grounded on
// the teacher's daemon logging setup (JSON handler, configurable level).
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// RobotsDisallow logs a skipped fetch blocked by robots.txt (spec.md §7:
// "not an error", so this is an Info line, not a Warn/Error one).
func RobotsDisallow(log *slog.Logger, url string) {
	log.Info(LineRobotsDisallow, "url", url)
}

// SSLFallbackVerifyFalse logs an allowlisted host's insecure-verify retry.
func SSLFallbackVerifyFalse(log *slog.Logger, host string) {
	log.Warn(LineSSLFallbackVerifyFalse, "host", host)
}

// RISHTTPFallbackUsed logs an RIS HTTPS→HTTP downgrade.
func RISHTTPFallbackUsed(log *slog.Logger, url string) {
	log.Warn(LineRISHTTPFallbackUsed, "url", url)
}

// SkipContainer logs a candidate rejected by is_valid_procedure as a container.
func SkipContainer(log *slog.Logger, url, title string) {
	log.Info(LineSkipContainer, "url", url, "title", title)
}

// SkipNoProcedureSignal logs a candidate with no BESS/procedure signal at all.
func SkipNoProcedureSignal(log *slog.Logger, url string) {
	log.Info(LineSkipNoProcedureSignal, "url", url)
}

// SkipLowConfidenceNoSignal logs a candidate below the confidence floor with
// no strong evidence to justify manual review.
func SkipLowConfidenceNoSignal(log *slog.Logger, url string, confidence float64) {
	log.Info(LineSkipLowConfidenceNoSignal, "url", url, "confidence", confidence)
}

// MunicipalitySummary logs the one-line per-discovery-job-completion summary
// spec.md §7 requires: "showing per-source status and cumulative procedures
// saved".
func MunicipalitySummary(log *slog.Logger, municipalityKey string, sourceStatuses map[string]string, proceduresSaved int) {
	args := make([]any, 0, 4+2*len(sourceStatuses))
	args = append(args, "municipality_key", municipalityKey, "procedures_saved", proceduresSaved)
	for source, status := range sourceStatuses {
		args = append(args, source, status)
	}
	log.Info(LineMunicipalitySummary, args...)
}

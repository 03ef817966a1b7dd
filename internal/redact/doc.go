// Package redact is the memory subsystem's secret-redaction engine (C1).
//
// It is deliberately independent of internal/logging's redactForLogs: that
// package scrubs a short allowlist of field names before they hit a log
// sink, while this package is the normative gate on everything that reaches
// durable memory content, evidence, or vector metadata (spec.md §4.1, §9).
package redact

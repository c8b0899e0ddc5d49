// Package validate provides input validation for API path and body parameters.
// Everything here runs before any side effect; reject first, then act.
package validate

import (
	"regexp"
	"strings"
)

// ReasonMaxLen caps the free-text reason on trigger requests (stored and logged).
const ReasonMaxLen = 512

// K8s name regex: DNS subdomain (RFC 1123) — lowercase alphanumeric, '-' or '.',
// max 253 chars.
var k8sNameRe = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// ServiceName validates a service name: valid DNS subdomain.
func ServiceName(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}
	return k8sNameRe.MatchString(strings.ToLower(name))
}

// Namespace validates a namespace: empty (use default) or valid DNS subdomain.
func Namespace(ns string) bool {
	if ns == "" {
		return true
	}
	if len(ns) > 253 {
		return false
	}
	return k8sNameRe.MatchString(strings.ToLower(ns))
}

// Reason validates the trigger reason: non-empty, bounded, single line.
func Reason(reason string) bool {
	if reason == "" || len(reason) > ReasonMaxLen {
		return false
	}
	return !strings.ContainsAny(reason, "\r\n")
}

// HealthPath validates a probe path: absolute, no query, bounded.
func HealthPath(path string) bool {
	if path == "" || len(path) > 256 {
		return false
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}
	return !strings.ContainsAny(path, "?# \t\r\n")
}

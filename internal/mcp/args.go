package mcp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"codescope/internal/errs"

	"github.com/mark3labs/mcp-go/mcp"
)

var (
	collectionRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
	// Repo and branch each take half a collection name, minus the separator.
	vcsPartRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,48}$`)
)

var blockedPrefixes = []string{"/etc/", "/proc/", "/sys/", "/root/"}

var injectionMarkers = []string{"<script", "javascript:", "onload=", "onerror="}

// checkPath rejects traversal segments and system prefixes before a path
// reaches the filesystem.
func checkPath(field, p string) error {
	if p == "" {
		return errs.Invalid(field, "path is required")
	}
	if strings.Contains(p, "..") {
		return errs.Invalid(field, "path must not contain '..'")
	}
	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(p, prefix) {
			return errs.Invalid(field, fmt.Sprintf("paths under %s are not allowed", prefix))
		}
	}
	return nil
}

func checkCollection(name string) error {
	if !collectionRe.MatchString(name) {
		return errs.Invalid("collection", "must match [A-Za-z0-9_-]{1,100}")
	}
	return nil
}

func checkVCSPart(field, v string) error {
	if !vcsPartRe.MatchString(v) {
		return errs.Invalid(field, "must match [A-Za-z0-9_-]{1,48}")
	}
	return nil
}

func checkQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return errs.Invalid("query", "query is required")
	}
	lower := strings.ToLower(q)
	for _, marker := range injectionMarkers {
		if strings.Contains(lower, marker) {
			return errs.Invalid("query", fmt.Sprintf("query contains disallowed sequence %q", marker))
		}
	}
	return nil
}

// toolError renders err as a tool error result with the error kind as prefix.
func toolError(err error) *mcp.CallToolResult {
	if e, ok := err.(*errs.Error); ok {
		return mcp.NewToolResultError(e.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", errs.KindOf(err), err))
}

// jsonResult marshals v as the tool's text content.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(errs.Wrap(errs.KindInternal, "mcp.encode", err))
	}
	return mcp.NewToolResultText(string(data))
}

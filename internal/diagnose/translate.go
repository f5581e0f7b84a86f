// Package diagnose maps low-level collaborator failures into categorized,
// actionable user messages. Translation never changes the underlying error
// kind; the CLI still classifies exit status from the original error chain.
package diagnose

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"reelforge/internal/services"
)

// Category labels the translated failure for display and log filtering.
type Category string

const (
	CategoryMissingConfig        Category = "missing-config-export"
	CategoryUnresolvedDependency Category = "unresolved-dependency"
	CategoryMissingFile          Category = "missing-file"
	CategoryCompositionNotFound  Category = "composition-not-found"
	CategoryUnknown              Category = "unknown"
)

// Report is the user-facing rendering of a terminal pipeline error.
type Report struct {
	Category Category
	Message  string
	// Detail carries the raw error chain; populated only in verbose mode.
	Detail string
}

// moduleRefPatterns match the unresolved-module shapes bundlers emit.
var moduleRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)can(?:not|'t) (?:resolve|find) module ['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?i)can(?:not|'t) resolve ['"]([^'"]+)['"]`),
	regexp.MustCompile(`(?i)module not found[:\s]+['"]([^'"]+)['"]`),
}

// Translate produces a categorized report for a terminal error. Unknown
// failures pass through with their original message and the unknown category.
func Translate(err error, verbose bool) Report {
	if err == nil {
		return Report{Category: CategoryUnknown, Message: "unknown failure"}
	}

	report := Report{Category: CategoryUnknown, Message: err.Error()}
	if verbose {
		report.Detail = errorChain(err)
	}

	message := err.Error()
	switch {
	case strings.Contains(message, "config export not found"),
		strings.Contains(message, "config export is not a plain literal"):
		report.Category = CategoryMissingConfig
		report.Message = fmt.Sprintf("%s\nExport a literal `config` object (id, durationInSeconds, fps, width, height) from your animation file.", message)
	case moduleRef(message) != "":
		name := moduleRef(message)
		report.Category = CategoryUnresolvedDependency
		report.Message = fmt.Sprintf("module %q is not installed in the renderer.\nInstall it next to your animation file or add its location to bundler.resolve_dirs.", name)
	case errors.Is(err, fs.ErrNotExist), strings.Contains(message, "no such file or directory"):
		report.Category = CategoryMissingFile
		report.Message = message
	case errors.Is(err, services.ErrCompositionNotFound):
		report.Category = CategoryCompositionNotFound
		report.Message = fmt.Sprintf("%s\nCheck that the id in your config matches the composition registered by the entry module.", message)
	}

	return report
}

// ModuleRef extracts the offending module name from an unresolved-dependency
// error message, or returns the empty string.
func ModuleRef(err error) string {
	if err == nil {
		return ""
	}
	return moduleRef(err.Error())
}

func moduleRef(message string) string {
	for _, pattern := range moduleRefPatterns {
		if match := pattern.FindStringSubmatch(message); match != nil {
			return match[1]
		}
	}
	return ""
}

func errorChain(err error) string {
	return strings.Join(appendChain(nil, err), "\n  caused by: ")
}

func appendChain(parts []string, err error) []string {
	if err == nil {
		return parts
	}
	parts = append(parts, err.Error())
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			parts = appendChain(parts, inner)
		}
	case interface{ Unwrap() error }:
		parts = appendChain(parts, u.Unwrap())
	}
	return parts
}

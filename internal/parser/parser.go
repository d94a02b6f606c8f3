// Package parser provides language-specific source-to-IR adapters.
// Each parser is a value carrying its supported extensions and a parse
// function; dispatch is a map lookup by file extension. Parsing is
// total: malformed input produces a degraded, possibly empty IR, never
// an error.
package parser

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
)

// ParseFunc turns a file path and raw source into an IR. It must never
// panic and must mark unrecoverable input via IR.Degraded.
type ParseFunc func(path string, src []byte) *ir.IR

// Parser is one language capability: a name, the extensions it claims,
// and its parse function.
type Parser struct {
	Name       string
	Extensions []string
	Parse      ParseFunc
}

// Registry dispatches files to parsers by extension.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry builds a registry from the given parsers. Later parsers
// win extension conflicts.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	for _, p := range parsers {
		for _, ext := range p.Extensions {
			r.byExt[strings.ToLower(ext)] = p
		}
	}
	return r
}

// DefaultRegistry returns the registry with all built-in languages.
func DefaultRegistry() *Registry {
	return NewRegistry(Python(), JavaScript(), PHP(), Go())
}

// ForPath returns the parser claiming the path's extension.
func (r *Registry) ForPath(path string) (Parser, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExt[ext]
	return p, ok
}

// Supported reports whether any parser claims the path.
func (r *Registry) Supported(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// SupportedExtensions returns all claimed extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ParseFile parses source for the path, returning an empty degraded IR
// when no parser claims the extension.
func (r *Registry) ParseFile(path string, src []byte) *ir.IR {
	p, ok := r.ForPath(path)
	if !ok {
		out := ir.New(path)
		out.Degraded = true
		out.DegradedDetail = "no parser for extension"
		return out
	}
	return p.Parse(path, src)
}

// moduleName derives the module identifier from a file path: the base
// name without extension.
func moduleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

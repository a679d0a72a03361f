// Package prompt renders an ordered chunk sequence into role-grouped,
// token-budgeted messages ready for a model request. Rendering is driven by a
// registry of pluggable per-chunk-type renderers with a generic JSON fallback
// for unrecognized shapes.
package prompt

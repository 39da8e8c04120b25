// Package memory implements Observational Memory: a background Observer
// that compresses unobserved transcript ranges into dense observations, and
// a Reflector that re-compresses a generation of observations into fewer,
// coarser ones once it grows past a ceiling.
//
// Observations are generation-tagged. Generation 0 rows come straight from
// the transcript and never overlap: each Observer pass starts at the
// session's high-water mark, the end of the last observed range. Rows of
// generation n+1 replace all rows of generation n in one transaction and
// carry the union of their ranges, so the high-water mark survives
// reflection.
//
// Memory is driven by the worker package; Engine.Memory exposes it for
// direct use.
package memory

// Package pipeline runs the per-file stages (structure, rewrite, include)
// over a site tree with a bounded worker pool, and generates composed pages
// from descriptors.
//
// Each file is one unit of work: its stages run in sequence on a private
// buffer and the file is written once, atomically, only when its content
// changed.
package pipeline

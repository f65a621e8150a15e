// Package compose fills a page skeleton with the fields of a page
// descriptor.
//
// A skeleton is plain text with {name} placeholders. Names follow Go
// identifier rules restricted to ASCII. "{{" and "}}" produce literal
// braces; any other brace is copied as is. Substitution is a single pass:
// values are never scanned for placeholders.
package compose

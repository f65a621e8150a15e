// Package include expands server-side include directives of the form
// <!--# include file="PATH" --> in a single, non-recursive pass.
package include

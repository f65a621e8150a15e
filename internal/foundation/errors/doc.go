// Package errors provides the classified error primitives used across htmlnorm.
//
// A ClassifiedError carries a category (what kind of thing failed), a
// severity (whether the page, the run, or nothing at all is affected) and
// a small context map that ends up as structured log attributes.
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryInclude, "include target not found").
//		Warning().
//		WithContext("directive", path).
//		WithCause(fs.ErrNotExist).
//		Build()
package errors

// Package binder populates typed request structs for handler.Wrap.
//
// JSON decodes a size-limited body strictly (unknown fields and trailing data are
// rejected). Path and Query fill fields tagged `path:"name"` and `query:"name"`;
// supported field types are strings, integers, floats, bools, pointers to those,
// slices for query values and any encoding.TextUnmarshaler such as uuid.UUID.
//
// Every failure wraps one of the package sentinels and a handler.HTTPError, so it
// renders as a 400 (or 413/415) without extra mapping.
package binder

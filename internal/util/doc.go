// Package util holds small text helpers shared by the decoder, dispatch and
// runner packages: Unicode case folding for keyword matching, truncation and
// response template rendering.
package util

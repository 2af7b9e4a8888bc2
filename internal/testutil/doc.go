// Package testutil contains helpers used across tests to reduce boilerplate
// when constructing sources and asserting on the responses a dispatch sent.
// They are not intended for production usage.
package testutil

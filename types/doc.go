// Package types defines the structured error taxonomy shared by the
// gridflow parser, validator, execution engine and model router.
package types

// Package validation validates graph documents and option structs through
// go-playground/validator struct tags and reports failures as INVALID_INPUT
// AppErrors listing every offending field.
package validation

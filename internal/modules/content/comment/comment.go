// Package comment implements discussion threads on decisions.
//
// Files in this package:
//   - types.go  : DTOs, response structs, sentinel errors, constants
//   - service.go: Service struct and all business-logic methods
//   - handler.go: Handler struct, route registration, and HTTP handlers
//   - helpers.go: response shaping and reaction summaries
//   - spam.go   : blocked-keyword screening
package comment

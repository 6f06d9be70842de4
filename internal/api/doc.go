// Package api is the service layer shared by the CLI and the HTTP server.
//
// ValidationService turns uploaded or on-disk files into a pipeline run,
// persists the run and its artifacts, and answers history queries. The DTOs
// in types.go are the wire format of the HTTP API; their snake_case keys
// match the validation response consumed by the browser front end.
//
// Errors returned from this package carry one of the sentinel markers in
// errors.go so transports can classify them without string matching.
package api

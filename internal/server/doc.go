// Package server exposes the validation service over HTTP.
//
// Routes:
//
//	POST /api/validate                 multipart "files" plus optional "nii-file"
//	GET  /api/runs                     run history, newest first (?limit=N)
//	GET  /api/runs/{id}                one stored run
//	GET  /api/runs/{id}/download?type= major_errors|errors|warnings|report
//
// Errors are returned as {"error": "..."} with 400 for invalid input, 404 for
// unknown runs and 500 otherwise.
package server

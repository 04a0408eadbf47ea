package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ProblemTypeBase prefixes the "type" member of problem responses.
const ProblemTypeBase = "https://api.hardbanrecords.com/problems/"

// problemDetail is an RFC 7807 problem body. It mirrors api.ProblemDetail so that
// middleware can answer without importing the api package.
type problemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	CorrelationID string `json:"correlationId"`
}

// writeProblem writes an application/problem+json response.
func writeProblem(w http.ResponseWriter, r *http.Request, statusCode int, detail string) error {
	problem := problemDetail{
		Type:          ProblemTypeBase + strconv.Itoa(statusCode),
		Title:         http.StatusText(statusCode),
		Status:        statusCode,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: GetCorrelationID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(problem)
}

// writeJSON writes body as application/json with statusCode.
func writeJSON(w http.ResponseWriter, statusCode int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(body)
}

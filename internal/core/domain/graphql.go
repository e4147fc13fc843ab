package domain

import (
	"encoding/json"
	"strings"
)

// Operation is a single remote GraphQL operation.
type Operation struct {
	Name      string
	Query     string
	Variables map[string]any
}

// GraphQLError is one entry of a response's errors list.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Response is a decoded GraphQL response.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// HasData reports whether the response carries a non-null data object.
func (r *Response) HasData() bool {
	d := strings.TrimSpace(string(r.Data))
	return d != "" && d != "null"
}

// ErrorMessage joins the messages of all errors.
func (r *Response) ErrorMessage() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

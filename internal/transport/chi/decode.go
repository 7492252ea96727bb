package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
)

const maxBodyBytes = 1 << 20

// decodeSearchBody decodes exactly one JSON object. Syntax errors, wrong field
// types and trailing data are validation failures, not 400s.
func decodeSearchBody(w http.ResponseWriter, r *http.Request) (SearchRequest, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	var body SearchRequest
	if err := dec.Decode(&body); err != nil {
		return SearchRequest{}, bodyError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return SearchRequest{}, request.NewFieldError("body", "unexpected data after JSON object")
	}
	return body, nil
}

func bodyError(err error) *request.ValidationError {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return request.NewFieldError("body", "request body is required")
	case errors.As(err, &syntaxErr):
		return request.NewFieldError("body", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
	case errors.Is(err, io.ErrUnexpectedEOF):
		return request.NewFieldError("body", "malformed JSON")
	case errors.As(err, &typeErr):
		return typeError(typeErr)
	case errors.As(err, &maxErr):
		return request.NewFieldError("body", fmt.Sprintf("must not exceed %d bytes", maxErr.Limit))
	default:
		return request.NewFieldError("body", "invalid JSON")
	}
}

func typeError(e *json.UnmarshalTypeError) *request.ValidationError {
	switch e.Field {
	case "":
		return request.NewFieldError("body", "must be a JSON object")
	case "query":
		return request.NewFieldError("query", "must be a string")
	case "top_k":
		return request.NewFieldError("top_k", "must be an integer")
	default:
		return request.NewFieldError(e.Field, "has an invalid type")
	}
}

// bindSearchQuery reads the GET /search parameters with the same optionality as the POST body.
func bindSearchQuery(r *http.Request) (SearchRequest, error) {
	var params SearchRequest
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "query", q, &params.Query); err != nil {
		return SearchRequest{}, request.NewFieldError("query", "must be a string")
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", q, &params.TopK); err != nil {
		return SearchRequest{}, request.NewFieldError("top_k", "must be an integer")
	}
	return params, nil
}

// newSearchRequest validates the decoded parameters. An absent query is reported as required.
func newSearchRequest(params SearchRequest, limits request.Limits) (request.Request, error) {
	query := ""
	if params.Query != nil {
		query = *params.Query
	}
	req, err := request.New(query, params.TopK, limits)
	if err == nil || params.Query != nil {
		return req, err
	}
	var ve *request.ValidationError
	if errors.As(err, &ve) {
		for i := range ve.Fields {
			if ve.Fields[i].Field == "query" {
				ve.Fields[i].Message = "field required"
			}
		}
	}
	return req, err
}

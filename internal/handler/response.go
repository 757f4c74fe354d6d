package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/duckmesh/tablequery/internal/offload"
	"github.com/duckmesh/tablequery/internal/query"
)

const (
	errCatalogConnectionFailed = "Catalog connection failed"
	errQueryExecution          = "Query execution error"
	errUnexpectedRuntime       = "Unexpected runtime error"
)

// querySuggestions are returned, in this order, with every query failure.
var querySuggestions = []string{
	"Verify table exists in the attached database",
	"Check your S3 Tables ARN format",
	"Validate AWS permissions for the bucket",
}

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type errorBody struct {
	Error       string   `json:"error"`
	Details     string   `json:"details,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type metadata struct {
	RowCount    int      `json:"row_count"`
	ColumnNames []string `json:"column_names"`
}

type successBody struct {
	Data     []orderedRow `json:"data"`
	Metadata metadata     `json:"metadata"`
}

type offloadedBody struct {
	Metadata     metadata         `json:"metadata"`
	DataLocation offload.Location `json:"data_location"`
}

func validationResponse(missing []string) Response {
	return Response{
		StatusCode: http.StatusBadRequest,
		Body:       mustJSON("Missing required parameters: " + strings.Join(missing, ", ")),
	}
}

func attachFailureResponse(err error) Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       mustJSON(errorBody{Error: errCatalogConnectionFailed, Details: err.Error()}),
	}
}

func queryFailureResponse(err error) Response {
	return Response{
		StatusCode: http.StatusBadRequest,
		Body: mustJSON(errorBody{
			Error:       errQueryExecution,
			Details:     err.Error(),
			Suggestions: querySuggestions,
		}),
	}
}

func unexpectedResponse() Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       mustJSON(errorBody{Error: errUnexpectedRuntime}),
	}
}

func newMetadata(result query.Result) metadata {
	columns := result.Columns
	if columns == nil {
		columns = []string{}
	}
	return metadata{RowCount: len(result.Rows), ColumnNames: columns}
}

func encodeSuccess(result query.Result) ([]byte, error) {
	rows := make([]orderedRow, 0, len(result.Rows))
	layout := newRowLayout(result.Columns)
	for _, values := range result.Rows {
		rows = append(rows, orderedRow{layout: layout, values: values})
	}
	return json.Marshal(successBody{Data: rows, Metadata: newMetadata(result)})
}

func encodeOffloaded(result query.Result, location offload.Location) ([]byte, error) {
	return json.Marshal(offloadedBody{Metadata: newMetadata(result), DataLocation: location})
}

// rowLayout maps result columns to object keys. A repeated column name keeps
// the position of its first occurrence and the value of its last.
type rowLayout struct {
	keys    []string
	indexOf []int
}

func newRowLayout(columns []string) rowLayout {
	layout := rowLayout{}
	position := make(map[string]int, len(columns))
	for i, column := range columns {
		if at, seen := position[column]; seen {
			layout.indexOf[at] = i
			continue
		}
		position[column] = len(layout.keys)
		layout.keys = append(layout.keys, column)
		layout.indexOf = append(layout.indexOf, i)
	}
	return layout
}

// orderedRow encodes as a JSON object whose keys follow column order.
type orderedRow struct {
	layout rowLayout
	values []any
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.layout.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')

		var value any
		if index := r.layout.indexOf[i]; index < len(r.values) {
			value = r.values[index]
		}
		encodedValue, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func mustJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		// Only fixed-shape bodies go through here.
		panic(err)
	}
	return string(encoded)
}

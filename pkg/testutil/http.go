package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONError verifies a recorded response is an {"error": ...} body
// with the given status code. An empty message matches any error.
func AssertJSONError(t *testing.T, rec *httptest.ResponseRecorder, code int, message string) {
	require.Equal(t, code, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	if len(message) > 0 {
		assert.Equal(t, message, body.Error)
	}
}

// DecodeJSON decodes a recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

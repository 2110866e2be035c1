package spec

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDocumentIsValidYAML(t *testing.T) {
	var doc struct {
		OpenAPI string                 `yaml:"openapi"`
		Paths   map[string]interface{} `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(Document(), &doc))
	assert.NotEmpty(t, doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/v1/transfers")
	assert.Contains(t, doc.Paths, "/v1/device/balance-jobs/{ownerID}/result")
}

func TestOpenAPIHandlerRevalidates(t *testing.T) {
	h := OpenAPIHandler()

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	tag := rr.Header().Get("ETag")
	require.NotEmpty(t, tag)

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	req.Header.Set("If-None-Match", tag)
	rr = httptest.NewRecorder()
	h(rr, req)
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Zero(t, rr.Body.Len())
}

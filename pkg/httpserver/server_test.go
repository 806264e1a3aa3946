package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(b, &body), string(b))
	return body.Error
}

func TestServerErrorsAreJSON(t *testing.T) {
	s := New(logger.New("disabled"))
	s.App.Get("/panic", func(*fiber.Ctx) error { panic("boom") })
	s.App.Post("/echo", func(ctx *fiber.Ctx) error { return ctx.Send(ctx.Body()) })

	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, "/panic", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, "internal error", errorBody(t, resp))

	resp, err = s.App.Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, errorBody(t, resp), "/nowhere")

	resp, err = s.App.Test(httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("ping")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

package main

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func apiEvent(method, path, body string) events.APIGatewayV2HTTPRequest {
	event := events.APIGatewayV2HTTPRequest{Version: "2.0", RawPath: path, Body: body}
	event.Headers = map[string]string{"content-type": "application/json"}
	event.RequestContext.DomainName = "relay.example.com"
	event.RequestContext.HTTP.Method = method
	event.RequestContext.HTTP.Path = path
	event.RequestContext.HTTP.SourceIP = "203.0.113.7"
	return event
}

func echoHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
		w.Header().Add("X-Seen", r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		w.Header().Add("X-Seen", r.Host)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(body)
	})
}

func TestServeAPIGatewayRoundTrip(t *testing.T) {
	event := apiEvent(http.MethodPost, "/translate", `{"texts":["hi"]}`)
	event.RawQueryString = "debug=1"

	resp, err := serveAPIGateway(t.Context(), echoHandler(t), event)
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, `{"texts":["hi"]}`, resp.Body)
	assert.False(t, resp.IsBase64Encoded)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, "POST /translate?debug=1,relay.example.com", resp.Headers["X-Seen"])
}

func TestServeAPIGatewayBase64Body(t *testing.T) {
	event := apiEvent(http.MethodPost, "/translate", base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)))
	event.IsBase64Encoded = true

	resp, err := serveAPIGateway(t.Context(), echoHandler(t), event)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Body)
}

func TestServeAPIGatewayBadBase64(t *testing.T) {
	event := apiEvent(http.MethodPost, "/translate", "%%%")
	event.IsBase64Encoded = true

	_, err := serveAPIGateway(t.Context(), echoHandler(t), event)
	require.Error(t, err)
}

func TestResponseWriterDefaults(t *testing.T) {
	rw := newResponseWriter()
	_, _ = rw.Write([]byte{0xff, 0xfe})
	rw.WriteHeader(http.StatusTeapot)

	resp := rw.event()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsBase64Encoded)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe}), resp.Body)
}

func TestHandleRequestDispatch(t *testing.T) {
	inv := &fakeInvoker{}
	w := newWarmer(inv, zap.NewNop())
	w.delay = 0
	fn := &function{handler: echoHandler(t), warmer: w, logger: zap.NewNop()}

	out, err := fn.handleRequest(t.Context(), json.RawMessage(`{"source":"warmup"}`))
	require.NoError(t, err)
	assert.Equal(t, "warm", out.(map[string]interface{})["body"].(WarmupResponse).Status)

	raw, err := json.Marshal(apiEvent(http.MethodPost, "/translate", "ping"))
	require.NoError(t, err)
	out, err = fn.handleRequest(t.Context(), raw)
	require.NoError(t, err)
	resp := out.(events.APIGatewayV2HTTPResponse)
	assert.Equal(t, "ping", resp.Body)

	_, err = fn.handleRequest(t.Context(), json.RawMessage(`"nope"`))
	require.Error(t, err)
}

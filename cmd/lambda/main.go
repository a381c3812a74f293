// Command lambda serves the control plane behind API Gateway proxy integration.
//
// Configuration comes from the file named by RHYTHMIQ_CONFIG when set, otherwise from the
// built-in defaults; Spotify credentials are always overridable through the environment.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/server"
	"github.com/desertthunder/rhythmiq/internal/shared"
)

const (
	envConfig = "RHYTHMIQ_CONFIG"
	envDBPath = "RHYTHMIQ_DB_PATH"
)

// proxy adapts API Gateway proxy events to an [http.Handler].
type proxy struct {
	handler http.Handler
	logger  *log.Logger
}

func (p *proxy) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := toRequest(ctx, event)
	if err != nil {
		p.logger.Warn("rejected malformed event", "path", event.Path, "error", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"Malformed request"}`,
		}, nil
	}

	w := newResponseWriter()
	p.handler.ServeHTTP(w, req)
	return w.response(), nil
}

func toRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		query[k] = append(query[k], vs...)
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: body is not base64: %v", shared.ErrInvalidInput, err)
		}
		body = decoded
	}

	path := event.Path
	if path == "" {
		path = "/"
	}
	u := &url.URL{Path: path, RawQuery: query.Encode()}

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	req.Host = req.Header.Get("Host")
	req.RemoteAddr = event.RequestContext.Identity.SourceIP
	return req, nil
}

// responseWriter buffers a single response for conversion into a proxy response.
type responseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: http.Header{}}
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.body.Write(p)
}

func (w *responseWriter) response() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	headers := make(map[string]string, len(w.header))
	multi := make(map[string][]string, len(w.header))
	for k, vs := range w.header {
		headers[k] = strings.Join(vs, ",")
		multi[k] = vs
	}
	delete(headers, "Set-Cookie")

	return events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           headers,
		MultiValueHeaders: multi,
		Body:              w.body.String(),
	}
}

func loadConfig(getenv func(string) string) (*shared.Config, error) {
	config := shared.DefaultConfig()
	if path := getenv(envConfig); path != "" {
		loaded, err := shared.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	if path := getenv(envDBPath); path != "" {
		config.Database.Path = path
	}
	config.ApplyEnv(getenv)
	return config, nil
}

func main() {
	logger := shared.NewLogger(os.Stderr)

	config, err := loadConfig(os.Getenv)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	cp, closeDB, err := server.OpenControlPlane(config, &http.Client{Timeout: 10 * time.Second}, logger)
	if err != nil {
		logger.Fatalf("failed to start control plane: %v", err)
	}
	defer closeDB()

	p := &proxy{handler: cp.Handler(), logger: logger}
	lambda.Start(p.Handle)
}

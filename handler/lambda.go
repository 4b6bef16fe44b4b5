package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// Lambda serves API Gateway proxy events through an http.Handler so the same
// router runs behind API Gateway and as a standalone server.
type Lambda struct {
	next http.Handler
}

func NewLambda(next http.Handler) *Lambda {
	return &Lambda{next: next}
}

// Handle converts the event to an *http.Request, runs it and converts the
// recorded response back.
func (l *Lambda) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := toRequest(ctx, event)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("handler: lambda request: %w", err)
	}
	rec := newBufferedResponse()
	l.next.ServeHTTP(rec, req)
	return rec.toEvent(), nil
}

func toRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		body = decoded
	}

	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}

	path := event.Path
	if path == "" {
		path = "/"
	}
	u := &url.URL{Path: path, RawQuery: query.Encode()}

	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
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
	if event.RequestContext.Identity.SourceIP != "" {
		req.RemoteAddr = event.RequestContext.Identity.SourceIP
	}
	if event.RequestContext.RequestID != "" && req.Header.Get(correlationHeader) == "" {
		req.Header.Set(correlationHeader, event.RequestContext.RequestID)
	}
	return req, nil
}

// bufferedResponse is an http.ResponseWriter that keeps the whole response
// in memory, as API Gateway proxy integrations require.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: http.Header{}}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) toEvent() events.APIGatewayProxyResponse {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	resp := events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           make(map[string]string, len(b.header)),
		MultiValueHeaders: make(map[string][]string, len(b.header)),
	}
	for k, vs := range b.header {
		resp.Headers[k] = strings.Join(vs, ",")
		resp.MultiValueHeaders[k] = vs
	}
	if utf8.Valid(b.body.Bytes()) {
		resp.Body = b.body.String()
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(b.body.Bytes())
		resp.IsBase64Encoded = true
	}
	return resp
}

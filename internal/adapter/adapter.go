// Package adapter translates Lambda invocation envelopes to HTTP requests on the
// gin engine and translates the responses back. It holds no application state.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
)

var ErrUnsupportedEvent = errors.New("unsupported invocation event")

// Payload identifies the envelope format of an inbound event.
type Payload int

const (
	PayloadUnknown Payload = iota
	// PayloadV1 is the API Gateway REST API / HTTP API 1.0 format.
	PayloadV1
	// PayloadV2 is the HTTP API 2.0 format, also used by function URLs.
	PayloadV2
)

func (p Payload) String() string {
	switch p {
	case PayloadV1:
		return "apigateway-v1"
	case PayloadV2:
		return "apigateway-v2"
	default:
		return "unknown"
	}
}

// probe holds just enough of an event to tell the formats apart.
type probe struct {
	Version        string `json:"version"`
	HTTPMethod     string `json:"httpMethod"`
	RequestContext struct {
		ELB  json.RawMessage `json:"elb"`
		HTTP *struct {
			Method string `json:"method"`
		} `json:"http"`
	} `json:"requestContext"`
}

// Detect reports which envelope format event uses.
func Detect(event json.RawMessage) Payload {
	var p probe
	if err := json.Unmarshal(event, &p); err != nil {
		return PayloadUnknown
	}
	switch {
	case len(p.RequestContext.ELB) > 0:
		return PayloadUnknown
	case p.Version == "2.0" && p.RequestContext.HTTP != nil:
		return PayloadV2
	case p.HTTPMethod != "":
		return PayloadV1
	default:
		return PayloadUnknown
	}
}

// Adapter wraps one gin engine for the lifetime of the process.
type Adapter struct {
	v1 *ginadapter.GinLambda
	v2 *ginadapter.GinLambdaV2
}

func New(engine *gin.Engine) *Adapter {
	return &Adapter{
		v1: ginadapter.New(engine),
		v2: ginadapter.NewV2(engine),
	}
}

// Invoke is the Lambda entry point. The returned value is the events response
// type matching the inbound format, so the runtime serializes it unchanged.
func (a *Adapter) Invoke(ctx context.Context, event json.RawMessage) (any, error) {
	switch Detect(event) {
	case PayloadV2:
		var req events.APIGatewayV2HTTPRequest
		if err := decode(event, &req); err != nil {
			return nil, err
		}
		return a.ProxyV2(ctx, req)
	case PayloadV1:
		var req events.APIGatewayProxyRequest
		if err := decode(event, &req); err != nil {
			return nil, err
		}
		return a.ProxyV1(ctx, req)
	default:
		return nil, ErrUnsupportedEvent
	}
}

func (a *Adapter) ProxyV1(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp, err := a.v1.ProxyWithContext(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("proxy %s %s: %w", req.HTTPMethod, req.Path, err)
	}
	return resp, nil
}

func (a *Adapter) ProxyV2(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := a.v2.ProxyWithContext(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("proxy %s %s: %w", req.RequestContext.HTTP.Method, req.RawPath, err)
	}
	return resp, nil
}

func decode(event json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(event))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedEvent, err)
	}
	return nil
}

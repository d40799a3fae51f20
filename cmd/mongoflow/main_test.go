package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mongoflow/internal/adapter"
	"mongoflow/internal/config"
	"mongoflow/internal/logging"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: t.Parallel() is intentionally omitted in this package; buildApp reads
// the process environment and replaces the default slog logger.

type stubParameters struct {
	value string
	err   error
}

func (s stubParameters) GetParameter(_ context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(s.value)}}, nil
}

func paramsReturning(s stubParameters) parameterClientFunc {
	return func(context.Context) (config.ParameterGetter, error) { return s, nil }
}

func unexpectedParams(t *testing.T) parameterClientFunc {
	return func(context.Context) (config.ParameterGetter, error) {
		t.Fatal("ssm must not be called")
		return nil, nil
	}
}

func TestRunningInLambda(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	assert.False(t, runningInLambda(getenv))

	env["AWS_LAMBDA_FUNCTION_NAME"] = "mongoflow-python-service"
	assert.True(t, runningInLambda(getenv))
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "lambda"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestBuildApp_WithoutDatabase(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("DB_NAME", "")

	app, err := buildApp(context.Background(), &options{logLevel: "error"}, unexpectedParams(t))
	require.NoError(t, err)

	assert.Equal(t, "mongoflow", app.Config.DBName)
	assert.Equal(t, "error", app.Config.Log.Level)
	assert.ErrorIs(t, app.Store.Configured(), config.ErrConfigMissing)

	w := httptest.NewRecorder()
	app.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"MongoFlow Python Service is running","status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	app.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"configuration missing"}`, w.Body.String())
}

func TestBuildApp_ResolvesURIFromSSM(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("MONGODB_URI_PARAMETER", "/mongoflow/uri")
	t.Setenv("LOG_LEVEL", "error")

	app, err := buildApp(context.Background(), &options{}, paramsReturning(stubParameters{value: "mongodb://db:27017"}))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", app.Config.MongoDBURI)
	assert.NoError(t, app.Store.Configured())
}

func TestResolveSecrets_FailureIsNotFatal(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"MONGODB_URI_PARAMETER": "/mongoflow/uri"})
	require.NoError(t, err)

	resolveSecrets(context.Background(), cfg, logging.Discard(), paramsReturning(stubParameters{err: errors.New("AccessDeniedException")}))
	assert.Empty(t, cfg.MongoDBURI)

	failingClient := func(context.Context) (config.ParameterGetter, error) {
		return nil, errors.New("no credentials")
	}
	resolveSecrets(context.Background(), cfg, logging.Discard(), failingClient)
	assert.Empty(t, cfg.MongoDBURI)
}

func TestNewHTTPServer(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "error")

	app, err := buildApp(context.Background(), &options{}, unexpectedParams(t))
	require.NoError(t, err)

	srv := newHTTPServer(app)
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 3*time.Second, srv.ReadTimeout)
	assert.Equal(t, app.Engine, srv.Handler)
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Setenv("PORT", "0")
	t.Setenv("LOG_LEVEL", "error")

	app, err := buildApp(context.Background(), &options{}, unexpectedParams(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, app) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

func TestLambdaHandler_RoundTrip(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	app, err := buildApp(context.Background(), &options{}, unexpectedParams(t))
	require.NoError(t, err)

	resp, err := adapter.New(app.Engine).ProxyV2(context.Background(), events.APIGatewayV2HTTPRequest{
		Version: "2.0",
		RawPath: "/health",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			DomainName: "abc123.execute-api.us-east-1.amazonaws.com",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: http.MethodGet,
				Path:   "/health",
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, resp.Body)
}

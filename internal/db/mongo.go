package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"mongoflow/internal/config"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrUnavailable marks any failure to reach MongoDB, including an open breaker.
var ErrUnavailable = errors.New("database unavailable")

const redacted = "[redacted]"

// Conn is the part of a MongoDB client the store depends on.
type Conn interface {
	Ping(ctx context.Context) error
	Collection(database, name string) *mongo.Collection
	Disconnect(ctx context.Context) error
}

// Dialer opens a Conn for the given connection string.
type Dialer func(ctx context.Context, uri string, cfg config.MongoConfig) (Conn, error)

type mongoConn struct {
	client *mongo.Client
}

func (c *mongoConn) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

func (c *mongoConn) Collection(database, name string) *mongo.Collection {
	return c.client.Database(database).Collection(name)
}

func (c *mongoConn) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// DialMongo builds a driver client. The driver connects in the background, so
// reachability is only known after the first Ping.
func DialMongo(_ context.Context, uri string, cfg config.MongoConfig) (Conn, error) {
	client, err := mongo.Connect(
		options.Client().
			ApplyURI(uri).
			SetConnectTimeout(cfg.ConnectTimeout).
			SetServerSelectionTimeout(cfg.ConnectTimeout).
			SetMaxPoolSize(cfg.MaxPoolSize),
	)
	if err != nil {
		return nil, err
	}
	return &mongoConn{client: client}, nil
}

// Store owns the process-wide MongoDB client. Nothing is dialed until the first
// operation that needs the database.
type Store struct {
	cfg  *config.Config
	cb   *gobreaker.CircuitBreaker
	dial Dialer
	log  *slog.Logger

	mu   sync.Mutex
	conn Conn
}

func NewStore(cfg *config.Config, log *slog.Logger) *Store {
	return newStore(cfg, log, DialMongo, NewCircuitBreaker("mongodb", cfg.Mongo))
}

func newStore(cfg *config.Config, log *slog.Logger, dial Dialer, cb *gobreaker.CircuitBreaker) *Store {
	return &Store{
		cfg:  cfg,
		cb:   cb,
		dial: dial,
		log:  log,
	}
}

// Configured fails fast with config.ErrConfigMissing when no URI was provided.
func (s *Store) Configured() error {
	return s.cfg.RequireMongoURI()
}

func (s *Store) Database() string       { return s.cfg.DBName }
func (s *Store) CollectionName() string { return s.cfg.CollectionName }

// Ping checks connectivity within the configured operation timeout. It returns
// config.ErrConfigMissing without a URI and ErrUnavailable for anything else.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.cfg.RequireMongoURI(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Mongo.Timeout)
	defer cancel()

	_, err := s.cb.Execute(func() (any, error) {
		conn, err := s.connect(opCtx)
		if err != nil {
			return nil, abandoned(ctx, err)
		}
		if err := conn.Ping(opCtx); err != nil {
			return nil, abandoned(ctx, fmt.Errorf("ping: %w", err))
		}
		return nil, nil
	})
	if err != nil {
		return s.unavailable(ctx, "ping", err)
	}
	return nil
}

// Collection returns the configured collection handle for data access. It
// fails fast with ErrUnavailable while the breaker is open; only Ping moves
// the breaker out of that state.
func (s *Store) Collection(ctx context.Context) (*mongo.Collection, error) {
	if err := s.cfg.RequireMongoURI(); err != nil {
		return nil, err
	}
	if s.cb.State() == gobreaker.StateOpen {
		return nil, s.unavailable(ctx, "connect", gobreaker.ErrOpenState)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Mongo.Timeout)
	defer cancel()

	conn, err := s.connect(ctx)
	if err != nil {
		return nil, s.unavailable(ctx, "connect", err)
	}
	return conn.Collection(s.cfg.DBName, s.cfg.CollectionName), nil
}

// Close disconnects the client if one was dialed. Safe to call repeatedly.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Disconnect(ctx)
	s.conn = nil
	if err != nil {
		return fmt.Errorf("disconnect: %s", s.redact(err.Error()))
	}
	return nil
}

func (s *Store) connect(ctx context.Context) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.dial(ctx, s.cfg.MongoDBURI, s.cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s.conn = conn
	return conn, nil
}

// unavailable converts a driver error into ErrUnavailable. The cause is kept
// as text only, after the connection string has been scrubbed from it.
func (s *Store) unavailable(ctx context.Context, op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	if errors.Is(err, errAbandoned) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	msg := s.redact(err.Error())
	s.log.WarnContext(ctx, "mongodb operation failed",
		"op", op,
		"database", s.cfg.DBName,
		"error", msg,
	)
	return fmt.Errorf("%w: %s", ErrUnavailable, msg)
}

func (s *Store) redact(msg string) string {
	return Redact(msg, s.cfg.MongoDBURI)
}

// secretOptions are connection string options whose values are credentials.
// Keys are lower case; the driver matches option names case-insensitively.
var secretOptions = map[string]bool{
	"password":                        true,
	"tlscertificatekeyfilepassword":   true,
	"sslclientcertificatekeypassword": true,
	"authmechanismproperties":         true,
}

// Redact removes the connection string, its credentials and the values of
// secret options from msg.
func Redact(msg, uri string) string {
	if uri == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, uri, redacted)

	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	var query string
	if i := strings.Index(rest, "?"); i >= 0 {
		query = rest[i+1:]
	}
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		rest = rest[:i]
	}

	if at := strings.LastIndex(rest, "@"); at >= 0 {
		userinfo := rest[:at]
		msg = strings.ReplaceAll(msg, userinfo, redacted)
		if _, password, ok := strings.Cut(userinfo, ":"); ok {
			msg = scrub(msg, password)
		}
	}

	for _, pair := range strings.FieldsFunc(query, func(r rune) bool { return r == '&' || r == ';' }) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || !secretOptions[strings.ToLower(key)] {
			continue
		}
		msg = scrub(msg, value)
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		// authMechanismProperties is a list of KEY:value pairs.
		for _, prop := range strings.Split(value, ",") {
			if k, v, ok := strings.Cut(prop, ":"); ok && strings.EqualFold(k, "AWS_SESSION_TOKEN") {
				msg = scrub(msg, v)
			}
		}
	}
	return msg
}

// scrub replaces secret in msg, both as written and URL-decoded.
func scrub(msg, secret string) string {
	if secret == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, secret, redacted)
	if decoded, err := url.QueryUnescape(secret); err == nil && decoded != secret && decoded != "" {
		msg = strings.ReplaceAll(msg, decoded, redacted)
	}
	return msg
}

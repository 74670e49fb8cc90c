package secret

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const DefaultMethod = "/embedconnect.v1.AccountSessions/CreateClientSecret"

var ErrNoSecret = errors.New("response carried no client_secret")

// Account identifies who the secret is requested for.
type Account struct {
	PublicKey  string
	MerchantID string
}

func (a Account) fields() map[string]any {
	m := map[string]any{"publicKey": a.PublicKey}
	if a.MerchantID != "" {
		m["merchantId"] = a.MerchantID
	}
	return m
}

// GRPCFetcher asks a backend for an account session client secret over a
// unary gRPC call with structpb request and response.
type GRPCFetcher struct {
	addr        string
	method      string
	account     Account
	timeout     time.Duration
	maxAttempts int
	dialOpts    []grpc.DialOption

	mu   sync.RWMutex
	conn *sharedConn
}

// sharedConn counts the calls running on a connection so that a retired
// connection is closed only after they finish.
type sharedConn struct {
	cc    *grpc.ClientConn
	calls sync.WaitGroup
}

type GRPCOption func(*GRPCFetcher)

func WithMethod(m string) GRPCOption { return func(f *GRPCFetcher) { f.method = m } }

func WithTimeout(d time.Duration) GRPCOption { return func(f *GRPCFetcher) { f.timeout = d } }

func WithMaxAttempts(n int) GRPCOption { return func(f *GRPCFetcher) { f.maxAttempts = n } }

// WithDialOptions replaces the default insecure transport credentials.
func WithDialOptions(opts ...grpc.DialOption) GRPCOption {
	return func(f *GRPCFetcher) { f.dialOpts = opts }
}

func NewGRPCFetcher(addr string, account Account, opts ...GRPCOption) *GRPCFetcher {
	f := &GRPCFetcher{
		addr:        addr,
		method:      DefaultMethod,
		account:     account,
		timeout:     10 * time.Second,
		maxAttempts: 3,
		dialOpts:    []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// FetchClientSecret retries Unavailable failures with a fresh connection.
func (f *GRPCFetcher) FetchClientSecret(ctx context.Context) (string, error) {
	var lastErr error
	var failed *sharedConn
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := f.reconnect(ctx, attempt, failed); err != nil {
				return "", fmt.Errorf("fetch client secret: %w", err)
			}
		}
		sc, err := f.acquire()
		if err != nil {
			return "", fmt.Errorf("fetch client secret: %w", err)
		}
		secret, err := f.invoke(ctx, sc.cc)
		sc.calls.Done()
		if err == nil {
			metricFetches.WithLabelValues("grpc", "ok").Inc()
			return secret, nil
		}
		lastErr = err
		failed = sc
		if status.Code(err) != codes.Unavailable {
			break
		}
	}
	metricFetches.WithLabelValues("grpc", "error").Inc()
	return "", fmt.Errorf("fetch client secret: %w", lastErr)
}

func (f *GRPCFetcher) invoke(ctx context.Context, conn *grpc.ClientConn) (string, error) {
	req, err := structpb.NewStruct(f.account.fields())
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	resp := &structpb.Struct{}
	if err := conn.Invoke(ctx, f.method, req, resp); err != nil {
		return "", err
	}
	secret := resp.GetFields()["client_secret"].GetStringValue()
	if secret == "" {
		return "", ErrNoSecret
	}
	return secret, nil
}

// acquire returns the persistent connection, creating it on first use, and
// registers one call on it. The caller must call calls.Done.
func (f *GRPCFetcher) acquire() (*sharedConn, error) {
	f.mu.RLock()
	if sc := f.conn; sc != nil {
		sc.calls.Add(1)
		f.mu.RUnlock()
		return sc, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		cc, err := grpc.NewClient(f.addr, f.dialOpts...)
		if err != nil {
			return nil, err
		}
		f.conn = &sharedConn{cc: cc}
	}
	f.conn.calls.Add(1)
	return f.conn, nil
}

// reconnect retires the failed connection, unless another call already
// replaced it, and waits out an exponential backoff with jitter before the
// next attempt. The retired connection closes once its calls finish.
func (f *GRPCFetcher) reconnect(ctx context.Context, attempt int, failed *sharedConn) error {
	f.mu.Lock()
	retired := f.conn == failed && failed != nil
	if retired {
		f.conn = nil
	}
	f.mu.Unlock()
	if retired {
		go func() {
			failed.calls.Wait()
			_ = failed.cc.Close()
		}()
	}

	base := 100 * time.Millisecond
	sleep := time.Duration(1<<uint(min(attempt, 5))) * base
	jitter := time.Duration(rand.Int63n(int64(base)))
	timer := time.NewTimer(sleep + jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	metricReconnects.Inc()
	return nil
}

func (f *GRPCFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.cc.Close()
	f.conn = nil
	return err
}

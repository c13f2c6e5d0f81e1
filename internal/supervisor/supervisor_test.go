package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHTTPServer struct {
	listenErr error
	stopCh    chan struct{}
	started   chan struct{}
	shutdowns atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{stopCh: make(chan struct{}), started: make(chan struct{}, 1)}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stopCh
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	if f.shutdowns.Add(1) == 1 {
		close(f.stopCh)
	}
	return nil
}

func TestHTTPServerService_ShutdownOnCancel(t *testing.T) {
	srv := newFakeHTTPServer()
	svc := NewHTTPServerService("ops-http", srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("期望 context.Canceled，实际：%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve 未在取消后退出")
	}
	if srv.shutdowns.Load() != 1 {
		t.Fatalf("期望调用 Shutdown 1 次，实际 %d", srv.shutdowns.Load())
	}
	if svc.String() != "ops-http" {
		t.Fatalf("服务名不符合预期：%q", svc.String())
	}
}

func TestHTTPServerService_ListenError(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService("", srv, 0)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Fatalf("期望透传监听错误，实际：%v", err)
	}
	if svc.String() != "http-server" {
		t.Fatalf("默认服务名不符合预期：%q", svc.String())
	}
}

type countingService struct {
	runs atomic.Int32
}

func (c *countingService) Serve(ctx context.Context) error {
	if c.runs.Add(1) < 3 {
		return errors.New("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *countingService) String() string { return "counting" }

func TestTree_RestartsFailedService(t *testing.T) {
	tree := New("test", Config{FailureThreshold: 10, FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
	svc := &countingService{}
	tree.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for svc.runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("服务未被重启：runs=%d", svc.runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("正常关闭不应返回错误：%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Tree.Serve 未在取消后退出")
	}
}

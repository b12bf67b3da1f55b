package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestConfigOptions(t *testing.T) {
	opts := Config{Addr: "cache:6379", Password: "pw", DB: 2, PoolSize: 4}.options()
	if opts.Addr != "cache:6379" || opts.Password != "pw" || opts.DB != 2 || opts.PoolSize != 4 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.ReadTimeout != defaultOpTimeout || opts.WriteTimeout != defaultOpTimeout {
		t.Fatalf("expected default op timeout, got %v/%v", opts.ReadTimeout, opts.WriteTimeout)
	}

	opts = Config{OpTimeout: time.Second}.options()
	if opts.ReadTimeout != time.Second {
		t.Fatalf("expected op timeout override, got %v", opts.ReadTimeout)
	}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = client.Close()

	mr.RequireAuth("secret")
	if _, err := Connect(context.Background(), Config{Addr: mr.Addr(), Timeout: time.Second}); err == nil {
		t.Fatalf("expected ping to fail without credentials")
	}
	client, err = Connect(context.Background(), Config{Addr: mr.Addr(), Password: "secret"})
	if err != nil {
		t.Fatalf("connect with password: %v", err)
	}
	_ = client.Close()
}

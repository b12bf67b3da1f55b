package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/service"
)

type stubEvaluator struct {
	allow     bool
	err       error
	gotOp     string
	gotBearer string
	gotAttrs  map[string]string
	resource  bool
}

func (s *stubEvaluator) Allow(_ context.Context, bearer, op string) (bool, error) {
	s.gotBearer, s.gotOp = bearer, op
	return s.allow, s.err
}

func (s *stubEvaluator) AllowResource(_ context.Context, bearer, op string, attrs map[string]string) (bool, error) {
	s.resource = true
	s.gotBearer, s.gotOp, s.gotAttrs = bearer, op, attrs
	return s.allow, s.err
}

func runAuthorize(t *testing.T, ev *stubEvaluator, target string, attrs ...string) (bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer tok")
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := Authorize(ev, "GET_USER", attrs...)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	return called, err
}

func TestAuthorize_Allows(t *testing.T) {
	ev := &stubEvaluator{allow: true}
	called, err := runAuthorize(t, ev, "/")
	if err != nil || !called {
		t.Fatalf("expected next called, got %v", err)
	}
	if ev.resource || ev.gotOp != "GET_USER" || ev.gotBearer != "Bearer tok" {
		t.Fatalf("unexpected evaluator call: %+v", ev)
	}
}

func TestAuthorize_Forbids(t *testing.T) {
	ev := &stubEvaluator{allow: false}
	called, err := runAuthorize(t, ev, "/")
	if called {
		t.Fatalf("should not reach next handler")
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthorize_PassesResourceAttributes(t *testing.T) {
	ev := &stubEvaluator{allow: true}
	if _, err := runAuthorize(t, ev, "/?currentUser=42&other=x", "currentUser"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.resource || ev.gotAttrs["currentUser"] != "42" {
		t.Fatalf("expected currentUser attribute, got %+v", ev.gotAttrs)
	}
	if _, ok := ev.gotAttrs["other"]; ok {
		t.Fatalf("only declared attributes may be forwarded")
	}
}

func TestAuthorize_Unauthenticated(t *testing.T) {
	ev := &stubEvaluator{err: domain.ErrUnauthenticated}
	called, err := runAuthorize(t, ev, "/")
	if called || !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorize_ForwardsEmptyResourceAttribute(t *testing.T) {
	ev := &stubEvaluator{allow: true}
	if _, err := runAuthorize(t, ev, "/?currentUser=", "currentUser"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := ev.gotAttrs["currentUser"]
	if !ev.resource || !ok || v != "" {
		t.Fatalf("expected empty currentUser attribute to be forwarded, got %+v", ev.gotAttrs)
	}
}

func TestAuthorize_EmptyCurrentUserDenied(t *testing.T) {
	codec := service.NewTokenCodec("authorize-secret")
	authorizer := service.NewAuthorizer(codec, roleMap{domain.OpGetUser: {domain.RoleUser}}, zerolog.Nop())
	token, err := codec.Issue("7", "a@example.com", []string{domain.RoleUser}, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, target := range []string{"/?currentUser=", "/?currentUser=42"} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		c := e.NewContext(req, httptest.NewRecorder())

		called := false
		err := Authorize(authorizer, domain.OpGetUser, service.CurrentUserAttr)(func(echo.Context) error {
			called = true
			return nil
		})(c)
		if called || !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got called=%v err=%v", target, called, err)
		}
	}
}

type roleMap map[string][]string

func (m roleMap) RolesFor(_ context.Context, op string) ([]string, error) {
	return m[op], nil
}

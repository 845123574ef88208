package core

import (
	"reflect"
	"testing"

	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/internal/gatewaytest"
)

type namedGateway struct {
	gatewaytest.Spy
	name string
}

func (g *namedGateway) Name() string { return g.name }

func newNamed(name string) message.Gateway { return &namedGateway{name: name} }

func TestGateways_RegisterAndDefault(t *testing.T) {
	r := NewGateways()
	if err := r.Register(newNamed("telegram")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def, err := r.Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name() != "telegram" {
		t.Errorf("expected default telegram, got %s", def.Name())
	}
}

func TestGateways_FirstRegisteredIsDefault(t *testing.T) {
	r := NewGateways()
	r.Register(newNamed("first"))
	r.Register(newNamed("second"))

	def, err := r.Get("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name() != "first" {
		t.Errorf("expected default first, got %s", def.Name())
	}
}

func TestGateways_Get(t *testing.T) {
	r := NewGateways()
	r.Register(newNamed("telegram"))
	r.Register(newNamed("wsbridge"))

	gw, err := r.Get("wsbridge")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw.Name() != "wsbridge" {
		t.Errorf("expected wsbridge, got %s", gw.Name())
	}

	if _, err := r.Get("missing"); err == nil {
		t.Fatal("expected error for unknown gateway")
	}
}

func TestGateways_DuplicateRejected(t *testing.T) {
	r := NewGateways()
	r.Register(newNamed("telegram"))
	if err := r.Register(newNamed("telegram")); err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestGateways_Empty(t *testing.T) {
	r := NewGateways()
	if _, err := r.Default(); err == nil {
		t.Fatal("expected error on empty registry")
	}
	if names := r.Names(); len(names) != 0 {
		t.Errorf("names = %v", names)
	}
}

func TestGateways_Names(t *testing.T) {
	r := NewGateways()
	r.Register(newNamed("wsbridge"))
	r.Register(newNamed("telegram"))
	if got := r.Names(); !reflect.DeepEqual(got, []string{"telegram", "wsbridge"}) {
		t.Errorf("names = %v", got)
	}
}

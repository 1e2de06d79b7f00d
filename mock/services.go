package mock

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/centraunit/habitat"
)

// Core interfaces
type Greeter interface {
	Greet(name string) string
}

type Counter interface {
	habitat.Lifecycle
	ID() int64
	Booted() bool
	ShutDown() bool
}

// Greeters
type EnglishGreeter struct{}

func (EnglishGreeter) Greet(name string) string { return "Hello, " + name }

type FrenchGreeter struct{}

func (FrenchGreeter) Greet(name string) string { return "Bonjour, " + name }

// Counters
var created atomic.Int64

// Created returns how many TrackedService instances have been created.
func Created() int64 { return created.Load() }

type TrackedService struct {
	id       int64
	booted   atomic.Bool
	shutDown atomic.Bool
	FailBoot bool
	FailStop bool
}

// NewTracked returns a TrackedService with a fresh ID.
func NewTracked() *TrackedService {
	return &TrackedService{id: created.Add(1)}
}

func (t *TrackedService) OnBoot(c *habitat.CreationContext) error {
	if t.FailBoot {
		return errors.New("simulated boot failure")
	}
	t.booted.Store(true)
	return nil
}

func (t *TrackedService) OnShutdown(ctx context.Context) error {
	t.shutDown.Store(true)
	if t.FailStop {
		return errors.New("simulated shutdown failure")
	}
	return nil
}

func (t *TrackedService) ID() int64      { return t.id }
func (t *TrackedService) Booted() bool   { return t.booted.Load() }
func (t *TrackedService) ShutDown() bool { return t.shutDown.Load() }

// Configuration beans
type ServerBean struct {
	Host    string
	Port    int
	Timeout string `config:"timeout-ms"`
}

func (b *ServerBean) GetBanner() string { return "server " + b.Host }

// ServerService receives its settings through configured field injection.
type ServerService struct {
	Host    string  `configured:""`
	Port    int     `configured:"port"`
	Timeout string  `configured:"timeout-ms"`
	Greeter Greeter `inject:""`
}

// Circular dependency types
type Chicken struct{ Egg *Egg }
type Egg struct{ Chicken *Chicken }

// Creator helpers
func TrackedCreator(c *habitat.CreationContext) (any, error) {
	return NewTracked(), nil
}

func EnglishCreator(c *habitat.CreationContext) (any, error) {
	return EnglishGreeter{}, nil
}

func FrenchCreator(c *habitat.CreationContext) (any, error) {
	return FrenchGreeter{}, nil
}

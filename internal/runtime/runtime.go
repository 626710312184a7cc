// Package runtime manages the ephemeral, network-addressable instances that
// serve a session's checked-out code. Instances are never durably persisted:
// they are reconstructed by inspecting the backing container engine, keyed by
// a deterministic per-session name.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type State string

const (
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateUnresponsive State = "unresponsive"
	StateStopped      State = "stopped"
)

// ErrPoolExhausted indicates the engine refused to allocate another instance.
// The pool backing instances is externally bounded; exhaustion is surfaced,
// not retried.
var ErrPoolExhausted = errors.New("runtime pool exhausted")

// Instance describes one live (or recently inspected) runtime instance.
type Instance struct {
	InstanceID  string
	Name        string
	URL         string
	StartedAt   time.Time
	LastProbeAt time.Time
	State       State
}

// Live reports whether the instance counts against the one-per-session limit.
func (i *Instance) Live() bool {
	return i != nil && (i.State == StateStarting || i.State == StateRunning)
}

// LaunchSpec describes everything needed to start an instance.
type LaunchSpec struct {
	Name          string
	Image         string
	WorkspacePath string
	Env           map[string]string
	// Port is the port the application listens on inside the instance. The
	// engine maps it to an ephemeral host port.
	Port int
}

// Runtime abstracts the container engine. Implementations must make Stop
// idempotent and Inspect return (nil, nil) when no instance carries the name.
type Runtime interface {
	Inspect(ctx context.Context, name string) (*Instance, error)
	Launch(ctx context.Context, spec LaunchSpec) (*Instance, error)
	Stop(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]Instance, error)
}

// NamePrefix prefixes every instance name this service owns.
const NamePrefix = "appdeck-"

// InstanceName derives the deterministic instance name for a session key.
// Downstream inspection relies on this exact convention.
func InstanceName(projectID uint, sessionID string) string {
	return fmt.Sprintf("%sp%d-s%s", NamePrefix, projectID, sessionID)
}

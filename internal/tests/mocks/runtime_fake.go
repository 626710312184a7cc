package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"appdeck/internal/runtime"
)

// RuntimeFake is an in-memory runtime.Runtime. Launched instances are
// recorded with the URL configured in LaunchURL, and counters expose how
// many provisioning sequences actually happened.
type RuntimeFake struct {
	mu        sync.Mutex
	instances map[string]runtime.Instance

	// LaunchURL is assigned to every launched instance.
	LaunchURL string
	// LaunchErr, when set, makes Launch fail.
	LaunchErr error
	// StopErr, when set, makes Stop fail for matching names.
	StopErr       error
	StopErrPrefix string

	LaunchCount int
	StopCount   int

	// LastSpec records the most recent launch request.
	LastSpec runtime.LaunchSpec
}

func NewRuntimeFake(launchURL string) *RuntimeFake {
	return &RuntimeFake{
		instances: make(map[string]runtime.Instance),
		LaunchURL: launchURL,
	}
}

func (f *RuntimeFake) Inspect(ctx context.Context, name string) (*runtime.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[name]
	if !ok {
		return nil, nil
	}
	copied := inst
	return &copied, nil
}

func (f *RuntimeFake) Launch(ctx context.Context, spec runtime.LaunchSpec) (*runtime.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LaunchErr != nil {
		return nil, f.LaunchErr
	}
	f.LaunchCount++
	f.LastSpec = spec
	inst := runtime.Instance{
		InstanceID: spec.Name + "-id",
		Name:       spec.Name,
		URL:        f.LaunchURL,
		StartedAt:  time.Now(),
		State:      runtime.StateRunning,
	}
	f.instances[spec.Name] = inst
	copied := inst
	return &copied, nil
}

func (f *RuntimeFake) Stop(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StopErr != nil && (f.StopErrPrefix == "" || strings.HasPrefix(name, f.StopErrPrefix)) {
		return f.StopErr
	}
	f.StopCount++
	delete(f.instances, name)
	return nil
}

func (f *RuntimeFake) List(ctx context.Context, prefix string) ([]runtime.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []runtime.Instance
	for name, inst := range f.instances {
		if strings.HasPrefix(name, prefix) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// SetInstance seeds an instance directly, bypassing Launch.
func (f *RuntimeFake) SetInstance(inst runtime.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[inst.Name] = inst
}

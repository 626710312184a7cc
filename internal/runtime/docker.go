package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// commandTimeout bounds every docker CLI invocation.
const commandTimeout = 30 * time.Second

// DockerRuntime drives instances through the docker CLI.
type DockerRuntime struct {
	// Binary is the CLI to invoke, "docker" by default.
	Binary string
}

func NewDockerRuntime() *DockerRuntime {
	return &DockerRuntime{Binary: "docker"}
}

// Supported returns true if the docker CLI is on the PATH.
func (d *DockerRuntime) Supported() bool {
	_, err := exec.LookPath(d.binary())
	return err == nil
}

func (d *DockerRuntime) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "docker"
}

func (d *DockerRuntime) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if isExhaustedMessage(msg) {
			return "", fmt.Errorf("%w: %s", ErrPoolExhausted, msg)
		}
		return "", fmt.Errorf("%s %s: %s", d.binary(), args[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// isExhaustedMessage recognizes engine errors meaning the externally bounded
// pool has no capacity left.
func isExhaustedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{
		"no space left on device",
		"cannot allocate memory",
		"insufficient resources",
		"address already in use",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// containerInspect holds the fields we read from docker container inspect.
type containerInspect struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	State struct {
		Status    string `json:"Status"`
		Running   bool   `json:"Running"`
		StartedAt string `json:"StartedAt"`
	} `json:"State"`
	NetworkSettings struct {
		Ports map[string][]struct {
			HostIP   string `json:"HostIp"`
			HostPort string `json:"HostPort"`
		} `json:"Ports"`
	} `json:"NetworkSettings"`
}

func (d *DockerRuntime) Inspect(ctx context.Context, name string) (*Instance, error) {
	out, err := d.run(ctx, "container", "inspect", name)
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return nil, nil
		}
		return nil, err
	}

	var inspects []containerInspect
	if err := json.Unmarshal([]byte(out), &inspects); err != nil {
		return nil, fmt.Errorf("failed to parse container inspect output: %w", err)
	}
	if len(inspects) == 0 {
		return nil, nil
	}
	return instanceFromInspect(name, inspects[0]), nil
}

func instanceFromInspect(name string, ci containerInspect) *Instance {
	inst := &Instance{
		InstanceID:  ci.ID,
		Name:        name,
		LastProbeAt: time.Now(),
	}

	switch {
	case ci.State.Running:
		inst.State = StateRunning
	case ci.State.Status == "created" || ci.State.Status == "restarting":
		inst.State = StateStarting
	default:
		inst.State = StateStopped
	}

	if t, err := time.Parse(time.RFC3339Nano, ci.State.StartedAt); err == nil {
		inst.StartedAt = t
	}

	// Any published port works; take the lowest container port for stability.
	var containerPorts []string
	for port, bindings := range ci.NetworkSettings.Ports {
		if len(bindings) > 0 {
			containerPorts = append(containerPorts, port)
		}
	}
	sort.Strings(containerPorts)
	if len(containerPorts) > 0 {
		binding := ci.NetworkSettings.Ports[containerPorts[0]][0]
		host := binding.HostIP
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		inst.URL = fmt.Sprintf("http://%s:%s", host, binding.HostPort)
	}

	return inst
}

func (d *DockerRuntime) Launch(ctx context.Context, spec LaunchSpec) (*Instance, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("instance name is required")
	}
	if spec.Image == "" {
		return nil, fmt.Errorf("image is required")
	}

	args := []string{
		"run", "-d",
		"--name", spec.Name,
		"--label", "appdeck.instance=" + uuid.NewString(),
		"-p", fmt.Sprintf("127.0.0.1:0:%d", spec.Port),
	}
	if spec.WorkspacePath != "" {
		args = append(args, "-v", spec.WorkspacePath+":/workspace")
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+spec.Env[k])
	}
	args = append(args, spec.Image)

	if _, err := d.run(ctx, args...); err != nil {
		// A name conflict means a concurrent launcher won the race. Report
		// the winner instead of failing.
		if strings.Contains(err.Error(), "is already in use") {
			return d.Inspect(ctx, spec.Name)
		}
		return nil, err
	}

	return d.Inspect(ctx, spec.Name)
}

func (d *DockerRuntime) Stop(ctx context.Context, name string) error {
	_, err := d.run(ctx, "rm", "-f", name)
	if err != nil && strings.Contains(err.Error(), "No such container") {
		return nil
	}
	return err
}

func (d *DockerRuntime) List(ctx context.Context, prefix string) ([]Instance, error) {
	out, err := d.run(ctx, "ps", "--filter", "name="+prefix, "--format", "{{.Names}}")
	if err != nil {
		return nil, err
	}

	var instances []Instance
	for _, name := range strings.Fields(out) {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		inst, err := d.Inspect(ctx, name)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			instances = append(instances, *inst)
		}
	}
	return instances, nil
}

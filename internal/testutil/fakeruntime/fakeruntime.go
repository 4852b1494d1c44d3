// Package fakeruntime is an in-memory container runtime for tests. It keeps
// labels as they were at creation time, refuses to remove a network that
// still has containers attached, and can fail any operation on demand.
package fakeruntime

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/skillcoder/podreplay/internal/logic/isolation"
	"github.com/skillcoder/podreplay/internal/logic/labels"
	"github.com/skillcoder/podreplay/internal/logic/netisolation"
	"github.com/skillcoder/podreplay/internal/logic/replay"
)

// Operation names used for failure injection and call counting.
const (
	OpPing            = "ping"
	OpPull            = "pull"
	OpCreateNetwork   = "create-network"
	OpRemoveNetwork   = "remove-network"
	OpListNetworks    = "list-networks"
	OpCreateContainer = "create-container"
	OpConnect         = "connect"
	OpStart           = "start"
	OpStop            = "stop"
	OpRemoveContainer = "remove-container"
	OpInspect         = "inspect"
	OpListContainers  = "list-containers"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected runtime failure")

// ErrNetworkInUse is returned when removing a network with attached containers.
var ErrNetworkInUse = errors.New("network has active endpoints")

// ErrNetworkMismatch is returned when a connect names a network by the wrong
// name for its ID.
var ErrNetworkMismatch = errors.New("network name does not match id")

// NotFoundError mimics the runtime's "no such object" error.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no such %s: %s", e.Kind, e.ID)
}

// IsNotFound marks the error for errors.As checks in the logic packages.
func (e *NotFoundError) IsNotFound() {}

// ContainerRecord is the stored state of a fake container.
type ContainerRecord struct {
	ID       string
	Request  isolation.ContainerRequest
	Labels   map[string]string
	Networks []string
	Running  bool
}

// NetworkRecord is the stored state of a fake network.
type NetworkRecord struct {
	ID     string
	Spec   netisolation.NetworkSpec
	Labels map[string]string
}

type Runtime struct {
	mu         sync.Mutex
	seq        int
	containers map[string]*ContainerRecord
	networks   map[string]*NetworkRecord
	failures   map[string]error
	blocked    map[string]bool
	calls      map[string]int
	order      []string
	pulled     []string
}

var _ replay.Runtime = (*Runtime)(nil)

// New returns an empty runtime.
func New() *Runtime {
	return &Runtime{
		containers: make(map[string]*ContainerRecord),
		networks:   make(map[string]*NetworkRecord),
		failures:   make(map[string]error),
		blocked:    make(map[string]bool),
		calls:      make(map[string]int),
	}
}

// FailOn makes every later call of op return err. A nil err uses ErrInjected.
func (r *Runtime) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		err = ErrInjected
	}

	r.failures[op] = err
}

// BlockOn makes every later call of op hang until its context is done, like
// a runtime that stopped answering. The call then returns the context error.
func (r *Runtime) BlockOn(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.blocked[op] = true
}

// Heal clears every injected failure and block.
func (r *Runtime) Heal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.failures)
	clear(r.blocked)
}

// Calls returns how many times op was invoked.
func (r *Runtime) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls[op]
}

// Order returns every invoked operation in call order.
func (r *Runtime) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.order))
	copy(out, r.order)

	return out
}

// Pulled returns the pulled image references.
func (r *Runtime) Pulled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.pulled))
	copy(out, r.pulled)

	return out
}

// Containers returns a snapshot of the stored containers.
func (r *Runtime) Containers() []ContainerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ContainerRecord, 0, len(r.containers))
	for _, c := range r.containers {
		cp := *c
		cp.Labels = maps.Clone(c.Labels)
		cp.Networks = append([]string(nil), c.Networks...)
		out = append(out, cp)
	}

	return out
}

// Networks returns a snapshot of the stored networks.
func (r *Runtime) Networks() []NetworkRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]NetworkRecord, 0, len(r.networks))
	for _, n := range r.networks {
		cp := *n
		cp.Labels = maps.Clone(n.Labels)
		out = append(out, cp)
	}

	return out
}

// Tagged counts the stored containers and networks carrying the managed label.
func (r *Runtime) Tagged() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, c := range r.containers {
		if labels.Matches(c.Labels, labels.ManagedSelector()) {
			n++
		}
	}

	for _, nw := range r.networks {
		if labels.Matches(nw.Labels, labels.ManagedSelector()) {
			n++
		}
	}

	return n
}

// AddContainer stores a container directly, e.g. one not created by the engine.
func (r *Runtime) AddContainer(id string, lbls map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.containers[id] = &ContainerRecord{ID: id, Labels: maps.Clone(lbls)}
}

// AddNetwork stores a network directly.
func (r *Runtime) AddNetwork(id string, lbls map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.networks[id] = &NetworkRecord{ID: id, Spec: netisolation.NetworkSpec{Name: id}, Labels: maps.Clone(lbls)}
}

// enter records op and applies injected behaviour. Callers hold r.mu; a
// blocked op releases it while waiting so other calls keep running.
func (r *Runtime) enter(ctx context.Context, op string) error {
	r.calls[op]++
	r.order = append(r.order, op)

	if r.blocked[op] {
		r.mu.Unlock()
		<-ctx.Done()
		r.mu.Lock()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.failures[op]
}

func (r *Runtime) nextID(prefix string) string {
	r.seq++

	return fmt.Sprintf("%s-%04d", prefix, r.seq)
}

func (r *Runtime) PingQuery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.enter(ctx, OpPing)
}

func (r *Runtime) PullImageCommand(ctx context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpPull); err != nil {
		return err
	}

	r.pulled = append(r.pulled, ref)

	return nil
}

func (r *Runtime) CreateNetworkCommand(ctx context.Context, spec netisolation.NetworkSpec) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpCreateNetwork); err != nil {
		return "", err
	}

	id := r.nextID("net")
	r.networks[id] = &NetworkRecord{ID: id, Spec: spec, Labels: maps.Clone(spec.Labels)}

	return id, nil
}

func (r *Runtime) RemoveNetworkCommand(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpRemoveNetwork); err != nil {
		return err
	}

	if _, ok := r.networks[id]; !ok {
		return &NotFoundError{Kind: "network", ID: id}
	}

	for _, c := range r.containers {
		for _, n := range c.Networks {
			if n == id {
				return fmt.Errorf("remove network %s: %w", id, ErrNetworkInUse)
			}
		}
	}

	delete(r.networks, id)

	return nil
}

func (r *Runtime) ListNetworksQuery(ctx context.Context, selector map[string]string) ([]netisolation.Network, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpListNetworks); err != nil {
		return nil, err
	}

	var out []netisolation.Network

	for _, n := range r.networks {
		if labels.Matches(n.Labels, selector) {
			out = append(out, netisolation.Network{ID: n.ID, Name: n.Spec.Name, Labels: maps.Clone(n.Labels)})
		}
	}

	return out, nil
}

func (r *Runtime) CreateContainerCommand(ctx context.Context, req isolation.ContainerRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpCreateContainer); err != nil {
		return "", err
	}

	id := r.nextID("ctr")
	rec := &ContainerRecord{ID: id, Request: req, Labels: maps.Clone(req.Labels)}

	if mode := req.Host.NetworkMode; mode != "" && mode != isolation.NetworkModeNone {
		for _, n := range r.networks {
			if n.Spec.Name == mode || n.ID == mode {
				rec.Networks = append(rec.Networks, n.ID)
			}
		}
	}

	r.containers[id] = rec

	return id, nil
}

func (r *Runtime) ConnectNetworkCommand(ctx context.Context, nw netisolation.Network, containerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpConnect); err != nil {
		return err
	}

	c, ok := r.containers[containerID]
	if !ok {
		return &NotFoundError{Kind: "container", ID: containerID}
	}

	stored, ok := r.networks[nw.ID]
	if !ok {
		return &NotFoundError{Kind: "network", ID: nw.ID}
	}

	if nw.Name != "" && nw.Name != stored.Spec.Name {
		return fmt.Errorf("connect %s: network %s is named %s: %w", containerID, nw.ID, stored.Spec.Name, ErrNetworkMismatch)
	}

	for _, n := range c.Networks {
		if n == nw.ID {
			return nil
		}
	}

	c.Networks = append(c.Networks, nw.ID)

	return nil
}

func (r *Runtime) StartContainerCommand(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpStart); err != nil {
		return err
	}

	c, ok := r.containers[id]
	if !ok {
		return &NotFoundError{Kind: "container", ID: id}
	}

	c.Running = true

	return nil
}

func (r *Runtime) StopContainerCommand(ctx context.Context, id string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpStop); err != nil {
		return err
	}

	c, ok := r.containers[id]
	if !ok {
		return &NotFoundError{Kind: "container", ID: id}
	}

	c.Running = false

	return nil
}

func (r *Runtime) RemoveContainerCommand(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpRemoveContainer); err != nil {
		return err
	}

	if _, ok := r.containers[id]; !ok {
		return &NotFoundError{Kind: "container", ID: id}
	}

	delete(r.containers, id)

	return nil
}

func (r *Runtime) InspectContainerQuery(ctx context.Context, id string) (*replay.Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpInspect); err != nil {
		return nil, err
	}

	c, ok := r.containers[id]
	if !ok {
		return nil, &NotFoundError{Kind: "container", ID: id}
	}

	return toContainer(c), nil
}

func (r *Runtime) ListContainersQuery(ctx context.Context, selector map[string]string) ([]replay.Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter(ctx, OpListContainers); err != nil {
		return nil, err
	}

	var out []replay.Container

	for _, c := range r.containers {
		if labels.Matches(c.Labels, selector) {
			out = append(out, *toContainer(c))
		}
	}

	return out, nil
}

func toContainer(c *ContainerRecord) *replay.Container {
	state := "created"
	if c.Running {
		state = "running"
	}

	return &replay.Container{
		ID:     c.ID,
		Name:   c.Request.Name,
		Image:  c.Request.Image,
		State:  state,
		Labels: maps.Clone(c.Labels),
	}
}

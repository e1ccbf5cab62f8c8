package wasm

import (
	"context"
	"sync"

	"github.com/dropbox/godropbox/resource_pool"
	"go.uber.org/zap"
)

// Pool hands out instances of one compiled module to concurrent callers.
// Instances are created on demand, up to the pool size, and reused.
//
// Handle bookkeeping is done by a godropbox resource pool, which fails
// fast when every handle is taken; tokens turns that into a wait bounded
// by the caller's context.
type Pool struct {
	manager    *InstanceManager
	moduleName string
	logger     *zap.Logger

	handles resource_pool.ResourcePool
	tokens  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool for a module already loaded in the runtime.
// A size below one is treated as one.
func NewPool(manager *InstanceManager, moduleName string, size int) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		manager:    manager,
		moduleName: moduleName,
		logger: manager.logger.With(
			zap.String("component", "wasm-pool"),
			zap.String("module", moduleName),
		),
		tokens: make(chan struct{}, size),
	}

	p.handles = resource_pool.NewSimpleResourcePool(resource_pool.Options{
		MaxActiveHandles: int32(size),
		MaxIdleHandles:   uint32(size),
		Open:             p.open,
		Close:            p.closeHandle,
	})
	// The location is the module name; instances are opened from it.
	p.handles.Register(moduleName)

	return p
}

func (p *Pool) open(moduleName string) (interface{}, error) {
	// Reactor initialisation is short and bounded by the instance timeout
	// of later calls, not by the caller that happened to trigger it.
	return p.manager.Instantiate(context.Background(), &InstanceConfig{ModuleName: moduleName})
}

func (p *Pool) closeHandle(handle interface{}) error {
	inst := handle.(*Instance)
	p.logger.Debug("Closing pooled instance", zap.String("instance_id", inst.ID))
	return inst.Close(context.Background())
}

// Size returns the maximum number of live instances.
func (p *Pool) Size() int {
	return cap(p.tokens)
}

// Length measures s on a pooled instance.
func (p *Pool) Length(ctx context.Context, s string) (int64, error) {
	h, inst, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.release(h, inst)

	return inst.Length(ctx, s)
}

// LengthAt calls the export with a raw guest pointer on a pooled instance.
func (p *Pool) LengthAt(ctx context.Context, ptr uint32) (int64, error) {
	h, inst, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.release(h, inst)

	return inst.LengthAt(ctx, ptr)
}

func (p *Pool) acquire(ctx context.Context) (resource_pool.ManagedHandle, *Instance, error) {
	if p.isClosed() {
		return nil, nil, &PoolClosedError{Module: p.moduleName}
	}

	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	h, err := p.handles.Get(p.moduleName)
	if err != nil {
		<-p.tokens
		if p.isClosed() {
			return nil, nil, &PoolClosedError{Module: p.moduleName}
		}
		return nil, nil, err
	}

	handle, err := h.Handle()
	if err != nil {
		h.Discard()
		<-p.tokens
		return nil, nil, err
	}
	return h, handle.(*Instance), nil
}

// release returns inst for reuse. An instance whose module was closed,
// by a timeout or by the runtime, is discarded instead.
func (p *Pool) release(h resource_pool.ManagedHandle, inst *Instance) {
	defer func() { <-p.tokens }()

	if inst.IsClosed() {
		if err := h.Discard(); err != nil {
			p.logger.Debug("Discarded dead instance",
				zap.String("instance_id", inst.ID),
				zap.Error(err),
			)
		}
		return
	}
	h.Release()
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close closes idle instances. Instances in use are closed when returned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.handles.EnterLameDuckMode()
	return nil
}

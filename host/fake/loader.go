package fake

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/logging"
	"go.viam.com/pcgen/spatialmath"
)

// BuiltinPrefix marks asset paths served from meshes registered with Loader.Register.
const BuiltinPrefix = "builtin:"

// LoaderOptions shape how the simulated loader behaves.
type LoaderOptions struct {
	// LoadFrames is how many frames a reference takes to load. Zero means 3.
	LoadFrames int
	// Hang leaves every reference loading forever.
	Hang bool
	// FailWith, when set, is emitted instead of AssetsLoaded and the asset is not loaded.
	FailWith *host.StageEvent
}

type pendingLoad struct {
	primPath   string
	filePath   string
	framesLeft int
}

// Loader is a simulated asset loader. Assets are PLY files or registered built-in meshes.
type Loader struct {
	scene  *Scene
	opts   LoaderOptions
	logger logging.Logger

	mu      sync.Mutex
	builtin map[string]*spatialmath.Mesh
	pending []*pendingLoad
	loaded  int
	total   int
	subs    map[int]chan host.StageEvent
	nextSub int
}

// NewLoader returns a loader putting meshes into scene.
func NewLoader(scene *Scene, opts LoaderOptions, logger logging.Logger) *Loader {
	if opts.LoadFrames <= 0 {
		opts.LoadFrames = 3
	}
	return &Loader{
		scene:   scene,
		opts:    opts,
		logger:  logger,
		builtin: map[string]*spatialmath.Mesh{},
		subs:    map[int]chan host.StageEvent{},
	}
}

// Register serves mesh for the asset path BuiltinPrefix+name.
func (l *Loader) Register(name string, mesh *spatialmath.Mesh) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.builtin[name] = mesh
}

// SetOptions replaces the loader options for references added afterwards.
func (l *Loader) SetOptions(opts LoaderOptions) {
	if opts.LoadFrames <= 0 {
		opts.LoadFrames = 3
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts = opts
}

// AddReference queues filePath for loading under primPath.
func (l *Loader) AddReference(ctx context.Context, primPath, filePath string) error {
	if !l.scene.HasPrim(primPath) {
		return host.NewPrimNotFoundError(primPath)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, &pendingLoad{primPath: primPath, filePath: filePath, framesLeft: l.opts.LoadFrames})
	l.total++
	l.logger.CDebugw(ctx, "reference added", "prim", primPath, "file", filePath)
	return nil
}

// SubscribeStageEvents returns a buffered event channel. Events are dropped for a
// subscriber that falls more than 16 events behind.
func (l *Loader) SubscribeStageEvents() (<-chan host.StageEvent, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan host.StageEvent, 16)
	l.subs[id] = ch
	return ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// LoadingStatus returns the number of loaded and referenced files.
func (l *Loader) LoadingStatus() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded, l.total
}

// Emit sends an event to every subscriber.
func (l *Loader) Emit(ev host.StageEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emitLocked(ev)
}

func (l *Loader) emitLocked(ev host.StageEvent) {
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			l.logger.Warnw("dropping stage event", "event", ev)
		}
	}
}

// Tick advances pending loads by one frame.
func (l *Loader) Tick(int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.opts.Hang {
		return
	}
	remaining := l.pending[:0]
	for _, p := range l.pending {
		p.framesLeft--
		if p.framesLeft > 0 {
			remaining = append(remaining, p)
			continue
		}
		if l.opts.FailWith != nil {
			l.logger.Debugw("asset load failed", "file", p.filePath, "event", *l.opts.FailWith)
			l.emitLocked(*l.opts.FailWith)
			continue
		}
		if err := l.finishLocked(p); err != nil {
			l.logger.Warnw("asset open failed", "file", p.filePath, "error", err)
			l.emitLocked(host.StageOpenFailed)
			continue
		}
		l.loaded++
		l.emitLocked(host.StageAssetsLoaded)
	}
	l.pending = remaining
}

func (l *Loader) finishLocked(p *pendingLoad) error {
	var mesh *spatialmath.Mesh
	if name, ok := strings.CutPrefix(p.filePath, BuiltinPrefix); ok {
		mesh, ok = l.builtin[name]
		if !ok {
			return errors.Errorf("no built-in asset %q", name)
		}
	} else {
		var err error
		if mesh, err = ReadPLYFile(p.filePath); err != nil {
			return err
		}
	}
	return l.scene.SetMesh(p.primPath, mesh)
}

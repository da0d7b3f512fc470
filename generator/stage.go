package generator

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/pcgen/host"
	"go.viam.com/pcgen/pointcloud"
)

// Prim paths owned by the generator.
const (
	DomeLightPath  = "/World/DomeLight"
	ObjectPath     = "/World/Object"
	PointcloudPath = "/World/Pointcloud"

	// TargetLabel is the semantic class given to the asset. Pixels of any other prim are
	// background.
	TargetLabel = "Target"
)

// LoadStatus reports the outcome of an asset load.
type LoadStatus struct {
	Loaded   bool
	LoadTime time.Duration
	Error    error
}

// InitializeStage starts a fresh stage holding a dome light, the camera rig and the asset
// at assetPath under ObjectPath, then waits for the asset to load.
func (g *Generator) InitializeStage(ctx context.Context, assetPath string) (LoadStatus, error) {
	cfg := g.config()
	status, err := g.initializeStage(ctx, cfg, assetPath)
	status.Error = err
	return status, err
}

func (g *Generator) initializeStage(ctx context.Context, cfg Config, assetPath string) (LoadStatus, error) {
	scene := g.services.Scene
	if err := g.settle(ctx, cfg); err != nil {
		return LoadStatus{}, err
	}
	if err := g.recreateStage(ctx, cfg); err != nil {
		return LoadStatus{}, err
	}
	g.setUpAxis(scene.UpAxis())

	if err := scene.DefinePrim(DomeLightPath, host.PrimDomeLight); err != nil {
		return LoadStatus{}, errors.Wrap(err, "defining dome light")
	}
	light := map[string]interface{}{
		host.AttrIntensity:     cfg.DomeLightIntensity,
		host.AttrTextureFormat: "latlong",
	}
	if cfg.DomeLightTexture != "" {
		light[host.AttrTextureFile] = cfg.DomeLightTexture
	}
	if err := setAttributes(scene, DomeLightPath, light); err != nil {
		return LoadStatus{}, err
	}

	if err := scene.DefinePrim(ObjectPath, host.PrimXform); err != nil {
		return LoadStatus{}, errors.Wrap(err, "defining object")
	}
	if err := setAttributes(scene, ObjectPath, map[string]interface{}{
		host.AttrSemanticType: "class",
		host.AttrSemanticData: TargetLabel,
	}); err != nil {
		return LoadStatus{}, err
	}
	if err := g.rig.Define(scene); err != nil {
		return LoadStatus{}, err
	}

	start := g.clk.Now()
	if err := g.loadAsset(ctx, cfg, assetPath); err != nil {
		return LoadStatus{LoadTime: g.clk.Since(start)}, err
	}
	status := LoadStatus{Loaded: true, LoadTime: g.clk.Since(start)}
	g.logger.CInfof(ctx, "loaded %s in %s", assetPath, status.LoadTime)
	if err := g.services.Scheduler.Sleep(ctx, cfg.MaterialSettle); err != nil {
		return status, err
	}
	return status, nil
}

func (g *Generator) loadAsset(ctx context.Context, cfg Config, assetPath string) error {
	loader := g.services.Loader
	if cfg.LoadWaitMode == LoadWaitPoll {
		if err := loader.AddReference(ctx, ObjectPath, assetPath); err != nil {
			return errors.Wrapf(err, "referencing %s", assetPath)
		}
		return g.pollLoad(ctx, cfg)
	}

	// subscribe first so an immediate load cannot be missed
	events, unsubscribe := loader.SubscribeStageEvents()
	defer unsubscribe()
	if err := loader.AddReference(ctx, ObjectPath, assetPath); err != nil {
		return errors.Wrapf(err, "referencing %s", assetPath)
	}
	return g.awaitLoadEvents(ctx, cfg, events)
}

func (g *Generator) awaitLoadEvents(ctx context.Context, cfg Config, events <-chan host.StageEvent) error {
	deadline := g.clk.Now().Add(cfg.LoadTimeout)
	loaded := 0
	for loaded < cfg.RequiredLoadEvents {
		select {
		case ev, ok := <-events:
			if !ok {
				return errors.Wrap(ErrAssetLoadAborted, "stage event stream closed")
			}
			if ev.IsFailure() {
				return errors.Wrapf(ErrAssetLoadAborted, "stage event %s", ev)
			}
			if ev == host.StageAssetsLoaded {
				loaded++
				g.logger.CDebugw(ctx, "assets loaded", "count", loaded, "required", cfg.RequiredLoadEvents)
			}
			continue
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !g.clk.Now().Before(deadline) {
			return errors.Wrapf(ErrAssetLoadTimeout, "after %s", cfg.LoadTimeout)
		}
		if err := g.services.Scheduler.NextUpdate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) pollLoad(ctx context.Context, cfg Config) error {
	deadline := g.clk.Now().Add(cfg.LoadTimeout)
	for {
		if err := g.services.Scheduler.Sleep(ctx, cfg.PollInterval); err != nil {
			return err
		}
		loaded, total := g.services.Loader.LoadingStatus()
		g.logger.CDebugw(ctx, "loading", "loaded", loaded, "total", total)
		if loaded >= total {
			return nil
		}
		if !g.clk.Now().Before(deadline) {
			return errors.Wrapf(ErrAssetLoadTimeout, "%d of %d files loaded after %s", loaded, total, cfg.LoadTimeout)
		}
	}
}

func (g *Generator) updates(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := g.services.Scheduler.NextUpdate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// settle lets the host run for a while before the stage is replaced.
func (g *Generator) settle(ctx context.Context, cfg Config) error {
	if err := g.updates(ctx, cfg.SettleUpdates); err != nil {
		return err
	}
	return g.services.Scheduler.Sleep(ctx, cfg.SettleSleep)
}

func (g *Generator) recreateStage(ctx context.Context, cfg Config) error {
	if err := g.updates(ctx, cfg.RecreateUpdates); err != nil {
		return err
	}
	if err := g.services.Scene.NewStage(); err != nil {
		return errors.Wrap(err, "creating stage")
	}
	if err := g.updates(ctx, cfg.RecreateUpdates); err != nil {
		return err
	}
	return g.updates(ctx, cfg.SettleUpdates)
}

// commit replaces the stage with one holding only the cloud as a Points prim.
func (g *Generator) commit(ctx context.Context, cfg Config, cloud *pointcloud.PointCloud) error {
	if err := g.settle(ctx, cfg); err != nil {
		return err
	}
	if err := g.recreateStage(ctx, cfg); err != nil {
		return err
	}
	scene := g.services.Scene
	if err := scene.SetUpAxis(g.stageUpAxis()); err != nil {
		return errors.Wrap(err, "restoring up axis")
	}
	if err := scene.DefinePrim(PointcloudPath, host.PrimPoints); err != nil {
		return errors.Wrap(err, "defining point cloud")
	}
	widths := make([]float64, cloud.Size())
	width := cloud.PointWidth()
	for i := range widths {
		widths[i] = width
	}
	return setAttributes(scene, PointcloudPath, map[string]interface{}{
		host.AttrPoints:       cloud.Positions(),
		host.AttrWidths:       widths,
		host.AttrDisplayColor: cloud.DisplayColors(),
		host.AttrNormals:      cloud.Normals(),
	})
}

func setAttributes(scene host.SceneGraph, path string, attrs map[string]interface{}) error {
	for name, value := range attrs {
		if err := scene.SetAttribute(path, name, value); err != nil {
			return errors.Wrapf(err, "setting %s on %s", name, path)
		}
	}
	return nil
}

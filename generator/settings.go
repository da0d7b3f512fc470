package generator

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/pcgen/host"
)

// Settings keys changed while capturing.
const (
	SettingRenderMode        = "/rtx/rendermode"
	SettingSubdivision       = "/rtx/hydra/subdivision/refinementLevel"
	SettingDisplayOptions    = "/persistent/app/viewport/displayOptions"
	SettingGridEnabled       = "/app/viewport/grid/enabled"
	SettingOldMDLSchema      = "/app/hydra/supportOldMdlSchema"
	SettingMaterialSyncLoads = "/rtx/materialDb/syncLoads"
	SettingUsdSyncLoads      = "/omni.kit.plugin/syncUsdLoads"
)

// RenderSettings returns the render-quality settings applied for the duration of a capture.
func RenderSettings(oldMDLSupport bool) map[string]interface{} {
	return map[string]interface{}{
		SettingRenderMode:        "PathTracing",
		SettingSubdivision:       2,
		SettingDisplayOptions:    0,
		SettingGridEnabled:       false,
		SettingOldMDLSchema:      oldMDLSupport,
		SettingMaterialSyncLoads: true,
		SettingUsdSyncLoads:      true,
	}
}

type priorSetting struct {
	value interface{}
	ok    bool
}

// SettingsGuard remembers the values a set of overrides replaced.
type SettingsGuard struct {
	settings host.Settings
	keys     []string
	prior    map[string]priorSetting
}

// OverrideSettings applies overrides in key order and returns a guard restoring the values
// they replaced. If an override fails, everything applied so far is restored before returning.
func OverrideSettings(settings host.Settings, overrides map[string]interface{}) (*SettingsGuard, error) {
	g := &SettingsGuard{settings: settings, prior: make(map[string]priorSetting, len(overrides))}
	keys := lo.Keys(overrides)
	sort.Strings(keys)
	for _, key := range keys {
		value, ok := settings.Get(key)
		if err := settings.Set(key, overrides[key]); err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "overriding setting %s", key), g.Restore())
		}
		g.keys = append(g.keys, key)
		g.prior[key] = priorSetting{value: value, ok: ok}
	}
	return g, nil
}

// Restore puts back every overridden setting, newest first, and unsets keys that were not
// set before. All keys are attempted; failures are combined.
func (g *SettingsGuard) Restore() error {
	var err error
	for i := len(g.keys) - 1; i >= 0; i-- {
		key := g.keys[i]
		prior := g.prior[key]
		if prior.ok {
			err = multierr.Append(err, errors.Wrapf(g.settings.Set(key, prior.value), "restoring setting %s", key))
		} else {
			err = multierr.Append(err, errors.Wrapf(g.settings.Unset(key), "unsetting %s", key))
		}
	}
	g.keys = nil
	return err
}

// Package main is the pcgen command line tool. It reconstructs point clouds from mesh
// assets using the simulated host.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/pcgen/config"
	"go.viam.com/pcgen/generator"
	"go.viam.com/pcgen/host/fake"
	"go.viam.com/pcgen/logging"
	"go.viam.com/pcgen/pointcloud"
	"go.viam.com/pcgen/spatialmath"
	"go.viam.com/pcgen/viewplan"
)

const (
	flagConfig        = "config"
	flagDebug         = "debug"
	flagLogFile       = "log-file"
	flagAsset         = "asset"
	flagOut           = "out"
	flagUpAxis        = "up-axis"
	flagFrameInterval = "frame-interval"
	flagHeight        = "height"
	flagWidth         = "width"
	flagDebugRun      = "debug-run"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		logging.Global().Error(err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "pcgen",
		Usage:  "turn mesh assets into colored point clouds",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "reconstruct a point cloud from an asset",
				Action: generateAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagAsset,
						Value: fake.BoxAsset,
						Usage: "PLY `FILE` to reconstruct, or a built-in asset",
					},
					&cli.StringFlag{
						Name:     flagOut,
						Aliases:  []string{"o"},
						Required: true,
						Usage:    "write the point cloud to `FILE` as binary PCD",
					},
					&cli.StringFlag{
						Name:  flagUpAxis,
						Value: "y",
						Usage: "stage up axis, y or z",
					},
					&cli.DurationFlag{
						Name:  flagFrameInterval,
						Value: fake.DefaultFrameInterval,
						Usage: "duration of a simulated frame",
					},
					&cli.IntFlag{
						Name:  flagHeight,
						Usage: "capture height in pixels, overriding the config",
					},
					&cli.IntFlag{
						Name:  flagWidth,
						Usage: "capture width in pixels, overriding the config",
					},
					&cli.BoolFlag{
						Name:  flagDebugRun,
						Usage: "log debug output of this reconstruction without raising the log level",
					},
				},
			},
			{
				Name:   "plan",
				Usage:  "list the viewpoints a reconstruction would capture",
				Action: planAction,
			},
			{
				Name:      "inspect",
				Usage:     "print a summary of a PCD file",
				ArgsUsage: "<file.pcd>",
				Action:    inspectAction,
			},
		},
	}
}

// setup reads the configuration and builds the logger the command runs with.
func setup(c *cli.Context) (*config.Config, logging.Logger, io.Closer, error) {
	logger := logging.NewLogger("pcgen")
	var cfg *config.Config
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path, logger); err != nil {
			return nil, nil, nil, err
		}
	} else {
		cfg = config.Default()
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			return nil, nil, nil, err
		}
	}
	if file := c.String(flagLogFile); file != "" {
		cfg.Log.Filename = file
	}
	closer := cfg.Log.ConfigureLogger(logger)
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	logging.ReplaceGlobal(logger)
	return cfg, logger, closer, nil
}

func planAction(c *cli.Context) error {
	cfg, _, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	gen := cfg.Generator.ToGenerator()
	for i, vp := range viewplan.Plan(gen.Azimuths, gen.Elevations) {
		fmt.Fprintf(c.App.Writer, "%d\t%s\n", i, vp)
	}
	return nil
}

func generateAction(c *cli.Context) (err error) {
	cfg, logger, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(closer))

	up, err := spatialmath.AxisFromString(c.String(flagUpAxis))
	if err != nil {
		return err
	}
	genCfg := cfg.Generator.ToGenerator()
	if h := c.Int(flagHeight); h > 0 {
		genCfg.Height = h
	}
	if w := c.Int(flagWidth); w > 0 {
		genCfg.Width = w
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	if c.Bool(flagDebugRun) {
		ctx = logging.EnableDebugMode(ctx, "")
	}

	clk := clock.New()
	simulated := fake.New(clk, fake.Options{UpAxis: up, FrameInterval: c.Duration(flagFrameInterval)}, logger.Sublogger("host"))
	gen, err := generator.New(simulated.Services(), genCfg, clk, logger.Sublogger("generator"))
	if err != nil {
		return err
	}

	cloud, err := gen.StartReconstruction(ctx, c.String(flagAsset)).Wait(ctx)
	if err != nil {
		return err
	}
	if err := writePCD(c.String(flagOut), cloud); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d points to %s\n", cloud.Size(), c.String(flagOut))
	return nil
}

func writePCD(path string, cloud *pointcloud.PointCloud) (err error) {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return errors.Wrap(err, "creating output")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))
	return pointcloud.ToPCD(cloud, f)
}

func inspectAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one PCD file")
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	cloud, err := pointcloud.ReadPCD(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "points: %d\nbounds: %s\npoint width: %g\n", cloud.Size(), cloud.Bounds(), cloud.PointWidth())
	return nil
}

// cookctl manages the cookbook service stack through the Docker API,
// driven by the compose manifest in deploy/.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matzeds/cookbook/compose"
	"github.com/matzeds/cookbook/services"
)

var (
	manifestPath string
	envFile      string
	project      string
)

func main() {
	root := &cobra.Command{
		Use:           "cookctl",
		Short:         "Manage the cookbook container stack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&manifestPath, "file", "f", filepath.Join("deploy", "compose.yaml"), "compose manifest")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "environment file (defaults to .env beside the manifest)")
	root.PersistentFlags().StringVarP(&project, "project", "p", "cookbook", "project name")

	root.AddCommand(upCmd(), downCmd(), restartCmd(), buildCmd(), rebuildCmd(), pullCmd(), psCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// signalContext cancels on SIGINT/SIGTERM so a half-started stack can
// still be torn down by hand.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadManifest() (*compose.Manifest, error) {
	return compose.Load(manifestPath, compose.LoadOptions{EnvFile: envFile})
}

func withEngine(fn func(ctx context.Context, eng *services.Engine, m *compose.Manifest) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	m, err := loadManifest()
	if err != nil {
		return err
	}
	rt, err := services.NewDockerRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(ctx, services.NewEngine(rt, project, m), m)
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Start the stack, waiting on health-gated dependencies",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withEngine(func(ctx context.Context, eng *services.Engine, _ *compose.Manifest) error {
				return eng.Up(ctx)
			})
		},
	}
}

func downCmd() *cobra.Command {
	var removeVolumes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the stack's containers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withEngine(func(ctx context.Context, eng *services.Engine, _ *compose.Manifest) error {
				return eng.Down(ctx, removeVolumes)
			})
		},
	}
	cmd.Flags().BoolVar(&removeVolumes, "volumes", false, "also remove named volumes (destroys data)")
	return cmd
}

func restartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop and start the stack, keeping volumes",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withEngine(func(ctx context.Context, eng *services.Engine, _ *compose.Manifest) error {
				return eng.Restart(ctx)
			})
		},
	}
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [service...|all]",
		Short: "Build service images (all buildable services by default)",
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if len(args) == 1 && args[0] == "all" {
				args = nil
			}
			m, err := loadManifest()
			if err != nil {
				return err
			}
			builds, err := services.BuildsFor(m, filepath.Dir(manifestPath), args...)
			if err != nil {
				return err
			}
			return services.NewBuilder().Build(ctx, builds...)
		},
	}
}

func rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Tear down the stack including volumes, rebuild images, start fresh",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withEngine(func(ctx context.Context, eng *services.Engine, m *compose.Manifest) error {
				if err := eng.Down(ctx, true); err != nil {
					return err
				}
				builds, err := services.BuildsFor(m, filepath.Dir(manifestPath))
				if err != nil {
					return err
				}
				if err := services.NewBuilder().Build(ctx, builds...); err != nil {
					return err
				}
				return eng.Up(ctx)
			})
		},
	}
}

func pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull the images of services that are not built locally",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withEngine(func(ctx context.Context, eng *services.Engine, _ *compose.Manifest) error {
				return eng.Pull(ctx)
			})
		},
	}
}

func psCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List the stack's containers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withEngine(func(ctx context.Context, eng *services.Engine, _ *compose.Manifest) error {
				infos, err := eng.PS(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SERVICE\tNAME\tIMAGE\tSTATE\tHEALTH")
				for _, c := range infos {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Service, c.Name, c.Image, c.State, c.Health)
				}
				return tw.Flush()
			})
		},
	}
}

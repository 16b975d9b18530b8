// voicectl bootstraps a voice agent host and hands the process over to
// the agent binary. Bootstrap stages run strictly in order and the first
// failure stops the run; launch never supervises the agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/karsk/voicectl/internal/assets"
	"github.com/karsk/voicectl/internal/bootstrap"
	"github.com/karsk/voicectl/internal/config"
	"github.com/karsk/voicectl/internal/launcher"
	"github.com/karsk/voicectl/internal/logging"
	"github.com/karsk/voicectl/internal/observability"
	"github.com/karsk/voicectl/internal/pkgs"
	"github.com/karsk/voicectl/internal/plugins"
	"github.com/karsk/voicectl/internal/tools"
	"github.com/karsk/voicectl/internal/version"
)

const usage = `voicectl - bootstrap and launch the voice agent

Usage:
  voicectl bootstrap [--config deploy.yaml] [--mode MODE] [--remote]
  voicectl launch [MODE] [--config deploy.yaml]
  voicectl up [MODE] [--config deploy.yaml]
  voicectl status [--config deploy.yaml]
  voicectl version

Commands:
  bootstrap   run the staged host setup: native packages, language
              plugins, then the agent's own asset download
  launch      replace this process with the agent binary in MODE
  up          bootstrap, then launch
  status      report per-stage convergence without changing anything
  version     print build information
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "voicectl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	switch args[0] {
	case "bootstrap":
		return runBootstrap(args[1:])
	case "launch":
		return runLaunch(args[1:])
	case "up":
		return runUp(args[1:])
	case "status":
		return runStatus(args[1:])
	case "version":
		fmt.Println("voicectl " + version.Info())
		return nil
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// parseFlags parses args and maps the built-in help request onto the
// command usage text.
func parseFlags(fs *pflag.FlagSet, args []string) (bool, error) {
	fs.Usage = func() { fmt.Print(usage) }
	err := fs.Parse(args)
	if err == pflag.ErrHelp {
		return true, nil
	}
	return false, err
}

// loadDeploy reads the deploy config and resolves the effective mode.
// An unknown mode token is fatal here, before any stage touches the host.
func loadDeploy(path string, modeOverride string) (config.DeployConfig, config.Mode, error) {
	cfg, err := config.LoadDeployConfig(path)
	if err != nil {
		return config.DeployConfig{}, "", err
	}
	raw := cfg.Mode
	if strings.TrimSpace(modeOverride) != "" {
		raw = modeOverride
	}
	mode, err := config.ParseMode(raw)
	if err != nil {
		return config.DeployConfig{}, "", err
	}
	return cfg.ForMode(mode), mode, nil
}

func configureLogging(mode config.Mode) {
	if mode == config.ModeStart {
		logging.ConfigureStart()
		return
	}
	logging.ConfigureDev()
}

// dataRoot resolves the working root for plugins and assets. The
// environment snapshot wins over the config file.
func dataRoot(cfg config.DeployConfig, env *config.Env) string {
	if strings.TrimSpace(env.DataRoot) != "" {
		return env.DataRoot
	}
	return cfg.DataRoot
}

func runBootstrap(args []string) error {
	fs := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
	configPath := fs.String("config", "deploy.yaml", "deploy config file")
	modeFlag := fs.String("mode", "", "run mode override (dev or start)")
	remote := fs.Bool("remote", false, "bootstrap the remote host from the deploy config")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	cfg, mode, err := loadDeploy(*configPath, *modeFlag)
	if err != nil {
		return err
	}
	configureLogging(mode)
	observability.RegisterMetrics()

	if *remote {
		return bootstrapRemote(cfg, *modeFlag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return bootstrapLocal(ctx, cfg, config.CaptureEnv())
}

// bootstrapLocal runs the three stages in order on this host. The
// pipeline stops at the first failure and the exit is nonzero.
func bootstrapLocal(ctx context.Context, cfg config.DeployConfig, env *config.Env) error {
	steps, err := buildSteps(cfg, dataRoot(cfg, env))
	if err != nil {
		return err
	}

	pipeline := bootstrap.NewPipeline(steps...)
	if err := pipeline.Run(ctx); err != nil {
		return err
	}
	log.Info().Msgf("voicectl bootstrap done phase=%q", pipeline.Phase())
	return nil
}

// buildSteps assembles the ordered stage list: native packages, language
// plugins, then the agent's own asset download subcommand.
func buildSteps(cfg config.DeployConfig, root string) ([]bootstrap.Step, error) {
	kind, err := resolveManagerKind(cfg)
	if err != nil {
		return nil, err
	}
	manifest, err := pkgs.LoadManifest(cfg.Manifests.Packages)
	if err != nil {
		return nil, err
	}
	runner := tools.ExecRunner{}
	if kind == pkgs.KindApt {
		runner.ExtraEnv = []string{"DEBIAN_FRONTEND=noninteractive"}
	}
	pkgStage := pkgs.NewStage(pkgs.NewManager(kind, runner), manifest.PackagesFor(kind))

	installer, err := plugins.NewInstaller(plugins.InstallerConfig{
		ManifestPath: cfg.Manifests.Plugins,
		Dir:          filepath.Join(root, "plugins"),
	})
	if err != nil {
		return nil, err
	}

	assetStage := bootstrap.NewCommandStage(
		"agent-assets",
		cfg.AgentBinary,
		[]string{"download-files", "--config", cfg.AgentConfig},
		tools.ExecRunner{},
	)

	return []bootstrap.Step{
		{Stage: pkgStage, Completes: bootstrap.PhaseNativeReady},
		{Stage: plugins.NewStage(installer), Completes: bootstrap.PhaseDepsReady},
		{Stage: assetStage, Completes: bootstrap.PhaseBootstrapComplete},
	}, nil
}

func resolveManagerKind(cfg config.DeployConfig) (pkgs.Kind, error) {
	if strings.TrimSpace(cfg.PackageManager) != "" {
		return pkgs.ParseKind(cfg.PackageManager)
	}
	return pkgs.DetectKind(tools.ExecRunner{})
}

// bootstrapRemote reruns this same bootstrap command on the configured
// SSH target, streaming the remote output through. An explicit mode
// override travels with it; otherwise the remote deploy config decides.
func bootstrapRemote(cfg config.DeployConfig, modeOverride string) error {
	remote := cfg.Remote
	if remote == nil {
		return fmt.Errorf("remote bootstrap requested but deploy config has no remote section")
	}

	runner := tools.SSHRunner{
		Host:                        remote.Host,
		Port:                        remote.Port,
		User:                        remote.User,
		KeyPath:                     remote.KeyPath,
		KnownHostsPath:              remote.KnownHosts,
		InsecureSkipHostKeyChecking: remote.Insecure,
		Timeout:                     remote.Timeout,
	}

	args := []string{"bootstrap"}
	if strings.TrimSpace(remote.DeployConfig) != "" {
		args = append(args, "--config", remote.DeployConfig)
	}
	if strings.TrimSpace(modeOverride) != "" {
		args = append(args, "--mode", modeOverride)
	}

	log.Info().Msgf("voicectl bootstrap remote host=%q user=%q", remote.Host, remote.User)
	if err := runner.RunStreaming("voicectl", args, os.Stdout, os.Stderr); err != nil {
		return fmt.Errorf("remote bootstrap failed exit=%d: %w", tools.ExitCode(err), err)
	}
	return nil
}

// runLaunch replaces this process with the agent. The mode token is
// passed through verbatim; anything outside the closed mode set fails
// before the exec.
func runLaunch(args []string) error {
	fs := pflag.NewFlagSet("launch", pflag.ContinueOnError)
	configPath := fs.String("config", "deploy.yaml", "deploy config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	modeToken := ""
	if rest := fs.Args(); len(rest) > 0 {
		modeToken = rest[0]
	}

	cfg, mode, err := loadDeploy(*configPath, modeToken)
	if err != nil {
		return err
	}
	configureLogging(mode)
	return launchAgent(cfg, mode, config.CaptureEnv())
}

// launchAgent execs the agent binary. A successful exec never returns.
func launchAgent(cfg config.DeployConfig, mode config.Mode, env *config.Env) error {
	syncer, err := assets.NewSyncer(cfg.Manifests.Assets, filepath.Join(dataRoot(cfg, env), "assets"))
	if err != nil {
		return err
	}

	l := &launcher.Launcher{
		Binary:     cfg.AgentBinary,
		Mode:       mode,
		Env:        env,
		Unbuffered: cfg.Unbuffered || env.Unbuffered,
		Preflight:  syncer,
	}
	return l.Launch()
}

// runUp bootstraps this host and immediately hands the process to the
// agent, the whole build-then-run sequence in one command.
func runUp(args []string) error {
	fs := pflag.NewFlagSet("up", pflag.ContinueOnError)
	configPath := fs.String("config", "deploy.yaml", "deploy config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	modeToken := ""
	if rest := fs.Args(); len(rest) > 0 {
		modeToken = rest[0]
	}

	cfg, mode, err := loadDeploy(*configPath, modeToken)
	if err != nil {
		return err
	}
	configureLogging(mode)
	observability.RegisterMetrics()
	env := config.CaptureEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = bootstrapLocal(ctx, cfg, env)
	stop()
	if err != nil {
		return err
	}
	return launchAgent(cfg, mode, env)
}

// runStatus reports per-stage convergence without installing anything.
func runStatus(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	configPath := fs.String("config", "deploy.yaml", "deploy config file")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	cfg, mode, err := loadDeploy(*configPath, "")
	if err != nil {
		return err
	}
	configureLogging(mode)
	root := dataRoot(cfg, config.CaptureEnv())

	failing := 0
	report := func(stage string, err error) {
		if err != nil {
			failing++
			fmt.Printf("%-18s pending: %v\n", stage, err)
			return
		}
		fmt.Printf("%-18s ok\n", stage)
	}

	report("native-packages", statusPackages(cfg))
	report("language-plugins", statusPlugins(cfg, root))
	report("agent-assets", statusAssets(cfg, root))

	if failing > 0 {
		return fmt.Errorf("%d stage(s) not converged", failing)
	}
	fmt.Printf("%-18s %s\n", "phase", bootstrap.PhaseBootstrapComplete)
	return nil
}

func statusPackages(cfg config.DeployConfig) error {
	kind, err := resolveManagerKind(cfg)
	if err != nil {
		return err
	}
	manifest, err := pkgs.LoadManifest(cfg.Manifests.Packages)
	if err != nil {
		return err
	}
	return pkgs.NewManager(kind, tools.ExecRunner{}).VerifyAll(manifest.PackagesFor(kind))
}

func statusPlugins(cfg config.DeployConfig, root string) error {
	installer, err := plugins.NewInstaller(plugins.InstallerConfig{
		ManifestPath: cfg.Manifests.Plugins,
		Dir:          filepath.Join(root, "plugins"),
	})
	if err != nil {
		return err
	}
	return installer.Verify()
}

func statusAssets(cfg config.DeployConfig, root string) error {
	syncer, err := assets.NewSyncer(cfg.Manifests.Assets, filepath.Join(root, "assets"))
	if err != nil {
		return err
	}
	return syncer.Verify()
}

// bootgen writes starter config and manifest files for voicectl and
// voiced, and validates existing ones without running any stage.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/karsk/voicectl/internal/assets"
	"github.com/karsk/voicectl/internal/config"
	"github.com/karsk/voicectl/internal/pkgs"
	"github.com/karsk/voicectl/internal/plugins"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bootgen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("bootgen", pflag.ContinueOnError)
	kind := fs.String("kind", "deploy", "config kind: deploy|agent|packages|plugins|assets")
	output := fs.String("output", "", "output path for the template (defaults per kind)")
	validate := fs.Bool("validate", false, "validate an existing file instead of writing")
	input := fs.String("input", "", "file to validate (defaults per kind)")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		if err := validateFile(*kind, path); err != nil {
			return err
		}
		fmt.Printf("validated %s config at %s\n", *kind, path)
		return nil
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	fmt.Printf("wrote %s template to %s\n", *kind, target)
	return nil
}

func defaultPath(kind string) string {
	switch kind {
	case "agent":
		return "voiced.toml"
	case "packages":
		return "manifests/packages.toml"
	case "plugins":
		return "manifests/plugins.toml"
	case "assets":
		return "manifests/assets.toml"
	default:
		return "deploy.yaml"
	}
}

// validateFile loads path with the same loader the runtime uses, so a
// file that validates here is a file the stages will accept.
func validateFile(kind, path string) error {
	switch kind {
	case "deploy":
		_, err := config.LoadDeployConfig(path)
		return err
	case "agent":
		_, err := config.LoadAgentConfig(path)
		return err
	case "packages":
		_, err := pkgs.LoadManifest(path)
		return err
	case "plugins":
		_, err := plugins.LoadManifest(path)
		return err
	case "assets":
		_, err := assets.LoadManifest(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

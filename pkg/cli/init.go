package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phantomssr/phantom/pkg/config"
	"github.com/phantomssr/phantom/pkg/types"
	"github.com/phantomssr/phantom/pkg/utils"
)

// Common build layouts, most specific first
var (
	indexCandidates = []string{
		"public/index.html",
		"dist/index.html",
		"build/index.html",
		"index.html",
	}
	bundleCandidates = []string{
		"server.bundle.js",
		"dist/server.bundle.js",
		"build/server.bundle.js",
		"dist/server.js",
		"build/server.js",
	}
)

func (c *CLI) newInitCmd() *cobra.Command {
	var useYAML bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Phantom configuration",
		Long: `Initialize a new Phantom configuration file in the project root.
This command looks for your index template and server bundle in the usual
build directories and writes a configuration pointing at them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(useYAML, force)
		},
	}

	cmd.Flags().BoolVar(&useYAML, "yaml", false, "write phantom.config.yaml instead of JSON")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

func (c *CLI) runInit(useYAML, force bool) error {
	ext := ".json"
	if useYAML {
		ext = ".yaml"
	}
	configPath := filepath.Join(c.config.ProjectRoot, config.ConfigName+ext)

	if existing, err := config.FindConfig(c.config.ProjectRoot); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", existing)
	}

	cfg := createDefaultConfig(c.config.ProjectRoot)
	if found := detectAsset(c.config.ProjectRoot, indexCandidates); found != "" {
		c.printInfo(fmt.Sprintf("Detected index template: %s", found))
	}
	if found := detectAsset(c.config.ProjectRoot, bundleCandidates); found != "" {
		c.printInfo(fmt.Sprintf("Detected server bundle: %s", found))
	} else {
		c.printWarning(fmt.Sprintf("No server bundle found, expecting %s", cfg.ServerBundlePath))
	}

	data, err := marshalConfig(cfg, useYAML)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	c.printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	c.printInfo("Add your routes and run 'phantom render'")

	return nil
}

// detectAsset returns the first candidate that exists below root
func detectAsset(root string, candidates []string) string {
	for _, candidate := range candidates {
		if utils.FileExists(filepath.Join(root, candidate)) {
			return candidate
		}
	}
	return ""
}

func createDefaultConfig(root string) *types.RendererConfig {
	cfg := config.NewManager().GetDefaultConfig()

	if index := detectAsset(root, indexCandidates); index != "" {
		cfg.IndexPath = index
	}
	if bundle := detectAsset(root, bundleCandidates); bundle != "" {
		cfg.ServerBundlePath = bundle
	}
	return cfg
}

// marshalConfig writes YAML with the same keys as the JSON form
func marshalConfig(cfg *types.RendererConfig, useYAML bool) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil || !useYAML {
		return data, err
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

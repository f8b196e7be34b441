package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stagehand-ai/stagehand/internal/binding"
	"github.com/stagehand-ai/stagehand/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Stagehand project",
	Long: `Initialize a directory for use with Stagehand.

This command sets up everything needed to run an objective:
  - Creates the .stagehand directory
  - Writes a workspaces.yaml manifest with the default layout
  - Creates each workspace directory with its agent definition

The directory argument is optional and defaults to the current directory.

Examples:
  stagehand init              # Initialize current directory
  stagehand init ./myproject  # Initialize specific directory
  stagehand init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Stagehand in %s...\n\n", absPath)

	stagehandDir := filepath.Join(absPath, ".stagehand")
	if _, err := os.Stat(stagehandDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}
	if err := os.MkdirAll(stagehandDir, 0755); err != nil {
		return fmt.Errorf("creating .stagehand directory: %w", err)
	}

	manifest := config.DefaultManifest()
	if _, err := os.Stat(config.ManifestPath(absPath)); os.IsNotExist(err) || initForce {
		if err := config.SaveManifest(absPath, manifest); err != nil {
			return err
		}
	} else {
		manifest, err = config.LoadManifest(absPath)
		if err != nil {
			return err
		}
	}

	green := color.New(color.FgGreen)
	for _, ws := range manifest.Workspaces {
		workDir := filepath.Join(absPath, ws.Name)
		if err := os.MkdirAll(workDir, 0755); err != nil {
			return fmt.Errorf("creating workspace %s: %w", ws.Name, err)
		}

		bc := binding.NewContext(workDir)
		if _, err := os.Stat(bc.DefinitionFile); err == nil && !initForce {
			continue
		}
		def := &binding.Definition{
			Role:             "implementation",
			Responsibilities: ws.Responsibilities,
			WorkingDirectory: workDir,
		}
		if err := binding.SaveDefinition(bc, def); err != nil {
			return err
		}
		green.Printf("  ✓ workspace %s\n", ws.Name)
	}

	fmt.Println("\nDone. Run 'stagehand run <objective>' to start.")
	return nil
}

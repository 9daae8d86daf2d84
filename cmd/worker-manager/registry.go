// cmd/worker-manager/registry.go
package main

import (
	"fmt"

	"devmatch-workers/internal/common/validation"
	"devmatch-workers/pkg/registry"

	"github.com/spf13/cobra"
)

var (
	registryPath     string
	registryMaxRepos int

	registryCmd = &cobra.Command{
		Use:   "registry",
		Short: "Export or validate the activity catalog served by the workers",
	}

	registryExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write the built-in activity catalog to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Default(registryMaxRepos)
			if err := reg.Save(registryPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d activities to %s\n", len(reg.Activities), registryPath)
			return nil
		},
	}

	registryValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Check a catalog file for missing fields and schemas that do not compile",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("registry validation failed: %w", err)
			}
			for _, activity := range reg.Activities {
				if _, err := validation.Validate(activity.InputSchema, map[string]interface{}{}); err != nil {
					return fmt.Errorf("activity %s: %w", activity.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}
)

func init() {
	registryCmd.PersistentFlags().StringVar(&registryPath, "path", "configs/activity-registry.json", "path to the registry file")
	registryExportCmd.Flags().IntVar(&registryMaxRepos, "max-repos", registry.DefaultMaxRepositories, "repository limit written into the submit-analysis schema")

	registryCmd.AddCommand(registryExportCmd, registryValidateCmd)
}

// cmd/certctl/registry.go
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"certificate-workers/internal/common/validation"
	"certificate-workers/pkg/registry"

	"github.com/spf13/cobra"
)

func newRegistryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Maintain the activity registry",
	}
	cmd.AddCommand(
		newRegistryValidateCmd(opts),
		newRegistryAddCmd(opts),
		newRegistryUpdateCmd(opts),
	)
	return cmd
}

func newRegistryValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check required fields and compile every input schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(opts.registryPath)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			if err := validateRegistry(reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}
}

func newRegistryAddCmd(opts *rootOptions) *cobra.Command {
	a := registry.Activity{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new activity",
		Example: `  certctl registry add --id certificate.lifecycle.issue --display-name "Issue Certificate" \
    --category certificate --task-type issue-certificate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := addActivity(opts.registryPath, a); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added activity: %s\n", a.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.ID, "id", "", "Activity ID (e.g. certificate.lifecycle.issue)")
	f.StringVar(&a.DisplayName, "display-name", "", "Display name")
	f.StringVar(&a.Description, "description", "", "Description")
	f.StringVar(&a.Category, "category", "", "Category (e.g. certificate)")
	f.StringVar(&a.TaskType, "task-type", "", "Zeebe job type")
	f.StringVar(&a.Version, "version", "1.0.0", "Version")
	f.StringVar(&a.ImplementationStatus, "status", registry.StatusPlanned, "Implementation status (planned, in-progress, implemented, verified)")
	f.StringVar(&a.Timeout, "timeout", "30s", "Job timeout")
	for _, name := range []string{"id", "display-name", "category", "task-type"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newRegistryUpdateCmd(opts *rootOptions) *cobra.Command {
	var id, field, value string

	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Update one field of an existing activity",
		Example: "  certctl registry update --id certificate.lifecycle.issue --field status --value completed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := updateActivity(opts.registryPath, id, field, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", id, field, value)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Activity ID to update")
	cmd.Flags().StringVar(&field, "field", "", "Field to update (status, version, displayName, description, category, taskType, timeout, retries)")
	cmd.Flags().StringVar(&value, "value", "", "New value for the field")
	for _, name := range []string{"id", "field", "value"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func addActivity(path string, activity registry.Activity) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.ActivityRegistry{Version: "1.0.0"}
	}

	if _, ok := reg.FindByID(activity.ID); ok {
		return fmt.Errorf("activity with ID %s already exists", activity.ID)
	}
	if existing, ok := reg.FindByTaskType(activity.TaskType); ok {
		return fmt.Errorf("task type %s already bound to %s", activity.TaskType, existing.ID)
	}
	if activity.ImplementationStatus == "" {
		activity.ImplementationStatus = registry.StatusPlanned
	}
	if !registry.ValidStatus(activity.ImplementationStatus) {
		return fmt.Errorf("invalid status: %s", activity.ImplementationStatus)
	}

	if activity.InputSchema == nil {
		activity.InputSchema = map[string]interface{}{}
	}
	if activity.OutputSchema == nil {
		activity.OutputSchema = map[string]interface{}{}
	}
	reg.Activities = append(reg.Activities, activity)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return reg.Save(path)
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	target, ok := reg.FindByID(id)
	if !ok {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		if !registry.ValidStatus(value) {
			return fmt.Errorf("invalid status: %s", value)
		}
		target.ImplementationStatus = value
	case "version":
		target.Version = value
	case "displayName":
		target.DisplayName = value
	case "description":
		target.Description = value
	case "category":
		target.Category = value
	case "taskType":
		target.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		target.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		target.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	return reg.Save(path)
}

func validateRegistry(reg *registry.ActivityRegistry) error {
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	for _, activity := range reg.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if activity.Timeout != "" && activity.TimeoutDuration() == 0 {
			return fmt.Errorf("activity %s has invalid timeout %q", activity.ID, activity.Timeout)
		}
	}

	if errs := validation.ValidateRegistry(reg); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

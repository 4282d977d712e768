// cmd/content-service/activities.go
package main

import (
	"fmt"
	"text/tabwriter"

	"content-workers/internal/common/validation"
	"content-workers/pkg/registry"

	"github.com/spf13/cobra"
)

var activitiesPath string

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "List the activity catalogue and check that every input schema compiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.Default()
		if activitiesPath != "" {
			reg, err = registry.LoadRegistry(activitiesPath)
		}
		if err != nil {
			return err
		}

		if _, err := validation.NewValidator(reg); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTASK TYPE\tROUTE\tSTATUS")
		for _, a := range reg.Activities {
			taskType := a.TaskType
			if taskType == "" {
				taskType = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, taskType, a.Route, a.ImplementationStatus)
		}
		return w.Flush()
	},
}

func init() {
	activitiesCmd.Flags().StringVar(&activitiesPath, "path", "", "read the catalogue from a file instead of the built-in copy")
}

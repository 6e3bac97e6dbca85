package cli

import (
	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

var tasksYAML bool

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show the workflow tasks and their dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		dag, err := warehouse.NewDAG(cfg.Workflow.DagID)
		if err != nil {
			return err
		}
		if tasksYAML {
			return renderTasksYAML(cmd.OutOrStdout(), dag)
		}
		cmd.Println(dag.String())
		cmd.Println()
		renderTasks(cmd.OutOrStdout(), dag)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	tasksCmd.Flags().BoolVar(&tasksYAML, "yaml", false,
		"print the workflow as YAML")
}

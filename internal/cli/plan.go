package cli

import (
	"github.com/spf13/cobra"

	"github.com/qs3c/repoinsight/internal/bootstrap"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/tasks"
)

func newPlanCmd() *cobra.Command {
	var (
		depth      string
		security   bool
		categories []string
	)
	cmd := &cobra.Command{
		Use:   "plan [dir]",
		Short: "Show the tasks an analysis would run, in execution order.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := parseCategories(categories)
			if err != nil {
				return err
			}
			view, err := inspect(targetArg(args))
			if err != nil {
				return err
			}
			catalogue, err := bootstrap.Catalogue(cfg.Pipeline)
			if err != nil {
				return err
			}
			rows := buildPlan(catalogue, view.classification.PrimaryType, model.Depth(depth), security, cats)
			return printPlan(cmd.OutOrStdout(), view.classification.PrimaryType, rows)
		},
	}
	cmd.Flags().StringVar(&depth, "depth", string(model.DepthStandard), "quick, standard or deep")
	cmd.Flags().BoolVar(&security, "security", false, "include the security category")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "explicit category list (overrides depth)")
	return cmd
}

// buildPlan 与流水线相同的规划：按类别顺序，已计划的任务不重复
func buildPlan(catalogue *tasks.Catalogue, pt model.ProjectType, depth model.Depth, security bool, cats []model.Category) []model.TaskDefinition {
	planned := map[string]bool{}
	var out []model.TaskDefinition
	for _, cat := range tasks.SelectCategories(depth, security, cats) {
		for _, t := range catalogue.Plan(pt, cat, planned) {
			planned[t.ID] = true
			out = append(out, t)
		}
	}
	return out
}

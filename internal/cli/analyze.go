package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qs3c/repoinsight/internal/bootstrap"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pipeline"
	"github.com/qs3c/repoinsight/internal/source"
)

type analyzeOptions struct {
	branch     string
	depth      string
	security   bool
	categories []string
	provider   string
	reportDir  string
	asJSON     bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <dir|repo-url>",
		Short: "Run a full analysis of a local directory or a remote repository.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.branch, "branch", "", "branch to clone (remote only)")
	f.StringVar(&opts.depth, "depth", string(model.DepthStandard), "quick, standard or deep")
	f.BoolVar(&opts.security, "security", false, "include the security category")
	f.StringSliceVar(&opts.categories, "categories", nil, "explicit category list (overrides depth)")
	f.StringVar(&opts.provider, "provider", "", "reasoning provider override (gemini, ollama, fake)")
	f.StringVar(&opts.reportDir, "report-dir", "", "directory for the generated report")
	f.BoolVar(&opts.asJSON, "json", false, "print the full job as JSON")
	return cmd
}

func runAnalyze(cmd *cobra.Command, target string, opts *analyzeOptions) error {
	cats, err := parseCategories(opts.categories)
	if err != nil {
		return err
	}
	if opts.provider != "" {
		cfg.Reasoning.Provider = opts.provider
	}
	if opts.reportDir != "" {
		cfg.Pipeline.ReportDir = opts.reportDir
	}

	req := &model.AnalysisRequest{
		RepoURL:         target,
		Branch:          opts.branch,
		Depth:           model.Depth(opts.depth),
		IncludeSecurity: opts.security,
		Categories:      cats,
		ForceRefresh:    true,
	}
	deps := bootstrap.Deps{}
	if isLocalDir(target) {
		deps.Source = source.NewLocalSource(target, cfg.Pipeline.MaxFileBytes)
		req.RepoURL = localRepoURL(target)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, err := bootstrap.NewCoordinator(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer coord.Shutdown()

	if !opts.asJSON {
		go pipeline.NewProgressDispatcher(coord.Progress(), newProgressPrinter(cmd.ErrOrStderr())).Run(ctx)
	}

	job, err := coord.Execute(ctx, "", req)
	if err != nil {
		return err
	}
	if opts.asJSON {
		return writeJSON(cmd.OutOrStdout(), job)
	}
	if err := printJob(cmd.OutOrStdout(), job); err != nil {
		return err
	}
	if job.Status != model.StatusCompleted {
		return fmt.Errorf("analysis %s: %s", job.Status, job.ErrorMessage)
	}
	return nil
}

func parseCategories(raw []string) ([]model.Category, error) {
	var out []model.Category
	for _, r := range raw {
		c := model.Category(strings.ToLower(strings.TrimSpace(r)))
		if c == "" {
			continue
		}
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %q", r)
		}
		out = append(out, c)
	}
	return out, nil
}

// localRepoURL 本地目录以 file:// 地址标识
func localRepoURL(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return "file://" + filepath.ToSlash(abs)
}

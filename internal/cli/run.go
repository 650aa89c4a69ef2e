package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vibe-kanban/attemptcore/internal/approval"
	"github.com/vibe-kanban/attemptcore/internal/attempt"
	"github.com/vibe-kanban/attemptcore/internal/cli/watch"
	"github.com/vibe-kanban/attemptcore/internal/config"
	"github.com/vibe-kanban/attemptcore/internal/diffengine"
	"github.com/vibe-kanban/attemptcore/internal/model"
	"github.com/vibe-kanban/attemptcore/internal/obslog"
	"github.com/vibe-kanban/attemptcore/internal/outbox"
	"github.com/vibe-kanban/attemptcore/internal/queue"
	"github.com/vibe-kanban/attemptcore/internal/security"
	"github.com/vibe-kanban/attemptcore/internal/supervisor"
	"github.com/vibe-kanban/attemptcore/internal/worktree"

	_ "github.com/vibe-kanban/attemptcore/internal/executor/claudecode"
	_ "github.com/vibe-kanban/attemptcore/internal/executor/codex"
	_ "github.com/vibe-kanban/attemptcore/internal/executor/fakeagent"
	_ "github.com/vibe-kanban/attemptcore/internal/executor/genericcli"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive one attempt end to end from a terminal",
	Long: `Materialize a worktree, optionally run a setup script, launch a coding
agent, and watch its normalized log live, answering any approval prompts the
agent raises, until the attempt is stopped.

This replaces the former provisioner-based remote session with an in-process
attempt.Orchestrator: there is no VM to provision and no separate process to
attach logs/approve/diff commands to, so this one command owns the whole
attempt lifecycle.

Example:
  attemptctl run --repo ./myapp --executor fake-agent --prompt "add a README"`,
	RunE: runAttempt,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("repo", "", "path to the repository to work in")
	runCmd.Flags().String("repo-id", "repo", "identifier for the repo within this attempt")
	runCmd.Flags().String("executor", "", "registered executor adapter to run (e.g. claude-code, codex, fake-agent)")
	runCmd.Flags().String("prompt", "", "initial prompt for the agent")
	runCmd.Flags().String("task-title", "attempt", "short title used to name the attempt's worktree branch")
	runCmd.Flags().String("setup-script", "", "shell command to run once before the agent starts")
	runCmd.Flags().String("base-ref", "HEAD", "base ref the attempt's branch and diff are computed against")
	runCmd.Flags().Bool("force-stop", false, "SIGKILL instead of SIGTERM when the attempt is interrupted")
}

func runAttempt(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateForRun(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	repoPath, _ := cmd.Flags().GetString("repo")
	repoID, _ := cmd.Flags().GetString("repo-id")
	executorName, _ := cmd.Flags().GetString("executor")
	prompt, _ := cmd.Flags().GetString("prompt")
	taskTitle, _ := cmd.Flags().GetString("task-title")
	setupScript, _ := cmd.Flags().GetString("setup-script")
	baseRef, _ := cmd.Flags().GetString("base-ref")
	forceStop, _ := cmd.Flags().GetBool("force-stop")

	if repoPath == "" {
		return fmt.Errorf("--repo is required")
	}
	if executorName == "" {
		return fmt.Errorf("--executor is required")
	}
	if _, ok := cfg.Executors[executorName]; !ok {
		return fmt.Errorf("executor %q is not configured (see executors in .attemptcore.yaml)", executorName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nstopping attempt...")
		cancel()
	}()

	attemptID := fmt.Sprintf("attempt-%s", uuid.NewString()[:8])

	logger, err := obslog.New(ctx, cfg.Observability.GCPProject, cfg.Observability.LogName, attemptID, map[string]string{
		"executor": executorName,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Close()

	approvals := approval.New()

	deps := attempt.Deps{
		Worktrees:        worktree.NewManager(cfg.Worktree.Root),
		Approvals:        approvals,
		Queue:            queue.New(),
		Diff:             diffengine.New(diffengine.Thresholds{MaxFiles: cfg.Diff.MaxFiles, MaxBytes: cfg.Diff.MaxBytes}),
		ProcessOutbox:    outbox.New("/execution_processes"),
		AttemptOutbox:    outbox.New("/attempts"),
		StopDeadline:     cfg.StopDeadline(),
		CommandValidator: security.NewCommandValidator().WithWorkspaceRoot(cfg.Worktree.Root),
		AuditLog:         logger,
	}

	a := model.Attempt{
		ID:        attemptID,
		TaskID:    taskTitle,
		BaseRef:   baseRef,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	repos := []model.Repo{{ID: repoID, Path: repoPath, DefaultBranch: baseRef}}

	o := attempt.New(a, repos, deps)

	if err := o.CreateWorktree(taskTitle, ""); err != nil {
		return fmt.Errorf("failed to materialize worktree: %w", err)
	}
	defer func() {
		if err := o.RemoveWorktree(forceStop); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove worktree: %v\n", err)
		}
	}()

	if setupScript != "" {
		spec := supervisor.Spec{Command: "sh", Args: []string{"-c", setupScript}, Dir: repoPath}
		if err := o.RunSetupScript(ctx, spec); err != nil {
			return fmt.Errorf("setup script failed: %w", err)
		}
	}

	req := model.InitialRequest{
		Prompt:     prompt,
		Profile:    model.ExecutorProfile{AgentID: executorName},
		WorkingDir: repoPath,
	}
	processID, err := o.StartInitial(ctx, executorName, req)
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.StopDeadline()+5*time.Second)
		defer stopCancel()
		_ = o.Stop(stopCtx, forceStop)
	}()

	norm, ok := o.NormalizedLog(processID)
	if !ok {
		return fmt.Errorf("no normalized log for process %s", processID)
	}

	if err := watch.Run(ctx, watch.Params{Store: norm, Approvals: approvals}); err != nil {
		return fmt.Errorf("watch exited: %w", err)
	}

	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"codescope/internal/project"
	"codescope/internal/provider"

	"github.com/spf13/cobra"
)

var (
	flagProjectOrg    string
	flagProjectID     string
	flagIssuePhase    string
	flagIssueTitle    string
	flagIssueDesc     string
	flagIssueStatus   string
	flagDepKind       string
	flagDepsDepth     int
	flagPhaseName     string
	flagPhaseSequence int
	flagDecisionTitle string
	flagDecisionWhy   string
)

// openProjects wires the project store over the registered database provider.
func openProjects(ctx context.Context) (*project.Store, provider.Database, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := buildRegistry(cfg).Database("sqlite")
	if err != nil {
		return nil, nil, err
	}
	store, err := project.New(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Track issues, phases, dependencies, and decisions",
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openProjects(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		issue, err := store.CreateIssue(cmd.Context(), project.Issue{
			OrgID:       flagProjectOrg,
			ProjectID:   flagProjectID,
			PhaseID:     flagIssuePhase,
			Title:       flagIssueTitle,
			Description: flagIssueDesc,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created issue %s\n", issue.ID)
		return nil
	},
}

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openProjects(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		issues, err := store.ListIssues(cmd.Context(), flagProjectOrg, flagProjectID)
		if err != nil {
			return err
		}
		for _, is := range issues {
			fmt.Printf("%-36s  %-12s  %s\n", is.ID, is.Status, is.Title)
		}
		fmt.Printf("%d issue(s)\n", len(issues))
		return nil
	},
}

var issueStatusCmd = &cobra.Command{
	Use:   "status <issue-id>",
	Short: "Move an issue to a new status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := project.IssueStatus(flagIssueStatus)
		switch status {
		case project.StatusOpen, project.StatusInProgress, project.StatusDone, project.StatusBlocked:
		default:
			return fmt.Errorf("invalid status %q", flagIssueStatus)
		}
		store, db, err := openProjects(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.UpdateIssueStatus(cmd.Context(), flagProjectOrg, args[0], status); err != nil {
			return err
		}
		fmt.Printf("Issue %s is now %s\n", args[0], status)
		return nil
	},
}

var depAddCmd = &cobra.Command{
	Use:   "dep <from-issue> <to-issue>",
	Short: "Link two issues with a dependency edge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openProjects(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		dep, err := store.AddDependency(cmd.Context(), flagProjectOrg, args[0], args[1], flagDepKind)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s: %s -> %s\n", dep.Kind, dep.FromIssue, dep.ToIssue)
		return nil
	},
}

var depsCmd = &cobra.Command{
	Use:   "deps <issue-id>",
	Short: "Walk the dependency graph from an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openProjects(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		edges, err := store.Traverse(cmd.Context(), flagProjectOrg, args[0], flagDepsDepth)
		if err != nil {
			return err
		}
		for _, e := range edges {
			fmt.Printf("%s -> %s  (%s)\n", e.FromIssue, e.ToIssue, e.Kind)
		}
		fmt.Printf("%d edge(s) within depth %d\n", len(edges), flagDepsDepth)
		return nil
	},
}

var phaseAddCmd = &cobra.Command{
	Use:   "phase",
	Short: "Create a project phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openProjects(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		phase, err := store.CreatePhase(cmd.Context(), project.Phase{
			OrgID:     flagProjectOrg,
			ProjectID: flagProjectID,
			Name:      flagPhaseName,
			Sequence:  flagPhaseSequence,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created phase %s\n", phase.ID)
		return nil
	},
}

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Record and list design decisions",
}

var decisionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openProjects(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		d, err := store.RecordDecision(cmd.Context(), project.Decision{
			OrgID:     flagProjectOrg,
			ProjectID: flagProjectID,
			Title:     flagDecisionTitle,
			Rationale: flagDecisionWhy,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Recorded decision %s\n", d.ID)
		return nil
	},
}

var decisionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's decisions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openProjects(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		decisions, err := store.Decisions(cmd.Context(), flagProjectOrg, flagProjectID)
		if err != nil {
			return err
		}
		for _, d := range decisions {
			fmt.Printf("%-36s  %s\n", d.ID, d.Title)
			if d.Rationale != "" {
				fmt.Printf("    %s\n", d.Rationale)
			}
		}
		return nil
	},
}

func init() {
	projectCmd.PersistentFlags().StringVar(&flagProjectOrg, "org", "", "organization id (required)")
	projectCmd.PersistentFlags().StringVar(&flagProjectID, "project", "", "project id")

	issueAddCmd.Flags().StringVar(&flagIssueTitle, "title", "", "issue title (required)")
	issueAddCmd.Flags().StringVar(&flagIssueDesc, "description", "", "issue description")
	issueAddCmd.Flags().StringVar(&flagIssuePhase, "phase", "", "phase id")
	issueStatusCmd.Flags().StringVar(&flagIssueStatus, "status", "", "open|in_progress|done|blocked")
	depAddCmd.Flags().StringVar(&flagDepKind, "kind", "blocks", "edge kind")
	depsCmd.Flags().IntVar(&flagDepsDepth, "depth", 3, "maximum traversal depth")
	phaseAddCmd.Flags().StringVar(&flagPhaseName, "name", "", "phase name")
	phaseAddCmd.Flags().IntVar(&flagPhaseSequence, "sequence", 0, "phase order")
	decisionAddCmd.Flags().StringVar(&flagDecisionTitle, "title", "", "decision title")
	decisionAddCmd.Flags().StringVar(&flagDecisionWhy, "rationale", "", "why the decision was taken")

	issueCmd.AddCommand(issueAddCmd, issueListCmd, issueStatusCmd)
	decisionCmd.AddCommand(decisionAddCmd, decisionListCmd)
	projectCmd.AddCommand(issueCmd, depAddCmd, depsCmd, phaseAddCmd, decisionCmd)
	rootCmd.AddCommand(projectCmd)
}

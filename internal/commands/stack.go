package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evalgo.org/dockhand/internal/storage"
)

var (
	stackProject string
	stackService string
)

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Manage Compose stacks",
	Long: `Manage Compose stacks on registered hosts.

A stack binds one Compose project to one host. Creating a stack only
registers it; bringing it up, tearing it down, and restarting individual
services are explicit operations.`,
}

var stackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered stacks",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		stacks, err := store.ListStacks(context.Background(), nil)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(stacks)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tHOST\tSTATE\tUPDATED")
		for _, st := range stacks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				st.ID, st.Project, st.HostID, st.State, st.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var stackCreateCmd = &cobra.Command{
	Use:   "create <host-id> <compose-file>",
	Short: "Register a stack from a Compose file",
	Long: `Register a Compose stack on a host without starting it.

Examples:
  dockhand stack create host-edge7-1712345678 ./deploy/compose.yaml --project web`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		definition, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read compose file: %w", err)
		}

		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		connPool := newPool(store)
		defer connPool.Close()

		exec := newComposeExecutor(connPool, store)
		stack, err := exec.Create(context.Background(), args[0], stackProject, string(definition))
		if err != nil {
			return err
		}

		fmt.Printf("Registered stack %s (project %s) on host %s\n", stack.ID, stack.Project, stack.HostID)
		return nil
	},
}

var stackUpCmd = &cobra.Command{
	Use:   "up <stack-id>",
	Short: "Bring a stack up",
	Args:  cobra.ExactArgs(1),
	RunE:  runStackOp("up"),
}

var stackDownCmd = &cobra.Command{
	Use:   "down <stack-id>",
	Short: "Stop and remove a stack's containers",
	Args:  cobra.ExactArgs(1),
	RunE:  runStackOp("down"),
}

var stackRestartCmd = &cobra.Command{
	Use:   "restart <stack-id>",
	Short: "Restart one service of a stack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if stackService == "" {
			return fmt.Errorf("--service is required")
		}

		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		connPool := newPool(store)
		defer connPool.Close()

		exec := newComposeExecutor(connPool, store)
		result, err := exec.RestartService(context.Background(), args[0], stackService)
		if err != nil {
			return err
		}

		fmt.Printf("Restarted service %s (%s)\n", stackService, result.Operation)
		return nil
	},
}

var stackPSCmd = &cobra.Command{
	Use:   "ps <stack-id>",
	Short: "List a stack's containers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		connPool := newPool(store)
		defer connPool.Close()

		exec := newComposeExecutor(connPool, store)
		containers, err := exec.PS(context.Background(), args[0])
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(containers)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tNAME\tIMAGE\tSTATE")
		for _, c := range containers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Service, c.Name, c.Image, c.State)
		}
		return w.Flush()
	},
}

var stackDeleteCmd = &cobra.Command{
	Use:   "delete <stack-id>",
	Short: "Delete a stack record",
	Long: `Delete a stack record. Running containers are left alone; run
'dockhand stack down' first if you want teardown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		stack, err := store.LoadStack(ctx, args[0])
		if err != nil {
			return err
		}

		if err := store.DeleteStack(ctx, stack.ID, stack.Rev); err != nil {
			return err
		}

		fmt.Printf("Deleted stack %s (project %s)\n", stack.ID, stack.Project)
		return nil
	},
}

// runStackOp builds the shared up/down command runner.
func runStackOp(op string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		connPool := newPool(store)
		defer connPool.Close()

		exec := newComposeExecutor(connPool, store)

		ctx := context.Background()
		switch op {
		case "up":
			_, err = exec.Up(ctx, args[0])
		case "down":
			_, err = exec.Down(ctx, args[0])
		}
		if err != nil {
			return err
		}

		fmt.Printf("Stack %s: %s complete\n", args[0], op)
		return nil
	}
}

func init() {
	stackCreateCmd.Flags().StringVar(&stackProject, "project", "", "Compose project name (required)")
	_ = stackCreateCmd.MarkFlagRequired("project") //nolint:errcheck

	stackRestartCmd.Flags().StringVar(&stackService, "service", "", "Service name to restart (required)")

	stackCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")

	stackCmd.AddCommand(stackListCmd)
	stackCmd.AddCommand(stackCreateCmd)
	stackCmd.AddCommand(stackUpCmd)
	stackCmd.AddCommand(stackDownCmd)
	stackCmd.AddCommand(stackRestartCmd)
	stackCmd.AddCommand(stackPSCmd)
	stackCmd.AddCommand(stackDeleteCmd)

	rootCmd.AddCommand(stackCmd)
}

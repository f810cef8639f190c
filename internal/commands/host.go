package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"evalgo.org/dockhand/internal/compose"
	"evalgo.org/dockhand/internal/credentials"
	"evalgo.org/dockhand/internal/docker"
	"evalgo.org/dockhand/internal/pool"
	"evalgo.org/dockhand/internal/storage"
	"evalgo.org/dockhand/internal/transport"
	"evalgo.org/dockhand/internal/validation"
	"evalgo.org/dockhand/models"
)

var (
	hostName          string
	hostTransport     string
	hostAddress       string
	hostPort          int
	hostUser          string
	hostCredentialRef string
	hostSudo          bool
	outputFormat      string
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage Docker hosts",
	Long: `Register and manage the Docker hosts Dockhand operates.

A host is reached either directly through its engine API (local socket or
TCP endpoint) or over SSH, where only a shell and the docker CLI are
required on the far side.`,
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		hosts, err := store.ListHosts(context.Background(), nil)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(hosts)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTRANSPORT\tADDRESS\tUSER\tSUDO")
		for _, h := range hosts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n",
				h.ID, h.Name, h.Transport, h.Address, h.User, h.Sudo)
		}
		return w.Flush()
	},
}

var hostAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new host",
	Long: `Register a Docker host.

Examples:
  # Local engine socket
  dockhand host add --name local --transport direct --address unix:///var/run/docker.sock

  # Remote engine over TCP
  dockhand host add --name build1 --transport direct --address tcp://10.0.0.5:2375

  # SSH host with docker CLI, key resolved from the credential store
  dockhand host add --name edge7 --transport ssh --address 10.0.1.7 \
      --user deploy --credential-ref edge7.key --sudo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host := &models.Host{
			Kind:          models.DocKindHost,
			Name:          hostName,
			Transport:     models.TransportKind(hostTransport),
			Address:       hostAddress,
			Port:          hostPort,
			User:          hostUser,
			CredentialRef: hostCredentialRef,
			Sudo:          hostSudo,
			CreatedAt:     time.Now().UTC(),
		}
		host.ID = fmt.Sprintf("host-%s-%d", hostName, time.Now().Unix())

		if result := validation.New().ValidateHostStruct(host); !result.Valid {
			for _, ve := range result.Errors {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", ve.Field, ve.Message)
			}
			return fmt.Errorf("host validation failed")
		}

		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		if existing, err := store.FindHostByName(ctx, host.Name); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("host name %s is already taken by %s", host.Name, existing.ID)
		}

		if err := store.SaveHost(ctx, host); err != nil {
			return err
		}

		fmt.Printf("Registered host %s (%s)\n", host.Name, host.ID)
		return nil
	},
}

var hostRemoveCmd = &cobra.Command{
	Use:   "remove <host-id>",
	Short: "Remove a registered host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		host, err := store.GetHost(ctx, args[0])
		if err != nil {
			return err
		}

		stacks, err := store.ListStacksByHost(ctx, host.ID)
		if err != nil {
			return err
		}
		if len(stacks) > 0 {
			return fmt.Errorf("host %s still has %d registered stack(s)", host.ID, len(stacks))
		}

		if err := store.DeleteHost(ctx, host.ID, host.Rev); err != nil {
			return err
		}

		fmt.Printf("Removed host %s\n", host.ID)
		return nil
	},
}

var hostContainersCmd = &cobra.Command{
	Use:   "containers <host-id>",
	Short: "List containers on a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		connPool := newPool(store)
		defer connPool.Close()

		exec := docker.NewExecutor(connPool, cfg.Docker.CommandTimeout)
		containers, err := exec.ListContainers(context.Background(), args[0])
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(containers)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tIMAGE\tSTATE\tSERVICE")
		for _, c := range containers {
			id := c.ID
			if len(id) > 12 {
				id = id[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, c.Name, c.Image, c.State, c.Service)
		}
		return w.Flush()
	},
}

func init() {
	hostAddCmd.Flags().StringVar(&hostName, "name", "", "Host name (required)")
	hostAddCmd.Flags().StringVar(&hostTransport, "transport", "direct", "Transport: direct or ssh")
	hostAddCmd.Flags().StringVar(&hostAddress, "address", "", "Engine address or SSH host (required)")
	hostAddCmd.Flags().IntVar(&hostPort, "port", 0, "SSH port (default 22)")
	hostAddCmd.Flags().StringVar(&hostUser, "user", "", "SSH user")
	hostAddCmd.Flags().StringVar(&hostCredentialRef, "credential-ref", "", "Credential store reference for the SSH key")
	hostAddCmd.Flags().BoolVar(&hostSudo, "sudo", false, "Prefix remote docker commands with sudo -n")
	_ = hostAddCmd.MarkFlagRequired("name")    //nolint:errcheck
	_ = hostAddCmd.MarkFlagRequired("address") //nolint:errcheck

	hostCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")

	hostCmd.AddCommand(hostListCmd)
	hostCmd.AddCommand(hostAddCmd)
	hostCmd.AddCommand(hostRemoveCmd)
	hostCmd.AddCommand(hostContainersCmd)

	rootCmd.AddCommand(hostCmd)
}

// newPool wires the credential store and transport factory the same way the
// API server does.
func newPool(store *storage.Storage) *pool.Pool {
	creds := credentials.NewStore(cfg.Credentials.Path)
	factory := transport.NewFactory(creds, cfg.Docker.ConnectTimeout)
	return pool.New(store, factory, pool.Options{
		ProbeTimeout: cfg.Docker.ConnectTimeout,
		IdleTimeout:  cfg.Docker.IdleTimeout,
	})
}

// newComposeExecutor wires a Compose executor on top of a pool and store.
func newComposeExecutor(connPool *pool.Pool, store *storage.Storage) *compose.Executor {
	return compose.NewExecutor(connPool, store, store, cfg.Docker.CommandTimeout, cfg.Docker.StackDir)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

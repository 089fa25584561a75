package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"serreclub/internal/club"
	"serreclub/internal/shared"
	"serreclub/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type app struct {
	configPath string
	cfg        *shared.ServerConfig
	log        *logrus.Logger
	store      club.Store
	svc        *club.Service
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "serre-admin",
		Short:        "Maintenance commands for the association store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("SERRE_CONFIG"), "JSON config file")

	root.AddCommand(a.memberCmd(), a.historyCmd(), a.importCmd())
	return root
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := shared.LoadServerConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := shared.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	st, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.store = cfg, log, st
	a.svc = club.NewService(st, club.Credentials{Login: cfg.AdminLogin, Password: cfg.AdminPass}, log)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// readPassword reads a password from the terminal without echo.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ---------------------------------------------------------------------------
// members
// ---------------------------------------------------------------------------

func (a *app) memberCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "member", Short: "Manage member accounts"}

	var (
		role  string
		serre bool
		pass  string
	)
	add := &cobra.Command{
		Use:   "add <login>",
		Short: "Create or replace a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pass == "" {
				p, err := readPassword("Password: ")
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				pass = p
			}
			in := club.MemberInput{
				Login: club.Text(args[0]),
				Pass:  club.Text(pass),
				Role:  club.Text(role),
				Serre: club.Flag(serre),
			}
			if err := a.svc.UpsertMember(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Printf("member %s saved\n", args[0])
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", club.DefaultRole, "member role")
	add.Flags().BoolVar(&serre, "serre", false, "grant access to the serre")
	add.Flags().StringVar(&pass, "pass", "", "password (prompted when empty)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := a.svc.ListMembers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LOGIN\tROLE\tSERRE")
			for _, m := range members {
				fmt.Fprintf(tw, "%s\t%s\t%t\n", m.Login, m.Role, m.Serre)
			}
			return tw.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <login>",
		Short: "Delete a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.svc.DeleteMember(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("removed %d\n", n)
			return nil
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

// ---------------------------------------------------------------------------
// login history
// ---------------------------------------------------------------------------

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "history", Short: "Inspect the login history"}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the login history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.svc.ListHistory(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tUSER\tROLE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Date.Local().Format(time.DateTime), e.Username, e.Role)
			}
			return tw.Flush()
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Erase the login history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("history cleared")
			return nil
		},
	}

	cmd.AddCommand(list, clearCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// legacy import
// ---------------------------------------------------------------------------

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-json <data.json>",
		Short: "Copy a legacy JSON document into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			src := storage.NewFileStore(args[0], a.log)
			defer src.Close()

			stats, err := storage.Copy(cmd.Context(), a.store, src)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"members":    stats.Members,
				"logins":     stats.Logins,
				"population": stats.Population,
				"annonces":   stats.Annonces,
				"bacs":       stats.Bacs,
				"feed_items": stats.FeedItems,
			}).Info("import done")
			return nil
		},
	}
}

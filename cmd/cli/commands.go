package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/iho/txledger/internal/adapter/http/dto"
	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/infrastructure/auth"
	"github.com/iho/txledger/internal/infrastructure/config"
	"github.com/iho/txledger/internal/infrastructure/logger"
	"github.com/iho/txledger/internal/infrastructure/postgres"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "migrations", "Directory holding the migration files")

	open := func(cmd *cobra.Command) (*postgres.Migrator, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Output: cmd.ErrOrStderr()})
		return postgres.NewMigrator(cfg.DatabaseURL, path, log)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()
			return m.Up()
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()
			return m.Down(steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func reconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare every stored balance with its transaction history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var report dto.ReconciliationReportResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/reconciliation", &report); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d balances, %d reconciled\n", report.TotalBalances, report.ReconciledBalances)
			for _, d := range report.Discrepancies {
				fmt.Fprintf(out, "  %s %s: recorded %s, calculated %s (difference %s)\n",
					d.Holder, d.Currency, d.Recorded, d.Calculated, d.Difference)
			}
			if len(report.Discrepancies) > 0 {
				return fmt.Errorf("%d balances out of sync", len(report.Discrepancies))
			}
			return nil
		},
	}
}

func balanceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Inspect and repair balances",
	}

	path := func(args []string, suffix string) (string, error) {
		holder, err := domain.ParseHolderRef(args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("/api/v1/holders/%s/balances/%s%s",
			url.PathEscape(holder.String()), url.PathEscape(args[1]), suffix), nil
	}

	get := &cobra.Command{
		Use:   "get <type:id> <currency>",
		Short: "Print a balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := path(args, "")
			if err != nil {
				return err
			}
			var b dto.BalanceResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, p, &b); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}

	recalc := &cobra.Command{
		Use:   "recalculate <type:id> <currency>",
		Short: "Rebuild a balance from its transaction history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := path(args, "/recalculate")
			if err != nil {
				return err
			}
			var b dto.BalanceResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, p, &b); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}

	cmd.AddCommand(get, recalc)
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			token, err := auth.NewJWTManager(secret, cfg.JWTExpiration).Generate(subject, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Client the token is issued to")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "Role: viewer, operator or admin")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/tontiflex/internal/adapter/http/dto"
	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/infrastructure/auth"
	"github.com/iho/tontiflex/internal/infrastructure/postgres"
	"github.com/iho/tontiflex/internal/usecase"
)

func newScheduleCmd() *cobra.Command {
	var (
		principal   string
		annualRate  string
		penaltyRate string
		months      int
		dueDay      int
		disbursed   string
		asOf        string
	)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Loan schedule operations",
	}

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Compute a repayment schedule locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(principal)
			if err != nil {
				return fmt.Errorf("invalid principal %q", principal)
			}
			rate, err := decimal.NewFromString(annualRate)
			if err != nil {
				return fmt.Errorf("invalid annual rate %q", annualRate)
			}
			penalty, err := decimal.NewFromString(penaltyRate)
			if err != nil {
				return fmt.Errorf("invalid penalty rate %q", penaltyRate)
			}

			start := time.Now().UTC()
			if disbursed != "" {
				if start, err = time.Parse(time.DateOnly, disbursed); err != nil {
					return fmt.Errorf("invalid disbursement date %q", disbursed)
				}
			}
			today := start
			if asOf != "" {
				if today, err = time.Parse(time.DateOnly, asOf); err != nil {
					return fmt.Errorf("invalid as-of date %q", asOf)
				}
			}

			terms := domain.LoanTerms{AnnualRatePct: rate, DueDay: dueDay, DailyPenaltyPct: penalty}
			if err := terms.Validate(); err != nil {
				return err
			}

			schedule, err := domain.GenerateSchedule(amount, terms.MonthlyRate(), months, domain.NextDueDate(start, dueDay))
			if err != nil {
				return err
			}
			return printSchedule(cmd, schedule, today, terms.DailyPenaltyRate())
		},
	}

	previewCmd.Flags().StringVar(&principal, "principal", "", "Loan principal")
	previewCmd.Flags().StringVar(&annualRate, "annual-rate", "0", "Annual interest rate in percent")
	previewCmd.Flags().StringVar(&penaltyRate, "penalty-rate", "0", "Daily late penalty in percent")
	previewCmd.Flags().IntVar(&months, "months", 12, "Number of monthly installments")
	previewCmd.Flags().IntVar(&dueDay, "due-day", 1, "Day of month installments fall due")
	previewCmd.Flags().StringVar(&disbursed, "disbursed", "", "Disbursement date (YYYY-MM-DD, default today)")
	previewCmd.Flags().StringVar(&asOf, "as-of", "", "Date penalties are computed at (YYYY-MM-DD, default disbursement date)")
	_ = previewCmd.MarkFlagRequired("principal")

	scheduleCmd.AddCommand(previewCmd)
	return scheduleCmd
}

func printSchedule(cmd *cobra.Command, schedule []domain.Installment, today time.Time, dailyRate decimal.Decimal) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "#\tdue\tamount\tprincipal\tinterest\tremaining\tpenalty\t")

	total := decimal.Zero
	for _, inst := range schedule {
		penalty := domain.ComputePenalty(inst, today, dailyRate)
		total = total.Add(inst.Amount)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			inst.Number,
			inst.DueDate.Format(time.DateOnly),
			inst.Amount.StringFixed(domain.MoneyPlaces),
			inst.Principal.StringFixed(domain.MoneyPlaces),
			inst.Interest.StringFixed(domain.MoneyPlaces),
			inst.Remaining.StringFixed(domain.MoneyPlaces),
			penalty.StringFixed(domain.MoneyPlaces),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Total repaid: %s\n", total.StringFixed(domain.MoneyPlaces))
	return nil
}

func newBalanceCmd() *cobra.Command {
	var fresh bool

	balanceCmd := &cobra.Command{
		Use:   "balance <owner> <tontine|savings> <pool-id>",
		Short: "Show the confirmed balance of a pool",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := domain.Pool{Kind: domain.PoolKind(args[1]), ID: args[2]}
			if err := pool.Validate(); err != nil {
				return err
			}

			path := fmt.Sprintf("/api/v1/balances/%s/%s/%s",
				url.PathEscape(args[0]), url.PathEscape(string(pool.Kind)), url.PathEscape(pool.ID))
			if fresh {
				path += "?fresh=true"
			}

			var resp dto.BalanceResponse
			if err := call(http.MethodGet, path, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Owner: %s\nPool: %s/%s\nBalance: %s %s\n",
				resp.OwnerID, resp.PoolKind, resp.PoolID, resp.Balance, resp.Currency)
			return nil
		},
	}

	balanceCmd.Flags().BoolVar(&fresh, "fresh", false, "Bypass the balance cache")
	return balanceCmd
}

func newTransactionCmd() *cobra.Command {
	transactionCmd := &cobra.Command{
		Use:   "transaction",
		Short: "External transaction operations",
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an external transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.TransactionResponse
			if err := call(http.MethodGet, "/api/v1/transactions/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 1, ' ', 0)
			fmt.Fprintf(w, "ID:\t%s\n", resp.ID)
			fmt.Fprintf(w, "Reference:\t%s\n", resp.Reference)
			fmt.Fprintf(w, "Purpose:\t%s\n", resp.Purpose)
			fmt.Fprintf(w, "Workflow:\t%s\n", resp.WorkflowID)
			fmt.Fprintf(w, "Amount:\t%s %s\n", resp.Amount, resp.Currency)
			fmt.Fprintf(w, "Status:\t%s\n", resp.Status)
			if resp.ProviderRef != "" {
				fmt.Fprintf(w, "Provider ref:\t%s\n", resp.ProviderRef)
			}
			if resp.Reason != "" {
				fmt.Fprintf(w, "Reason:\t%s\n", resp.Reason)
			}
			return w.Flush()
		},
	}

	transactionCmd.AddCommand(showCmd)
	return transactionCmd
}

func newReconcileCmd() *cobra.Command {
	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconciliation operations",
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Resume every non-terminal transaction and replay pending callbacks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result usecase.SweepResult
			if err := call(http.MethodPost, "/api/v1/admin/reconcile", &result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resubmitted: %d\nPollers started: %d\nCallbacks replayed: %d\nErrors: %d\n",
				result.Resubmitted, result.PollersStarted, result.CallbacksReplayed, result.Errors)
			if result.Errors > 0 {
				return fmt.Errorf("sweep finished with %d errors", result.Errors)
			}
			return nil
		},
	}

	reconcileCmd.AddCommand(sweepCmd)
	return reconcileCmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret string
		id     string
		role   string
		org    string
		ttl    time.Duration
	)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the server secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			actor := domain.Actor{ID: id, Role: domain.Role(role), OrgID: org}
			if actor.ID == "" || !actor.Role.IsValid() {
				return domain.ErrInvalidRole
			}

			signed, err := auth.NewJWTManager(secret, ttl).Generate(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	tokenCmd.Flags().StringVar(&secret, "secret", "", "JWT secret (JWT_SECRET of the server)")
	tokenCmd.Flags().StringVar(&id, "id", "", "Actor id")
	tokenCmd.Flags().StringVar(&role, "role", string(domain.RoleClient), "Actor role")
	tokenCmd.Flags().StringVar(&org, "org", "", "Actor organisation")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return tokenCmd
}

func newMigrateCmd() *cobra.Command {
	var (
		databaseURL string
		path        string
	)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL")
	migrateCmd.PersistentFlags().StringVar(&path, "path", "internal/infrastructure/postgres/migrations", "Migrations directory")

	logger := func(cmd *cobra.Command) zerolog.Logger {
		return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).With().Timestamp().Logger()
	}
	requireURL := func(cmd *cobra.Command, args []string) error {
		if databaseURL == "" {
			return fmt.Errorf("--database-url or DATABASE_URL is required")
		}
		return nil
	}

	upCmd := &cobra.Command{
		Use:     "up",
		Short:   "Apply every pending migration",
		Args:    cobra.NoArgs,
		PreRunE: requireURL,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.RunMigrations(databaseURL, path, logger(cmd))
		},
	}
	downCmd := &cobra.Command{
		Use:     "down",
		Short:   "Roll back the last migration",
		Args:    cobra.NoArgs,
		PreRunE: requireURL,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.RunMigrationsDown(databaseURL, path, logger(cmd))
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd)
	return migrateCmd
}

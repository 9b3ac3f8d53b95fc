package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfennig-app/pfennig/internal/cli"
	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/engine"
	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/recurrence"
)

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Manage recurring transactions",
		Long:  `Create and manage recurring transaction schedules, and materialize the transactions that are due.`,
	}

	cmd.AddCommand(listRecurringCmd())
	cmd.AddCommand(createRecurringCmd())
	cmd.AddCommand(processRecurringCmd())
	cmd.AddCommand(skipRecurringCmd())
	cmd.AddCommand(pauseRecurringCmd())
	cmd.AddCommand(resumeRecurringCmd())

	return cmd
}

func listRecurringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active recurring transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			schedules, err := store.GetActiveRecurringTransactions(ctx)
			if err != nil {
				return fmt.Errorf("failed to get recurring transactions: %w", err)
			}

			if len(schedules) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No recurring transactions. Use 'pfennig recurring create' to add one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tNEXT\tFREQUENCY\tAMOUNT\tTYPE\tDESCRIPTION")
			for i := range schedules {
				schedule := &schedules[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					schedule.ID,
					schedule.NextDate.Format("2006-01-02"),
					schedule.FrequencyLabel(),
					schedule.Amount.StringFixed(2),
					schedule.Type,
					schedule.Description)
			}

			return nil
		},
	}
}

func createRecurringCmd() *cobra.Command {
	var (
		description string
		accountID   string
		txnType     string
		amount      string
		frequency   string
		startDate   string
		endDate     string
		interval    int
		dayOfWeek   int
		dayOfMonth  int
		monthOfYear int
		categoryID  int64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recurring transaction schedule",
		Long: `Create a schedule that materializes transactions on a calendar rhythm.

Examples:

  pfennig recurring create --description "Rent" --amount 1450 --type expense \
    --frequency monthly --day-of-month 1 --start 2026-09-01

  pfennig recurring create --description "Salary" --amount 4200 --type income \
    --frequency monthly --day-of-month 31 --start 2026-09-01

Day-of-month 31 means "last day of the month": shorter months use their
final day instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			parsedAmount, err := parseAmount(amount)
			if err != nil {
				return err
			}
			parsedType, err := parseTransactionType(txnType)
			if err != nil {
				return err
			}
			start, err := parseDate(startDate)
			if err != nil {
				return err
			}

			policy := recurrence.Policy{
				Frequency: recurrence.Frequency(frequency),
				Interval:  interval,
			}
			if cmd.Flags().Changed("day-of-week") {
				policy.DayOfWeek = &dayOfWeek
			}
			if cmd.Flags().Changed("day-of-month") {
				policy.DayOfMonth = &dayOfMonth
			}
			if cmd.Flags().Changed("month") {
				policy.MonthOfYear = &monthOfYear
			}
			if err := policy.Validate(); err != nil {
				return fmt.Errorf("%w: %v", common.ErrInvalidSchedule, err)
			}

			schedule := &model.RecurringTransaction{
				Description: description,
				AccountID:   accountID,
				Type:        parsedType,
				Amount:      parsedAmount,
				Policy:      policy,
				StartDate:   recurrence.StartOfDay(start),
				NextDate:    recurrence.StartOfDay(start),
				IsActive:    true,
			}
			if endDate != "" {
				end, err := parseDate(endDate)
				if err != nil {
					return err
				}
				endOfDay := recurrence.StartOfDay(end)
				schedule.EndDate = &endOfDay
			}
			if categoryID > 0 {
				schedule.CategoryID = &categoryID
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if categoryID > 0 {
				if _, err := store.GetCategoryByID(ctx, categoryID); err != nil {
					return fmt.Errorf("category %d: %w", categoryID, err)
				}
			}

			if err := store.CreateRecurringTransaction(ctx, schedule); err != nil {
				return fmt.Errorf("failed to create recurring transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created recurring transaction %q (ID: %d)", schedule.Description, schedule.ID)))
			fmt.Printf("  %s, next on %s\n", schedule.FrequencyLabel(), schedule.NextDate.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "What the transaction is for")
	cmd.Flags().StringVar(&accountID, "account", "", "Account the transaction belongs to")
	cmd.Flags().StringVar(&txnType, "type", "expense", "Transaction type (income, expense, transfer)")
	cmd.Flags().StringVar(&amount, "amount", "", "Transaction amount")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "Category ID to pre-assign")
	cmd.Flags().StringVar(&frequency, "frequency", "", "Frequency (daily, weekly, monthly, annual)")
	cmd.Flags().IntVar(&interval, "interval", 1, "Repeat every N frequency units")
	cmd.Flags().IntVar(&dayOfWeek, "day-of-week", 0, "Weekly anchor (0=Sunday .. 6=Saturday)")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 0, "Monthly/annual anchor day (31 = last day)")
	cmd.Flags().IntVar(&monthOfYear, "month", 0, "Annual anchor month (1=January .. 12=December)")
	cmd.Flags().StringVar(&startDate, "start", "", "First occurrence date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "Last date occurrences may fall on (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("frequency")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func processRecurringCmd() *cobra.Command {
	var (
		asOf   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Materialize transactions for all due schedules",
		Long: `Walk the active recurring transactions and create a transaction for every
occurrence that is due. Overdue schedules catch up one transaction per
missed occurrence. With --dry-run the occurrences are shown but nothing
is written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			now := time.Now()
			if asOf != "" {
				date, err := parseDate(asOf)
				if err != nil {
					return err
				}
				now = date
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			processor := engine.NewProcessor(store)
			stats, err := processor.ProcessDue(ctx, now, dryRun)
			if err != nil {
				return err
			}

			if len(stats.Occurrences) == 0 && stats.Failed == 0 {
				fmt.Println(cli.SubtleStyle.Render("Nothing due."))
				return nil
			}

			var b strings.Builder
			for _, occurrence := range stats.Occurrences {
				fmt.Fprintf(&b, "%s  %-9s %10s  %s\n",
					occurrence.Date.Format("2006-01-02"),
					occurrence.Transaction.Type,
					occurrence.Transaction.Amount.StringFixed(2),
					occurrence.Transaction.Description)
			}
			fmt.Fprintf(&b, "\n%d transaction(s) from %d schedule(s)", len(stats.Occurrences), stats.Schedules)
			if stats.Failed > 0 {
				fmt.Fprintf(&b, ", %d failed", stats.Failed)
			}

			title := "Processed recurring transactions"
			if dryRun {
				title = "Due recurring transactions (dry run)"
			}
			fmt.Println(cli.RenderBox(title, b.String()))

			if stats.Failed > 0 {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%d schedule(s) failed; see the log for details.", stats.Failed)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "date", "", "Process as of this date instead of today (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be created without writing anything")

	return cmd
}

func skipRecurringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <id>",
		Short: "Skip the next occurrence of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid recurring transaction ID: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			processor := engine.NewProcessor(store)
			schedule, err := processor.Skip(ctx, id, time.Now())
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Skipped %q; next occurrence is %s",
				schedule.Description, schedule.NextDate.Format("2006-01-02"))))
			return nil
		},
	}
}

func pauseRecurringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause a schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  setRecurringActive(false),
	}
}

func resumeRecurringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  setRecurringActive(true),
	}
}

func setRecurringActive(active bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid recurring transaction ID: %w", err)
		}

		store, err := initStorage(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		processor := engine.NewProcessor(store)
		schedule, err := processor.SetActive(ctx, id, active)
		if err != nil {
			return err
		}

		verb := "Paused"
		if active {
			verb = "Resumed"
		}
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s %q", verb, schedule.Description)))
		return nil
	}
}

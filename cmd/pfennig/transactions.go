package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pfennig-app/pfennig/internal/cli"
	"github.com/pfennig-app/pfennig/internal/engine"
	"github.com/pfennig-app/pfennig/internal/model"
	"github.com/pfennig-app/pfennig/internal/service"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txn"},
		Short:   "Record and classify transactions",
	}

	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(classifyTransactionsCmd())

	return cmd
}

func addTransactionCmd() *cobra.Command {
	var (
		description string
		amount      string
		txnType     string
		accountID   string
		date        string
		notes       string
		tags        []string
		categoryID  int64
		classify    bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Long:  `Record an ad-hoc transaction. With --classify the active rules run against it immediately.`,
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

			txnDate := time.Now()
			if date != "" {
				txnDate, err = parseDate(date)
				if err != nil {
					return err
				}
			}

			txn := &model.Transaction{
				ID:          uuid.NewString(),
				Date:        txnDate,
				Type:        parsedType,
				Amount:      parsedAmount,
				Description: description,
				AccountID:   accountID,
				Notes:       notes,
				Tags:        []string{},
			}
			for _, tag := range tags {
				txn.AddTag(tag)
			}
			if categoryID > 0 {
				txn.CategoryID = &categoryID
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

			if err := store.SaveTransaction(ctx, txn); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded %s %s %q", txn.Type, txn.Amount.StringFixed(2), txn.Description)))

			if classify {
				classifier := engine.NewClassifier(store)
				result, err := classifier.ClassifyOne(ctx, txn.ID, time.Now())
				if err != nil {
					return err
				}
				if result.AttributedRuleID != nil {
					fmt.Printf("  Classified by rule %d\n", *result.AttributedRuleID)
				} else {
					fmt.Println(cli.SubtleStyle.Render("  No rules matched."))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Transaction description")
	cmd.Flags().StringVar(&amount, "amount", "", "Transaction amount")
	cmd.Flags().StringVar(&txnType, "type", "expense", "Transaction type (income, expense, transfer)")
	cmd.Flags().StringVar(&accountID, "account", "", "Account the transaction belongs to")
	cmd.Flags().StringVar(&date, "date", "", "Transaction date (YYYY-MM-DD, default today)")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "Category ID")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().BoolVar(&classify, "classify", false, "Run the active rules against the new transaction")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		from  string
		to    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter := service.TransactionFilter{Limit: limit}
			if from != "" {
				start, err := parseDate(from)
				if err != nil {
					return err
				}
				filter.StartDate = &start
			}
			if to != "" {
				end, err := parseDate(to)
				if err != nil {
					return err
				}
				filter.EndDate = &end
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			transactions, err := store.GetTransactions(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to get transactions: %w", err)
			}

			if len(transactions) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No transactions found."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tDESCRIPTION\tCATEGORY\tTAGS\tORIGIN")
			for i := range transactions {
				txn := &transactions[i]

				category := "-"
				if txn.CategoryID != nil {
					category = fmt.Sprintf("%d", *txn.CategoryID)
				}
				origin := "manual"
				switch {
				case txn.RecurringTransactionID != nil:
					origin = fmt.Sprintf("recurring %d", *txn.RecurringTransactionID)
				case txn.AppliedRuleID != nil:
					origin = fmt.Sprintf("rule %d", *txn.AppliedRuleID)
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					txn.Date.Format("2006-01-02"), txn.Type, txn.Amount.StringFixed(2),
					txn.Description, category, strings.Join(txn.Tags, ","), origin)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Only transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Only transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of transactions to show")

	return cmd
}

func classifyTransactionsCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Run the active rules over unclassified transactions",
		Long: `Run the rule engine over every stored transaction no rule has touched yet.
Transactions materialized from recurring schedules are left alone. With
--id only that transaction is classified.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			classifier := engine.NewClassifier(store)
			now := time.Now()

			if id != "" {
				result, err := classifier.ClassifyOne(ctx, id, now)
				if err != nil {
					return err
				}
				switch {
				case result.Skipped():
					fmt.Println(cli.FormatWarning(fmt.Sprintf("Transaction skipped: %s", result.SkipReason)))
				case result.AttributedRuleID != nil:
					fmt.Println(cli.FormatSuccess(fmt.Sprintf("Classified by rule %d (%d rule(s) applied)",
						*result.AttributedRuleID, len(result.AppliedRuleIDs))))
				default:
					fmt.Println(cli.SubtleStyle.Render("No rules matched."))
				}
				return nil
			}

			stats, err := classifier.ClassifyAll(ctx, now)
			if err != nil {
				return err
			}

			summary := fmt.Sprintf("Examined:    %d\nClassified:  %d\nUnmatched:   %d\nSkipped:     %d",
				stats.Total, stats.Classified, stats.Unmatched, stats.Skipped)
			if stats.Failed > 0 {
				summary += fmt.Sprintf("\nFailed:      %d", stats.Failed)
			}
			fmt.Println(cli.RenderBox("Classification run", summary))

			if stats.Failed > 0 {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%d transaction(s) failed; see the log for details.", stats.Failed)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Classify only this transaction")

	return cmd
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pfennig-app/pfennig/internal/cli"
	"github.com/pfennig-app/pfennig/internal/common"
	"github.com/pfennig-app/pfennig/internal/engine"
	"github.com/pfennig-app/pfennig/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage transaction automation rules",
		Long:  `List, create, inspect, test, and delete the rules that automatically categorize and tag transactions.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(showRuleCmd())
	cmd.AddCommand(createRuleCmd())
	cmd.AddCommand(deleteRuleCmd())
	cmd.AddCommand(testRuleCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleList, err := store.GetActiveRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(ruleList) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No rules found. Use 'pfennig rules create' to add one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tPRIORITY\tNAME\tSCOPE\tSTOP\tAPPLIED")
			for i := range ruleList {
				rule := &ruleList[i]
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%d\n",
					rule.ID, rule.Priority, rule.Name, rule.ApplyTo,
					boolLabel(rule.StopProcessing, "yes", "no"), rule.TimesApplied)
			}

			return nil
		},
	}
}

func showRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a rule's conditions and actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Name:      %s\n", rule.Name)
			if rule.Description != "" {
				fmt.Fprintf(&b, "About:     %s\n", rule.Description)
			}
			fmt.Fprintf(&b, "Scope:     %s\n", rule.ApplyTo)
			fmt.Fprintf(&b, "Priority:  %d\n", rule.Priority)
			fmt.Fprintf(&b, "Active:    %s\n", boolLabel(rule.IsActive, "yes", "no"))
			fmt.Fprintf(&b, "Stop:      %s\n", boolLabel(rule.StopProcessing, "yes", "no"))
			fmt.Fprintf(&b, "Applied:   %d times\n", rule.TimesApplied)
			if rule.LastAppliedAt != nil {
				fmt.Fprintf(&b, "Last run:  %s\n", rule.LastAppliedAt.Format("2006-01-02 15:04"))
			}

			b.WriteString("\nWhen all of:\n")
			for _, condition := range rule.Conditions {
				fmt.Fprintf(&b, "  • %s\n", describeCondition(condition))
			}
			b.WriteString("Then:\n")
			for _, action := range rule.Actions {
				fmt.Fprintf(&b, "  • %s\n", describeAction(action))
			}

			fmt.Println(cli.RenderBox(fmt.Sprintf("Rule %d", rule.ID), strings.TrimRight(b.String(), "\n")))
			return nil
		},
	}
}

func createRuleCmd() *cobra.Command {
	var (
		description    string
		applyTo        string
		conditionSpecs []string
		addTags        []string
		setNotes       string
		priority       int
		setCategory    int64
		stop           bool
		inactive       bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new rule",
		Long: `Create a transaction rule from conditions and actions.

Conditions take the form field:operator:value and are combined with AND:

  --when 'description:contains:netflix'
  --when 'amount:gt:100'
  --when 'category_id:eq:3'

Description operators: contains, not_contains, equals, not_equals,
starts_with, ends_with, regex. Amount operators: eq, ne, gt, lt, ge, le.
Category operators: eq, ne.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			conditions, err := parseConditions(conditionSpecs)
			if err != nil {
				return err
			}

			var actions model.Actions
			if setCategory > 0 {
				actions = append(actions, &model.SetCategoryAction{CategoryID: setCategory})
			}
			for _, tag := range addTags {
				actions = append(actions, &model.AddTagAction{Tag: tag})
			}
			if setNotes != "" {
				actions = append(actions, &model.SetNotesAction{Notes: setNotes})
			}
			if len(actions) == 0 {
				return fmt.Errorf("at least one action is required (--set-category, --add-tag, or --set-notes)")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if setCategory > 0 {
				if _, err := store.GetCategoryByID(ctx, setCategory); err != nil {
					return fmt.Errorf("category %d: %w", setCategory, err)
				}
			}

			rule := &model.TransactionRule{
				Name:           args[0],
				Description:    description,
				ApplyTo:        model.RuleApplyTo(applyTo),
				Priority:       priority,
				IsActive:       !inactive,
				StopProcessing: stop,
				Conditions:     conditions,
				Actions:        actions,
			}

			if err := store.CreateRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %q (ID: %d)", rule.Name, rule.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "What the rule is for")
	cmd.Flags().StringVar(&applyTo, "apply-to", "all", "Transaction scope (all, income, expense, transfer)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Evaluation priority (higher runs first)")
	cmd.Flags().BoolVar(&stop, "stop", false, "Stop evaluating lower-priority rules after this one matches")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the rule disabled")
	cmd.Flags().StringArrayVar(&conditionSpecs, "when", nil, "Condition as field:operator:value (repeatable)")
	cmd.Flags().Int64Var(&setCategory, "set-category", 0, "Action: assign this category ID")
	cmd.Flags().StringArrayVar(&addTags, "add-tag", nil, "Action: add this tag (repeatable)")
	cmd.Flags().StringVar(&setNotes, "set-notes", "", "Action: overwrite notes with this text")

	return cmd
}

func deleteRuleCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Long:  `Delete a rule. Transactions it already classified keep their category and attribution.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if !force {
				fmt.Printf("Are you sure you want to delete rule %d? (y/N): ", id)
				var response string
				_, _ = fmt.Scanln(&response)
				if strings.ToLower(response) != "y" {
					fmt.Println("Deletion cancelled.")
					return nil
				}
			}

			if err := store.DeleteRule(ctx, id); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}

func testRuleCmd() *cobra.Command {
	var (
		txnDescription string
		amount         string
		txnType        string
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the active rules against a hypothetical transaction",
		Long:  `Run the full active rule set against a transaction built from flags, without persisting anything.`,
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

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn := model.Transaction{
				ID:          uuid.NewString(),
				Date:        time.Now(),
				Type:        parsedType,
				Amount:      parsedAmount,
				Description: txnDescription,
				Tags:        []string{},
			}

			classifier := engine.NewClassifier(store)
			mutated, result, err := classifier.Preview(ctx, txn, time.Now())
			if err != nil {
				return err
			}

			if len(result.AppliedRuleIDs) == 0 {
				fmt.Println(cli.FormatWarning("No rules matched."))
				return nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Matched rules: %s\n", formatRuleIDs(result.AppliedRuleIDs))
			if result.AttributedRuleID != nil {
				fmt.Fprintf(&b, "Attributed to: rule %d\n", *result.AttributedRuleID)
			}
			if result.Stopped {
				b.WriteString("Evaluation stopped early by a stop-processing rule.\n")
			}
			if mutated.CategoryID != nil {
				fmt.Fprintf(&b, "Category:      %d\n", *mutated.CategoryID)
			}
			if len(mutated.Tags) > 0 {
				fmt.Fprintf(&b, "Tags:          %s\n", strings.Join(mutated.Tags, ", "))
			}
			if mutated.Notes != "" {
				fmt.Fprintf(&b, "Notes:         %s\n", mutated.Notes)
			}

			fmt.Println(cli.RenderBox("Rule test", strings.TrimRight(b.String(), "\n")))
			return nil
		},
	}

	cmd.Flags().StringVar(&txnDescription, "description", "", "Transaction description to test")
	cmd.Flags().StringVar(&amount, "amount", "0", "Transaction amount")
	cmd.Flags().StringVar(&txnType, "type", "expense", "Transaction type (income, expense, transfer)")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

// parseConditions turns field:operator:value specs into typed conditions.
func parseConditions(specs []string) (model.Conditions, error) {
	conditions := make(model.Conditions, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: condition %q (expected field:operator:value)", common.ErrInvalidRule, spec)
		}

		field := model.ConditionField(parts[0])
		operator, value := parts[1], parts[2]
		if !model.ValidOperator(field, operator) {
			return nil, fmt.Errorf("%w: operator %q is not valid for field %q", common.ErrInvalidRule, operator, field)
		}

		switch field {
		case model.FieldDescription:
			conditions = append(conditions, &model.DescriptionCondition{
				Operator: model.StringOperator(operator), Value: value,
			})
		case model.FieldAmount:
			if _, err := parseAmount(value); err != nil {
				return nil, fmt.Errorf("condition %q: %w", spec, err)
			}
			conditions = append(conditions, &model.AmountCondition{
				Operator: model.CompareOperator(operator), Value: value,
			})
		case model.FieldCategory:
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				return nil, fmt.Errorf("condition %q: invalid category ID %q", spec, value)
			}
			conditions = append(conditions, &model.CategoryCondition{
				Operator: model.CompareOperator(operator), Value: value,
			})
		}
	}
	return conditions, nil
}

func describeCondition(condition model.RuleCondition) string {
	switch c := condition.(type) {
	case *model.DescriptionCondition:
		return fmt.Sprintf("description %s %q", strings.ReplaceAll(string(c.Operator), "_", " "), c.Value)
	case *model.AmountCondition:
		return fmt.Sprintf("amount %s %s", c.Operator, c.Value)
	case *model.CategoryCondition:
		return fmt.Sprintf("category %s %s", c.Operator, c.Value)
	default:
		return fmt.Sprintf("unrecognized condition on %s (never matches)", condition.Field())
	}
}

func describeAction(action model.RuleAction) string {
	switch a := action.(type) {
	case *model.SetCategoryAction:
		return fmt.Sprintf("set category to %d", a.CategoryID)
	case *model.AddTagAction:
		return fmt.Sprintf("add tag %q", a.Tag)
	case *model.SetNotesAction:
		return fmt.Sprintf("set notes to %q", a.Notes)
	default:
		return fmt.Sprintf("unrecognized action %s (no-op)", action.Type())
	}
}

func formatRuleIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/bookkeeping/ledger"
	"github.com/warp/bookkeeping/logger"
)

func newReportCommand(a *app) *cobra.Command {
	var business int64

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print ledger reports",
	}
	reportCmd.PersistentFlags().Int64Var(&business, "business", 1, "business id")

	biz := func() ledger.BusinessID { return ledger.BusinessID(business) }
	reportCmd.AddCommand(newPnLCommand(a, biz))
	reportCmd.AddCommand(newTrialBalanceCommand(a, biz))
	reportCmd.AddCommand(newBalanceCommand(a, biz))
	return reportCmd
}

// withService opens the store for the duration of fn.
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *ledger.Service) error) error {
	ctx := logger.WithContext(cmd.Context(), a.log)
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, ledger.NewService(store))
}

func newPnLCommand(a *app, biz func() ledger.BusinessID) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Profit and loss statement for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := ledger.ParseDate(start)
			if err != nil {
				return err
			}
			to, err := ledger.ParseDate(end)
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *ledger.Service) error {
				pl, err := svc.ProfitAndLoss(ctx, biz(), from, to)
				if err != nil {
					return err
				}
				return printProfitAndLoss(cmd.OutOrStdout(), pl)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func newTrialBalanceCommand(a *app, biz func() ledger.BusinessID) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Trial balance as of a date (default today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now().UTC()
			if asOf != "" {
				var err error
				if date, err = ledger.ParseDate(asOf); err != nil {
					return err
				}
			}
			return a.withService(cmd, func(ctx context.Context, svc *ledger.Service) error {
				tb, err := svc.TrialBalance(ctx, biz(), date)
				if err != nil {
					return err
				}
				return printTrialBalance(cmd.OutOrStdout(), tb)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "cutoff date, YYYY-MM-DD")
	return cmd
}

func newBalanceCommand(a *app, biz func() ledger.BusinessID) *cobra.Command {
	var account int64

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Movement and final balance of one account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *ledger.Service) error {
				id := ledger.AccountID(account)
				mv, err := svc.Movement(ctx, biz(), id)
				if err != nil {
					return err
				}
				fb, err := svc.FinalBalance(ctx, biz(), id)
				if err != nil {
					return err
				}
				return printBalance(cmd.OutOrStdout(), mv, fb)
			})
		},
	}
	cmd.Flags().Int64Var(&account, "account", 0, "account id")
	cmd.MarkFlagRequired("account")
	return cmd
}

// =============================================================================
// OUTPUT
// =============================================================================

func printProfitAndLoss(out io.Writer, pl ledger.ProfitAndLoss) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Profit and loss %s to %s\t\t\n", pl.Start.Format(ledger.DateLayout), pl.End.Format(ledger.DateLayout))

	section := func(s ledger.PLSection) {
		fmt.Fprintf(tw, "%s\t\t\n", s.Label)
		for _, acc := range s.Accounts {
			fmt.Fprintf(tw, "  %s %s\t%s\t\n", acc.Code, acc.Name, acc.Subtotal.StringFixed(2))
		}
		fmt.Fprintf(tw, "Total %s\t%s\t\n", s.Label, s.Total.StringFixed(2))
	}
	section(pl.Revenue)
	section(pl.CostOfRevenue)
	fmt.Fprintf(tw, "Gross profit\t%s\t\n", pl.GrossProfit.StringFixed(2))
	section(pl.Expense)
	fmt.Fprintf(tw, "Operating profit\t%s\t\n", pl.OperatingProfit.StringFixed(2))
	section(pl.OtherRevenue)
	section(pl.OtherExpense)
	fmt.Fprintf(tw, "Other income, net\t%s\t\n", pl.OtherNet.StringFixed(2))
	fmt.Fprintf(tw, "Net profit\t%s\t\n", pl.NetProfit.StringFixed(2))
	return tw.Flush()
}

func printTrialBalance(out io.Writer, tb ledger.TrialBalance) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Trial balance as of %s\n", tb.AsOf.Format(ledger.DateLayout))
	fmt.Fprintln(tw, "CODE\tACCOUNT\tDEBIT\tCREDIT")
	for _, r := range tb.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Code, r.Name, r.Debit.StringFixed(2), r.Credit.StringFixed(2))
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	if !tb.Balanced() {
		fmt.Fprintln(tw, "\tOUT OF BALANCE\t\t")
	}
	return tw.Flush()
}

func printBalance(out io.Writer, mv ledger.AccountMovement, fb ledger.FinalBalance) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s %s (%s normal)\n", mv.Account.Code, mv.Account.Name, fb.NormalBalance)
	fmt.Fprintln(tw, "DATE\tENTRY\tDESCRIPTION\tDEBIT\tCREDIT\tBALANCE")
	for _, l := range mv.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			l.Date.Format(ledger.DateLayout), l.EntryID, l.Description,
			l.Debit.StringFixed(2), l.Credit.StringFixed(2), l.Balance.StringFixed(2))
	}
	fmt.Fprintf(tw, "Closing\t\t\t\t\t%s\n", mv.Closing.StringFixed(2))
	fmt.Fprintf(tw, "Final balance\t\t\t\t\t%s\n", fb.Result.StringFixed(2))
	return tw.Flush()
}

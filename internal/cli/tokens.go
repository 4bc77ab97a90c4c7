package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/roomlab/internal/ledger"
)

// NewBuyCommand creates the buy command.
func NewBuyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <amount>",
		Short: "Buy a design-token package",
		Long: `Buy a design-token package for the signed-in account.

The amount must match a package in the catalog; see "roomlab packages".

Example:
  roomlab buy 15`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			amount, err := strconv.Atoi(args[0])
			if err != nil {
				return report(f, "E_USAGE", NewExitError(ExitCommandError, fmt.Sprintf("amount must be a whole number, got %q", args[0])))
			}

			svc, done, err := rootOpts.openService(cmd, f)
			if err != nil {
				return err
			}
			defer done()

			ctx := commandContext(cmd)
			p, record, err := svc.Purchase(ctx, amount)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(purchaseView{Amount: amount, Cost: record.Cost, Tokens: p.TokenBalance})
		},
	}
}

// NewSpendCommand creates the spend command.
func NewSpendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "spend",
		Short: "Use one design token",
		Long: `Use one design token from the signed-in account.

With no tokens left nothing is spent and the command reports spent=false.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			svc, done, err := rootOpts.openService(cmd, f)
			if err != nil {
				return err
			}
			defer done()

			ctx := commandContext(cmd)
			spent, err := svc.UseDesignToken(ctx)
			if err != nil {
				return f.Fail(err)
			}
			p, _, err := svc.CurrentAccount(ctx)
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(spendView{Spent: spent, Tokens: p.TokenBalance})
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history",
		Short:         "List purchases and spent tokens, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			svc, done, err := rootOpts.openService(cmd, f)
			if err != nil {
				return err
			}
			defer done()

			ctx := commandContext(cmd)
			purchases, err := svc.PurchaseHistory(ctx)
			if err != nil {
				return f.Fail(err)
			}
			consumptions, err := svc.ConsumptionHistory(ctx)
			if err != nil {
				return f.Fail(err)
			}

			view := historyView{Purchases: purchases, Consumptions: consumptions}
			if view.Purchases == nil {
				view.Purchases = []ledger.TokenPurchaseRecord{}
			}
			if view.Consumptions == nil {
				view.Consumptions = []ledger.TokenConsumptionRecord{}
			}
			return f.Success(view)
		},
	}
}

// NewPackagesCommand creates the packages command.
func NewPackagesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "packages",
		Short:         "List the design-token packages for sale",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			cat, err := rootOpts.loadCatalog()
			if err != nil {
				return report(f, CodeCatalogInvalid, err)
			}
			return f.Success(packagesView(cat.Packages()))
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reconciler/internal/model"
	"reconciler/internal/service"
)

func payCmd() *cobra.Command {
	var in struct {
		id, amount, method, bankRef, proofRef string
	}

	cmd := &cobra.Command{
		Use:   "pay [invoice-id]",
		Short: "Record a payment against an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := model.ParseMoney(in.amount)
			if err != nil {
				return err
			}
			method, err := model.ParsePaymentMethod(in.method)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.recon.RecordPayment(cmd.Context(), service.PaymentInput{
				InvoiceID:      args[0],
				TransactionID:  in.id,
				Amount:         amount,
				Method:         method,
				BankReference:  in.bankRef,
				ProofReference: in.proofRef,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&in.id, "transaction-id", "", "transaction id (generated when empty)")
	cmd.Flags().StringVarP(&in.amount, "amount", "m", "", "payment amount")
	cmd.Flags().StringVar(&in.method, "method", string(model.MethodTransfer), "TRANSFER, CARD, CASH or CHECK")
	cmd.Flags().StringVar(&in.bankRef, "bank-ref", "", "bank reference")
	cmd.Flags().StringVar(&in.proofRef, "proof", "", "proof of payment reference")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [transaction-id]...",
		Short: "Confirm transactions against settlement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				res, err := a.recon.ReconcileTransaction(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s reconciled, invoice %s is %s\n", id, res.Invoice.ID, res.Invoice.Status)
			}
			return nil
		},
	}
}

func settleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle [file.json]",
		Short: "Run create, pay and reconcile for one order from a JSON script",
		Long: `Run the whole sequence for one order.

The file holds {"invoice": {...}, "payments": [{...}]} using the same fields
as the HTTP API. Each step is committed before the next starts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var in service.SettleInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			inv, txs, err := a.recon.Settle(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Invoice      *model.Invoice      `json:"invoice"`
				Transactions []model.Transaction `json:"transactions"`
			}{inv, txs})
		},
	}
}

package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"reconciler/internal/model"
	"reconciler/internal/service"
)

func invoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Create and inspect invoices",
	}
	cmd.AddCommand(invoiceCreateCmd())
	cmd.AddCommand(invoiceShowCmd())
	return cmd
}

func invoiceCreateCmd() *cobra.Command {
	var in struct {
		order, client, total string
	}

	cmd := &cobra.Command{
		Use:   "create [id]",
		Short: "Create an invoice for a completed order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := model.ParseMoney(in.total)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			inv, err := a.recon.CreateInvoice(cmd.Context(), service.CreateInvoiceInput{
				ID:              args[0],
				OrderReference:  in.order,
				ClientReference: in.client,
				Total:           total,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), inv)
		},
	}

	cmd.Flags().StringVarP(&in.order, "order", "o", "", "order reference")
	cmd.Flags().StringVarP(&in.client, "client", "c", "", "client reference")
	cmd.Flags().StringVarP(&in.total, "total", "t", "", "invoice total, e.g. 1500.50")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("total")

	return cmd
}

func invoiceShowCmd() *cobra.Command {
	var withTransactions bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print an invoice and, optionally, its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			inv, err := a.recon.Invoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !withTransactions {
				return printJSON(cmd.OutOrStdout(), inv)
			}

			txs, err := a.recon.Transactions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Invoice      *model.Invoice      `json:"invoice"`
				Transactions []model.Transaction `json:"transactions"`
			}{inv, txs})
		},
	}

	cmd.Flags().BoolVarP(&withTransactions, "transactions", "x", false, "include transactions")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

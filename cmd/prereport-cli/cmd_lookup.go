package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var productsFlags struct {
	clientID int64
}

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd, func(e *env) error {
			clients, err := e.api.ListClients(e.ctx)
			if err != nil {
				return err
			}
			return e.render(clients, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCODE\tNAME")
				for _, c := range clients {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Code, c.Name)
				}
				tw.Flush()
			})
		})
	},
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List a client's products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd, func(e *env) error {
			products, err := e.api.ListProducts(e.ctx, productsFlags.clientID)
			if err != nil {
				return err
			}
			return e.render(products, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCATEGORY\tNAME")
				for _, p := range products {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Category, p.Name)
				}
				tw.Flush()
			})
		})
	},
}

func init() {
	productsCmd.Flags().Int64Var(&productsFlags.clientID, "client", 0, "Client ID (required)")
	_ = productsCmd.MarkFlagRequired("client")
}

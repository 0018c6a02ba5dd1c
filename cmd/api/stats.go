package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vmomparler1/just5stars-nextjs/internal/app"
	"github.com/vmomparler1/just5stars-nextjs/internal/clock"
	"github.com/vmomparler1/just5stars-nextjs/internal/config"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print order counts per status and confirmed revenue",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.Default()
			cfg, err := config.Load(logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(false); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			store, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.close()

			st, err := app.NewOrderService(store.orders, clock.NewSystem()).Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("order stats: %w", err)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Status", "Orders")
			rows := [][]string{
				{string(domain.OrderStatusPending), strconv.Itoa(st.Pending)},
				{string(domain.OrderStatusConfirmed), strconv.Itoa(st.Confirmed)},
				{string(domain.OrderStatusCancelled), strconv.Itoa(st.Cancelled)},
				{"total", strconv.Itoa(st.Total)},
			}
			for _, row := range rows {
				if err := table.Append(row); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmed revenue: %s\n", st.Revenue.StringFixed(2))
			return nil
		},
	}
}

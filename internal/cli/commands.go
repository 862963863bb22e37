package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront-backend/internal/repository"
	"storefront-backend/internal/services"
)

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			a.logger.Info("database migrated", zap.String("database", a.cfg.DatabaseURL))
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func seedCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import products and curated lists from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := services.LoadSeedFile(file)
			if err != nil {
				return err
			}

			db, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			products := repository.NewProductRepository(db)
			comments := repository.NewCommentRepository(db)
			seeder := services.NewSeeder(
				services.NewCatalogService(products, comments, a.logger),
				services.NewCuratedService(repository.NewConfigRepository(db), products, a.logger),
				a.logger,
			)

			result, err := seeder.Seed(cmd.Context(), seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d new and %d existing products\n", result.Created, result.Updated)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "YAML catalog file")
	return cmd
}

func exportOrdersCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export-orders",
		Short: "Write every order as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			orders := services.NewOrderService(repository.NewOrderRepository(db), nil, services.NopPublisher{}, nil, a.logger)
			if out == "" || out == "-" {
				return orders.ExportCSV(cmd.Context(), cmd.OutOrStdout())
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := orders.ExportCSV(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			a.logger.Info("orders exported", zap.String("file", out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func signCallbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-callback <gatewayOrderId> <paymentId>",
		Short: "Print the gateway signature for a payment callback",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.GatewayKeySecret == "" {
				return fmt.Errorf("GATEWAY_KEY_SECRET is not set")
			}
			payments := services.NewPaymentService(nil, a.cfg, a.logger)
			fmt.Fprintln(cmd.OutOrStdout(), payments.SignCallback(args[0], args[1]))
			return nil
		},
	}
}

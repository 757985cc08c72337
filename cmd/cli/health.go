package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var errStoreDown = errors.New("vector store is not healthy")

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the vector store and report its document count",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		application, cleanup, err := initializeApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		store := application.Health.Check(ctx)
		if outputJSON {
			if err := printJSON(store); err != nil {
				return err
			}
		} else {
			printStoreHealth(store)
		}
		if !store.Healthy() {
			return errStoreDown
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(healthCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webtrail-dev/webtrail/pkg/dataset"
)

var datasetOutput string

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Materialize stored telemetry into datasets",
}

var datasetBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a JSONL dataset from every stored step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		builder := dataset.NewBuilder(store, logger)

		if datasetOutput == "" || datasetOutput == "-" {
			_, err := builder.Build(cmd.Context(), os.Stdout)
			return err
		}

		written, err := builder.BuildFile(cmd.Context(), datasetOutput)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d records to %s\n", written, datasetOutput)
		return nil
	},
}

func init() {
	datasetBuildCmd.Flags().StringVarP(&datasetOutput, "output", "o", "", "output file (default stdout)")
	datasetCmd.AddCommand(datasetBuildCmd)
}

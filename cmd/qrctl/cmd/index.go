package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewIndexCmd indexes the database and any given paths and prints the
// series table
func NewIndexCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path...]",
		Short: "index DICOM files and list their series",
		Long:  "Indexes database.dir plus any files or directories given and prints one row per series",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.index(ctx, args...)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATIENT\tSTUDY\tSERIES\tNUMBER\tMODALITY\tINSTANCES\tDESCRIPTION")
			for _, s := range idx.AllSeries() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
					s.PatientID, s.StudyInstanceUID, s.SeriesInstanceUID, s.SeriesNumber, s.Modality, s.Instances, s.SeriesDescription)
			}
			return tw.Flush()
		},
	}
	return cmd
}

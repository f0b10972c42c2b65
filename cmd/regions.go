package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/geo"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Inspect the region registry",
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured regions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		static, err := config.LoadStatic(cfg.Regions.File)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTIER\tCENTROID\tAREA KM2\tPATTERN")
		for _, r := range static.Regions {
			tier := fmt.Sprintf("%d", r.Tier)
			if r.Tier == 1 && static.IsUltraPremium(r.ID) {
				tier = "1+"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f,%.4f\t%.0f\t%d features\n",
				r.ID, r.Name, tier, r.Centroid.Lat, r.Centroid.Lng, r.AreaKm2, len(r.Pattern))
		}
		return tw.Flush()
	},
}

var regionsBoundariesCmd = &cobra.Command{
	Use:   "boundaries <shapefile>",
	Short: "Summarize administrative boundaries from a shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nameField, _ := cmd.Flags().GetString("name-field")

		boundaries, err := geo.LoadShapefile(args[0], nameField)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCENTROID\tBBOX")
		for _, b := range boundaries {
			fmt.Fprintf(tw, "%s\t%.4f,%.4f\t%s\n",
				b.Name, b.Centroid.Lat, b.Centroid.Lng, geo.OverpassBBox(b.BBox))
		}
		return tw.Flush()
	},
}

func init() {
	regionsBoundariesCmd.Flags().String("name-field", "NAME_2", "attribute field holding the region name")
	regionsCmd.AddCommand(regionsListCmd, regionsBoundariesCmd)
	rootCmd.AddCommand(regionsCmd)
}

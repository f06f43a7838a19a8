/*
Copyright © 2020 hit.zhangjie@gmail.com

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/reader"
)

// unitsCmd represents the units command
var unitsCmd = &cobra.Command{
	Use:   "units <binary>",
	Short: "list the unit headers of .debug_info",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secs, err := loadSections(args[0])
		if err != nil {
			return err
		}
		d := reader.New(secs.Info, secs.Abbrev, secs.Str, secs.LineStr)
		return listUnits(cmd.OutOrStdout(), d)
	},
}

func init() {
	rootCmd.AddCommand(unitsCmd)
}

func listUnits(w io.Writer, d *reader.Data) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "OFFSET\tLENGTH\tFORMAT\tVERSION\tTYPE\tABBREV\tADDR_SIZE\tENTRIES\n")

	units := d.Units()
	for {
		u, err := units.Next()
		if err != nil {
			tw.Flush()
			return err
		}
		if u == nil {
			return tw.Flush()
		}

		format := "dwarf32"
		if u.Dwarf64 {
			format = "dwarf64"
		}
		start, end := u.EntriesRange()
		fmt.Fprintf(tw, "%#x\t%#x\t%s\t%d\t%d\t%#x\t%d\t[%#x, %#x)\n",
			u.Offset, u.Length, format, u.Version, u.UnitType, u.AbbrevOffset, u.AddressSize, start, end)
	}
}

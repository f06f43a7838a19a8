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

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/reader"
)

// abbrevCmd represents the abbrev command
var abbrevCmd = &cobra.Command{
	Use:   "abbrev <binary>",
	Short: "dump the abbreviation tables used by the units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secs, err := loadSections(args[0])
		if err != nil {
			return err
		}
		d := reader.New(secs.Info, secs.Abbrev, secs.Str, secs.LineStr)
		return dumpAbbrevs(cmd.OutOrStdout(), d)
	},
}

func init() {
	rootCmd.AddCommand(abbrevCmd)
}

// dumpAbbrevs prints every table referenced by a unit, once.
func dumpAbbrevs(w io.Writer, d *reader.Data) error {
	seen := make(map[uint64]bool)

	units := d.Units()
	for {
		u, err := units.Next()
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}
		if seen[u.AbbrevOffset] {
			continue
		}
		seen[u.AbbrevOffset] = true

		t, err := u.AbbrevTable()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "abbreviation table at %#x: %d entries\n", t.Offset, t.Len())
		for _, code := range t.Codes() {
			a, _ := t.Get(code)
			children := "no"
			if a.Children {
				children = "yes"
			}
			fmt.Fprintf(w, "  [%d] %s children: %s\n", a.Code, a.Tag, children)
			for _, f := range a.Fields {
				if f.Form == godwarf.FormImplicitConst {
					fmt.Fprintf(w, "      %-24s %s %d\n", f.Attr, f.Form, f.ImplicitConst)
					continue
				}
				fmt.Fprintf(w, "      %-24s %s\n", f.Attr, f.Form)
			}
		}
	}
}

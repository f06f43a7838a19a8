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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/reader"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <binary>",
	Short: "dump the DIE tree of every unit",
	Long: `Dump the debugging information entries of every unit of .debug_info,
depth first, with their decoded attributes. --max-depth prunes the tree:
entries deeper than the limit are skipped without being decoded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secs, err := loadSections(args[0])
		if err != nil {
			return err
		}
		d := reader.New(secs.Info, secs.Abbrev, secs.Str, secs.LineStr)
		return dumpInfo(cmd.OutOrStdout(), d, viper.GetInt("info.max_depth"))
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().Int("max-depth", 0, "maximum DIE depth to print, 0 for no limit")
	viper.BindPFlag("info.max_depth", infoCmd.Flags().Lookup("max-depth"))
}

func dumpInfo(w io.Writer, d *reader.Data, maxDepth int) error {
	units := d.Units()
	for {
		u, err := units.Next()
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}

		fmt.Fprintf(w, "unit at %#x: length %#x, version %d, abbrev_offset %#x, address_size %d\n",
			u.Offset, u.Length, u.Version, u.AbbrevOffset, u.AddressSize)

		abbrevs, err := u.AbbrevTable()
		if err != nil {
			return err
		}
		if err := dumpEntries(w, d, u.Entries(abbrevs), maxDepth); err != nil {
			return err
		}
	}
}

func dumpEntries(w io.Writer, d *reader.Data, cur *reader.EntriesCursor, maxDepth int) error {
	e, err := cur.NextSibling()
	for e != nil && err == nil {
		depth := cur.Depth()
		if err := dumpEntry(w, d, depth, e); err != nil {
			return err
		}

		// children of an entry at the limit are skipped
		if maxDepth > 0 && depth+1 >= maxDepth {
			if e, err = cur.NextSibling(); err != nil || e != nil {
				continue
			}
		}
		_, e, err = cur.NextDFS()
	}
	return err
}

func dumpEntry(w io.Writer, d *reader.Data, depth int, e *reader.Entry) error {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s<%d><%#x>: abbrev %d (%s)\n", indent, depth, e.SectionOffset(), e.Abbrev.Code, e.Tag())

	it := e.Attrs()
	for {
		a, err := it.Next()
		if err != nil {
			return err
		}
		if a == nil {
			return nil
		}

		val := reader.Format(a.Value)
		switch a.Value.(type) {
		case reader.StrRef, reader.LineStrRef:
			if s, err := d.String(a.Value); err == nil {
				val = fmt.Sprintf("%s %q", val, s)
			}
		}
		fmt.Fprintf(w, "%s    %-24s %-18s %s\n", indent, a.Name, a.Form, val)
	}
}

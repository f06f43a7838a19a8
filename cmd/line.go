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
	"github.com/spf13/viper"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/line"
)

// lineCmd represents the line command
var lineCmd = &cobra.Command{
	Use:   "line <binary>",
	Short: "dump the line number programs of .debug_line",
	Long: `Dump the header of every line number program of .debug_line followed by
the rows of its line number matrix, or with --opcodes by the decoded
opcode stream.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opcodes, _ := cmd.Flags().GetBool("opcodes")

		secs, err := loadSections(args[0])
		if err != nil {
			return err
		}
		if secs.Line == nil {
			return fmt.Errorf("%s has no .debug_line", args[0])
		}

		var opts []line.Option
		if viper.GetBool("line.strict") {
			opts = append(opts, line.WithStrictEndSequence())
		}

		w := cmd.OutOrStdout()
		programs := line.Programs(secs.Line, 0)
		for {
			h, err := programs.Next()
			if err != nil {
				return err
			}
			if h == nil {
				return nil
			}

			dumpLineHeader(w, h)
			if opcodes {
				err = dumpOpcodes(w, h)
			} else {
				err = dumpRows(w, line.NewStateMachine(h, opts...))
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(w)
		}
	},
}

func init() {
	rootCmd.AddCommand(lineCmd)

	lineCmd.Flags().Bool("opcodes", false, "print the opcode stream instead of the rows")
}

func dumpLineHeader(w io.Writer, h *line.Header) {
	fmt.Fprintf(w, "line program at %#x: length %#x, version %d, header_length %#x\n",
		h.Offset, h.UnitLength, h.Version, h.HeaderLength)
	fmt.Fprintf(w, "  minimum_instruction_length %d, maximum_operations_per_instruction %d, default_is_stmt %v\n",
		h.MinInstLength, h.MaxOpsPerInst, h.DefaultIsStmt)
	fmt.Fprintf(w, "  line_base %d, line_range %d, opcode_base %d, standard_opcode_lengths %v\n",
		h.LineBase, h.LineRange, h.OpcodeBase, h.StdOpcodeLengths)
	for i, dir := range h.IncludeDirs {
		fmt.Fprintf(w, "  dir[%d] %s\n", i+1, dir)
	}
	for i, f := range h.FileNames {
		fmt.Fprintf(w, "  file[%d] %s dir %d mtime %d length %d\n", i+1, f.Name, f.DirIndex, f.Mtime, f.Length)
	}
}

func dumpOpcodes(w io.Writer, h *line.Header) error {
	it := h.Opcodes()
	for {
		off := it.Offset()
		op, err := it.Next()
		if err != nil {
			return err
		}
		if op == nil {
			return nil
		}
		fmt.Fprintf(w, "  [%#08x] %s\n", off, op)
	}
}

func dumpRows(w io.Writer, m *line.StateMachine) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  ADDRESS\tFILE\tLINE\tCOLUMN\tFLAGS\n")
	for {
		row, err := m.Next()
		if err != nil {
			tw.Flush()
			return err
		}
		if row == nil {
			return tw.Flush()
		}

		flags := ""
		for _, f := range []struct {
			set  bool
			name string
		}{
			{row.IsStmt, "is_stmt"},
			{row.BasicBlock, "basic_block"},
			{row.PrologueEnd, "prologue_end"},
			{row.EpilogueBegin, "epilogue_begin"},
			{row.EndSequence, "end_sequence"},
		} {
			if f.set {
				flags += " " + f.name
			}
		}
		fmt.Fprintf(tw, "  %#016x\t%d\t%d\t%d\t%s\n", row.Address, row.File, row.Line, row.Column, flags)
	}
}

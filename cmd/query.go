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
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hitzhangjie/godwarf/cmd/query"
	"github.com/hitzhangjie/godwarf/pkg/symbol"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <binary>",
	Short: "interactively map addresses and source lines of a binary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secs, err := loadSections(args[0])
		if err != nil {
			return err
		}
		bi, err := symbol.Load(secs, symbolOptions()...)
		if err != nil {
			return err
		}

		hits, misses := bi.AbbrevCache().Stats()
		log.Debug().
			Int("units", len(bi.CompileUnits)).
			Int("functions", len(bi.Functions)).
			Uint64("abbrev_hits", hits).
			Uint64("abbrev_misses", misses).
			Msg("binary loaded")

		query.CurrentSession = query.NewQuerySession(bi)
		query.CurrentSession.Start()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

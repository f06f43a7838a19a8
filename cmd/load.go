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
	"encoding/binary"
	"fmt"

	"github.com/spf13/viper"

	"github.com/hitzhangjie/godwarf/pkg/symbol"
)

// loadSections loads the debug sections of path, an ELF file or, with
// --raw, a directory of raw section dumps.
func loadSections(path string) (*symbol.Sections, error) {
	if !viper.GetBool("input.raw") {
		return symbol.LoadELF(path)
	}

	var order binary.ByteOrder
	switch endian := viper.GetString("input.endian"); endian {
	case "", "auto":
	case "little":
		order = binary.LittleEndian
	case "big":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid input.endian %q, should be auto, little or big", endian)
	}
	return symbol.LoadDir(path, order)
}

func symbolOptions() []symbol.Option {
	var opts []symbol.Option
	if viper.GetBool("line.strict") {
		opts = append(opts, symbol.WithStrictLines())
	}
	return opts
}

// Copyright 2026 The vnfsteer Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package command contains the cobra subcommands shared by the daemons.
package command

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/vnfsteer/vnfsteer/private/config"
)

// Pather returns the path to a command.
type Pather interface {
	CommandPath() string
}

// NewSample returns a command that prints a sample of the configuration
// described by sampler. name is the suggested file name without extension.
func NewSample(pather Pather, name string, sampler config.Sampler) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Display sample configuration file",
		Example: fmt.Sprintf("  %[1]s sample > %[2]s.toml\n  %[1]s --config %[2]s.toml",
			pather.CommandPath(), name),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			sampler.Sample(cmd.OutOrStdout(), nil, nil)
		},
	}
}

// NewSampleFile returns a command "sample-<name>" that prints a sample of an
// extra file read by the daemon, such as name.toml in the config directory.
func NewSampleFile(pather Pather, name string, sampler config.Sampler) *cobra.Command {
	return &cobra.Command{
		Use:     "sample-" + name,
		Short:   fmt.Sprintf("Display sample %s.toml file", name),
		Example: fmt.Sprintf("  %[1]s sample-%[2]s > %[2]s.toml", pather.CommandPath(), name),
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			sampler.Sample(cmd.OutOrStdout(), nil, nil)
		},
	}
}

// NewVersion returns a command that prints the build information.
func NewVersion(pather Pather) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version := "(devel)"
			if info, ok := debug.ReadBuildInfo(); ok {
				version = info.Main.Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s/%s\n",
				os.Args[0], version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

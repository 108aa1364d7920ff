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

//go:build !windows

package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libconfig "github.com/vnfsteer/vnfsteer/private/config"
	"github.com/vnfsteer/vnfsteer/steer/config"
	"github.com/vnfsteer/vnfsteer/steer/control"
)

func TestSampleCommand(t *testing.T) {
	var cfg config.Config
	cmd := newCommandTemplate("steerd", "Steering daemon", &cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"sample"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "[steer]")
	assert.Contains(t, out.String(), `id = "steer-1"`)
}

func TestSampleFileCommand(t *testing.T) {
	var cfg config.Config
	a := Application{
		TOMLConfig:  &cfg,
		SampleFiles: map[string]libconfig.Sampler{"pipeline": control.PipelineSample{}},
	}
	require.NoError(t, a.run([]string{"version"}))
	sub, _, err := a.cmd.Find([]string{"sample-pipeline"})
	require.NoError(t, err)
	require.Equal(t, "sample-pipeline", sub.Name())

	var out bytes.Buffer
	sub.SetOut(&out)
	sub.Run(sub, nil)
	assert.Contains(t, out.String(), "[[interfaces]]")
}

func TestMissingConfigFlag(t *testing.T) {
	var cfg config.Config
	a := Application{TOMLConfig: &cfg}
	assert.Error(t, a.run([]string{}))
}

func TestRunMain(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "steerd.toml")
	raw := "[general]\nid = \"steer-test\"\nconfig_dir = \"" + dir + "\"\n" +
		"[log.console]\nlevel = \"error\"\n"
	require.NoError(t, os.WriteFile(file, []byte(raw), 0o644))

	var cfg config.Config
	var called bool
	a := Application{
		TOMLConfig: &cfg,
		Main: func(ctx context.Context) error {
			called = true
			return nil
		},
	}
	require.NoError(t, a.run([]string{"--config", file}))
	assert.True(t, called)
	assert.Equal(t, "steer-test", cfg.General.ID)
	assert.Equal(t, "error", cfg.Logging.Console.Level)
	assert.Equal(t, config.DefaultBatchSize, cfg.Steer.BatchSize)
}

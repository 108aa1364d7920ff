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

package env_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnfsteer/vnfsteer/private/config"
	"github.com/vnfsteer/vnfsteer/private/env"
)

func TestGeneralSample(t *testing.T) {
	var sample bytes.Buffer
	var cfg env.General
	cfg.Sample(&sample, nil, map[string]string{config.ID: "steer-1"})
	require.NoError(t, config.Decode(sample.Bytes(), &cfg))
	assert.Equal(t, "steer-1", cfg.ID)
	assert.Equal(t, "/etc/vnfsteer", cfg.ConfigDir)
	assert.Equal(t, filepath.Join("/etc/vnfsteer", env.PipelineFile), cfg.Pipeline())
}

func TestGeneralValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	testCases := map[string]struct {
		cfg       env.General
		assertErr assert.ErrorAssertionFunc
	}{
		"valid": {
			cfg:       env.General{ID: "steer-1", ConfigDir: dir},
			assertErr: assert.NoError,
		},
		"no dir": {
			cfg:       env.General{ID: "steer-1"},
			assertErr: assert.NoError,
		},
		"no id": {
			cfg:       env.General{ConfigDir: dir},
			assertErr: assert.Error,
		},
		"not a dir": {
			cfg:       env.General{ID: "steer-1", ConfigDir: file},
			assertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			tc.assertErr(t, tc.cfg.Validate())
		})
	}
}

func TestMetricsSample(t *testing.T) {
	var sample bytes.Buffer
	var cfg env.Metrics
	cfg.Sample(&sample, nil, nil)
	require.NoError(t, config.Decode(sample.Bytes(), &cfg))
	assert.Equal(t, "127.0.0.1:30455", cfg.Prometheus)
}

func TestServePrometheusDisabled(t *testing.T) {
	cfg := env.Metrics{}
	assert.NoError(t, cfg.ServePrometheus(context.Background()))
}

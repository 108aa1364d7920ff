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

package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vnfsteer/vnfsteer/pkg/log"
	"github.com/vnfsteer/vnfsteer/pkg/log/testlog"
)

func TestSetup(t *testing.T) {
	defer zap.ReplaceGlobals(zap.L())

	testCases := map[string]struct {
		cfg       log.Config
		assertErr assert.ErrorAssertionFunc
		debug     bool
	}{
		"defaults": {
			assertErr: assert.NoError,
		},
		"debug json": {
			cfg:       log.Config{Console: log.ConsoleConfig{Level: "debug", Format: "json"}},
			assertErr: assert.NoError,
			debug:     true,
		},
		"bad level": {
			cfg:       log.Config{Console: log.ConsoleConfig{Level: "chatty"}},
			assertErr: assert.Error,
		},
		"bad format": {
			cfg:       log.Config{Console: log.ConsoleConfig{Format: "xml"}},
			assertErr: assert.Error,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := log.Setup(tc.cfg)
			tc.assertErr(t, err)
			if err != nil {
				return
			}
			assert.Equal(t, tc.debug, log.Enabled(log.DebugLevel))
			assert.True(t, log.Enabled(log.InfoLevel))
		})
	}
}

func TestFromCtx(t *testing.T) {
	t.Run("no logger", func(t *testing.T) {
		assert.NotNil(t, log.FromCtx(context.Background()))
		//nolint:staticcheck // nil context is part of the contract.
		assert.NotNil(t, log.FromCtx(nil))
	})
	t.Run("attached logger", func(t *testing.T) {
		l := testlog.NewLogger(t)
		ctx := log.CtxWith(context.Background(), l)
		assert.Equal(t, l, log.FromCtx(ctx))
	})
	t.Run("labels", func(t *testing.T) {
		ctx, l := log.WithLabels(context.Background(), "worker", 1)
		require.NotNil(t, l)
		assert.Equal(t, l, log.FromCtx(ctx))
	})
}

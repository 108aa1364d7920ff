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

package serrors_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/vnfsteer/vnfsteer/pkg/private/serrors"
)

var errSentinel = errors.New("sentinel")

func TestIs(t *testing.T) {
	testCases := map[string]struct {
		err    error
		target error
		is     bool
	}{
		"wrap cause": {
			err:    serrors.Wrap("reading", io.EOF, "file", "pipeline.toml"),
			target: io.EOF,
			is:     true,
		},
		"join base": {
			err:    serrors.Join(errSentinel, nil, "ifid", 7),
			target: errSentinel,
			is:     true,
		},
		"join cause": {
			err:    serrors.JoinNoStack(errSentinel, io.EOF),
			target: io.EOF,
			is:     true,
		},
		"unrelated": {
			err:    serrors.New("other"),
			target: errSentinel,
		},
		"list": {
			err:    serrors.List{io.EOF, errSentinel}.ToError(),
			target: errSentinel,
			is:     true,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.is, errors.Is(tc.err, tc.target))
		})
	}
}

func TestErrorString(t *testing.T) {
	err := serrors.Wrap("loading", io.EOF, "b", 2, "a", "x")
	assert.Equal(t, "loading {a=x; b=2}: EOF", err.Error())

	err = serrors.Join(errSentinel, nil, "ifid", 7)
	assert.Equal(t, "sentinel {ifid=7}", err.Error())
}

func TestJoinNil(t *testing.T) {
	assert.NoError(t, serrors.Join(nil, nil))
	assert.NoError(t, serrors.List{}.ToError())
}

func TestStackTrace(t *testing.T) {
	err := serrors.New("with stack")
	var tracer interface{ StackTrace() serrors.StackTrace }
	require.True(t, errors.As(err, &tracer))
	assert.NotEmpty(t, tracer.StackTrace())

	err = serrors.WrapNoStack("no stack", io.EOF)
	require.True(t, errors.As(err, &tracer))
	assert.Empty(t, tracer.StackTrace())
}

func TestMarshalLogObject(t *testing.T) {
	err := serrors.Wrap("loading", io.EOF, "ifid", 7)
	m, ok := err.(zapcore.ObjectMarshaler)
	require.True(t, ok)
	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, m.MarshalLogObject(enc))
	assert.Equal(t, "loading", enc.Fields["msg"])
	assert.Equal(t, "EOF", enc.Fields["cause"])
	assert.Equal(t, int64(7), enc.Fields["ifid"])
}

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

// Package serrors provides errors that carry key/value context and, for errors
// created outside of the packet path, a stack trace. Errors returned by this
// package support errors.Is and errors.As through their causes.
//
// Sentinel errors used on the packet path should be created with errors.New;
// New and Wrap capture a stack and are comparatively expensive.
package serrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxPair struct {
	Key   string
	Value any
}

type errorInfo struct {
	ctx   []ctxPair
	cause error
	stack *stack
}

func (e errorInfo) format(b *strings.Builder) {
	if len(e.ctx) != 0 {
		b.WriteString(" {")
		for i, p := range e.ctx {
			if i != 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(b, "%s=%v", p.Key, p.Value)
		}
		b.WriteString("}")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
}

func (e errorInfo) marshalLogObject(enc zapcore.ObjectEncoder) error {
	if e.cause != nil {
		if m, ok := e.cause.(zapcore.ObjectMarshaler); ok {
			if err := enc.AddObject("cause", m); err != nil {
				return err
			}
		} else {
			enc.AddString("cause", e.cause.Error())
		}
	}
	if e.stack != nil {
		if err := enc.AddArray("stacktrace", e.stack); err != nil {
			return err
		}
	}
	for _, p := range e.ctx {
		zap.Any(p.Key, p.Value).AddTo(enc)
	}
	return nil
}

// StackTrace returns the attached stack trace if there is any.
func (e errorInfo) StackTrace() StackTrace {
	if e.stack == nil {
		return nil
	}
	return e.stack.StackTrace()
}

func mkErrorInfo(cause error, addStack bool, errCtx []any) errorInfo {
	ctx := make([]ctxPair, 0, len(errCtx)/2)
	for i := 0; i+1 < len(errCtx); i += 2 {
		ctx = append(ctx, ctxPair{Key: fmt.Sprint(errCtx[i]), Value: errCtx[i+1]})
	}
	sort.SliceStable(ctx, func(a, b int) bool { return ctx[a].Key < ctx[b].Key })
	info := errorInfo{cause: cause, ctx: ctx}
	// A cause created by this package already carries the stack of its origin.
	var tracer interface{ StackTrace() StackTrace }
	if addStack && (cause == nil || !errors.As(cause, &tracer)) {
		info.stack = callers()
	}
	return info
}

type basicError struct {
	errorInfo
	msg string
}

func (e *basicError) Error() string {
	var b strings.Builder
	b.WriteString(e.msg)
	e.errorInfo.format(&b)
	return b.String()
}

func (e *basicError) Unwrap() error {
	return e.cause
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e *basicError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.msg)
	return e.errorInfo.marshalLogObject(enc)
}

// New creates an error with the given message and context, plus a stack dump.
func New(msg string, errCtx ...any) error {
	return &basicError{errorInfo: mkErrorInfo(nil, true, errCtx), msg: msg}
}

// Wrap returns an error with the given message that wraps cause and carries
// the given context. A stack dump is added unless cause already has one.
func Wrap(msg string, cause error, errCtx ...any) error {
	return &basicError{errorInfo: mkErrorInfo(cause, true, errCtx), msg: msg}
}

// WrapNoStack is like Wrap, but never captures a stack.
func WrapNoStack(msg string, cause error, errCtx ...any) error {
	return &basicError{errorInfo: mkErrorInfo(cause, false, errCtx), msg: msg}
}

type joinedError struct {
	errorInfo
	error error
}

func (e *joinedError) Error() string {
	var b strings.Builder
	b.WriteString(e.error.Error())
	e.errorInfo.format(&b)
	return b.String()
}

func (e *joinedError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.error}
	}
	return []error{e.error, e.cause}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e *joinedError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("msg", e.error.Error())
	return e.errorInfo.marshalLogObject(enc)
}

// Join returns an error for which errors.Is reports true for both err and
// cause. It is the usual way to attach context to a sentinel error. A stack
// dump is added unless cause already has one. Join(nil, nil) is nil.
func Join(err, cause error, errCtx ...any) error {
	if err == nil && cause == nil {
		return nil
	}
	if err == nil {
		return Wrap("error", cause, errCtx...)
	}
	return &joinedError{errorInfo: mkErrorInfo(cause, true, errCtx), error: err}
}

// JoinNoStack is like Join, but never captures a stack.
func JoinNoStack(err, cause error, errCtx ...any) error {
	if err == nil && cause == nil {
		return nil
	}
	if err == nil {
		return WrapNoStack("error", cause, errCtx...)
	}
	return &joinedError{errorInfo: mkErrorInfo(cause, false, errCtx), error: err}
}

// List is a slice of errors.
type List []error

// Error implements the error interface.
func (e List) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return fmt.Sprintf("[ %s ]", strings.Join(s, "; "))
}

// ToError returns the list as error, or nil if the list is empty.
func (e List) ToError() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Unwrap exposes the listed errors to errors.Is and errors.As.
func (e List) Unwrap() []error {
	return e
}

// MarshalLogArray implements zapcore.ArrayMarshaler.
func (e List) MarshalLogArray(ae zapcore.ArrayEncoder) error {
	for _, err := range e {
		if m, ok := err.(zapcore.ObjectMarshaler); ok {
			if err := ae.AppendObject(m); err != nil {
				return err
			}
		} else {
			ae.AppendString(err.Error())
		}
	}
	return nil
}

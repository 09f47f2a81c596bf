// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"sync"
)

// callLog records lifecycle calls across services in the order they happen
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// mockService implements Service interface
type mockService struct {
	name string
	log  *callLog
}

func (m *mockService) Name() string {
	return m.name
}

// mockInitializer implements Initializer interface
type mockInitializer struct {
	mockService
	initFn    func() error
	initCount int
}

func (m *mockInitializer) Init() error {
	m.initCount++
	m.log.add("init:" + m.name)
	if m.initFn != nil {
		return m.initFn()
	}
	return nil
}

// mockInitShutdownService implements both Initializer and Shutdowner
type mockInitShutdownService struct {
	mockInitializer
	shutdownFn    func() error
	shutdownCount int
}

func (m *mockInitShutdownService) Shutdown() error {
	m.shutdownCount++
	m.log.add("shutdown:" + m.name)
	if m.shutdownFn != nil {
		return m.shutdownFn()
	}
	return nil
}

// mockRunner implements Runner interface
type mockRunner struct {
	mockService
	runFn    func(ctx context.Context) error
	runCount int
}

func (m *mockRunner) Run(ctx context.Context) error {
	m.runCount++
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return nil
}

// mockRunShutdownService implements both Runner and Shutdowner
type mockRunShutdownService struct {
	mockRunner
	shutdownFn    func() error
	shutdownCount int
}

func (m *mockRunShutdownService) Shutdown() error {
	m.shutdownCount++
	m.log.add("shutdown:" + m.name)
	if m.shutdownFn != nil {
		return m.shutdownFn()
	}
	return nil
}

func initShutdown(name string, log *callLog) *mockInitShutdownService {
	return &mockInitShutdownService{
		mockInitializer: mockInitializer{mockService: mockService{name: name, log: log}},
	}
}

func runShutdown(name string, log *callLog, fn func(ctx context.Context) error) *mockRunShutdownService {
	return &mockRunShutdownService{
		mockRunner: mockRunner{mockService: mockService{name: name, log: log}, runFn: fn},
	}
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

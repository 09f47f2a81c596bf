// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockAPIService is an implementation of the APIService interface for testing.
type MockAPIService struct {
	mock.Mock
}

func (m *MockAPIService) Register(path, name, description string, handler http.Handler) error {
	args := m.Called(path, name, description, handler)
	return args.Error(0)
}

func (m *MockAPIService) Name() string {
	return "mockApiService"
}

func TestPprofInit(t *testing.T) {
	tt := []struct {
		name string
		err  error
	}{
		{"registration succeeds", nil},
		{"registration fails", assert.AnError},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			api := &MockAPIService{}
			p := NewPprof(api)
			assert.Equal(t, "pprof", p.Name())

			api.On("Register", "/debug/pprof/", "pprof", mock.Anything, mock.AnythingOfType("*http.ServeMux")).Return(tc.err)

			assert.Equal(t, tc.err, p.Init())
			api.AssertExpectations(t)
		})
	}
}

func TestPprofHandlers(t *testing.T) {
	mux, ok := handlers().(*http.ServeMux)
	assert.True(t, ok, "handlers should return an http.ServeMux")

	for _, path := range []string{
		"/debug/pprof/",
		"/debug/pprof/cmdline",
		"/debug/pprof/symbol",
		"/debug/pprof/heap",
	} {
		t.Run(path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rr.Code)
		})
	}
}

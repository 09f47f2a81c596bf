// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/deepmon/deepmon/internal/service"
)

const (
	LivenessPath  = "/probe/livez"
	ReadinessPath = "/probe/readyz"
)

// HealthProbe exposes the liveness and readiness of every service that
// reports them. The monitor is live while its capture source is attached and
// ready once it has published a snapshot.
type HealthProbe struct {
	logger    *slog.Logger
	apiServer APIService
	services  []service.Service
}

var (
	_ service.Service     = (*HealthProbe)(nil)
	_ service.Initializer = (*HealthProbe)(nil)
)

// ServiceHealth is the probe result of a single service
type ServiceHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

// HealthStatus is the body of a probe response
type HealthStatus struct {
	Status   string          `json:"status"` // "ok" or "unhealthy"
	Services []ServiceHealth `json:"services"`
}

// NewHealthProbe creates a new HealthProbe service
func NewHealthProbe(apiServer APIService, services []service.Service, logger *slog.Logger) *HealthProbe {
	return &HealthProbe{
		logger:    logger.With("service", "health-probe"),
		apiServer: apiServer,
		services:  services,
	}
}

func (h *HealthProbe) Name() string {
	return "health-probe"
}

func (h *HealthProbe) Init() error {
	if err := h.apiServer.Register(LivenessPath, "Liveness Probe",
		"Returns 200 while every service is alive", http.HandlerFunc(h.handleLiveness)); err != nil {
		return err
	}
	if err := h.apiServer.Register(ReadinessPath, "Readiness Probe",
		"Returns 200 once every service is ready", http.HandlerFunc(h.handleReadiness)); err != nil {
		return err
	}
	h.logger.Info("Health probe endpoints registered")
	return nil
}

func (h *HealthProbe) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, h.check(func(s service.Service) (bool, bool) {
		c, ok := s.(service.LiveChecker)
		return ok && c.IsLive(), ok
	}))
}

func (h *HealthProbe) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, h.check(func(s service.Service) (bool, bool) {
		c, ok := s.(service.ReadyChecker)
		return ok && c.IsReady(), ok
	}))
}

// check runs probe against every service; probe reports the service's
// health and whether the service supports the probe at all
func (h *HealthProbe) check(probe func(service.Service) (healthy, supported bool)) HealthStatus {
	status := HealthStatus{Status: "ok", Services: []ServiceHealth{}}
	for _, svc := range h.services {
		healthy, supported := probe(svc)
		if !supported {
			continue
		}
		status.Services = append(status.Services, ServiceHealth{Name: svc.Name(), Healthy: healthy})
		if !healthy {
			status.Status = "unhealthy"
		}
	}
	return status
}

func (h *HealthProbe) respond(w http.ResponseWriter, status HealthStatus) {
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package server provides the exporter's HTTP server: routing, a standard
// middleware chain, health and readiness endpoints, JSON error responses and
// graceful shutdown.
//
// # Usage
//
//	s := server.New(
//	    server.WithName("netdev-exporter"),
//	    server.WithVersion(version),
//	    server.WithHandler(map[string]http.HandlerFunc{
//	        "/metrics": metricsHandler,
//	    }),
//	    server.WithReadiness(cache.Attempted),
//	)
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//
// Start blocks until ctx is cancelled, then drains in-flight requests for
// at most Config.ShutdownTimeout.
//
// # Middleware
//
// Every handler passed with WithHandler is wrapped, outermost first, in:
//
//	metrics -> version -> request ID -> panic recovery -> rate limit -> concurrency gate -> logging
//
// /health and /ready are served without middleware so kubelet checks are never
// rate limited or queued behind slow scrapes.
//
// Request ID Tracking:
//
//	All requests accept an optional X-Request-Id header (UUID format).
//	If not provided, the server generates one automatically.
//	The request ID is returned in the X-Request-Id response header
//	and included in all error responses for tracing.
//
// Rate Limiting:
//
//	Response headers indicate rate limit status:
//	  X-RateLimit-Limit: Total requests allowed per window
//	  X-RateLimit-Remaining: Requests remaining in current window
//	  X-RateLimit-Reset: Unix timestamp when window resets
//
//	When rate limited, returns 429 with Retry-After header.
//
// Concurrency:
//
//	At most Config.MaxConcurrentRequests wrapped handlers run at once.
//	A request that cannot obtain a slot before its context ends receives
//	503 SERVICE_UNAVAILABLE.
//
// # Endpoints
//
//	GET /        JSON index of routes, name, version and readiness
//	GET /health  Always 200 {"status": "healthy"}
//	GET /ready   200 once started and the readiness check passes, else 503
//
// # Error Handling
//
// All errors return a consistent JSON structure:
//
//	{
//	  "code": "SERVICE_UNAVAILABLE",
//	  "message": "no snapshot available",
//	  "details": {"error": "ibdev2netdev: exit status 1"},
//	  "requestId": "550e8400-e29b-41d4-a716-446655440000",
//	  "timestamp": "2026-01-12T12:00:00Z",
//	  "retryable": true
//	}
//
// WriteErrorFromErr derives status and retryability from the error code of
// a pkg/errors StructuredError; see HTTPStatusFromCode.
//
// # Configuration
//
// NewConfig reads PORT, BIND_ADDRESS and SHUTDOWN_TIMEOUT_SECONDS from the
// environment on top of the pkg/defaults values.
package server

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package identity

import (
	"context"
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// Error codes for service health checks.
const (
	CodeUnhealthy          = "IDENTITY_UNHEALTHY"
	CodeVersionUnsupported = "IDENTITY_VERSION_UNSUPPORTED"
)

// Health is the service's self-description.
type Health struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Health probes the service, retrying transient failures.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.retry(ctx, request{
		method: http.MethodGet,
		path:   "/health",
		out:    &out,
	})
	if err != nil {
		return Health{}, oops.Code(CodeUnhealthy).Wrapf(err, "identity service health check failed")
	}
	return out, nil
}

// CheckVersion probes the service and verifies its version satisfies
// constraint (for example ">= 2.150.0"). An empty constraint accepts any
// version the service reports.
func (c *Client) CheckVersion(ctx context.Context, constraint string) (*semver.Version, error) {
	health, err := c.Health(ctx)
	if err != nil {
		return nil, err
	}

	version, err := semver.NewVersion(health.Version)
	if err != nil {
		return nil, oops.Code(CodeVersionUnsupported).
			With("version", health.Version).
			Wrapf(err, "identity service reported an unparseable version")
	}
	if constraint == "" {
		return version, nil
	}

	constraints, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, oops.With("constraint", constraint).Wrapf(err, "invalid version constraint")
	}
	if !constraints.Check(version) {
		return version, oops.Code(CodeVersionUnsupported).
			With("version", version.String(), "constraint", constraint).
			Errorf("identity service %s does not satisfy %s", version, constraint)
	}
	return version, nil
}

// Package security issues delegated trust tokens and builds the scoped
// identity contexts the scheduler loops run under.
package security

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/dtw/ports"
)

// Trust tokens outlive the workload deadline horizon by a wide margin; the
// engine re-validates on use.
const trustTokenTTL = 30 * 24 * time.Hour

var _ ports.TrustIssuer = (*Service)(nil)

// Service signs trust tokens with a shared HMAC key. An empty key disables
// issuance entirely (the deployment runs without auth), mirroring how the
// engine treats requests without a trust header.
type Service struct {
	signingKey []byte
}

func New(signingKey string) *Service {
	return &Service{signingKey: []byte(signingKey)}
}

// CreateContext returns a child context carrying the identity delegated by
// trustID within projectID. The loops call this per item so store and RPC
// operations run as the workload owner rather than as the admin tick.
func (s *Service) CreateContext(ctx context.Context, trustID, projectID string) context.Context {
	return dtw.WithIdentity(ctx, dtw.Identity{TrustID: trustID, ProjectID: projectID})
}

// AddTrustID issues a trust token for the identity in ctx and stores it
// under the "trust_id" key, mutating values in place. With issuance
// disabled the map is left untouched.
func (s *Service) AddTrustID(ctx context.Context, values map[string]any) error {
	if len(s.signingKey) == 0 {
		return nil
	}

	ident, _ := dtw.IdentityFrom(ctx)
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"project_id": ident.ProjectID,
		"iat":        now.Unix(),
		"exp":        now.Add(trustTokenTTL).Unix(),
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return fmt.Errorf("sign trust token: %w", err)
	}
	values["trust_id"] = signed
	return nil
}

// ProjectFromTrust verifies a trust token and returns the project it was
// issued for.
func (s *Service) ProjectFromTrust(trustID string) (string, error) {
	token, err := jwt.Parse(trustID, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse trust token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("trust token has no claims")
	}
	project, _ := claims["project_id"].(string)
	return project, nil
}

// Package club holds the association's record rules: member upserts and
// credential checks, the login audit trail, per-member population sync,
// classified-ad ownership and the shared terrarium aggregate.
//
// The package only talks to a Store. It keeps no state between calls; every
// multi-step mutation is delegated to a single Store method so the backend
// can run it as one transaction.
package club

import (
	"time"

	"serreclub/internal/shared"

	"github.com/sirupsen/logrus"
)

// Credentials of the built-in administrator, which is never stored as a
// Member.
type Credentials struct {
	Login    string
	Password string
}

type Service struct {
	Store Store
	Admin Credentials
	Log   logrus.FieldLogger

	// Now and NewID default to time.Now and shared.NewID.
	Now   func() time.Time
	NewID func(prefix string) string
}

func NewService(store Store, admin Credentials, log logrus.FieldLogger) *Service {
	return &Service{Store: store, Admin: admin, Log: log}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID(prefix string) string {
	if s.NewID != nil {
		return s.NewID(prefix)
	}
	return shared.NewID(prefix)
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

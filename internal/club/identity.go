package club

import (
	"context"
	"fmt"

	"serreclub/internal/shared"

	"github.com/sirupsen/logrus"
)

// ListMembers returns every member ordered by login.
func (s *Service) ListMembers(ctx context.Context) ([]Member, error) {
	members, err := s.Store.ListMembers(ctx)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	for i := range members {
		members[i] = NormalizeMember(members[i])
	}
	return members, nil
}

// UpsertMember creates the member or overwrites every field of the existing
// one. The password is stored as a bcrypt hash.
func (s *Service) UpsertMember(ctx context.Context, in MemberInput) error {
	if in.Login == "" || in.Pass == "" {
		return invalid("login et pass obligatoires")
	}
	hash, err := shared.HashPassword(string(in.Pass))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	m := NormalizeMember(Member{
		Login:    string(in.Login),
		PassHash: hash,
		Role:     string(in.Role),
		Serre:    bool(in.Serre),
	})
	return storageErr("upsert member", s.Store.UpsertMember(ctx, m))
}

// DeleteMember reports how many records were removed (0 or 1).
func (s *Service) DeleteMember(ctx context.Context, login string) (int64, error) {
	n, err := s.Store.DeleteMember(ctx, login)
	if err != nil {
		return 0, storageErr("delete member", err)
	}
	return n, nil
}

func (s *Service) ClearMembers(ctx context.Context) error {
	return storageErr("clear members", s.Store.DeleteAllMembers(ctx))
}

// Authenticate resolves credentials against the administrator identity
// first, then the member store. Every success is appended to the login
// history before it is returned.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, invalid("username et password obligatoires")
	}

	var res LoginResult
	if s.isAdmin(username, password) {
		res = LoginResult{Username: username, Role: RoleAdmin, Serre: true}
	} else {
		m, err := s.Store.GetMember(ctx, username)
		if err != nil {
			return nil, storageErr("get member", err)
		}
		if m == nil {
			s.logger().WithFields(logrus.Fields{"username": username, "reason": AuthUnknownUser}).Warn("login refused")
			return nil, &AuthError{Code: AuthUnknownUser}
		}
		ok, legacy := shared.CheckPassword(m.PassHash, password)
		if !ok {
			s.logger().WithFields(logrus.Fields{"username": username, "reason": AuthBadPassword}).Warn("login refused")
			return nil, &AuthError{Code: AuthBadPassword}
		}
		if legacy {
			s.upgradeCredential(ctx, *m, password)
		}
		norm := NormalizeMember(*m)
		res = LoginResult{Username: username, Role: norm.Role, Serre: norm.Serre}
	}

	entry := LoginHistoryEntry{Username: res.Username, Role: res.Role, Date: s.now().UTC()}
	if err := s.Store.AppendLogin(ctx, entry); err != nil {
		return nil, storageErr("append login", err)
	}
	s.logger().WithFields(logrus.Fields{"username": res.Username, "role": res.Role}).Info("login")
	return &res, nil
}

func (s *Service) isAdmin(username, password string) bool {
	if s.Admin.Login == "" || s.Admin.Password == "" {
		return false
	}
	// Evaluate both comparisons so timing does not reveal which one failed.
	userOK := shared.SecureEqual(username, s.Admin.Login)
	passOK := shared.SecureEqual(password, s.Admin.Password)
	return userOK && passOK
}

// upgradeCredential replaces a plaintext credential with its hash. A failure
// only costs the upgrade, not the login.
func (s *Service) upgradeCredential(ctx context.Context, m Member, password string) {
	hash, err := shared.HashPassword(password)
	if err == nil {
		m.PassHash = hash
		err = s.Store.UpsertMember(ctx, NormalizeMember(m))
	}
	if err != nil {
		s.logger().WithError(err).WithField("username", m.Login).Warn("credential upgrade failed")
	}
}

// ListHistory returns the login audit trail, newest first when the backend
// keeps an order.
func (s *Service) ListHistory(ctx context.Context) ([]LoginHistoryEntry, error) {
	entries, err := s.Store.ListLogins(ctx)
	if err != nil {
		return nil, storageErr("list history", err)
	}
	return entries, nil
}

func (s *Service) ClearHistory(ctx context.Context) error {
	return storageErr("clear history", s.Store.ClearLogins(ctx))
}

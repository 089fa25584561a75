package club

import (
	"context"
	"fmt"
	"strings"
)

// ListAnnonces returns every ad, newest first when the backend keeps an
// order.
func (s *Service) ListAnnonces(ctx context.Context) ([]Annonce, error) {
	ads, err := s.Store.ListAnnonces(ctx)
	if err != nil {
		return nil, storageErr("list annonces", err)
	}
	for i := range ads {
		ads[i] = NormalizeAnnonce(ads[i])
	}
	return ads, nil
}

// CreateAnnonce stores a new private ad with no favorites, whatever the
// caller asked for.
func (s *Service) CreateAnnonce(ctx context.Context, in AnnonceInput) (*Annonce, error) {
	titre := strings.TrimSpace(string(in.Titre))
	if titre == "" || in.Type == "" || in.Categorie == "" || in.Auteur == "" {
		return nil, invalid("titre, type, categorie et auteur sont obligatoires")
	}

	a := Annonce{
		ID:          s.newID("annonce"),
		Titre:       titre,
		Type:        string(in.Type),
		Description: strings.TrimSpace(string(in.Description)),
		Categorie:   string(in.Categorie),
		Auteur:      string(in.Auteur),
		Prive:       true,
		FavoriPar:   []string{},
		CreatedAt:   s.now().UTC(),
	}
	if err := s.Store.InsertAnnonce(ctx, a); err != nil {
		return nil, storageErr("insert annonce", err)
	}
	return &a, nil
}

// TogglePrivate flips the visibility of an ad. Only its author may do so.
func (s *Service) TogglePrivate(ctx context.Context, id, username string) (*Annonce, error) {
	if username == "" {
		return nil, invalid("username obligatoire")
	}
	a, err := s.Store.UpdateAnnonce(ctx, id, func(a *Annonce) error {
		if a.Auteur != username {
			return fmt.Errorf("%w: %s is not the author of %s", ErrForbidden, username, a.ID)
		}
		a.Prive = !a.Prive
		return nil
	})
	if err != nil {
		return nil, storageErr("toggle private", err)
	}
	norm := NormalizeAnnonce(*a)
	return &norm, nil
}

// ToggleFavori adds username to the ad's favorites, or removes it when it is
// already there. Any member may toggle their own favorite on any ad.
func (s *Service) ToggleFavori(ctx context.Context, id, username string) (*Annonce, error) {
	if username == "" {
		return nil, invalid("username obligatoire")
	}
	a, err := s.Store.UpdateAnnonce(ctx, id, func(a *Annonce) error {
		a.FavoriPar = toggleMember(NormalizeAnnonce(*a).FavoriPar, username)
		return nil
	})
	if err != nil {
		return nil, storageErr("toggle favori", err)
	}
	norm := NormalizeAnnonce(*a)
	return &norm, nil
}

// DeleteAnnonce removes an ad on behalf of its author or of an admin-like
// role.
func (s *Service) DeleteAnnonce(ctx context.Context, id, username, role string) error {
	if username == "" {
		return invalid("username obligatoire")
	}
	err := s.Store.DeleteAnnonce(ctx, id, func(a *Annonce) error {
		if !CanDeleteAnnonce(a, username, role) {
			return fmt.Errorf("%w: %s (%s) cannot delete %s", ErrForbidden, username, role, a.ID)
		}
		return nil
	})
	return storageErr("delete annonce", err)
}

func CanDeleteAnnonce(a *Annonce, username, role string) bool {
	return a.Auteur == username || role == RoleAdmin || role == RoleBureau
}

func toggleMember(set []string, v string) []string {
	out := make([]string, 0, len(set)+1)
	found := false
	for _, u := range set {
		if u == v {
			found = true
			continue
		}
		out = append(out, u)
	}
	if !found {
		out = append(out, v)
	}
	return out
}

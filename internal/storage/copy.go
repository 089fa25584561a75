package storage

import (
	"context"
	"fmt"
	"sort"

	"serreclub/internal/club"
	"serreclub/internal/shared"
)

// CopyStats counts what Copy wrote into the destination.
type CopyStats struct {
	Members    int
	Logins     int
	Population int
	Annonces   int
	Bacs       int
	FeedItems  int
}

// Copy writes every record of src into dst. Plaintext credentials are hashed
// on the way; annonces already present in dst are left alone. Copy is meant
// for importing a legacy document into a fresh relational store.
func Copy(ctx context.Context, dst, src club.Store) (CopyStats, error) {
	var st CopyStats

	members, err := src.ListMembers(ctx)
	if err != nil {
		return st, fmt.Errorf("read members: %w", err)
	}
	for _, m := range members {
		if !shared.IsPasswordHash(m.PassHash) && m.PassHash != "" {
			hash, err := shared.HashPassword(m.PassHash)
			if err != nil {
				return st, fmt.Errorf("hash %s: %w", m.Login, err)
			}
			m.PassHash = hash
		}
		if err := dst.UpsertMember(ctx, club.NormalizeMember(m)); err != nil {
			return st, fmt.Errorf("write member %s: %w", m.Login, err)
		}
		st.Members++
	}

	logins, err := src.ListLogins(ctx)
	if err != nil {
		return st, fmt.Errorf("read history: %w", err)
	}
	// Replay oldest first so relational ids follow the original order.
	sort.SliceStable(logins, func(i, j int) bool { return logins[i].Date.Before(logins[j].Date) })
	for _, e := range logins {
		if err := dst.AppendLogin(ctx, e); err != nil {
			return st, fmt.Errorf("write history: %w", err)
		}
		st.Logins++
	}

	pop, err := src.ListPopulation(ctx)
	if err != nil {
		return st, fmt.Errorf("read population: %w", err)
	}
	byMember := map[string][]club.PopulationEntry{}
	var order []string
	for _, e := range pop {
		if _, ok := byMember[e.MemberUsername]; !ok {
			order = append(order, e.MemberUsername)
		}
		byMember[e.MemberUsername] = append(byMember[e.MemberUsername], club.NormalizePopulation(e))
	}
	for _, member := range order {
		n, err := dst.ReplacePopulation(ctx, member, byMember[member])
		if err != nil {
			return st, fmt.Errorf("write population of %s: %w", member, err)
		}
		st.Population += n
	}

	ads, err := src.ListAnnonces(ctx)
	if err != nil {
		return st, fmt.Errorf("read annonces: %w", err)
	}
	for _, a := range ads {
		existing, err := dst.GetAnnonce(ctx, a.ID)
		if err != nil {
			return st, fmt.Errorf("check annonce %s: %w", a.ID, err)
		}
		if existing != nil {
			continue
		}
		if err := dst.InsertAnnonce(ctx, a); err != nil {
			return st, fmt.Errorf("write annonce %s: %w", a.ID, err)
		}
		st.Annonces++
	}

	sr, err := src.GetSerre(ctx)
	if err != nil {
		return st, fmt.Errorf("read serre: %w", err)
	}
	norm := club.NormalizeSerre(*sr)
	if err := dst.SaveNotes(ctx, norm.Notes); err != nil {
		return st, fmt.Errorf("write notes: %w", err)
	}
	if err := dst.ReplaceBacs(ctx, norm.Bacs, norm.Assignments); err != nil {
		return st, fmt.Errorf("write bacs: %w", err)
	}
	if err := dst.ReplaceFeed(ctx, norm.Feed); err != nil {
		return st, fmt.Errorf("write feed: %w", err)
	}
	st.Bacs = len(norm.Bacs)
	st.FeedItems = len(norm.Feed.Items)
	return st, nil
}

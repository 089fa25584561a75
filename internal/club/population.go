package club

import "context"

func (s *Service) ListPopulation(ctx context.Context) ([]PopulationEntry, error) {
	entries, err := s.Store.ListPopulation(ctx)
	if err != nil {
		return nil, storageErr("list population", err)
	}
	for i := range entries {
		entries[i] = NormalizePopulation(entries[i])
	}
	return entries, nil
}

// SyncPopulation replaces every entry of member with entries and returns how
// many were kept. Entries without a species name are dropped. A nil entries
// slice means the caller did not send a list.
//
// Concurrent syncs for the same member are last-writer-wins; each one is
// applied by the store as a single transaction so they never interleave.
func (s *Service) SyncPopulation(ctx context.Context, member string, entries []PopulationInput) (int, error) {
	if member == "" || entries == nil {
		return 0, invalid("memberUsername et entries (tableau) sont obligatoires")
	}

	clean := make([]PopulationEntry, 0, len(entries))
	for _, e := range entries {
		if e.SpeciesName == "" {
			continue
		}
		clean = append(clean, PopulationEntry{
			MemberUsername: member,
			SpeciesName:    string(e.SpeciesName),
			Source:         string(e.Source),
			TotalCount:     CountOf(e.TotalCount),
		})
	}

	n, err := s.Store.ReplacePopulation(ctx, member, clean)
	if err != nil {
		return 0, storageErr("replace population", err)
	}
	return n, nil
}

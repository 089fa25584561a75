package club

import "context"

// GetSerre returns the terrarium aggregate with every missing part replaced
// by its default.
func (s *Service) GetSerre(ctx context.Context) (*Serre, error) {
	sr, err := s.Store.GetSerre(ctx)
	if err != nil {
		return nil, storageErr("get serre", err)
	}
	if sr == nil {
		empty := EmptySerre()
		return &empty, nil
	}
	norm := NormalizeSerre(*sr)
	return &norm, nil
}

// SaveNotes replaces the shared notes. Non-string values store empty text.
func (s *Service) SaveNotes(ctx context.Context, notes any) error {
	text, _ := notes.(string)
	return storageErr("save notes", s.Store.SaveNotes(ctx, text))
}

// SaveBacs replaces the tank list and the assignment map together.
// Assignments pointing at tanks that no longer exist are kept as sent.
func (s *Service) SaveBacs(ctx context.Context, bacs []BacInput, assignments AssignmentMap) error {
	if bacs == nil {
		return invalid("bacs doit être un tableau")
	}

	clean := make([]Bac, 0, len(bacs))
	for _, b := range bacs {
		clean = append(clean, NormalizeBac(Bac{
			ID:              string(b.ID),
			Name:            string(b.Name),
			LastWaterChange: optionalText(b.LastWaterChange),
			LastFilterClean: optionalText(b.LastFilterClean),
		}))
	}

	assign := make(map[string]Assignment, len(assignments))
	for k, v := range assignments {
		assign[k] = v
	}
	return storageErr("replace bacs", s.Store.ReplaceBacs(ctx, clean, assign))
}

// SaveFeed replaces the whole feed stock and stamps it with the current time.
// Items without an id get a fresh one; a nil items slice stores no items.
func (s *Service) SaveFeed(ctx context.Context, items []FeedItemInput, monthlyUseKg Number) (*Feed, error) {
	now := s.now().UTC()
	feed := Feed{
		LastUpdate:   &now,
		Items:        make([]FeedItem, 0, len(items)),
		MonthlyUseKg: finite(float64(monthlyUseKg)),
	}
	for _, it := range items {
		id := string(it.ID)
		if id == "" {
			id = s.newID("feed")
		}
		feed.Items = append(feed.Items, NormalizeFeedItem(FeedItem{
			ID:       id,
			Name:     string(it.Name),
			Unit:     string(it.Unit),
			Quantity: float64(it.Quantity),
		}))
	}

	if err := s.Store.ReplaceFeed(ctx, feed); err != nil {
		return nil, storageErr("replace feed", err)
	}
	return &feed, nil
}

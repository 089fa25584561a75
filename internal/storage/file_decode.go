package storage

import (
	"encoding/json"
	"time"

	"serreclub/internal/club"
)

// The loose* types read documents written by any historical version of the
// client, where numbers may be strings and fields may be missing or null.

type looseDocument struct {
	Members      club.List[looseMember]     `json:"members"`
	LoginHistory club.List[looseLogin]      `json:"loginHistory"`
	Population   club.List[loosePopulation] `json:"population"`
	Annonces     club.List[looseAnnonce]    `json:"annonces"`
	Serre        json.RawMessage            `json:"serre"`
}

type looseMember struct {
	Login club.Text `json:"login"`
	Pass  club.Text `json:"pass"`
	Role  club.Text `json:"role"`
	Serre club.Flag `json:"serre"`
}

type looseLogin struct {
	Username club.Text `json:"username"`
	Role     club.Text `json:"role"`
	Date     club.Text `json:"date"`
}

type loosePopulation struct {
	MemberUsername club.Text   `json:"memberUsername"`
	SpeciesName    club.Text   `json:"speciesName"`
	Source         club.Text   `json:"source"`
	TotalCount     club.Number `json:"totalCount"`
}

type looseAnnonce struct {
	ID          club.Text            `json:"id"`
	Titre       club.Text            `json:"titre"`
	Type        club.Text            `json:"type"`
	Description club.Text            `json:"description"`
	Categorie   club.Text            `json:"categorie"`
	Auteur      club.Text            `json:"auteur"`
	Prive       *club.Flag           `json:"prive"`
	FavoriPar   club.List[club.Text] `json:"favoriPar"`
	CreatedAt   club.Text            `json:"createdAt"`
}

type looseSerre struct {
	Notes       json.RawMessage          `json:"notes"`
	Bacs        club.List[club.BacInput] `json:"bacs"`
	Assignments club.AssignmentMap       `json:"assignments"`
	Feed        json.RawMessage          `json:"feed"`
}

type looseFeed struct {
	LastUpdate   club.Text                     `json:"lastUpdate"`
	Items        club.List[club.FeedItemInput] `json:"items"`
	MonthlyUseKg club.Number                   `json:"monthlyUseKg"`
}

// decodeDocument fails only when the top level is not a JSON object; every
// part below it is repaired independently.
func decodeDocument(b []byte) (*document, error) {
	var raw looseDocument
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}

	doc := emptyDocument()
	for _, m := range raw.Members.Items {
		if m.Login == "" {
			continue
		}
		doc.Members = append(doc.Members, diskMember{
			Login: string(m.Login),
			Pass:  string(m.Pass),
			Role:  string(m.Role),
			Serre: bool(m.Serre),
		})
	}
	for _, e := range raw.LoginHistory.Items {
		if e.Username == "" {
			continue
		}
		doc.LoginHistory = append(doc.LoginHistory, club.LoginHistoryEntry{
			Username: string(e.Username),
			Role:     string(e.Role),
			Date:     parseTime(string(e.Date)),
		})
	}
	for _, e := range raw.Population.Items {
		if e.MemberUsername == "" || e.SpeciesName == "" {
			continue
		}
		doc.Population = append(doc.Population, club.PopulationEntry{
			MemberUsername: string(e.MemberUsername),
			SpeciesName:    string(e.SpeciesName),
			Source:         string(e.Source),
			TotalCount:     club.CountOf(e.TotalCount),
		})
	}
	for _, a := range raw.Annonces.Items {
		if a.ID == "" {
			continue
		}
		doc.Annonces = append(doc.Annonces, looseToAnnonce(a))
	}
	doc.Serre = decodeSerre(raw.Serre)
	return doc, nil
}

func looseToAnnonce(a looseAnnonce) club.Annonce {
	prive := true
	if a.Prive != nil {
		prive = bool(*a.Prive)
	}
	favs := make([]string, 0, len(a.FavoriPar.Items))
	for _, u := range a.FavoriPar.Items {
		favs = append(favs, string(u))
	}
	return club.NormalizeAnnonce(club.Annonce{
		ID:          string(a.ID),
		Titre:       string(a.Titre),
		Type:        string(a.Type),
		Description: string(a.Description),
		Categorie:   string(a.Categorie),
		Auteur:      string(a.Auteur),
		Prive:       prive,
		FavoriPar:   favs,
		CreatedAt:   parseTime(string(a.CreatedAt)),
	})
}

func decodeSerre(b json.RawMessage) club.Serre {
	var raw looseSerre
	if len(b) == 0 || json.Unmarshal(b, &raw) != nil {
		return club.EmptySerre()
	}

	var sr club.Serre
	// Notes must be a string; anything else reads as empty text.
	_ = json.Unmarshal(raw.Notes, &sr.Notes)

	for _, bi := range raw.Bacs.Items {
		sr.Bacs = append(sr.Bacs, club.Bac{
			ID:              string(bi.ID),
			Name:            string(bi.Name),
			LastWaterChange: textPtr(bi.LastWaterChange),
			LastFilterClean: textPtr(bi.LastFilterClean),
		})
	}
	sr.Assignments = map[string]club.Assignment(raw.Assignments)

	var feed looseFeed
	if len(raw.Feed) > 0 && json.Unmarshal(raw.Feed, &feed) == nil {
		if t := parseTime(string(feed.LastUpdate)); !t.IsZero() {
			sr.Feed.LastUpdate = &t
		}
		for _, it := range feed.Items.Items {
			sr.Feed.Items = append(sr.Feed.Items, club.FeedItem{
				ID:       string(it.ID),
				Name:     string(it.Name),
				Unit:     string(it.Unit),
				Quantity: float64(it.Quantity),
			})
		}
		sr.Feed.MonthlyUseKg = float64(feed.MonthlyUseKg)
	}
	return club.NormalizeSerre(sr)
}

func textPtr(t club.Text) *string {
	if t == "" {
		return nil
	}
	v := string(t)
	return &v
}

// parseTime accepts RFC 3339 strings and millisecond epochs; anything else
// is the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	var ms club.Number
	if err := json.Unmarshal([]byte(s), &ms); err == nil && ms > 0 {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return time.Time{}
}

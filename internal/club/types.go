package club

import "time"

// Member is a registered association member. PassHash never leaves the
// process through the JSON encoding.
type Member struct {
	Login    string `json:"login"`
	PassHash string `json:"-"`
	Role     string `json:"role"`
	Serre    bool   `json:"serre"`
}

type LoginHistoryEntry struct {
	Username string    `json:"username"`
	Role     string    `json:"role"`
	Date     time.Time `json:"date"`
}

// LoginResult is what a successful authentication resolves to.
type LoginResult struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Serre    bool   `json:"serre"`
}

type PopulationEntry struct {
	MemberUsername string `json:"memberUsername"`
	SpeciesName    string `json:"speciesName"`
	Source         string `json:"source"`
	TotalCount     int64  `json:"totalCount"`
}

// Annonce is a classified ad. FavoriPar keeps insertion order.
type Annonce struct {
	ID          string    `json:"id"`
	Titre       string    `json:"titre"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Categorie   string    `json:"categorie"`
	Auteur      string    `json:"auteur"`
	Prive       bool      `json:"prive"`
	FavoriPar   []string  `json:"favoriPar"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Bac is a tank of the shared terrarium. Maintenance dates are kept as the
// client sent them.
type Bac struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	LastWaterChange *string `json:"lastWaterChange"`
	LastFilterClean *string `json:"lastFilterClean"`
}

// Assignment names the member responsible for a tank.
type Assignment struct {
	MembreID string `json:"membreId"`
	Nom      string `json:"nom"`
}

type FeedItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
}

type Feed struct {
	LastUpdate   *time.Time `json:"lastUpdate"`
	Items        []FeedItem `json:"items"`
	MonthlyUseKg float64    `json:"monthlyUseKg"`
}

// Serre is the singleton terrarium aggregate.
type Serre struct {
	Notes       string                `json:"notes"`
	Bacs        []Bac                 `json:"bacs"`
	Assignments map[string]Assignment `json:"assignments"`
	Feed        Feed                  `json:"feed"`
}

// Inputs as decoded from request bodies. Field types coerce loosely typed
// JSON the way the web client sends it.

type MemberInput struct {
	Login Text `json:"login"`
	Pass  Text `json:"pass"`
	Role  Text `json:"role"`
	Serre Flag `json:"serre"`
}

type PopulationInput struct {
	SpeciesName Text   `json:"speciesName"`
	Source      Text   `json:"source"`
	TotalCount  Number `json:"totalCount"`
}

type AnnonceInput struct {
	Titre       Text `json:"titre"`
	Type        Text `json:"type"`
	Description Text `json:"description"`
	Categorie   Text `json:"categorie"`
	Auteur      Text `json:"auteur"`
}

type BacInput struct {
	ID              Text `json:"id"`
	Name            Text `json:"name"`
	LastWaterChange Text `json:"lastWaterChange"`
	LastFilterClean Text `json:"lastFilterClean"`
}

type FeedItemInput struct {
	ID       Text   `json:"id"`
	Name     Text   `json:"name"`
	Unit     Text   `json:"unit"`
	Quantity Number `json:"quantity"`
}

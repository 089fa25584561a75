package club

import "context"

// Lookups return (nil, nil) for an absent key. Conditional mutations return
// ErrNotFound for an absent key and pass callback errors through unchanged.

type MemberStore interface {
	ListMembers(ctx context.Context) ([]Member, error)
	GetMember(ctx context.Context, login string) (*Member, error)
	UpsertMember(ctx context.Context, m Member) error
	DeleteMember(ctx context.Context, login string) (int64, error)
	DeleteAllMembers(ctx context.Context) error
}

type HistoryStore interface {
	AppendLogin(ctx context.Context, e LoginHistoryEntry) error
	ListLogins(ctx context.Context) ([]LoginHistoryEntry, error)
	ClearLogins(ctx context.Context) error
}

type PopulationStore interface {
	ListPopulation(ctx context.Context) ([]PopulationEntry, error)
	// ReplacePopulation swaps the whole partition of member in one step.
	ReplacePopulation(ctx context.Context, member string, entries []PopulationEntry) (int, error)
}

type AnnonceStore interface {
	ListAnnonces(ctx context.Context) ([]Annonce, error)
	GetAnnonce(ctx context.Context, id string) (*Annonce, error)
	InsertAnnonce(ctx context.Context, a Annonce) error
	// UpdateAnnonce reads the ad, applies mutate and writes it back within
	// one transaction.
	UpdateAnnonce(ctx context.Context, id string, mutate func(*Annonce) error) (*Annonce, error)
	// DeleteAnnonce removes the ad when check accepts it, within one
	// transaction.
	DeleteAnnonce(ctx context.Context, id string, check func(*Annonce) error) error
}

type SerreStore interface {
	GetSerre(ctx context.Context) (*Serre, error)
	SaveNotes(ctx context.Context, notes string) error
	ReplaceBacs(ctx context.Context, bacs []Bac, assignments map[string]Assignment) error
	ReplaceFeed(ctx context.Context, feed Feed) error
}

// Store is the whole storage collaborator.
type Store interface {
	MemberStore
	HistoryStore
	PopulationStore
	AnnonceStore
	SerreStore
	Close() error
}

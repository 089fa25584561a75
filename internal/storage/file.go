package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"serreclub/internal/club"

	"github.com/sirupsen/logrus"
)

var _ club.Store = (*FileStore)(nil)

// FileStore keeps everything in one JSON document, in the layout of the
// association's historical data.json. With an empty path the document lives
// in memory only.
//
// Every operation loads the document, applies its change and writes the
// whole document back under one mutex, so mutations are atomic within the
// process.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  []byte
	log  logrus.FieldLogger
}

func NewFileStore(path string, log logrus.FieldLogger) *FileStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileStore{path: path, log: log}
}

// NewMemoryStore returns a FileStore that never touches the disk.
func NewMemoryStore() *FileStore {
	return NewFileStore("", nil)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Ping(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

type document struct {
	Members      []diskMember             `json:"members"`
	LoginHistory []club.LoginHistoryEntry `json:"loginHistory"`
	Population   []club.PopulationEntry   `json:"population"`
	Annonces     []club.Annonce           `json:"annonces"`
	Serre        club.Serre               `json:"serre"`
}

// diskMember keeps the credential under the historical "pass" key.
type diskMember struct {
	Login string `json:"login"`
	Pass  string `json:"pass"`
	Role  string `json:"role"`
	Serre bool   `json:"serre"`
}

func emptyDocument() *document {
	return &document{
		Members:      []diskMember{},
		LoginHistory: []club.LoginHistoryEntry{},
		Population:   []club.PopulationEntry{},
		Annonces:     []club.Annonce{},
		Serre:        club.EmptySerre(),
	}
}

func (s *FileStore) read() ([]byte, error) {
	if s.path == "" {
		return s.mem, nil
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

// load returns the current document. An unreadable document is set aside
// next to the data file and replaced by the empty shape.
func (s *FileStore) load() (*document, error) {
	b, err := s.read()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return emptyDocument(), nil
	}
	doc, err := decodeDocument(b)
	if err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("data document unreadable, using empty document")
		empty := emptyDocument()
		if s.path != "" {
			backup := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
			if werr := os.WriteFile(backup, b, 0o600); werr != nil {
				// Keep the original in place rather than lose it.
				s.log.WithError(werr).Warn("could not keep a copy of the unreadable document")
				return empty, nil
			}
		}
		if serr := s.save(empty); serr != nil {
			return nil, fmt.Errorf("replace unreadable document: %w", serr)
		}
		return empty, nil
	}
	return doc, nil
}

func (s *FileStore) save(doc *document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if s.path == "" {
		s.mem = b
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) view(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

// update saves the document only when fn succeeds.
func (s *FileStore) update(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func (s *FileStore) ListMembers(ctx context.Context) ([]club.Member, error) {
	var out []club.Member
	err := s.view(func(doc *document) error {
		out = make([]club.Member, 0, len(doc.Members))
		for _, m := range doc.Members {
			out = append(out, m.member())
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out, err
}

func (s *FileStore) GetMember(ctx context.Context, login string) (*club.Member, error) {
	var out *club.Member
	err := s.view(func(doc *document) error {
		for _, m := range doc.Members {
			if m.Login == login {
				mm := m.member()
				out = &mm
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s *FileStore) UpsertMember(ctx context.Context, m club.Member) error {
	return s.update(func(doc *document) error {
		rec := diskMember{Login: m.Login, Pass: m.PassHash, Role: m.Role, Serre: m.Serre}
		for i := range doc.Members {
			if doc.Members[i].Login == m.Login {
				doc.Members[i] = rec
				return nil
			}
		}
		doc.Members = append(doc.Members, rec)
		return nil
	})
}

func (s *FileStore) DeleteMember(ctx context.Context, login string) (int64, error) {
	var removed int64
	err := s.update(func(doc *document) error {
		kept := doc.Members[:0]
		for _, m := range doc.Members {
			if m.Login == login {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		doc.Members = kept
		return nil
	})
	return removed, err
}

func (s *FileStore) DeleteAllMembers(ctx context.Context) error {
	return s.update(func(doc *document) error {
		doc.Members = []diskMember{}
		return nil
	})
}

func (m diskMember) member() club.Member {
	return club.Member{Login: m.Login, PassHash: m.Pass, Role: m.Role, Serre: m.Serre}
}

// ---------------------------------------------------------------------------
// Login history
// ---------------------------------------------------------------------------

func (s *FileStore) AppendLogin(ctx context.Context, e club.LoginHistoryEntry) error {
	return s.update(func(doc *document) error {
		doc.LoginHistory = append(doc.LoginHistory, e)
		return nil
	})
}

// ListLogins returns the newest entry first.
func (s *FileStore) ListLogins(ctx context.Context) ([]club.LoginHistoryEntry, error) {
	var out []club.LoginHistoryEntry
	err := s.view(func(doc *document) error {
		out = make([]club.LoginHistoryEntry, 0, len(doc.LoginHistory))
		for i := len(doc.LoginHistory) - 1; i >= 0; i-- {
			out = append(out, doc.LoginHistory[i])
		}
		return nil
	})
	return out, err
}

func (s *FileStore) ClearLogins(ctx context.Context) error {
	return s.update(func(doc *document) error {
		doc.LoginHistory = []club.LoginHistoryEntry{}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Population
// ---------------------------------------------------------------------------

func (s *FileStore) ListPopulation(ctx context.Context) ([]club.PopulationEntry, error) {
	var out []club.PopulationEntry
	err := s.view(func(doc *document) error {
		out = append([]club.PopulationEntry{}, doc.Population...)
		return nil
	})
	return out, err
}

func (s *FileStore) ReplacePopulation(ctx context.Context, member string, entries []club.PopulationEntry) (int, error) {
	err := s.update(func(doc *document) error {
		kept := make([]club.PopulationEntry, 0, len(doc.Population)+len(entries))
		for _, e := range doc.Population {
			if e.MemberUsername != member {
				kept = append(kept, e)
			}
		}
		for _, e := range entries {
			e.MemberUsername = member
			kept = append(kept, e)
		}
		doc.Population = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ---------------------------------------------------------------------------
// Annonces
// ---------------------------------------------------------------------------

func (s *FileStore) ListAnnonces(ctx context.Context) ([]club.Annonce, error) {
	var out []club.Annonce
	err := s.view(func(doc *document) error {
		out = make([]club.Annonce, 0, len(doc.Annonces))
		for i := len(doc.Annonces) - 1; i >= 0; i-- {
			out = append(out, club.NormalizeAnnonce(doc.Annonces[i]))
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (s *FileStore) GetAnnonce(ctx context.Context, id string) (*club.Annonce, error) {
	var out *club.Annonce
	err := s.view(func(doc *document) error {
		if i := findAnnonce(doc, id); i >= 0 {
			a := club.NormalizeAnnonce(doc.Annonces[i])
			out = &a
		}
		return nil
	})
	return out, err
}

func (s *FileStore) InsertAnnonce(ctx context.Context, a club.Annonce) error {
	return s.update(func(doc *document) error {
		if findAnnonce(doc, a.ID) >= 0 {
			return fmt.Errorf("annonce %s already exists", a.ID)
		}
		doc.Annonces = append(doc.Annonces, club.NormalizeAnnonce(a))
		return nil
	})
}

func (s *FileStore) UpdateAnnonce(ctx context.Context, id string, mutate func(*club.Annonce) error) (*club.Annonce, error) {
	var out *club.Annonce
	err := s.update(func(doc *document) error {
		i := findAnnonce(doc, id)
		if i < 0 {
			return fmt.Errorf("annonce %s: %w", id, club.ErrNotFound)
		}
		a := club.NormalizeAnnonce(doc.Annonces[i])
		if err := mutate(&a); err != nil {
			return err
		}
		a = club.NormalizeAnnonce(a)
		doc.Annonces[i] = a
		out = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) DeleteAnnonce(ctx context.Context, id string, check func(*club.Annonce) error) error {
	return s.update(func(doc *document) error {
		i := findAnnonce(doc, id)
		if i < 0 {
			return fmt.Errorf("annonce %s: %w", id, club.ErrNotFound)
		}
		a := club.NormalizeAnnonce(doc.Annonces[i])
		if err := check(&a); err != nil {
			return err
		}
		doc.Annonces = append(doc.Annonces[:i], doc.Annonces[i+1:]...)
		return nil
	})
}

func findAnnonce(doc *document, id string) int {
	for i, a := range doc.Annonces {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Serre
// ---------------------------------------------------------------------------

func (s *FileStore) GetSerre(ctx context.Context) (*club.Serre, error) {
	var out club.Serre
	err := s.view(func(doc *document) error {
		out = club.NormalizeSerre(doc.Serre)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *FileStore) SaveNotes(ctx context.Context, notes string) error {
	return s.update(func(doc *document) error {
		doc.Serre.Notes = notes
		return nil
	})
}

func (s *FileStore) ReplaceBacs(ctx context.Context, bacs []club.Bac, assignments map[string]club.Assignment) error {
	return s.update(func(doc *document) error {
		doc.Serre.Bacs = append([]club.Bac{}, bacs...)
		doc.Serre.Assignments = make(map[string]club.Assignment, len(assignments))
		for k, v := range assignments {
			doc.Serre.Assignments[k] = v
		}
		return nil
	})
}

func (s *FileStore) ReplaceFeed(ctx context.Context, feed club.Feed) error {
	return s.update(func(doc *document) error {
		doc.Serre.Feed = club.NormalizeFeed(feed)
		return nil
	})
}

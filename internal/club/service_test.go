package club_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"serreclub/internal/club"
	"serreclub/internal/shared"
	"serreclub/internal/storage"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	shared.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// clock hands out strictly increasing millisecond timestamps.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sqliteStore(t *testing.T) club.Store {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := storage.RunMigrations(context.Background(), db, storage.DialectSQLite, quietLogger()); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	st := storage.NewSQLStore(db, storage.DialectSQLite)
	t.Cleanup(func() { st.Close() })
	return st
}

func fileStore(t *testing.T) club.Store {
	t.Helper()
	return storage.NewFileStore(filepath.Join(t.TempDir(), "data.json"), quietLogger())
}

var backends = []struct {
	name string
	open func(t *testing.T) club.Store
}{
	{"sqlite", sqliteStore},
	{"file", fileStore},
	{"memory", func(t *testing.T) club.Store { return storage.NewMemoryStore() }},
}

func newService(t *testing.T, st club.Store) *club.Service {
	t.Helper()
	svc := club.NewService(st, club.Credentials{Login: shared.DefaultAdminLogin, Password: shared.DefaultAdminPass}, quietLogger())
	c := &clock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc.Now = c.Now
	return svc
}

// eachBackend runs fn once per storage backend.
func eachBackend(t *testing.T, fn func(t *testing.T, svc *club.Service)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, newService(t, b.open(t)))
		})
	}
}

func isValidation(err error) bool { return errors.Is(err, club.ErrValidation) }

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

func TestUpsertMemberRoundTrip(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()

		if err := svc.UpsertMember(ctx, club.MemberInput{Login: "alice", Pass: "pw1", Role: "membre_bureau", Serre: true}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := svc.UpsertMember(ctx, club.MemberInput{Login: "alice", Pass: "pw2"}); err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		m, err := svc.Store.GetMember(ctx, "alice")
		if err != nil || m == nil {
			t.Fatalf("get member: %v %v", m, err)
		}
		if m.Role != club.DefaultRole || m.Serre {
			t.Fatalf("last write should win entirely, got %+v", m)
		}
		if !shared.IsPasswordHash(m.PassHash) {
			t.Fatalf("password stored in clear: %q", m.PassHash)
		}
		if ok, _ := shared.CheckPassword(m.PassHash, "pw2"); !ok {
			t.Fatal("stored hash does not match the last password")
		}

		members, err := svc.ListMembers(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(members) != 1 {
			t.Fatalf("want 1 member, got %d", len(members))
		}
	})
}

func TestUpsertMemberValidation(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		for _, in := range []club.MemberInput{{Login: "x"}, {Pass: "y"}, {}} {
			if err := svc.UpsertMember(ctx, in); !isValidation(err) {
				t.Fatalf("%+v: want validation error, got %v", in, err)
			}
		}
	})
}

func TestDeleteMember(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()

		n, err := svc.DeleteMember(ctx, "ghost")
		if err != nil || n != 0 {
			t.Fatalf("delete missing: n=%d err=%v", n, err)
		}

		_ = svc.UpsertMember(ctx, club.MemberInput{Login: "bob", Pass: "pw"})
		_ = svc.UpsertMember(ctx, club.MemberInput{Login: "carl", Pass: "pw"})
		n, err = svc.DeleteMember(ctx, "bob")
		if err != nil || n != 1 {
			t.Fatalf("delete bob: n=%d err=%v", n, err)
		}

		if err := svc.ClearMembers(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		members, _ := svc.ListMembers(ctx)
		if len(members) != 0 {
			t.Fatalf("members left after clear: %v", members)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		_ = svc.UpsertMember(ctx, club.MemberInput{Login: "alice", Pass: "secret", Serre: true})

		res, err := svc.Authenticate(ctx, "can", "29081623")
		if err != nil {
			t.Fatalf("admin login: %v", err)
		}
		if res.Role != club.RoleAdmin || !res.Serre || res.Username != "can" {
			t.Fatalf("admin result: %+v", res)
		}

		res, err = svc.Authenticate(ctx, "alice", "secret")
		if err != nil {
			t.Fatalf("member login: %v", err)
		}
		if res.Role != club.DefaultRole || !res.Serre {
			t.Fatalf("member result: %+v", res)
		}

		var aerr *club.AuthError
		if _, err := svc.Authenticate(ctx, "nobody", "x"); !errors.As(err, &aerr) || aerr.Code != club.AuthUnknownUser {
			t.Fatalf("want unknown_user, got %v", err)
		}
		if _, err := svc.Authenticate(ctx, "alice", "wrong"); !errors.As(err, &aerr) || aerr.Code != club.AuthBadPassword {
			t.Fatalf("want bad_password, got %v", err)
		}
		if _, err := svc.Authenticate(ctx, "can", "wrong"); !errors.As(err, &aerr) || aerr.Code != club.AuthUnknownUser {
			t.Fatalf("admin login with a bad password must go through the store, got %v", err)
		}
		if _, err := svc.Authenticate(ctx, "alice", ""); !isValidation(err) {
			t.Fatalf("want validation error, got %v", err)
		}

		hist, err := svc.ListHistory(ctx)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(hist) != 2 {
			t.Fatalf("want 2 successful logins in history, got %d", len(hist))
		}
		if hist[0].Username != "alice" || hist[1].Username != "can" {
			t.Fatalf("history should be newest first: %+v", hist)
		}
		if hist[1].Role != club.RoleAdmin {
			t.Fatalf("admin entry role: %+v", hist[1])
		}

		if err := svc.ClearHistory(ctx); err != nil {
			t.Fatalf("clear history: %v", err)
		}
		hist, _ = svc.ListHistory(ctx)
		if len(hist) != 0 {
			t.Fatalf("history left after clear: %v", hist)
		}
	})
}

func TestAdminIgnoresStoredMemberWithSameLogin(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		_ = svc.UpsertMember(ctx, club.MemberInput{Login: "can", Pass: "other", Role: "adhérent"})

		res, err := svc.Authenticate(ctx, "can", "29081623")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if res.Role != club.RoleAdmin {
			t.Fatalf("want admin, got %+v", res)
		}
	})
}

func TestLongPasswordUpsertAndLogin(t *testing.T) {
	long := strings.Repeat("p", 80)
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		if err := svc.UpsertMember(ctx, club.MemberInput{Login: "alice", Pass: club.Text(long)}); err != nil {
			t.Fatalf("upsert with an 80-byte password: %v", err)
		}
		if _, err := svc.Authenticate(ctx, "alice", long); err != nil {
			t.Fatalf("login: %v", err)
		}
		var aerr *club.AuthError
		if _, err := svc.Authenticate(ctx, "alice", long[:72]); !errors.As(err, &aerr) || aerr.Code != club.AuthBadPassword {
			t.Fatalf("truncated password: want bad_password, got %v", err)
		}
	})
}

func TestLegacyCredentialIsUpgraded(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		if err := svc.Store.UpsertMember(ctx, club.Member{Login: "old", PassHash: "plain", Role: "adhérent"}); err != nil {
			t.Fatalf("seed: %v", err)
		}

		if _, err := svc.Authenticate(ctx, "old", "plain"); err != nil {
			t.Fatalf("legacy login: %v", err)
		}
		m, _ := svc.Store.GetMember(ctx, "old")
		if !shared.IsPasswordHash(m.PassHash) {
			t.Fatalf("credential not upgraded: %q", m.PassHash)
		}
		if _, err := svc.Authenticate(ctx, "old", "plain"); err != nil {
			t.Fatalf("login after upgrade: %v", err)
		}
	})
}

// ---------------------------------------------------------------------------
// Population
// ---------------------------------------------------------------------------

func TestSyncPopulation(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()

		n, err := svc.SyncPopulation(ctx, "alice", []club.PopulationInput{
			{SpeciesName: "Neocaridina", Source: "élevage", TotalCount: 12.7},
			{SpeciesName: "", TotalCount: 3},
			{SpeciesName: "Guppy", TotalCount: -5},
		})
		if err != nil || n != 2 {
			t.Fatalf("sync alice: n=%d err=%v", n, err)
		}
		if _, err := svc.SyncPopulation(ctx, "bob", []club.PopulationInput{{SpeciesName: "Betta", TotalCount: 1}}); err != nil {
			t.Fatalf("sync bob: %v", err)
		}

		all, _ := svc.ListPopulation(ctx)
		if len(all) != 3 {
			t.Fatalf("want 3 entries, got %d: %+v", len(all), all)
		}
		counts := map[string]int64{}
		for _, e := range all {
			counts[e.MemberUsername+"/"+e.SpeciesName] = e.TotalCount
		}
		if counts["alice/Neocaridina"] != 12 || counts["alice/Guppy"] != 0 || counts["bob/Betta"] != 1 {
			t.Fatalf("counts: %v", counts)
		}

		n, err = svc.SyncPopulation(ctx, "alice", []club.PopulationInput{})
		if err != nil || n != 0 {
			t.Fatalf("clear alice: n=%d err=%v", n, err)
		}
		all, _ = svc.ListPopulation(ctx)
		if len(all) != 1 || all[0].MemberUsername != "bob" {
			t.Fatalf("only bob should remain: %+v", all)
		}

		if _, err := svc.SyncPopulation(ctx, "alice", nil); !isValidation(err) {
			t.Fatalf("nil entries: want validation error, got %v", err)
		}
		if _, err := svc.SyncPopulation(ctx, "", []club.PopulationInput{}); !isValidation(err) {
			t.Fatalf("empty member: want validation error, got %v", err)
		}
	})
}

func TestConcurrentPopulationSyncsDoNotMix(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		const writers = 8

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				entries := make([]club.PopulationInput, 3)
				for i := range entries {
					entries[i] = club.PopulationInput{SpeciesName: club.Text(fmt.Sprintf("w%d-s%d", w, i)), TotalCount: club.Number(w)}
				}
				if _, err := svc.SyncPopulation(ctx, "alice", entries); err != nil {
					errs <- err
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("sync: %v", err)
		}

		all, err := svc.ListPopulation(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("want the 3 entries of a single writer, got %d: %+v", len(all), all)
		}
		for _, e := range all {
			if e.TotalCount != all[0].TotalCount {
				t.Fatalf("entries from several writers: %+v", all)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// Annonces
// ---------------------------------------------------------------------------

func createAd(t *testing.T, svc *club.Service, auteur string) *club.Annonce {
	t.Helper()
	a, err := svc.CreateAnnonce(context.Background(), club.AnnonceInput{
		Titre: "  T  ", Type: "vente", Categorie: "poisson", Auteur: club.Text(auteur), Description: " desc ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestCreateAnnonceAndFavoriScenario(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		a := createAd(t, svc, "alice")
		if !a.Prive || a.FavoriPar == nil || len(a.FavoriPar) != 0 {
			t.Fatalf("new ad: %+v", a)
		}
		if a.Titre != "T" || a.Description != "desc" || a.ID == "" {
			t.Fatalf("new ad fields: %+v", a)
		}

		a, err := svc.ToggleFavori(ctx, a.ID, "bob")
		if err != nil {
			t.Fatalf("favori: %v", err)
		}
		if len(a.FavoriPar) != 1 || a.FavoriPar[0] != "bob" {
			t.Fatalf("after first toggle: %v", a.FavoriPar)
		}
		a, err = svc.ToggleFavori(ctx, a.ID, "bob")
		if err != nil {
			t.Fatalf("favori again: %v", err)
		}
		if len(a.FavoriPar) != 0 {
			t.Fatalf("after second toggle: %v", a.FavoriPar)
		}

		if _, err := svc.ToggleFavori(ctx, "missing", "bob"); !errors.Is(err, club.ErrNotFound) {
			t.Fatalf("want not found, got %v", err)
		}
		if _, err := svc.ToggleFavori(ctx, a.ID, ""); !isValidation(err) {
			t.Fatalf("want validation error, got %v", err)
		}
	})
}

func TestCreateAnnonceValidation(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		bad := []club.AnnonceInput{
			{Titre: "   ", Type: "vente", Categorie: "poisson", Auteur: "alice"},
			{Titre: "T", Categorie: "poisson", Auteur: "alice"},
			{Titre: "T", Type: "vente", Auteur: "alice"},
			{Titre: "T", Type: "vente", Categorie: "poisson"},
		}
		for _, in := range bad {
			if _, err := svc.CreateAnnonce(ctx, in); !isValidation(err) {
				t.Fatalf("%+v: want validation error, got %v", in, err)
			}
		}
		ads, _ := svc.ListAnnonces(ctx)
		if len(ads) != 0 {
			t.Fatalf("nothing should be stored: %v", ads)
		}
	})
}

func TestTogglePrivateOwnership(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		a := createAd(t, svc, "alice")

		if _, err := svc.TogglePrivate(ctx, a.ID, "mallory"); !errors.Is(err, club.ErrForbidden) {
			t.Fatalf("want forbidden, got %v", err)
		}
		stored, _ := svc.Store.GetAnnonce(ctx, a.ID)
		if !stored.Prive {
			t.Fatal("prive changed by a refused toggle")
		}

		got, err := svc.TogglePrivate(ctx, a.ID, "alice")
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if got.Prive {
			t.Fatal("prive should now be false")
		}
		if _, err := svc.TogglePrivate(ctx, "missing", "alice"); !errors.Is(err, club.ErrNotFound) {
			t.Fatalf("want not found, got %v", err)
		}
	})
}

func TestDeleteAnnonceAuthorization(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		mine := createAd(t, svc, "alice")
		other := createAd(t, svc, "bob")
		third := createAd(t, svc, "carl")

		if err := svc.DeleteAnnonce(ctx, mine.ID, "mallory", "adhérent"); !errors.Is(err, club.ErrForbidden) {
			t.Fatalf("want forbidden, got %v", err)
		}
		if err := svc.DeleteAnnonce(ctx, mine.ID, "alice", ""); err != nil {
			t.Fatalf("author delete: %v", err)
		}
		if err := svc.DeleteAnnonce(ctx, other.ID, "root", club.RoleAdmin); err != nil {
			t.Fatalf("admin delete: %v", err)
		}
		if err := svc.DeleteAnnonce(ctx, third.ID, "zoe", club.RoleBureau); err != nil {
			t.Fatalf("bureau delete: %v", err)
		}
		if err := svc.DeleteAnnonce(ctx, mine.ID, "alice", ""); !errors.Is(err, club.ErrNotFound) {
			t.Fatalf("want not found, got %v", err)
		}
		if err := svc.DeleteAnnonce(ctx, mine.ID, "", ""); !isValidation(err) {
			t.Fatalf("want validation error, got %v", err)
		}

		ads, _ := svc.ListAnnonces(ctx)
		if len(ads) != 0 {
			t.Fatalf("ads left: %+v", ads)
		}
	})
}

func TestListAnnoncesNewestFirst(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		first := createAd(t, svc, "alice")
		second := createAd(t, svc, "bob")

		ads, err := svc.ListAnnonces(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(ads) != 2 || ads[0].ID != second.ID || ads[1].ID != first.ID {
			t.Fatalf("order: %+v", ads)
		}
	})
}

// ---------------------------------------------------------------------------
// Serre
// ---------------------------------------------------------------------------

func TestGetSerreDefaults(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		sr, err := svc.GetSerre(context.Background())
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if sr.Notes != "" || sr.Bacs == nil || len(sr.Bacs) != 0 || sr.Assignments == nil || sr.Feed.Items == nil {
			t.Fatalf("default serre: %+v", sr)
		}
		if sr.Feed.LastUpdate != nil || sr.Feed.MonthlyUseKg != 0 {
			t.Fatalf("default feed: %+v", sr.Feed)
		}
	})
}

func TestSaveNotes(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		if err := svc.SaveNotes(ctx, "arroser le bac 2"); err != nil {
			t.Fatalf("save: %v", err)
		}
		sr, _ := svc.GetSerre(ctx)
		if sr.Notes != "arroser le bac 2" {
			t.Fatalf("notes: %q", sr.Notes)
		}
		if err := svc.SaveNotes(ctx, 42.0); err != nil {
			t.Fatalf("save number: %v", err)
		}
		sr, _ = svc.GetSerre(ctx)
		if sr.Notes != "" {
			t.Fatalf("non-string notes should store empty text, got %q", sr.Notes)
		}
	})
}

func TestSaveBacs(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		err := svc.SaveBacs(ctx, []club.BacInput{
			{ID: "b1", Name: "Bac crevettes", LastWaterChange: "2024-02-01"},
			{ID: "b2"},
		}, club.AssignmentMap{"b1": {MembreID: "alice", Nom: "Alice"}})
		if err != nil {
			t.Fatalf("save: %v", err)
		}

		sr, _ := svc.GetSerre(ctx)
		if len(sr.Bacs) != 2 {
			t.Fatalf("bacs: %+v", sr.Bacs)
		}
		if sr.Bacs[0].ID != "b1" || sr.Bacs[0].LastWaterChange == nil || *sr.Bacs[0].LastWaterChange != "2024-02-01" {
			t.Fatalf("b1: %+v", sr.Bacs[0])
		}
		if sr.Bacs[0].LastFilterClean != nil {
			t.Fatalf("b1 filter date should be null: %+v", sr.Bacs[0])
		}
		if sr.Bacs[1].Name != club.DefaultBacName {
			t.Fatalf("b2 name: %q", sr.Bacs[1].Name)
		}
		if sr.Assignments["b1"].Nom != "Alice" {
			t.Fatalf("assignments: %+v", sr.Assignments)
		}

		if err := svc.SaveBacs(ctx, []club.BacInput{}, club.AssignmentMap{}); err != nil {
			t.Fatalf("clear: %v", err)
		}
		sr, _ = svc.GetSerre(ctx)
		if len(sr.Bacs) != 0 || len(sr.Assignments) != 0 {
			t.Fatalf("serre not cleared: %+v", sr)
		}

		if err := svc.SaveBacs(ctx, nil, nil); !isValidation(err) {
			t.Fatalf("want validation error, got %v", err)
		}
	})
}

func TestSaveBacsKeepsAssignmentsOfUnknownBacs(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		err := svc.SaveBacs(ctx, []club.BacInput{{ID: "b1"}}, club.AssignmentMap{
			"gone": {MembreID: "bob", Nom: "Bob"},
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		sr, err := svc.GetSerre(ctx)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if a, ok := sr.Assignments["gone"]; !ok || a.MembreID != "bob" || a.Nom != "Bob" {
			t.Fatalf("assignment of an unknown bac lost: %+v", sr.Assignments)
		}
		if len(sr.Bacs) != 1 || sr.Bacs[0].ID != "b1" {
			t.Fatalf("bacs: %+v", sr.Bacs)
		}
	})
}

func TestConcurrentSaveBacs(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		const writers = 6

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				owner := club.Text(fmt.Sprintf("m%d", w))
				err := svc.SaveBacs(ctx,
					[]club.BacInput{{ID: "b1", Name: owner}, {ID: "b2", Name: owner}},
					club.AssignmentMap{"b1": {MembreID: string(owner)}, "b2": {MembreID: string(owner)}},
				)
				if err != nil {
					errs <- err
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("save: %v", err)
		}

		sr, _ := svc.GetSerre(ctx)
		if len(sr.Bacs) != 2 || len(sr.Assignments) != 2 {
			t.Fatalf("want one writer's serre, got %+v", sr)
		}
		owner := sr.Bacs[0].Name
		if sr.Bacs[1].Name != owner || sr.Assignments["b1"].MembreID != owner || sr.Assignments["b2"].MembreID != owner {
			t.Fatalf("serre mixes writers: %+v", sr)
		}
	})
}

func TestSaveFeedScenario(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *club.Service) {
		ctx := context.Background()
		before := svc.Now()

		feed, err := svc.SaveFeed(ctx, []club.FeedItemInput{{Name: "granulés", Quantity: 2}, {ID: "keep", Name: "artémia", Unit: "g", Quantity: -1}}, 1.5)
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if feed.Items[0].ID == "" {
			t.Fatal("missing item id should be generated")
		}

		sr, _ := svc.GetSerre(ctx)
		f := sr.Feed
		if len(f.Items) != 2 {
			t.Fatalf("items: %+v", f.Items)
		}
		if f.Items[0].Unit != "kg" || f.Items[0].Quantity != 2 || f.Items[0].ID != feed.Items[0].ID {
			t.Fatalf("first item: %+v", f.Items[0])
		}
		if f.Items[1].ID != "keep" || f.Items[1].Unit != "g" || f.Items[1].Quantity != 0 {
			t.Fatalf("second item: %+v", f.Items[1])
		}
		if f.MonthlyUseKg != 1.5 {
			t.Fatalf("monthly use: %v", f.MonthlyUseKg)
		}
		if f.LastUpdate == nil || !f.LastUpdate.After(before) {
			t.Fatalf("lastUpdate %v should be after %v", f.LastUpdate, before)
		}

		if _, err := svc.SaveFeed(ctx, nil, 0); err != nil {
			t.Fatalf("empty save: %v", err)
		}
		sr, _ = svc.GetSerre(ctx)
		if len(sr.Feed.Items) != 0 {
			t.Fatalf("items should be replaced: %+v", sr.Feed.Items)
		}
	})
}

// ---------------------------------------------------------------------------
// Storage failures
// ---------------------------------------------------------------------------

type brokenStore struct {
	club.Store
}

var errDown = errors.New("backend down")

func (brokenStore) ListMembers(ctx context.Context) ([]club.Member, error) { return nil, errDown }
func (brokenStore) AppendLogin(ctx context.Context, e club.LoginHistoryEntry) error {
	return errDown
}

func TestStorageFailuresAreWrapped(t *testing.T) {
	svc := newService(t, brokenStore{Store: storage.NewMemoryStore()})
	ctx := context.Background()

	var serr *club.StorageError
	if _, err := svc.ListMembers(ctx); !errors.As(err, &serr) || !errors.Is(err, errDown) {
		t.Fatalf("want storage error, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "can", "29081623"); !errors.As(err, &serr) {
		t.Fatalf("a login that cannot be recorded must fail, got %v", err)
	}
}

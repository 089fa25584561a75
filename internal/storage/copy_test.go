package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"serreclub/internal/shared"

	"golang.org/x/crypto/bcrypt"
)

func TestCopyLegacyDocumentIntoSQL(t *testing.T) {
	old := shared.PasswordCost
	shared.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { shared.PasswordCost = old })

	src, path := tempFileStore(t)
	if err := os.WriteFile(path, []byte(legacyDoc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	dst := tempSQLStore(t)
	ctx := context.Background()

	stats, err := Copy(ctx, dst, src)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	want := CopyStats{Members: 2, Logins: 2, Population: 1, Annonces: 2, Bacs: 1, FeedItems: 1}
	if stats != want {
		t.Fatalf("stats: got %+v, want %+v", stats, want)
	}

	alice, _ := dst.GetMember(ctx, "alice")
	if alice == nil || !shared.IsPasswordHash(alice.PassHash) {
		t.Fatalf("alice credential not hashed: %+v", alice)
	}
	if ok, _ := shared.CheckPassword(alice.PassHash, "secret"); !ok {
		t.Fatal("hashed credential does not match the legacy password")
	}
	bob, _ := dst.GetMember(ctx, "bob")
	if bob == nil || bob.Role != "adhérent" {
		t.Fatalf("bob should get the default role: %+v", bob)
	}

	hist, _ := dst.ListLogins(ctx)
	if len(hist) != 2 || hist[0].Username != "can" || hist[1].Username != "alice" {
		t.Fatalf("history order: %+v", hist)
	}

	sr, _ := dst.GetSerre(ctx)
	if sr.Assignments["b1"].Nom != "Alice" || sr.Feed.MonthlyUseKg != 1.2 {
		t.Fatalf("serre: %+v", sr)
	}

	// A second import leaves existing annonces alone.
	stats, err = Copy(ctx, dst, src)
	if err != nil {
		t.Fatalf("second copy: %v", err)
	}
	if stats.Annonces != 0 {
		t.Fatalf("annonces copied twice: %+v", stats)
	}
}

func TestCopyHashesLongLegacyPasswords(t *testing.T) {
	old := shared.PasswordCost
	shared.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { shared.PasswordCost = old })

	long := strings.Repeat("z", 80)
	src, path := tempFileStore(t)
	doc := `{"members": [{"login": "alice", "pass": "` + long + `"}, {"login": "bob", "pass": "pw"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	dst := tempSQLStore(t)
	ctx := context.Background()

	stats, err := Copy(ctx, dst, src)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if stats.Members != 2 {
		t.Fatalf("members copied: %+v", stats)
	}
	alice, _ := dst.GetMember(ctx, "alice")
	if alice == nil || !shared.IsPasswordHash(alice.PassHash) {
		t.Fatalf("alice: %+v", alice)
	}
	if ok, _ := shared.CheckPassword(alice.PassHash, long); !ok {
		t.Fatal("long legacy password does not match after import")
	}
}

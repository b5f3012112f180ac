package postgres

import (
	"context"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap/zaptest"
)

// openTestDB connects to PRESENCE_TEST_DATABASE_URL or skips. Rows are
// created under a per-test id prefix and removed on cleanup, so the tests
// can share a database with other data.
func openTestDB(t *testing.T, driver string) (*sqlx.DB, string) {
	t.Helper()
	url := os.Getenv("PRESENCE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PRESENCE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, Options{Driver: driver, URL: url}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	prefix := "t" + ksuid.New().String() + "-"
	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM client_sessions WHERE id LIKE $1`, prefix+"%")
		db.ExecContext(ctx, `DELETE FROM users WHERE id LIKE $1`, prefix+"%")
		db.Close()
	})
	return db, prefix
}

func insertUser(t *testing.T, db *sqlx.DB, id string, status domain.UserStatus, lastActivity time.Time) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, name, status, last_activity) VALUES ($1, $1, $2, $3)`,
		id, int(status), lastActivity)
	if err != nil {
		t.Fatal(err)
	}
}

func onlyPrefixed[T any](items []T, prefix string, id func(T) string) []string {
	var ids []string
	for _, item := range items {
		if strings.HasPrefix(id(item), prefix) {
			ids = append(ids, strings.TrimPrefix(id(item), prefix))
		}
	}
	return ids
}

var drivers = []string{"pgx", "postgres"}

func TestSessionRepo_ScanStaleIncludesCutoff(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db, p := openTestDB(t, driver)
			repo := NewSessionRepo(db)
			ctx := context.Background()
			cutoff := time.Date(2024, 6, 3, 9, 26, 0, 0, time.UTC)

			for id, at := range map[string]time.Time{
				"at":     cutoff,
				"before": cutoff.Add(-time.Hour),
				"after":  cutoff.Add(time.Second),
			} {
				err := repo.Insert(ctx, &domain.ClientSession{ID: p + id, UserID: p + "u", LastActivity: at, LastClientActivity: at})
				if err != nil {
					t.Fatal(err)
				}
			}
			if err := repo.Insert(ctx, &domain.ClientSession{ID: p + "at", UserID: p + "u"}); err != domain.ErrSessionExists {
				t.Errorf("duplicate insert = %v, want ErrSessionExists", err)
			}

			stale, err := repo.ScanStaleOlderThan(ctx, cutoff)
			if err != nil {
				t.Fatal(err)
			}
			got := onlyPrefixed(stale, p, func(s domain.ClientSession) string { return s.ID })
			if !reflect.DeepEqual(got, []string{"at", "before"}) {
				t.Errorf("stale = %v, want [at before]", got)
			}

			if n, _ := repo.CountByUser(ctx, p+"u"); n != 3 {
				t.Errorf("CountByUser = %d, want 3", n)
			}
			repo.Delete(ctx, &domain.ClientSession{ID: p + "before"})
			if s, _ := repo.GetByID(ctx, p+"before"); s != nil {
				t.Errorf("deleted session still present: %+v", s)
			}
		})
	}
}

func TestUserRepo_ScanPredicatesAndRooms(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			db, p := openTestDB(t, driver)
			repo := NewUserRepo(db)
			ctx := context.Background()
			cutoff := time.Date(2024, 6, 3, 9, 24, 0, 0, time.UTC)

			insertUser(t, db, p+"idle", domain.StatusOnline, cutoff)
			insertUser(t, db, p+"fresh", domain.StatusOnline, cutoff.Add(time.Second))
			insertUser(t, db, p+"away", domain.StatusInactive, cutoff.Add(-time.Hour))
			insertUser(t, db, p+"gone", domain.StatusOffline, cutoff.Add(-time.Hour))

			repo.JoinRoom(ctx, p+"idle", "lobby")
			repo.JoinRoom(ctx, p+"idle", "dev")
			repo.JoinRoom(ctx, p+"idle", "dev")

			online, err := repo.ScanOnline(ctx)
			if err != nil {
				t.Fatal(err)
			}
			got := onlyPrefixed(online, p, func(u domain.User) string { return u.ID })
			if !reflect.DeepEqual(got, []string{"away", "fresh", "idle"}) {
				t.Errorf("online = %v, want [away fresh idle]", got)
			}

			inactive, err := repo.ScanOnlineInactiveSince(ctx, cutoff)
			if err != nil {
				t.Fatal(err)
			}
			if got := onlyPrefixed(inactive, p, func(u domain.User) string { return u.ID }); !reflect.DeepEqual(got, []string{"idle"}) {
				t.Errorf("inactive = %v, want [idle]", got)
			}

			idle, _ := repo.GetByID(ctx, p+"idle")
			if !reflect.DeepEqual(idle.Rooms, []string{"dev", "lobby"}) {
				t.Errorf("rooms = %v, want [dev lobby]", idle.Rooms)
			}
			fresh, _ := repo.GetByID(ctx, p+"fresh")
			if len(fresh.Rooms) != 0 {
				t.Errorf("user without rooms = %v, want none", fresh.Rooms)
			}

			idle.Status = domain.StatusInactive
			if err := repo.Update(ctx, idle); err != nil {
				t.Fatal(err)
			}
			repo.LeaveRoom(ctx, p+"idle", "dev")
			idle, _ = repo.GetByID(ctx, p+"idle")
			if idle.Status != domain.StatusInactive || !reflect.DeepEqual(idle.Rooms, []string{"lobby"}) {
				t.Errorf("after update and leave = %+v", idle)
			}
		})
	}
}

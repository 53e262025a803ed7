package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/accountgate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	// Skip if running short tests or Docker is not available
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, "postgres", pgContainer)
}

// createFreshStore creates a new store instance for test isolation
// For SQLite, each call creates a fresh :memory: database
// For PostgreSQL, each call creates a uniquely-named database in the container
func createFreshStore(
	t *testing.T,
	driver string,
	pgContainer *postgres.PostgresContainer,
	opts ...Option,
) *Store {
	t.Helper()

	var dsn string
	switch driver {
	case "sqlite":
		dsn = ":memory:"
	case "postgres":
		dbName := "test_" + uuid.New().String()[:8]
		ctx := context.Background()

		createDBCmd := fmt.Sprintf("CREATE DATABASE %s", dbName)
		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", createDBCmd},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			dropDBCmd := fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", dropDBCmd},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	store, err := New(driver, dsn, opts...)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func createAccount(t *testing.T, s *Store, name string) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:    uuid.New().String(),
		Email: name + "@example.com",
		Name:  name,
		Role:  models.RoleUser,
	}
	link := &models.IdentityLink{
		ID:                uuid.New().String(),
		AccountID:         account.ID,
		ProviderID:        models.ProviderCredential,
		ExternalAccountID: account.ID,
		PasswordHash:      "hash",
	}
	require.NoError(t, s.CreateAccountWithIdentity(account, link))
	return account
}

func createSession(
	t *testing.T,
	s *Store,
	accountID string,
	createdAt time.Time,
) *models.Session {
	t.Helper()
	session := &models.Session{
		ID:        uuid.New().String(),
		TokenHash: uuid.New().String(),
		AccountID: accountID,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}
	require.NoError(t, s.CreateSession(session))
	return session
}

// testBasicOperations tests store operations
// Each subtest creates a fresh store instance for isolation
func testBasicOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	t.Run("SeedDefaultAdmin", func(t *testing.T) {
		store := createFreshStore(
			t, driver, pgContainer,
			WithDefaultAdmin("Admin@Example.com", "correct-horse-battery"),
		)

		admin, err := store.GetAccountByEmail("admin@example.com")
		require.NoError(t, err)
		assert.True(t, admin.IsAdmin())
		assert.True(t, admin.EmailVerified)

		link, err := store.GetIdentityLink(admin.ID, models.ProviderCredential)
		require.NoError(t, err)
		assert.NoError(
			t,
			bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte("correct-horse-battery")),
		)
	})

	t.Run("AccountLookupsAndPagination", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		for i := range 12 {
			createAccount(t, store, fmt.Sprintf("user%02d", i))
		}

		byEmail, err := store.GetAccountByEmail("  USER03@example.com ")
		require.NoError(t, err)
		assert.Equal(t, "user03", byEmail.Name)

		byName, err := store.GetAccountByName("user04")
		require.NoError(t, err)
		assert.Equal(t, "user04@example.com", byName.Email)

		_, err = store.GetAccountByID("missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)

		page, pagination, err := store.ListAccounts(NewPaginationParams(2, 5, ""))
		require.NoError(t, err)
		assert.Len(t, page, 5)
		assert.Equal(t, int64(12), pagination.Total)
		assert.Equal(t, 3, pagination.TotalPages)

		found, _, err := store.ListAccounts(NewPaginationParams(1, 10, "USER1"))
		require.NoError(t, err)
		assert.Len(t, found, 2) // user10, user11

		count, err := store.CountAccounts()
		require.NoError(t, err)
		assert.Equal(t, int64(12), count)
	})

	t.Run("DuplicateEmailRejected", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		createAccount(t, store, "alice")

		dup := &models.Account{ID: uuid.New().String(), Email: "alice@example.com", Name: "alice2"}
		link := &models.IdentityLink{
			ID:                uuid.New().String(),
			AccountID:         dup.ID,
			ProviderID:        models.ProviderCredential,
			ExternalAccountID: dup.ID,
		}
		err := store.CreateAccountWithIdentity(dup, link)
		assert.ErrorIs(t, err, ErrDuplicateKey)

		_, err = store.GetAccountByID(dup.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound, "failed insert must not leave a partial account")
	})

	t.Run("IdentityUniqueness", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")
		bob := createAccount(t, store, "bob")

		gh := &models.IdentityLink{
			ID:                uuid.New().String(),
			AccountID:         alice.ID,
			ProviderID:        "github",
			ExternalAccountID: "gh-1",
		}
		require.NoError(t, store.CreateIdentityLink(gh))

		// Same provider twice on one account
		err := store.CreateIdentityLink(&models.IdentityLink{
			ID:                uuid.New().String(),
			AccountID:         alice.ID,
			ProviderID:        "github",
			ExternalAccountID: "gh-2",
		})
		assert.ErrorIs(t, err, ErrDuplicateKey)

		// Same external identity on another account
		err = store.CreateIdentityLink(&models.IdentityLink{
			ID:                uuid.New().String(),
			AccountID:         bob.ID,
			ProviderID:        "github",
			ExternalAccountID: "gh-1",
		})
		assert.ErrorIs(t, err, ErrDuplicateKey)

		owner, err := store.GetIdentityByExternalID("github", "gh-1")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, owner.AccountID)

		count, err := store.CountIdentityLinks(alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		links, err := store.ListIdentityLinks(alice.ID)
		require.NoError(t, err)
		assert.Len(t, links, 2)

		require.NoError(t, store.DeleteIdentityLink(gh.ID))
		_, err = store.GetIdentityLink(alice.ID, "github")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("SessionLifecycle", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")
		now := time.Now().UTC().Truncate(time.Millisecond)

		older := createSession(t, store, alice.ID, now.Add(-2*time.Hour))
		newer := createSession(t, store, alice.ID, now.Add(-time.Hour))
		expired := &models.Session{
			ID:        uuid.New().String(),
			TokenHash: uuid.New().String(),
			AccountID: alice.ID,
			CreatedAt: now.Add(-48 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		}
		require.NoError(t, store.CreateSession(expired))

		list, err := store.ListActiveSessions(alice.ID, now)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID, "most recent first")
		assert.Equal(t, older.ID, list[1].ID)

		got, err := store.GetSessionByTokenHash(older.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, older.ID, got.ID)

		require.NoError(t, store.SetSessionSuspended(older.ID, true))
		got, err = store.GetSessionByID(older.ID)
		require.NoError(t, err)
		assert.True(t, got.Suspended)

		active, err := store.CountActiveSessions()
		require.NoError(t, err)
		assert.Equal(t, int64(1), active)

		deleted, err := store.DeleteSession(newer.ID)
		require.NoError(t, err)
		assert.Equal(t, newer.TokenHash, deleted.TokenHash)

		_, err = store.DeleteSession(newer.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)

		all, err := store.DeleteSessionsByAccount(alice.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("PurgeExpiredSessions", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")
		now := time.Now().UTC().Truncate(time.Millisecond)

		live := createSession(t, store, alice.ID, now)
		require.NoError(t, store.CreateSession(&models.Session{
			ID:        uuid.New().String(),
			TokenHash: uuid.New().String(),
			AccountID: alice.ID,
			CreatedAt: now.Add(-48 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		}))

		purged, err := store.DeleteExpiredSessions(now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)
		_, err = store.GetSessionByID(live.ID)
		require.NoError(t, err)
	})

	t.Run("DeleteOtherSessionsRespectsCutoff", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")
		bob := createAccount(t, store, "bob")
		cutoff := time.Now().UTC().Truncate(time.Millisecond)

		current := createSession(t, store, alice.ID, cutoff.Add(-3*time.Hour))
		old1 := createSession(t, store, alice.ID, cutoff.Add(-2*time.Hour))
		old2 := createSession(t, store, alice.ID, cutoff)
		later := createSession(t, store, alice.ID, cutoff.Add(time.Second))
		bobs := createSession(t, store, bob.ID, cutoff.Add(-time.Hour))

		deleted, err := store.DeleteOtherSessionsCreatedBy(alice.ID, current.ID, cutoff)
		require.NoError(t, err)

		ids := []string{}
		for _, s := range deleted {
			ids = append(ids, s.ID)
		}
		assert.ElementsMatch(t, []string{old1.ID, old2.ID}, ids)

		for _, keep := range []*models.Session{current, later, bobs} {
			_, err := store.GetSessionByID(keep.ID)
			assert.NoError(t, err, "session %s should survive", keep.ID)
		}
	})

	t.Run("WithAccountLockSerialises", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")
		ctx := context.Background()

		// Read-modify-write of the name under the lock never loses an update.
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.WithAccountLock(ctx, alice.ID, func(tx *Store, acct *models.Account) error {
					acct.Image += "x"
					return tx.UpdateAccount(acct)
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.GetAccountByID(alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "xxxxxxxxxx", got.Image)

		err = store.WithAccountLock(ctx, "missing", func(*Store, *models.Account) error {
			t.Fatal("fn must not run for a missing account")
			return nil
		})
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("WithAccountLockRollsBack", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")
		ctx := context.Background()

		boom := fmt.Errorf("boom")
		err := store.WithAccountLock(ctx, alice.ID, func(tx *Store, acct *models.Account) error {
			if _, err := tx.DeleteSessionsByAccount(acct.ID); err != nil {
				return err
			}
			acct.Name = "renamed"
			if err := tx.UpdateAccount(acct); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetAccountByID(alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name)
	})

	t.Run("TwoFactorAndBackupCodes", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")

		_, err := store.GetTwoFactor(alice.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)

		cred := &models.TwoFactorCredential{
			AccountID:     alice.ID,
			State:         models.TwoFactorPendingEnrollment,
			PendingSecret: "SECRET",
		}
		require.NoError(t, store.SaveTwoFactor(cred))
		cred.State = models.TwoFactorEnabled
		cred.Enabled = true
		cred.Secret = cred.PendingSecret
		cred.PendingSecret = ""
		require.NoError(t, store.SaveTwoFactor(cred))

		got, err := store.GetTwoFactor(alice.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TwoFactorEnabled, got.State)
		assert.Equal(t, "SECRET", got.Secret)

		require.NoError(t, store.ReplaceBackupCodes(alice.ID, []string{"h1", "h2", "h3"}))
		require.NoError(t, store.ReplaceBackupCodes(alice.ID, []string{"h4", "h5"}))
		count, err := store.CountBackupCodes(alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		ok, err := store.ConsumeBackupCode(alice.ID, "h1")
		require.NoError(t, err)
		assert.False(t, ok, "replaced codes are gone")

		ok, err = store.ConsumeBackupCode(alice.ID, "h4")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.ConsumeBackupCode(alice.ID, "h4")
		require.NoError(t, err)
		assert.False(t, ok, "codes are single-use")

		require.NoError(t, store.DeleteTwoFactor(alice.ID))
		_, err = store.GetTwoFactor(alice.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
		count, err = store.CountBackupCodes(alice.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("VerificationTokensAreSingleUse", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")
		now := time.Now().UTC()

		token := &models.VerificationToken{
			ID:        uuid.New().String(),
			AccountID: alice.ID,
			Purpose:   models.PurposePasswordReset,
			TokenHash: "reset-hash",
			ExpiresAt: now.Add(time.Hour),
		}
		require.NoError(t, store.CreateVerificationToken(token))

		got, err := store.GetVerificationToken(models.PurposePasswordReset, "reset-hash")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.AccountID)

		require.NoError(t, store.ConsumeVerificationToken(token.ID, now))
		assert.ErrorIs(t, store.ConsumeVerificationToken(token.ID, now), ErrTokenAlreadyConsumed)

		other := &models.VerificationToken{
			ID:        uuid.New().String(),
			AccountID: alice.ID,
			Purpose:   models.PurposePasswordReset,
			TokenHash: "reset-hash-2",
			ExpiresAt: now.Add(time.Hour),
		}
		require.NoError(t, store.CreateVerificationToken(other))
		require.NoError(t, store.DeleteVerificationTokens(alice.ID, models.PurposePasswordReset))

		_, err = store.GetVerificationToken(models.PurposePasswordReset, "reset-hash-2")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("Passkeys", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")

		pk := &models.Passkey{
			ID:           uuid.New().String(),
			AccountID:    alice.ID,
			Name:         "laptop",
			CredentialID: "cred-1",
			PublicKey:    "pk",
		}
		require.NoError(t, store.CreatePasskey(pk))
		require.NoError(t, store.UpdatePasskeyCounter(pk.ID, 5))

		got, err := store.GetPasskeyByCredentialID("cred-1")
		require.NoError(t, err)
		assert.Equal(t, uint32(5), got.Counter)

		list, err := store.ListPasskeys(alice.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, store.DeletePasskey(pk.ID))
		_, err = store.GetPasskey(pk.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("BanAndCascadeDelete", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		alice := createAccount(t, store, "alice")
		createAccount(t, store, "bob")
		createSession(t, store, alice.ID, time.Now().UTC())
		require.NoError(t, store.ReplaceBackupCodes(alice.ID, []string{"h1"}))

		past := time.Now().UTC().Add(-time.Hour)
		require.NoError(t, store.SetBan(alice.ID, true, "spam", nil))
		banned, err := store.CountBannedAccounts()
		require.NoError(t, err)
		assert.Equal(t, int64(1), banned)

		require.NoError(t, store.SetBan(alice.ID, true, "spam", &past))
		banned, err = store.CountBannedAccounts()
		require.NoError(t, err)
		assert.Zero(t, banned, "elapsed bans are not counted")

		var sessions []models.Session
		err = store.WithAccountLock(
			context.Background(),
			alice.ID,
			func(tx *Store, acct *models.Account) error {
				var err error
				sessions, err = tx.DeleteAccountCascade(acct.ID)
				return err
			},
		)
		require.NoError(t, err)
		assert.Len(t, sessions, 1)

		_, err = store.GetAccountByID(alice.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
		links, err := store.ListIdentityLinks(alice.ID)
		require.NoError(t, err)
		assert.Empty(t, links)
		count, err := store.CountBackupCodes(alice.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("AuditLogs", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		now := time.Now().UTC()

		entries := []*models.AuditLog{}
		for i := range 5 {
			entries = append(entries, &models.AuditLog{
				ID:             uuid.New().String(),
				EventType:      models.EventAuthenticationSuccess,
				EventTime:      now.Add(time.Duration(i) * time.Second),
				Severity:       models.SeverityInfo,
				ActorAccountID: "acct-1",
				Action:         "Signed in",
				Success:        i%2 == 0,
				Details:        models.AuditDetails{"method": "email"},
				CreatedAt:      now.Add(-time.Duration(i) * 24 * time.Hour),
			})
		}
		require.NoError(t, store.CreateAuditLogBatch(entries))

		success := true
		logs, pagination, err := store.GetAuditLogsPaginated(
			NewPaginationParams(1, 10, ""),
			AuditLogFilters{ActorAccountID: "acct-1", Success: &success},
		)
		require.NoError(t, err)
		assert.Len(t, logs, 3)
		assert.Equal(t, int64(3), pagination.Total)
		assert.Equal(t, "email", logs[0].Details["method"])

		removed, err := store.DeleteOldAuditLogs(now.Add(-36 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)
	})

	t.Run("Health", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		assert.NoError(t, store.Health(context.Background()))
	})
}

func TestGetDialector(t *testing.T) {
	tests := []struct {
		driver  string
		dsn     string
		wantErr bool
	}{
		{"sqlite", ":memory:", false},
		{"SQLite3", ":memory:", false},
		{"postgresql", "host=localhost", false},
		{"pgx", "host=localhost", false},
		{"oracle", "dsn", true},
		{"sqlite", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := GetDialector(tt.driver, tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, canonicalDriver(tt.driver), d.Name())
		})
	}
}

func TestCalculatePagination(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		page  int
		size  int
		want  PaginationResult
	}{
		{"empty", 0, 1, 10, PaginationResult{CurrentPage: 1, PageSize: 10}},
		{"middle", 25, 2, 10, PaginationResult{
			Total: 25, TotalPages: 3, CurrentPage: 2, PageSize: 10, HasPrev: true, HasNext: true,
		}},
		{"past the end", 25, 9, 10, PaginationResult{
			Total: 25, TotalPages: 3, CurrentPage: 3, PageSize: 10, HasPrev: true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculatePagination(tt.total, tt.page, tt.size))
		})
	}
}

func TestNewPaginationParams(t *testing.T) {
	assert.Equal(t, PaginationParams{Page: 1, PageSize: 10}, NewPaginationParams(0, 0, ""))
	assert.Equal(t, PaginationParams{Page: 3, PageSize: 100, Search: "x"}, NewPaginationParams(3, 500, "x"))
	assert.Equal(t, 40, NewPaginationParams(3, 20, "").offset())
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finanzas/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createTestUser(t *testing.T, repo *Repository) core.User {
	t.Helper()
	user := core.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Name:         "Test",
		CreatedAt:    time.Now(),
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createTestAccount(t *testing.T, repo *Repository, userID string) core.Account {
	t.Helper()
	account := core.Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      "Cuenta " + uuid.NewString()[:8],
		Type:      core.AccountChecking,
		Balance:   decimal.Zero,
		CreatedAt: time.Now(),
	}
	if err := repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func anyCategoryID(t *testing.T, repo *Repository, userID string) string {
	t.Helper()
	categories, err := repo.ListCategories(context.Background(), userID)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) == 0 {
		t.Fatal("no categories after migration")
	}
	return categories[0].ID
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestMigrationsSeedPredefinedCategories(t *testing.T) {
	repo := newTestRepo(t)
	categories, err := repo.ListCategories(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 16 {
		t.Fatalf("predefined categories = %d, want 16", len(categories))
	}
	for _, c := range categories {
		if !c.IsPredefined {
			t.Errorf("category %s not marked predefined", c.Name)
		}
	}
}

func TestUserLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)

	got, err := repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("id = %s, want %s", got.ID, user.ID)
	}

	dup := user
	dup.ID = uuid.NewString()
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email error = %v, want ErrDuplicate", err)
	}

	if err := repo.DeleteUserData(ctx, user.ID); err != nil {
		t.Fatalf("delete user data: %v", err)
	}
	if _, err := repo.GetUserByID(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
}

func TestAccountBalanceAdjustment(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)
	account := createTestAccount(t, repo, user.ID)

	if err := repo.AdjustAccountBalance(ctx, user.ID, account.ID, dec(t, "-42.50")); err != nil {
		t.Fatalf("adjust balance: %v", err)
	}
	if err := repo.AdjustAccountBalance(ctx, user.ID, account.ID, dec(t, "100")); err != nil {
		t.Fatalf("adjust balance: %v", err)
	}

	got, err := repo.GetAccount(ctx, user.ID, account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !got.Balance.Equal(dec(t, "57.5")) {
		t.Errorf("balance = %s, want 57.5", got.Balance)
	}
}

func TestAccountOwnershipEnforced(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := createTestUser(t, repo)
	other := createTestUser(t, repo)
	account := createTestAccount(t, repo, owner.ID)

	if _, err := repo.GetAccount(ctx, other.ID, account.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user read: err = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteAccount(ctx, other.ID, account.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user delete: err = %v, want ErrNotFound", err)
	}
}

func TestAccountDeleteBlockedByTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)
	account := createTestAccount(t, repo, user.ID)
	categoryID := anyCategoryID(t, repo, user.ID)

	tx := core.Transaction{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		AccountID:     account.ID,
		CategoryID:    categoryID,
		Date:          time.Now(),
		Amount:        dec(t, "-10"),
		Type:          core.Expense,
		Description:   "Compra",
		PaymentMethod: core.PaymentCash,
		Currency:      "EUR",
		CreatedAt:     time.Now(),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	if err := repo.DeleteAccount(ctx, user.ID, account.ID); !errors.Is(err, ErrAccountInUse) {
		t.Errorf("delete with transactions: err = %v, want ErrAccountInUse", err)
	}

	if err := repo.DeleteTransaction(ctx, user.ID, tx.ID); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}
	if err := repo.DeleteAccount(ctx, user.ID, account.ID); err != nil {
		t.Errorf("delete empty account: %v", err)
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)
	account := createTestAccount(t, repo, user.ID)
	categoryID := anyCategoryID(t, repo, user.ID)

	tx := core.Transaction{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		AccountID:     account.ID,
		CategoryID:    categoryID,
		Date:          time.Date(2025, 6, 10, 0, 0, 0, 0, time.Local),
		Amount:        dec(t, "-54.30"),
		Type:          core.Expense,
		Description:   "Compra semanal",
		PaymentMethod: core.PaymentDebitCard,
		Merchant:      "Mercadona",
		Tags:          []string{"comida", "semanal"},
		Currency:      "EUR",
		CreatedAt:     time.Now(),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	got, err := repo.GetTransactionRecord(ctx, user.ID, tx.ID)
	if err != nil {
		t.Fatalf("get transaction record: %v", err)
	}
	if !got.Amount.Equal(tx.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, tx.Amount)
	}
	if got.AccountName != account.Name {
		t.Errorf("account name = %q, want %q", got.AccountName, account.Name)
	}
	if got.CategoryName == "" {
		t.Error("category name not joined")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "comida" {
		t.Errorf("tags = %v", got.Tags)
	}
	if !got.Date.Equal(tx.Date) {
		t.Errorf("date = %v, want %v", got.Date, tx.Date)
	}
}

func TestTransactionsSinceFiltersAndJoins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)
	account := createTestAccount(t, repo, user.ID)
	categoryID := anyCategoryID(t, repo, user.ID)

	now := time.Now()
	mk := func(daysAgo int, amount string) {
		tx := core.Transaction{
			ID:            uuid.NewString(),
			UserID:        user.ID,
			AccountID:     account.ID,
			CategoryID:    categoryID,
			Date:          now.AddDate(0, 0, -daysAgo),
			Amount:        dec(t, amount),
			Type:          core.Expense,
			Description:   "x",
			PaymentMethod: core.PaymentCash,
			Currency:      "EUR",
			CreatedAt:     now,
		}
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}
	mk(1, "-10")
	mk(5, "-20")
	mk(120, "-30") // outside the window

	got, err := repo.TransactionsSince(ctx, user.ID, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("transactions since: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("transactions = %d, want 2", len(got))
	}
	for _, tr := range got {
		if tr.Category == "" {
			t.Error("category name not joined")
		}
	}
}

func TestBudgetsForMonthAndUniqueness(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)
	categoryID := anyCategoryID(t, repo, user.ID)

	budget := core.Budget{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		CategoryID: categoryID,
		Month:      "2025-06",
		Amount:     dec(t, "200"),
		CreatedAt:  time.Now(),
	}
	if err := repo.CreateBudget(ctx, budget); err != nil {
		t.Fatalf("create budget: %v", err)
	}

	dup := budget
	dup.ID = uuid.NewString()
	if err := repo.CreateBudget(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate budget error = %v, want ErrDuplicate", err)
	}

	entries, err := repo.BudgetsForMonth(ctx, user.ID, "2025-06")
	if err != nil {
		t.Fatalf("budgets for month: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Category == "" {
		t.Error("category name not joined")
	}
	if !entries[0].Amount.Equal(dec(t, "200")) {
		t.Errorf("amount = %s, want 200", entries[0].Amount)
	}

	other, err := repo.BudgetsForMonth(ctx, user.ID, "2025-07")
	if err != nil {
		t.Fatalf("budgets for other month: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other month entries = %d, want 0", len(other))
	}
}

func TestSpentByCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)
	account := createTestAccount(t, repo, user.ID)
	categoryID := anyCategoryID(t, repo, user.ID)

	month := time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local)
	mk := func(day int, amount string, txType core.TransactionType) {
		tx := core.Transaction{
			ID:            uuid.NewString(),
			UserID:        user.ID,
			AccountID:     account.ID,
			CategoryID:    categoryID,
			Date:          month.AddDate(0, 0, day-1),
			Amount:        dec(t, amount),
			Type:          txType,
			Description:   "x",
			PaymentMethod: core.PaymentCash,
			Currency:      "EUR",
			CreatedAt:     time.Now(),
		}
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}
	mk(5, "-50", core.Expense)
	mk(10, "-30", core.Expense)
	mk(12, "2000", core.Income)    // income ignored
	mk(40, "-99", core.Expense)    // next month, ignored

	sums, err := repo.SpentByCategory(ctx, user.ID, "2025-06")
	if err != nil {
		t.Fatalf("spent by category: %v", err)
	}
	if !sums[categoryID].Equal(dec(t, "80")) {
		t.Errorf("spent = %s, want 80", sums[categoryID])
	}
}

func TestSessionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)

	session := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := repo.GetSession(ctx, session.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("user id = %s, want %s", got.UserID, user.ID)
	}

	expired := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := repo.CreateSession(ctx, expired); err != nil {
		t.Fatalf("create expired session: %v", err)
	}

	n, err := repo.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		t.Fatalf("delete expired sessions: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := repo.GetSession(ctx, session.Token); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}

func TestCategoryDeleteRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)

	own := core.Category{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      "Mascotas",
		CreatedAt: time.Now(),
	}
	if err := repo.CreateCategory(ctx, own); err != nil {
		t.Fatalf("create category: %v", err)
	}

	if err := repo.UpdateCategory(ctx, user.ID, own.ID, "Animales"); err != nil {
		t.Errorf("rename own category: %v", err)
	}

	// Predefined categories are immutable.
	predefID := anyCategoryID(t, repo, user.ID)
	if err := repo.UpdateCategory(ctx, user.ID, predefID, "Otra cosa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("predefined rename error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteCategory(ctx, user.ID, predefID); !errors.Is(err, ErrNotFound) {
		t.Errorf("predefined delete error = %v, want ErrNotFound", err)
	}

	// A referenced category is protected.
	account := createTestAccount(t, repo, user.ID)
	tx := core.Transaction{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		AccountID:     account.ID,
		CategoryID:    own.ID,
		Date:          time.Now(),
		Amount:        dec(t, "-5"),
		Type:          core.Expense,
		Description:   "pienso",
		PaymentMethod: core.PaymentCash,
		Currency:      "EUR",
		CreatedAt:     time.Now(),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if err := repo.DeleteCategory(ctx, user.ID, own.ID); !errors.Is(err, ErrCategoryInUse) {
		t.Errorf("in-use delete error = %v, want ErrCategoryInUse", err)
	}

	if err := repo.DeleteTransaction(ctx, user.ID, tx.ID); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}
	if err := repo.DeleteCategory(ctx, user.ID, own.ID); err != nil {
		t.Errorf("unused category delete: %v", err)
	}
}

func TestSettingsUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo)

	settings, err := repo.GetOrCreateSettings(ctx, user.ID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if settings.Language != "es" || settings.Currency != "EUR" {
		t.Errorf("defaults = %+v", settings)
	}

	settings.Language = "en"
	settings.Currency = "USD"
	settings.UpdatedAt = time.Now()
	if err := repo.UpsertSettings(ctx, settings); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetOrCreateSettings(ctx, user.ID)
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if got.Language != "en" || got.Currency != "USD" {
		t.Errorf("after upsert = %+v", got)
	}
}

package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/miglopesdev98/library-service/internal/models"
	"github.com/miglopesdev98/library-service/internal/repositories"
)

// newTestDB opens a temp-file SQLite database with busy-timeout and foreign
// keys enabled, migrates the schema and cleans up with the test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dsn := "file:" + path + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type testEnv struct {
	db           *gorm.DB
	userRepo     repositories.UserRepository
	bookRepo     repositories.BookRepository
	checkoutRepo repositories.CheckoutRepository
	library      *libraryService
	books        *bookService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	userRepo := repositories.NewUserRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	checkoutRepo := repositories.NewCheckoutRepository(db)
	return &testEnv{
		db:           db,
		userRepo:     userRepo,
		bookRepo:     bookRepo,
		checkoutRepo: checkoutRepo,
		library:      NewLibraryService(db, userRepo, bookRepo, checkoutRepo).(*libraryService),
		books:        NewBookService(db, bookRepo, checkoutRepo, 10).(*bookService),
	}
}

func (e *testEnv) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "x",
		DateJoined:   time.Now().UTC(),
	}
	require.NoError(t, e.userRepo.Create(nil, user))
	return user
}

func (e *testEnv) seedBook(t *testing.T, isbn string, totalCopies int) *models.Book {
	t.Helper()
	book := &models.Book{
		Title:           "Test Book",
		Author:          "Test Author",
		ISBN:            isbn,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
		DateAdded:       time.Now().UTC(),
	}
	require.NoError(t, e.bookRepo.Create(nil, book))
	return book
}

func (e *testEnv) reloadBook(t *testing.T, id interface{}) *models.Book {
	t.Helper()
	var book models.Book
	require.NoError(t, e.db.First(&book, "id = ?", id).Error)
	return &book
}

// assertInvariant checks 0 <= available <= total and
// available == total - open checkouts for the given book.
func (e *testEnv) assertInvariant(t *testing.T, bookID interface{}) {
	t.Helper()
	var book models.Book
	require.NoError(t, e.db.First(&book, "id = ?", bookID).Error)

	var open int64
	require.NoError(t, e.db.Model(&models.Checkout{}).
		Where("book_id = ? AND return_date IS NULL", bookID).
		Count(&open).Error)

	require.GreaterOrEqual(t, book.AvailableCopies, 0)
	require.LessOrEqual(t, book.AvailableCopies, book.TotalCopies)
	require.Equal(t, int64(book.TotalCopies)-open, int64(book.AvailableCopies))
}

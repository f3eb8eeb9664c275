package services

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miglopesdev98/library-service/internal/models"
	"github.com/miglopesdev98/library-service/internal/repositories"
)

// LoanPeriodDays is the default loan length applied when a checkout request
// does not name a due date.
const LoanPeriodDays = 14

// UnknownBookTitle is the sentinel title used in listings when the referenced
// book row is gone.
const UnknownBookTitle = "Unknown Book"

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrBookNotFound is returned when the requested book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrCheckoutNotFound is returned when the referenced checkout does not exist.
	ErrCheckoutNotFound = errors.New("checkout not found")

	// ErrNoCopiesAvailable is returned when every copy of the book is already
	// checked out.
	ErrNoCopiesAvailable = errors.New("no available copies of this book")

	// ErrAlreadyCheckedOut is returned when the user already holds an open
	// checkout for the same book.
	ErrAlreadyCheckedOut = errors.New("user already has this book checked out")

	// ErrAlreadyReturned is returned when a return is attempted on a checkout
	// that has already been marked returned.
	ErrAlreadyReturned = errors.New("checkout already returned")

	// ErrInventoryDrift is returned when a return would push available_copies
	// past total_copies. That can only happen after invariant drift, so the
	// transaction is rolled back rather than clamping the counter.
	ErrInventoryDrift = errors.New("available copies inconsistent with open checkouts")
)

// ─── Service Interface ────────────────────────────────────────────────────────

// UserCheckout is a checkout row enriched for a per-user listing.
type UserCheckout struct {
	ID           uuid.UUID  `json:"id"`
	BookID       uuid.UUID  `json:"book_id"`
	BookTitle    string     `json:"book_title"`
	CheckoutDate time.Time  `json:"checkout_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date"`
	IsOverdue    bool       `json:"is_overdue"`
}

// OverdueCheckout is an open past-due checkout enriched for the overdue report.
type OverdueCheckout struct {
	CheckoutID   uuid.UUID `json:"checkout_id"`
	BookID       uuid.UUID `json:"book_id"`
	BookTitle    string    `json:"book_title"`
	UserID       uuid.UUID `json:"user_id"`
	CheckoutDate time.Time `json:"checkout_date"`
	DueDate      time.Time `json:"due_date"`
	DaysOverdue  int       `json:"days_overdue"`
}

// AuditFinding describes one book whose materialized counter diverged from the
// count derived from its open checkouts.
type AuditFinding struct {
	BookID            uuid.UUID `json:"book_id"`
	Title             string    `json:"title"`
	TotalCopies       int       `json:"total_copies"`
	AvailableCopies   int       `json:"available_copies"`
	OpenCheckouts     int64     `json:"open_checkouts"`
	ExpectedAvailable int64     `json:"expected_available"`
}

// AuditReport is the result of an inventory reconciliation sweep.
type AuditReport struct {
	CheckedAt    time.Time      `json:"checked_at"`
	BooksAudited int            `json:"books_audited"`
	Findings     []AuditFinding `json:"findings"`
}

// LibraryService is the checkout/return engine. Every mutation runs inside a
// single transaction; a failed precondition rolls the whole thing back.
type LibraryService interface {
	CheckoutBook(bookID, userID uuid.UUID, dueDate *time.Time) (*models.Checkout, error)
	ReturnCheckout(checkoutID uuid.UUID) (*models.Checkout, error)

	ListUserCheckouts(userID uuid.UUID, activeOnly bool) ([]UserCheckout, error)
	ListOverdue() ([]OverdueCheckout, error)

	AuditInventory() (*AuditReport, error)
}

// ─── Implementation ───────────────────────────────────────────────────────────

type libraryService struct {
	db           *gorm.DB
	userRepo     repositories.UserRepository
	bookRepo     repositories.BookRepository
	checkoutRepo repositories.CheckoutRepository
	now          func() time.Time
}

// NewLibraryService wires up all dependencies and returns a LibraryService.
func NewLibraryService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	bookRepo repositories.BookRepository,
	checkoutRepo repositories.CheckoutRepository,
) LibraryService {
	return &libraryService{
		db:           db,
		userRepo:     userRepo,
		bookRepo:     bookRepo,
		checkoutRepo: checkoutRepo,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ─── Checkout ─────────────────────────────────────────────────────────────────

// CheckoutBook implements the transactional checkout flow.
//
// Precondition order: book exists → user exists → copies available → no open
// checkout for the same (book, user) pair. The decrement itself is a
// conditional update (available_copies > 0 in the WHERE clause), so two racing
// checkouts of the last copy cannot both succeed: the loser sees zero rows
// affected and fails with ErrNoCopiesAvailable.
func (s *libraryService) CheckoutBook(bookID, userID uuid.UUID, dueDate *time.Time) (*models.Checkout, error) {
	now := s.now()

	if dueDate != nil && !dueDate.After(now) {
		return nil, invalidField("due_date", "due date must be in the future")
	}

	var result *models.Checkout

	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByID(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		if _, err := s.userRepo.GetByID(tx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if book.AvailableCopies <= 0 {
			return ErrNoCopiesAvailable
		}

		if _, err := s.checkoutRepo.FindOpen(tx, bookID, userID); err == nil {
			log.Printf("[WARN] CheckoutBook: user %s already holds book %s", userID, bookID)
			return ErrAlreadyCheckedOut
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ok, err := s.bookRepo.DecrementAvailable(tx, bookID)
		if err != nil {
			log.Printf("[ERROR] CheckoutBook: decrement failed for book %s: %v", bookID, err)
			return err
		}
		if !ok {
			// Lost the race for the last copy.
			return ErrNoCopiesAvailable
		}

		due := now.AddDate(0, 0, LoanPeriodDays)
		if dueDate != nil {
			due = dueDate.UTC()
		}

		checkout := &models.Checkout{
			BookID:       bookID,
			UserID:       userID,
			CheckoutDate: now,
			DueDate:      due,
		}
		if err := s.checkoutRepo.Create(tx, checkout); err != nil {
			log.Printf("[ERROR] CheckoutBook: failed to create checkout record: %v", err)
			return err
		}
		result = checkout
		log.Printf("[INFO] CheckoutBook: checkout created (id=%s) for user %s / book %s, due %s",
			checkout.ID, userID, bookID, due.Format("2006-01-02"))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ─── Return ───────────────────────────────────────────────────────────────────

// ReturnCheckout implements the transactional return flow.
//
// MarkReturned carries a return_date IS NULL guard, so of two concurrent
// returns exactly one wins; the loser gets ErrAlreadyReturned and the counter
// moves once. The increment refuses to exceed total_copies — zero rows
// affected there means the stored counter no longer matches the open
// checkouts, and the transaction aborts with ErrInventoryDrift.
func (s *libraryService) ReturnCheckout(checkoutID uuid.UUID) (*models.Checkout, error) {
	var result *models.Checkout

	err := s.db.Transaction(func(tx *gorm.DB) error {
		checkout, err := s.checkoutRepo.GetByID(tx, checkoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCheckoutNotFound
			}
			return err
		}

		if !checkout.IsOpen() {
			log.Printf("[WARN] ReturnCheckout: checkout %s already returned at %s", checkoutID, checkout.ReturnDate)
			return ErrAlreadyReturned
		}

		now := s.now()
		ok, err := s.checkoutRepo.MarkReturned(tx, checkoutID, now)
		if err != nil {
			log.Printf("[ERROR] ReturnCheckout: failed to mark checkout %s returned: %v", checkoutID, err)
			return err
		}
		if !ok {
			return ErrAlreadyReturned
		}

		ok, err = s.bookRepo.IncrementAvailable(tx, checkout.BookID)
		if err != nil {
			log.Printf("[ERROR] ReturnCheckout: failed to release copy for book %s: %v", checkout.BookID, err)
			return err
		}
		if !ok {
			log.Printf("[ERROR] ReturnCheckout: book %s counter at cap with open checkout %s, aborting", checkout.BookID, checkoutID)
			return ErrInventoryDrift
		}

		checkout.ReturnDate = &now
		result = checkout
		log.Printf("[INFO] ReturnCheckout: checkout %s returned (book=%s, user=%s)", checkoutID, checkout.BookID, checkout.UserID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// ListUserCheckouts returns the user's checkouts, newest first, enriched with
// book titles and the overdue flag. activeOnly restricts to open checkouts.
func (s *libraryService) ListUserCheckouts(userID uuid.UUID, activeOnly bool) ([]UserCheckout, error) {
	checkouts, err := s.checkoutRepo.ListByUser(nil, userID, activeOnly)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := make([]UserCheckout, 0, len(checkouts))
	for _, c := range checkouts {
		result = append(result, UserCheckout{
			ID:           c.ID,
			BookID:       c.BookID,
			BookTitle:    bookTitleOrUnknown(&c.Book),
			CheckoutDate: c.CheckoutDate,
			DueDate:      c.DueDate,
			ReturnDate:   c.ReturnDate,
			IsOverdue:    c.IsOpen() && c.DueDate.Before(now),
		})
	}
	return result, nil
}

// ListOverdue returns every open checkout past its due date, with the overdue
// age in whole calendar days.
func (s *libraryService) ListOverdue() ([]OverdueCheckout, error) {
	now := s.now()
	checkouts, err := s.checkoutRepo.ListOverdue(nil, now)
	if err != nil {
		return nil, err
	}

	result := make([]OverdueCheckout, 0, len(checkouts))
	for _, c := range checkouts {
		result = append(result, OverdueCheckout{
			CheckoutID:   c.ID,
			BookID:       c.BookID,
			BookTitle:    bookTitleOrUnknown(&c.Book),
			UserID:       c.UserID,
			CheckoutDate: c.CheckoutDate,
			DueDate:      c.DueDate,
			DaysOverdue:  daysOverdue(c.DueDate, now),
		})
	}
	return result, nil
}

// ─── Reconciliation ───────────────────────────────────────────────────────────

// AuditInventory recomputes each book's expected available count from its open
// checkouts and reports any divergence from the stored counter. Read-only and
// off the hot path; a non-empty findings list means invariant drift.
func (s *libraryService) AuditInventory() (*AuditReport, error) {
	books, err := s.bookRepo.ListAll(nil)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		CheckedAt:    s.now(),
		BooksAudited: len(books),
		Findings:     []AuditFinding{},
	}
	for _, b := range books {
		open, err := s.checkoutRepo.CountOpenByBook(nil, b.ID)
		if err != nil {
			return nil, err
		}
		expected := int64(b.TotalCopies) - open
		if int64(b.AvailableCopies) != expected {
			log.Printf("[WARN] AuditInventory: drift on book %s: available=%d expected=%d (open=%d)",
				b.ID, b.AvailableCopies, expected, open)
			report.Findings = append(report.Findings, AuditFinding{
				BookID:            b.ID,
				Title:             b.Title,
				TotalCopies:       b.TotalCopies,
				AvailableCopies:   b.AvailableCopies,
				OpenCheckouts:     open,
				ExpectedAvailable: expected,
			})
		}
	}
	return report, nil
}

// ─── Internal Helpers ─────────────────────────────────────────────────────────

func bookTitleOrUnknown(b *models.Book) string {
	if b == nil || b.ID == uuid.Nil {
		return UnknownBookTitle
	}
	return b.Title
}

// daysOverdue computes whole calendar days between the due date and now, both
// truncated to midnight UTC, so a book due late yesterday counts as one day.
func daysOverdue(dueDate, now time.Time) int {
	dueMidnight := dueDate.UTC().Truncate(24 * time.Hour)
	nowMidnight := now.UTC().Truncate(24 * time.Hour)
	return int(nowMidnight.Sub(dueMidnight).Hours() / 24)
}

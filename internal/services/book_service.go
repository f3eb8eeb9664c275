package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miglopesdev98/library-service/internal/models"
	"github.com/miglopesdev98/library-service/internal/repositories"
)

// MaxBooksPerPage caps per_page regardless of what the client asks for.
const MaxBooksPerPage = 100

// ErrDuplicateISBN is returned when a create or update collides with another
// book's ISBN.
var ErrDuplicateISBN = errors.New("book with this ISBN already exists")

// BookInput carries the writable fields for creating a book.
type BookInput struct {
	Title         string
	Author        string
	ISBN          string
	Publisher     *string
	Description   *string
	PublishedDate *time.Time
	TotalCopies   int
}

// BookUpdate carries a partial update; nil fields are left untouched.
type BookUpdate struct {
	Title         *string
	Author        *string
	ISBN          *string
	Publisher     *string
	Description   *string
	PublishedDate *time.Time
	TotalCopies   *int
}

// BookPage is one page of catalog results.
type BookPage struct {
	Items       []models.Book `json:"items"`
	Total       int64         `json:"total"`
	Pages       int           `json:"pages"`
	CurrentPage int           `json:"current_page"`
}

// BookService manages the catalog: CRUD, pagination and substring search.
type BookService interface {
	List(page, perPage int, search string) (*BookPage, error)
	Get(id uuid.UUID) (*models.Book, error)
	Create(input BookInput) (*models.Book, error)
	Update(id uuid.UUID, update BookUpdate) (*models.Book, error)
	Delete(id uuid.UUID) error
}

type bookService struct {
	db             *gorm.DB
	bookRepo       repositories.BookRepository
	checkoutRepo   repositories.CheckoutRepository
	defaultPerPage int
	now            func() time.Time
}

// NewBookService returns a BookService. defaultPerPage is used when a listing
// request does not name a page size.
func NewBookService(
	db *gorm.DB,
	bookRepo repositories.BookRepository,
	checkoutRepo repositories.CheckoutRepository,
	defaultPerPage int,
) BookService {
	return &bookService{
		db:             db,
		bookRepo:       bookRepo,
		checkoutRepo:   checkoutRepo,
		defaultPerPage: defaultPerPage,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// List returns one page of books, most recently added first, optionally
// filtered by a case-insensitive substring match on title, author or ISBN.
func (s *bookService) List(page, perPage int, search string) (*BookPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = s.defaultPerPage
	}
	if perPage > MaxBooksPerPage {
		perPage = MaxBooksPerPage
	}

	books, total, err := s.bookRepo.List(nil, page, perPage, search)
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &BookPage{
		Items:       books,
		Total:       total,
		Pages:       pages,
		CurrentPage: page,
	}, nil
}

func (s *bookService) Get(id uuid.UUID) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// Create validates the input and inserts the book with available_copies
// initialized to total_copies. Validation runs before any store write.
func (s *bookService) Create(input BookInput) (*models.Book, error) {
	now := s.now()
	if err := validateBookFields(input.Title, input.Author, input.Publisher, now, input.PublishedDate); err != nil {
		return nil, err
	}
	if err := validateISBN(input.ISBN); err != nil {
		return nil, err
	}
	if input.TotalCopies < 0 {
		return nil, invalidField("total_copies", "total copies must not be negative")
	}

	book := &models.Book{
		Title:           input.Title,
		Author:          input.Author,
		ISBN:            input.ISBN,
		Publisher:       input.Publisher,
		Description:     input.Description,
		PublishedDate:   input.PublishedDate,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
		DateAdded:       now,
	}
	if err := s.bookRepo.Create(nil, book); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateISBN
		}
		log.Printf("[ERROR] CreateBook: failed to create book record: %v", err)
		return nil, err
	}
	log.Printf("[INFO] CreateBook: created book %q (id=%s) with %d copies", book.Title, book.ID, book.TotalCopies)
	return book, nil
}

// Update applies a partial update inside one transaction. Changing
// total_copies moves available_copies by the same delta; lowering
// total_copies below the number of currently open checkouts is rejected so
// the availability invariant can never be violated by a catalog edit.
func (s *bookService) Update(id uuid.UUID, update BookUpdate) (*models.Book, error) {
	var result *models.Book

	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.bookRepo.GetByID(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		now := s.now()
		if update.Title != nil {
			if *update.Title == "" || len(*update.Title) > 255 {
				return invalidField("title", "title must be 1-255 characters")
			}
			book.Title = *update.Title
		}
		if update.Author != nil {
			if *update.Author == "" || len(*update.Author) > 255 {
				return invalidField("author", "author must be 1-255 characters")
			}
			book.Author = *update.Author
		}
		if update.ISBN != nil {
			if err := validateISBN(*update.ISBN); err != nil {
				return err
			}
			book.ISBN = *update.ISBN
		}
		if update.Publisher != nil {
			if len(*update.Publisher) > 100 {
				return invalidField("publisher", "publisher must be at most 100 characters")
			}
			book.Publisher = update.Publisher
		}
		if update.Description != nil {
			book.Description = update.Description
		}
		if update.PublishedDate != nil {
			if err := validatePublishedDate(update.PublishedDate, now); err != nil {
				return err
			}
			book.PublishedDate = update.PublishedDate
		}
		if update.TotalCopies != nil {
			newTotal := *update.TotalCopies
			if newTotal < 0 {
				return invalidField("total_copies", "total copies must not be negative")
			}
			open, err := s.checkoutRepo.CountOpenByBook(tx, id)
			if err != nil {
				return err
			}
			if int64(newTotal) < open {
				return invalidField("total_copies",
					"total copies cannot be lower than the number of open checkouts")
			}
			book.AvailableCopies += newTotal - book.TotalCopies
			book.TotalCopies = newTotal
		}

		if err := s.bookRepo.Save(tx, book); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateISBN
			}
			log.Printf("[ERROR] UpdateBook: failed to save book %s: %v", id, err)
			return err
		}
		result = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] UpdateBook: updated book %s", id)
	return result, nil
}

// Delete removes the book; its checkouts go with it via the FK cascade.
func (s *bookService) Delete(id uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.bookRepo.GetByID(tx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		return s.bookRepo.Delete(tx, id)
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] DeleteBook: deleted book %s", id)
	return nil
}

func validateBookFields(title, author string, publisher *string, now time.Time, published *time.Time) error {
	if title == "" || len(title) > 255 {
		return invalidField("title", "title must be 1-255 characters")
	}
	if author == "" || len(author) > 255 {
		return invalidField("author", "author must be 1-255 characters")
	}
	if publisher != nil && len(*publisher) > 100 {
		return invalidField("publisher", "publisher must be at most 100 characters")
	}
	if err := validatePublishedDate(published, now); err != nil {
		return err
	}
	return nil
}

// isUniqueViolation matches unique-constraint failures from PostgreSQL
// (error code 23505) and SQLite (used by the test suite).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "UNIQUE constraint failed")
}

package repositories

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miglopesdev98/library-service/internal/models"
)

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.User, error)
	GetByEmail(db *gorm.DB, email string) (*models.User, error)
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	List(db *gorm.DB, page, perPage int, search string) ([]models.Book, int64, error)
	ListAll(db *gorm.DB) ([]models.Book, error)
	Save(db *gorm.DB, book *models.Book) error
	Delete(db *gorm.DB, id uuid.UUID) error

	// DecrementAvailable atomically takes one copy, refusing to go below zero.
	// Returns false when no copy was available.
	DecrementAvailable(db *gorm.DB, bookID uuid.UUID) (bool, error)

	// IncrementAvailable atomically releases one copy, refusing to exceed
	// total_copies. Returns false when the counter was already at the cap.
	IncrementAvailable(db *gorm.DB, bookID uuid.UUID) (bool, error)
}

type CheckoutRepository interface {
	Create(db *gorm.DB, checkout *models.Checkout) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Checkout, error)
	FindOpen(db *gorm.DB, bookID, userID uuid.UUID) (*models.Checkout, error)
	CountOpenByBook(db *gorm.DB, bookID uuid.UUID) (int64, error)

	// MarkReturned sets return_date on an open checkout. Returns false when the
	// checkout was already returned (or gone), so a concurrent double return loses.
	MarkReturned(db *gorm.DB, checkoutID uuid.UUID, returnedAt time.Time) (bool, error)

	ListByUser(db *gorm.DB, userID uuid.UUID, activeOnly bool) ([]models.Checkout, error)
	ListOverdue(db *gorm.DB, now time.Time) ([]models.Checkout, error)
}

// concrete implementations

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(db *gorm.DB, user *models.User) error {
	if db == nil {
		db = r.db
	}
	return db.Create(user).Error
}

func (r *userRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(db *gorm.DB, email string) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Create(book).Error
}

func (r *bookRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(db *gorm.DB, page, perPage int, search string) ([]models.Book, int64, error) {
	if db == nil {
		db = r.db
	}
	query := db.Model(&models.Book{})
	if search != "" {
		// LOWER on both sides keeps the match case-insensitive on Postgres and SQLite alike.
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var books []models.Book
	err := query.
		Order("date_added DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&books).Error
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func (r *bookRepository) ListAll(db *gorm.DB) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	var books []models.Book
	if err := db.Order("date_added DESC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) Save(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Save(book).Error
}

func (r *bookRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.Book{}, "id = ?", id).Error
}

func (r *bookRepository) DecrementAvailable(db *gorm.DB, bookID uuid.UUID) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Book{}).
		Where("id = ? AND available_copies > 0", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *bookRepository) IncrementAvailable(db *gorm.DB, bookID uuid.UUID) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Book{}).
		Where("id = ? AND available_copies < total_copies", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type checkoutRepository struct {
	db *gorm.DB
}

func NewCheckoutRepository(db *gorm.DB) CheckoutRepository {
	return &checkoutRepository{db: db}
}

func (r *checkoutRepository) Create(db *gorm.DB, checkout *models.Checkout) error {
	if db == nil {
		db = r.db
	}
	return db.Create(checkout).Error
}

func (r *checkoutRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Checkout, error) {
	if db == nil {
		db = r.db
	}
	var checkout models.Checkout
	if err := db.First(&checkout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &checkout, nil
}

func (r *checkoutRepository) FindOpen(db *gorm.DB, bookID, userID uuid.UUID) (*models.Checkout, error) {
	if db == nil {
		db = r.db
	}
	var checkout models.Checkout
	err := db.
		Where("book_id = ? AND user_id = ? AND return_date IS NULL", bookID, userID).
		First(&checkout).Error
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

func (r *checkoutRepository) CountOpenByBook(db *gorm.DB, bookID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.Checkout{}).
		Where("book_id = ? AND return_date IS NULL", bookID).
		Count(&count).Error
	return count, err
}

func (r *checkoutRepository) MarkReturned(db *gorm.DB, checkoutID uuid.UUID, returnedAt time.Time) (bool, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Checkout{}).
		Where("id = ? AND return_date IS NULL", checkoutID).
		Update("return_date", returnedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *checkoutRepository) ListByUser(db *gorm.DB, userID uuid.UUID, activeOnly bool) ([]models.Checkout, error) {
	if db == nil {
		db = r.db
	}
	query := db.Preload("Book").Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("return_date IS NULL")
	}
	var checkouts []models.Checkout
	if err := query.Order("checkout_date DESC").Find(&checkouts).Error; err != nil {
		return nil, err
	}
	return checkouts, nil
}

func (r *checkoutRepository) ListOverdue(db *gorm.DB, now time.Time) ([]models.Checkout, error) {
	if db == nil {
		db = r.db
	}
	var checkouts []models.Checkout
	err := db.
		Preload("Book").
		Where("return_date IS NULL AND due_date < ?", now).
		Find(&checkouts).Error
	if err != nil {
		return nil, err
	}
	return checkouts, nil
}

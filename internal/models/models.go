package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:200;not null" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	DateJoined   time.Time `gorm:"not null" json:"date_joined"`
}

type Book struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Author          string     `gorm:"size:255;not null" json:"author"`
	ISBN            string     `gorm:"size:13;uniqueIndex;not null" json:"isbn"`
	Publisher       *string    `gorm:"size:100" json:"publisher"`
	Description     *string    `gorm:"type:text" json:"description"`
	PublishedDate   *time.Time `json:"published_date"`
	TotalCopies     int        `gorm:"not null" json:"total_copies"`
	AvailableCopies int        `gorm:"not null" json:"available_copies"`
	DateAdded       time.Time  `gorm:"not null" json:"date_added"`
}

type Checkout struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BookID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"book_id"`
	Book         Book       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User         User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	CheckoutDate time.Time  `gorm:"not null" json:"checkout_date"`
	DueDate      time.Time  `gorm:"not null" json:"due_date"`
	ReturnDate   *time.Time `json:"return_date"`
}

// IsOpen reports whether the checkout has not been returned yet.
func (c *Checkout) IsOpen() bool {
	return c.ReturnDate == nil
}

// IDs are generated application-side so the same models work on Postgres and
// on the SQLite databases used in tests.

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (c *Checkout) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Migrate creates or updates the schema and the partial unique index that
// guarantees at most one open checkout per (book, user) pair. The index is the
// database-level backstop for the duplicate-checkout guard in the service layer.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &Book{}, &Checkout{}); err != nil {
		return err
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_checkout
		 ON checkouts (book_id, user_id) WHERE return_date IS NULL`,
	).Error
}

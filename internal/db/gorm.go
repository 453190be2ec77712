package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nuggetapp/nugget-back/internal/config"
)

const (
	StatusToRead   = "toread"
	StatusReading  = "reading"
	StatusFinished = "finished"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email    string `gorm:"unique;not null"`
		Password string `gorm:"not null"`
		Token    string `gorm:"not null"`
		Books    []Book
		Nuggets  []Nugget
	}

	Book struct {
		GormForkedModel
		Title         string `gorm:"not null"`
		Author        string `gorm:"not null"`
		Publisher     *string
		PublishedDate *string
		ISBN          *string `gorm:"column:isbn"`
		TotalPages    *int
		CurrentPage   int    `gorm:"not null;default:0"`
		Status        string `gorm:"not null;default:'toread'"`
		CoverURL      *string
		UserID        uint64 `gorm:"not null;index"`
		User          User
		Nuggets       []Nugget `gorm:"constraint:OnDelete:CASCADE"`
	}

	Nugget struct {
		GormForkedModel
		Content     string `gorm:"not null"`
		ContentHash string `gorm:"not null;uniqueIndex:uidx_user_book_content"`
		PageNumber  *int
		Note        *string
		Tags        []string `gorm:"serializer:json"`
		IsFavorite  bool     `gorm:"not null;default:false"`
		BookID      uint64   `gorm:"not null;uniqueIndex:uidx_user_book_content"`
		Book        Book
		UserID      uint64 `gorm:"not null;uniqueIndex:uidx_user_book_content"`
		User        User
	}

	SharedNugget struct {
		GormForkedModel
		ShareID   string `gorm:"unique;not null"`
		NuggetID  uint64 `gorm:"not null"`
		Nugget    Nugget `gorm:"constraint:OnDelete:CASCADE"`
		CreatedBy uint64 `gorm:"not null;index"`
		ViewCount uint64 `gorm:"not null;default:0"`
	}
)

// Progress is the one reading-progress policy: a whole percentage clamped to
// [0,100], with a missing or zero page total reported as 0.
func (b *Book) Progress() int {
	if b.TotalPages == nil || *b.TotalPages <= 0 {
		return 0
	}
	if b.CurrentPage <= 0 {
		return 0
	}
	if b.CurrentPage >= *b.TotalPages {
		return 100
	}
	return int(float64(b.CurrentPage)/float64(*b.TotalPages)*100 + 0.5)
}

func NewGormClient(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Info,
		Colorful:                  true,
		IgnoreRecordNotFoundError: false,
	})

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return errors.Wrap(err, "migrate user")
	}
	if err := db.AutoMigrate(&Book{}); err != nil {
		return errors.Wrap(err, "migrate book")
	}
	if err := db.AutoMigrate(&Nugget{}); err != nil {
		return errors.Wrap(err, "migrate nugget")
	}
	if err := db.AutoMigrate(&SharedNugget{}); err != nil {
		return errors.Wrap(err, "migrate shared nugget")
	}
	return nil
}

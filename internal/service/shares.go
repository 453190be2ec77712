package service

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nuggetapp/nugget-back/internal/db"
)

const shareIDLength = 10

var (
	ErrShareNotFound   = errors.New("share link not found")
	ErrDuplicateNugget = errors.New("you already have this nugget in your library")
)

type (
	Shares struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}

	// SharedView is what an unauthenticated visitor of a share link sees: the
	// nugget plus its parent book's public-safe fields.
	SharedView struct {
		Nugget db.Nugget
		Book   db.Book
	}

	SavedNugget struct {
		Book   db.Book
		Nugget db.Nugget
	}
)

func NewShares(db *gorm.DB, l *zap.SugaredLogger) *Shares {
	return &Shares{
		db:     db,
		logger: l,
	}
}

func (s *Shares) LinkCreate(user *db.User, nuggetID uint64) (*db.SharedNugget, error) {
	nugget := db.Nugget{}
	res := s.db.Where("user_id = ?", user.ID).First(&nugget, nuggetID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrNuggetNotFound
		}
		return nil, errors.Wrap(res.Error, "find nugget")
	}

	shareID, err := gonanoid.New(shareIDLength)
	if err != nil {
		return nil, errors.Wrap(err, "generate share id")
	}

	model := db.SharedNugget{
		ShareID:   shareID,
		NuggetID:  nugget.ID,
		CreatedBy: user.ID,
	}
	res = s.db.Create(&model)
	if res.Error != nil {
		return nil, res.Error
	}

	return &model, nil
}

func (s *Shares) LinkGet(user *db.User) ([]db.SharedNugget, error) {
	links := make([]db.SharedNugget, 0)
	res := s.db.Where("created_by = ?", user.ID).
		Order("created_at DESC, id DESC").
		Find(&links)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find links")
	}
	return links, nil
}

func (s *Shares) LinkDelete(user *db.User, shareID string) error {
	res := s.db.Where("share_id = ? AND created_by = ?", shareID, user.ID).
		Delete(&db.SharedNugget{})
	if res.Error != nil {
		return res.Error
	}
	return nil
}

// Resolve maps a public share token to its nugget and parent book. The lookup
// is deliberately unscoped: shared content is readable without authentication.
// The view counter bump is fire-and-forget, a failure there must not break the
// read path.
func (s *Shares) Resolve(shareID string) (*SharedView, error) {
	shared := db.SharedNugget{}
	res := s.db.Where("share_id = ?", shareID).First(&shared)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrShareNotFound
		}
		return nil, errors.Wrap(res.Error, "find share")
	}

	res = s.db.Model(&db.SharedNugget{}).
		Where("share_id = ?", shareID).
		Update("view_count", gorm.Expr("view_count + 1"))
	if res.Error != nil {
		s.logger.Errorw("bump view count", "share_id", shareID, "error", res.Error)
	}

	nugget := db.Nugget{}
	res = s.db.Preload("Book").First(&nugget, shared.NuggetID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrShareNotFound
		}
		return nil, errors.Wrap(res.Error, "find shared nugget")
	}

	view := SharedView{
		Nugget: nugget,
		Book:   nugget.Book,
	}
	view.Nugget.Book = db.Book{}
	return &view, nil
}

// Save copies a shared nugget into the acting user's own library. The user's
// existing book is reused when one matches by ISBN, or failing that by exact
// title and author; otherwise a new book is created with reading progress
// zeroed. An identical nugget already under that book is rejected with
// ErrDuplicateNugget.
//
// The sequence is not atomic; the unique index on (user, book, content hash)
// backstops two racing saves so the duplicate insert fails instead of slipping
// through.
func (s *Shares) Save(user *db.User, shareID string) (*SavedNugget, error) {
	view, err := s.Resolve(shareID)
	if err != nil {
		return nil, err
	}

	userBook, err := s.findOwnedBook(user, &view.Book)
	if err != nil {
		return nil, err
	}

	if userBook == nil {
		userBook = &db.Book{
			Title:         view.Book.Title,
			Author:        view.Book.Author,
			Publisher:     view.Book.Publisher,
			PublishedDate: view.Book.PublishedDate,
			ISBN:          view.Book.ISBN,
			TotalPages:    view.Book.TotalPages,
			Status:        db.StatusToRead,
			CoverURL:      view.Book.CoverURL,
			UserID:        user.ID,
		}
		res := s.db.Create(userBook)
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "create book")
		}
	}

	hash := ContentHash(view.Nugget.Content)
	existing := db.Nugget{}
	res := s.db.Where("user_id = ? AND book_id = ? AND content_hash = ?", user.ID, userBook.ID, hash).
		First(&existing)
	if res.Error == nil {
		return nil, ErrDuplicateNugget
	}
	if res.Error != gorm.ErrRecordNotFound {
		return nil, errors.Wrap(res.Error, "find existing nugget")
	}

	saved := db.Nugget{
		Content:     view.Nugget.Content,
		ContentHash: hash,
		PageNumber:  view.Nugget.PageNumber,
		Note:        view.Nugget.Note,
		Tags:        view.Nugget.Tags,
		BookID:      userBook.ID,
		UserID:      user.ID,
	}
	res = s.db.Create(&saved)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateNugget
		}
		return nil, errors.Wrap(res.Error, "create nugget")
	}

	return &SavedNugget{
		Book:   *userBook,
		Nugget: saved,
	}, nil
}

func (s *Shares) findOwnedBook(user *db.User, shared *db.Book) (*db.Book, error) {
	if shared.ISBN != nil && *shared.ISBN != "" {
		book := db.Book{}
		res := s.db.Where("user_id = ? AND isbn = ?", user.ID, *shared.ISBN).First(&book)
		if res.Error == nil {
			return &book, nil
		}
		if res.Error != gorm.ErrRecordNotFound {
			return nil, errors.Wrap(res.Error, "find book by isbn")
		}
	}

	book := db.Book{}
	res := s.db.Where("user_id = ? AND title = ? AND author = ?", user.ID, shared.Title, shared.Author).
		First(&book)
	if res.Error == nil {
		return &book, nil
	}
	if res.Error != gorm.ErrRecordNotFound {
		return nil, errors.Wrap(res.Error, "find book by title")
	}

	return nil, nil
}

package service

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nuggetapp/nugget-back/internal/db"
)

var ErrNuggetNotFound = errors.New("nugget not found")

type (
	Nuggets struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}

	NuggetCreateInput struct {
		BookID     uint64
		Content    string
		PageNumber *int
		Note       *string
		Tags       []string
	}

	NuggetUpdateInput struct {
		Content    *string
		PageNumber *int
		Note       *string
		Tags       []string
	}

	NuggetFilter struct {
		BookID        *uint64
		FavoritesOnly bool
	}
)

func NewNuggets(db *gorm.DB, l *zap.SugaredLogger) *Nuggets {
	return &Nuggets{
		db:     db,
		logger: l,
	}
}

func (s *Nuggets) NuggetGet(user *db.User, filter NuggetFilter) ([]db.Nugget, error) {
	q := s.db.Preload("Book").Where("user_id = ?", user.ID)
	if filter.BookID != nil {
		q = q.Where("book_id = ?", *filter.BookID)
	}
	if filter.FavoritesOnly {
		q = q.Where("is_favorite = ?", true)
	}

	nuggets := make([]db.Nugget, 0)
	res := q.Order("created_at DESC, id DESC").Find(&nuggets)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find nuggets")
	}

	return nuggets, nil
}

func (s *Nuggets) NuggetCreate(user *db.User, in NuggetCreateInput) (*db.Nugget, error) {
	book := db.Book{}
	res := s.db.Where("user_id = ?", user.ID).First(&book, in.BookID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrNuggetNotFound
		}
		return nil, errors.Wrap(res.Error, "find book")
	}

	model := db.Nugget{
		Content:     in.Content,
		ContentHash: ContentHash(in.Content),
		PageNumber:  in.PageNumber,
		Note:        in.Note,
		Tags:        in.Tags,
		BookID:      book.ID,
		UserID:      user.ID,
	}

	res = s.db.Create(&model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateNugget
		}
		return nil, res.Error
	}

	return &model, nil
}

func (s *Nuggets) NuggetUpdate(user *db.User, nuggetID uint64, in NuggetUpdateInput) (*db.Nugget, error) {
	model := db.Nugget{}
	res := s.db.Where("user_id = ?", user.ID).First(&model, nuggetID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, ErrNuggetNotFound
		}
		return nil, errors.Wrap(res.Error, "get model")
	}

	if in.Content != nil {
		model.Content = *in.Content
		model.ContentHash = ContentHash(*in.Content)
	}
	if in.PageNumber != nil {
		model.PageNumber = in.PageNumber
	}
	if in.Note != nil {
		model.Note = in.Note
	}
	if in.Tags != nil {
		model.Tags = in.Tags
	}

	res = s.db.Omit(clause.Associations).Save(&model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update model")
	}

	return &model, nil
}

// ToggleFavorite flips is_favorite in a single conditional update and returns
// the fresh row, so callers can replace any optimistic local state with the
// authoritative one.
func (s *Nuggets) ToggleFavorite(user *db.User, nuggetID uint64) (*db.Nugget, error) {
	res := s.db.Model(&db.Nugget{}).
		Where("id = ? AND user_id = ?", nuggetID, user.ID).
		Update("is_favorite", gorm.Expr("NOT is_favorite"))
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "toggle favorite")
	}
	if res.RowsAffected == 0 {
		return nil, ErrNuggetNotFound
	}

	model := db.Nugget{}
	if res := s.db.Where("user_id = ?", user.ID).First(&model, nuggetID); res.Error != nil {
		return nil, errors.Wrap(res.Error, "get model")
	}

	return &model, nil
}

func (s *Nuggets) NuggetDelete(user *db.User, nuggetID uint64) error {
	res := s.db.Where("user_id = ?", user.ID).Delete(&db.Nugget{}, nuggetID)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

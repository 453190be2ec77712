package service

import (
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nuggetapp/nugget-back/internal/db"
)

type (
	Books struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}

	BookCreateInput struct {
		Title         string
		Author        string
		Publisher     *string
		PublishedDate *string
		ISBN          *string
		TotalPages    *int
		CurrentPage   *int
		Status        *string
		CoverURL      *string
	}

	BookUpdateInput struct {
		Title         *string
		Author        *string
		Publisher     *string
		PublishedDate *string
		ISBN          *string
		TotalPages    *int
		CurrentPage   *int
		Status        *string
		CoverURL      *string
	}

	BookFilter struct {
		Status *string
		Query  *string
	}
)

func NewBooks(db *gorm.DB, l *zap.SugaredLogger) *Books {
	return &Books{
		db:     db,
		logger: l,
	}
}

func (s *Books) BookGet(user *db.User, filter BookFilter) ([]db.Book, error) {
	w := squirrel.And{
		squirrel.Eq{"user_id": user.ID},
	}
	if filter.Status != nil {
		w = append(w, squirrel.Eq{"status": *filter.Status})
	}
	if filter.Query != nil && *filter.Query != "" {
		pattern := "%" + strings.ToLower(*filter.Query) + "%"
		w = append(w, squirrel.Or{
			squirrel.Like{"lower(title)": pattern},
			squirrel.Like{"lower(author)": pattern},
		})
	}
	sql, args, err := squirrel.
		Select("*").From("books").
		Where(w).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	books := make([]db.Book, 0)
	res := s.db.Raw(sql, args...).Scan(&books)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}

	return books, nil
}

func (s *Books) BookGetOne(user *db.User, bookID uint64) (*db.Book, error) {
	model := db.Book{}
	res := s.db.Where("user_id = ?", user.ID).First(&model, bookID)
	if res.Error != nil {
		return nil, res.Error
	}
	return &model, nil
}

func (s *Books) BookCreate(user *db.User, in BookCreateInput) (*db.Book, error) {
	model := db.Book{
		Title:         in.Title,
		Author:        in.Author,
		Publisher:     in.Publisher,
		PublishedDate: in.PublishedDate,
		ISBN:          in.ISBN,
		TotalPages:    in.TotalPages,
		Status:        db.StatusToRead,
		CoverURL:      in.CoverURL,
		UserID:        user.ID,
	}
	if in.CurrentPage != nil {
		model.CurrentPage = *in.CurrentPage
	}
	if in.Status != nil && *in.Status != "" {
		model.Status = *in.Status
	}

	res := s.db.Create(&model)
	if res.Error != nil {
		return nil, res.Error
	}

	return &model, nil
}

func (s *Books) BookUpdate(user *db.User, bookID uint64, in BookUpdateInput) (*db.Book, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Author != nil {
		updates["author"] = *in.Author
	}
	if in.Publisher != nil {
		updates["publisher"] = *in.Publisher
	}
	if in.PublishedDate != nil {
		updates["published_date"] = *in.PublishedDate
	}
	if in.ISBN != nil {
		updates["isbn"] = *in.ISBN
	}
	if in.TotalPages != nil {
		updates["total_pages"] = *in.TotalPages
	}
	if in.CurrentPage != nil {
		updates["current_page"] = *in.CurrentPage
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.CoverURL != nil {
		updates["cover_url"] = *in.CoverURL
	}

	if len(updates) != 0 {
		res := s.db.Model(&db.Book{}).
			Where("id = ? AND user_id = ?", bookID, user.ID).
			Updates(updates)
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "update model")
		}
	}

	model := db.Book{}
	res := s.db.Where("user_id = ?", user.ID).First(&model, bookID)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "get model")
	}

	return &model, nil
}

func (s *Books) BookDelete(user *db.User, bookID uint64) error {
	res := s.db.Where("user_id = ?", user.ID).Delete(&db.Book{}, bookID)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

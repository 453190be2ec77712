package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nuggetapp/nugget-back/internal/config"
	"github.com/nuggetapp/nugget-back/internal/db"
	"github.com/nuggetapp/nugget-back/internal/googlebooks"
	"github.com/nuggetapp/nugget-back/internal/service"
)

type (
	UserReq struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	BookReq struct {
		Title         string  `json:"title" validate:"required"`
		Author        string  `json:"author" validate:"required"`
		Publisher     *string `json:"publisher"`
		PublishedDate *string `json:"published_date"`
		ISBN          *string `json:"isbn"`
		TotalPages    *int    `json:"total_pages"`
		CurrentPage   *int    `json:"current_page"`
		Status        *string `json:"status" validate:"omitempty,oneof=toread reading finished"`
		CoverURL      *string `json:"cover_url"`
	}

	BookPatchReq struct {
		Title         *string `json:"title"`
		Author        *string `json:"author"`
		Publisher     *string `json:"publisher"`
		PublishedDate *string `json:"published_date"`
		ISBN          *string `json:"isbn"`
		TotalPages    *int    `json:"total_pages"`
		CurrentPage   *int    `json:"current_page"`
		Status        *string `json:"status" validate:"omitempty,oneof=toread reading finished"`
		CoverURL      *string `json:"cover_url"`
	}

	BookReqList struct {
		Status *string `json:"status" validate:"omitempty,oneof=toread reading finished"`
		Query  *string `json:"query"`
	}

	BookResp struct {
		ID            uint64  `json:"id"`
		Title         string  `json:"title"`
		Author        string  `json:"author"`
		Publisher     *string `json:"publisher,omitempty"`
		PublishedDate *string `json:"published_date,omitempty"`
		ISBN          *string `json:"isbn,omitempty"`
		TotalPages    *int    `json:"total_pages,omitempty"`
		CurrentPage   int     `json:"current_page"`
		Status        string  `json:"status"`
		CoverURL      *string `json:"cover_url,omitempty"`
		Progress      int     `json:"progress"`
	}

	NuggetReq struct {
		BookID     uint64   `json:"book_id" validate:"required"`
		Content    string   `json:"content" validate:"required"`
		PageNumber *int     `json:"page_number"`
		Note       *string  `json:"note"`
		Tags       []string `json:"tags"`
	}

	NuggetPatchReq struct {
		Content    *string  `json:"content"`
		PageNumber *int     `json:"page_number"`
		Note       *string  `json:"note"`
		Tags       []string `json:"tags"`
	}

	NuggetReqList struct {
		BookID    *uint64 `json:"book_id"`
		Favorites bool    `json:"favorites"`
	}

	NuggetBookResp struct {
		ID       uint64  `json:"id"`
		Title    string  `json:"title"`
		Author   string  `json:"author"`
		CoverURL *string `json:"cover_url,omitempty"`
	}

	NuggetResp struct {
		ID         uint64          `json:"id"`
		BookID     uint64          `json:"book_id"`
		Content    string          `json:"content"`
		PageNumber *int            `json:"page_number,omitempty"`
		Note       *string         `json:"note,omitempty"`
		Tags       []string        `json:"tags,omitempty"`
		IsFavorite bool            `json:"is_favorite"`
		Book       *NuggetBookResp `json:"book,omitempty"`
	}

	ShareReq struct {
		NuggetID uint64 `json:"nugget_id" validate:"required"`
	}

	ShareResp struct {
		ShareID   string `json:"share_id"`
		NuggetID  uint64 `json:"nugget_id"`
		ViewCount uint64 `json:"view_count"`
	}

	SharedBookResp struct {
		Title         string  `json:"title"`
		Author        string  `json:"author"`
		Publisher     *string `json:"publisher,omitempty"`
		PublishedDate *string `json:"published_date,omitempty"`
		ISBN          *string `json:"isbn,omitempty"`
		TotalPages    *int    `json:"total_pages,omitempty"`
		CoverURL      *string `json:"cover_url,omitempty"`
	}

	SharedViewResp struct {
		Nugget NuggetResp     `json:"nugget"`
		Book   SharedBookResp `json:"book"`
	}

	SaveResp struct {
		Book   BookResp   `json:"book"`
		Nugget NuggetResp `json:"nugget"`
	}

	VolumeResp struct {
		GoogleBooksID string   `json:"google_books_id"`
		Title         string   `json:"title"`
		Subtitle      *string  `json:"subtitle,omitempty"`
		Authors       []string `json:"authors,omitempty"`
		Author        string   `json:"author"`
		Publisher     *string  `json:"publisher,omitempty"`
		PublishedDate *string  `json:"published_date,omitempty"`
		Description   *string  `json:"description,omitempty"`
		PageCount     *int     `json:"page_count,omitempty"`
		Categories    []string `json:"categories,omitempty"`
		CoverURL      *string  `json:"cover_url,omitempty"`
		Language      string   `json:"language"`
		ISBN          *string  `json:"isbn,omitempty"`
		ISBN13        *string  `json:"isbn_13,omitempty"`
		ISBN10        *string  `json:"isbn_10,omitempty"`
	}

	CustomValidator struct {
		validator *validator.Validate
	}

	HTTPServer struct {
		general *service.General
		books   *service.Books
		nuggets *service.Nuggets
		shares  *service.Shares
		meta    *googlebooks.Client
		logger  *zap.SugaredLogger
	}
)

func NewHTTPServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	general *service.General,
	books *service.Books,
	nuggets *service.Nuggets,
	shares *service.Shares,
	meta *googlebooks.Client,
	logger *zap.SugaredLogger,
) *HTTPServer {
	instance := HTTPServer{
		general: general,
		books:   books,
		nuggets: nuggets,
		shares:  shares,
		meta:    meta,
		logger:  logger,
	}

	e := echo.New()

	e.POST("/auth/register", instance.Register)
	e.POST("/auth/login", instance.Login)

	bookG := e.Group("/book")
	bookG.POST("/list", instance.BookGet)
	bookG.POST("", instance.BookCreate)
	bookG.GET("/:id", instance.BookGetOne)
	bookG.PATCH("/:id", instance.BookUpdate)
	bookG.DELETE("/:id", instance.BookDelete)

	nuggetG := e.Group("/nugget")
	nuggetG.POST("/list", instance.NuggetGet)
	nuggetG.POST("", instance.NuggetCreate)
	nuggetG.PATCH("/:id", instance.NuggetUpdate)
	nuggetG.POST("/:id/favorite", instance.NuggetToggleFavorite)
	nuggetG.DELETE("/:id", instance.NuggetDelete)

	shareG := e.Group("/share")
	shareG.POST("", instance.ShareCreate)
	shareG.GET("", instance.ShareGet)
	shareG.DELETE("/:id", instance.ShareDelete)
	shareG.GET("/:token", instance.ShareResolve)
	shareG.POST("/:token/save", instance.ShareSave)

	metaG := e.Group("/metadata")
	metaG.GET("/search", instance.MetadataSearch)
	metaG.GET("/isbn/:isbn", instance.MetadataByISBN)

	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Path(), "/auth/")
		},
		Handler: func(c echo.Context, reqBody, resBody []byte) {
			logger.Debugw("auth request", "path", c.Path(), "body", string(censorBody(reqBody)))
		},
	}))

	e.Use(instance.AuthMiddleware)

	e.Validator = &CustomValidator{validator: validator.New()}

	echo.NotFoundHandler = func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				listen := cfg.Host + ":" + cfg.Port
				if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal("shutting down the server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server.")
			return e.Shutdown(ctx)
		},
	})

	return &instance
}

func (s *HTTPServer) Register(c echo.Context) error {
	u := UserReq{}
	if err := BindAndValidate(c, &u); err != nil {
		return err
	}

	token, err := s.general.Register(u.Email, u.Password)
	if err != nil {
		return err
	}
	resp := struct {
		Token string `json:"token"`
	}{
		Token: token,
	}
	return c.JSON(http.StatusOK, &resp)
}

func (s *HTTPServer) Login(c echo.Context) error {
	u := UserReq{}
	if err := BindAndValidate(c, &u); err != nil {
		return err
	}

	token, err := s.general.Login(u.Email, u.Password)
	if err != nil {
		if err == service.ErrLoginUserNotFound || err == service.ErrLoginPasswordDoesNotMatch {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	resp := struct {
		Token string `json:"token"`
	}{
		Token: token,
	}
	return c.JSON(http.StatusOK, &resp)
}

func (s *HTTPServer) BookGet(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := BookReqList{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	books, err := s.books.BookGet(user, service.BookFilter{
		Status: req.Status,
		Query:  req.Query,
	})
	if err != nil {
		return err
	}

	resp := make([]BookResp, len(books))
	for i := range books {
		resp[i] = bookResp(&books[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) BookGetOne(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	book, err := s.books.BookGetOne(user, id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, bookResp(book))
}

func (s *HTTPServer) BookCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := BookReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	book, err := s.books.BookCreate(user, service.BookCreateInput{
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedDate: req.PublishedDate,
		ISBN:          req.ISBN,
		TotalPages:    req.TotalPages,
		CurrentPage:   req.CurrentPage,
		Status:        req.Status,
		CoverURL:      req.CoverURL,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, bookResp(book))
}

func (s *HTTPServer) BookUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := BookPatchReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	book, err := s.books.BookUpdate(user, id, service.BookUpdateInput{
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedDate: req.PublishedDate,
		ISBN:          req.ISBN,
		TotalPages:    req.TotalPages,
		CurrentPage:   req.CurrentPage,
		Status:        req.Status,
		CoverURL:      req.CoverURL,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, bookResp(book))
}

func (s *HTTPServer) BookDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.books.BookDelete(user, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) NuggetGet(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := NuggetReqList{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	nuggets, err := s.nuggets.NuggetGet(user, service.NuggetFilter{
		BookID:        req.BookID,
		FavoritesOnly: req.Favorites,
	})
	if err != nil {
		return err
	}

	resp := make([]NuggetResp, len(nuggets))
	for i := range nuggets {
		resp[i] = nuggetResp(&nuggets[i])
		resp[i].Book = &NuggetBookResp{
			ID:       nuggets[i].Book.ID,
			Title:    nuggets[i].Book.Title,
			Author:   nuggets[i].Book.Author,
			CoverURL: nuggets[i].Book.CoverURL,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) NuggetCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := NuggetReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	nugget, err := s.nuggets.NuggetCreate(user, service.NuggetCreateInput{
		BookID:     req.BookID,
		Content:    req.Content,
		PageNumber: req.PageNumber,
		Note:       req.Note,
		Tags:       req.Tags,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, nuggetResp(nugget))
}

func (s *HTTPServer) NuggetUpdate(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := NuggetPatchReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	nugget, err := s.nuggets.NuggetUpdate(user, id, service.NuggetUpdateInput{
		Content:    req.Content,
		PageNumber: req.PageNumber,
		Note:       req.Note,
		Tags:       req.Tags,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, nuggetResp(nugget))
}

func (s *HTTPServer) NuggetToggleFavorite(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	nugget, err := s.nuggets.ToggleFavorite(user, id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, nuggetResp(nugget))
}

func (s *HTTPServer) NuggetDelete(c echo.Context) error {
	id, err := GetAndParseParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.nuggets.NuggetDelete(user, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) ShareCreate(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	req := ShareReq{}
	if err := BindAndValidate(c, &req); err != nil {
		return err
	}

	link, err := s.shares.LinkCreate(user, req.NuggetID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, ShareResp{
		ShareID:   link.ShareID,
		NuggetID:  link.NuggetID,
		ViewCount: link.ViewCount,
	})
}

func (s *HTTPServer) ShareGet(c echo.Context) error {
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	links, err := s.shares.LinkGet(user)
	if err != nil {
		return err
	}

	resp := make([]ShareResp, len(links))
	for i := range links {
		resp[i] = ShareResp{
			ShareID:   links[i].ShareID,
			NuggetID:  links[i].NuggetID,
			ViewCount: links[i].ViewCount,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) ShareDelete(c echo.Context) error {
	shareID, err := GetParam(c, "id")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := s.shares.LinkDelete(user, shareID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) ShareResolve(c echo.Context) error {
	token, err := GetParam(c, "token")
	if err != nil {
		return err
	}

	view, err := s.shares.Resolve(token)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, SharedViewResp{
		Nugget: nuggetResp(&view.Nugget),
		Book: SharedBookResp{
			Title:         view.Book.Title,
			Author:        view.Book.Author,
			Publisher:     view.Book.Publisher,
			PublishedDate: view.Book.PublishedDate,
			ISBN:          view.Book.ISBN,
			TotalPages:    view.Book.TotalPages,
			CoverURL:      view.Book.CoverURL,
		},
	})
}

func (s *HTTPServer) ShareSave(c echo.Context) error {
	token, err := GetParam(c, "token")
	if err != nil {
		return err
	}
	user, err := GetUserFromContext(c)
	if err != nil {
		return err
	}

	saved, err := s.shares.Save(user, token)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, SaveResp{
		Book:   bookResp(&saved.Book),
		Nugget: nuggetResp(&saved.Nugget),
	})
}

func (s *HTTPServer) MetadataSearch(c echo.Context) error {
	query := c.QueryParam("q")
	maxResults := 0
	if raw := c.QueryParam("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid query param 'max'")
		}
		maxResults = parsed
	}

	volumes, err := s.meta.Search(c.Request().Context(), query, maxResults)
	if err != nil {
		return mapServiceError(err)
	}

	resp := make([]VolumeResp, len(volumes))
	for i := range volumes {
		resp[i] = volumeResp(&volumes[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) MetadataByISBN(c echo.Context) error {
	isbn, err := GetParam(c, "isbn")
	if err != nil {
		return err
	}

	volume, err := s.meta.SearchByISBN(c.Request().Context(), isbn)
	if err != nil {
		return mapServiceError(err)
	}
	if volume == nil {
		return c.NoContent(http.StatusNotFound)
	}

	resp := volumeResp(volume)
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if isPublicRoute(c) {
			return next(c)
		}
		token := ""
		for key, values := range c.Request().Header {
			if strings.ToLower(key) == "x-token" {
				token = values[0]
				break
			}
		}
		if token == "" {
			return c.NoContent(http.StatusUnauthorized)
		}
		user, err := s.general.UserByToken(token)
		if err != nil {
			c.Logger().Error(errors.Wrap(err, "find user in db"))
			return c.NoContent(http.StatusUnauthorized)
		}

		c.Set("user", user)
		return next(c)
	}
}

// Share links are readable without authentication, saving one is not.
func isPublicRoute(c echo.Context) bool {
	switch c.Path() {
	case "/auth/register", "/auth/login", "/ping", "/metadata/search", "/metadata/isbn/:isbn":
		return true
	case "/share/:token":
		return c.Request().Method == http.MethodGet
	}
	return false
}

////////

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func BindAndValidate(c echo.Context, v interface{}) error {
	var err error
	if err = c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func GetUserFromContext(c echo.Context) (*db.User, error) {
	user, _ := c.Get("user").(*db.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return user, nil
}

func GetParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if value == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid path param '"+name+"'")
	}
	return value, nil
}

func GetAndParseParam(c echo.Context, name string) (uint64, error) {
	v, e := GetParam(c, name)
	if e != nil {
		return 0, e
	}
	vv, e := strconv.ParseUint(v, 10, 64)
	if e != nil {
		return 0, e
	}
	return vv, nil
}

// censorBody blanks credentials before a request body reaches the log.
func censorBody(body []byte) []byte {
	payload := map[string]interface{}{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return []byte(`"$unparseable"`)
	}
	if _, ok := payload["password"]; ok {
		payload["password"] = "$censored"
	}
	censored, err := json.Marshal(payload)
	if err != nil {
		return []byte(`"$unparseable"`)
	}
	return censored
}

func mapServiceError(err error) error {
	var apiErr *googlebooks.APIError
	switch cause := errors.Cause(err); {
	case cause == service.ErrShareNotFound || cause == service.ErrNuggetNotFound || cause == gorm.ErrRecordNotFound:
		return echo.NewHTTPError(http.StatusNotFound, cause.Error())
	case cause == service.ErrDuplicateNugget:
		return echo.NewHTTPError(http.StatusConflict, cause.Error())
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return err
}

func bookResp(b *db.Book) BookResp {
	return BookResp{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Publisher:     b.Publisher,
		PublishedDate: b.PublishedDate,
		ISBN:          b.ISBN,
		TotalPages:    b.TotalPages,
		CurrentPage:   b.CurrentPage,
		Status:        b.Status,
		CoverURL:      b.CoverURL,
		Progress:      b.Progress(),
	}
}

func nuggetResp(n *db.Nugget) NuggetResp {
	return NuggetResp{
		ID:         n.ID,
		BookID:     n.BookID,
		Content:    n.Content,
		PageNumber: n.PageNumber,
		Note:       n.Note,
		Tags:       n.Tags,
		IsFavorite: n.IsFavorite,
	}
}

func volumeResp(v *googlebooks.Volume) VolumeResp {
	return VolumeResp{
		GoogleBooksID: v.GoogleBooksID,
		Title:         v.Title,
		Subtitle:      v.Subtitle,
		Authors:       v.Authors,
		Author:        v.Author,
		Publisher:     v.Publisher,
		PublishedDate: v.PublishedDate,
		Description:   v.Description,
		PageCount:     v.PageCount,
		Categories:    v.Categories,
		CoverURL:      v.CoverURL,
		Language:      v.Language,
		ISBN:          v.ISBN,
		ISBN13:        v.ISBN13,
		ISBN10:        v.ISBN10,
	}
}

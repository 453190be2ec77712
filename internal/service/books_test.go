package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuggetapp/nugget-back/internal/db"
)

func TestBookCreateDefaults(t *testing.T) {
	conn := newTestDB(t)
	books := NewBooks(conn, newTestLogger(t))
	user := newTestUser(t, conn, "reader@example.com")

	created, err := books.BookCreate(user, BookCreateInput{
		Title:  "Deep Work",
		Author: "Cal Newport",
	})
	require.NoError(t, err)

	got, err := books.BookGetOne(user, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deep Work", got.Title)
	assert.Equal(t, "Cal Newport", got.Author)
	assert.Equal(t, 0, got.CurrentPage)
	assert.Equal(t, db.StatusToRead, got.Status)
	assert.Nil(t, got.TotalPages)
}

func TestBookGetFilters(t *testing.T) {
	conn := newTestDB(t)
	books := NewBooks(conn, newTestLogger(t))
	user := newTestUser(t, conn, "reader@example.com")
	other := newTestUser(t, conn, "other@example.com")

	seed := []BookCreateInput{
		{Title: "Deep Work", Author: "Cal Newport", Status: strp(db.StatusReading)},
		{Title: "Digital Minimalism", Author: "Cal Newport"},
		{Title: "Walden", Author: "Henry David Thoreau", Status: strp(db.StatusFinished)},
	}
	for _, in := range seed {
		_, err := books.BookCreate(user, in)
		require.NoError(t, err)
	}
	_, err := books.BookCreate(other, BookCreateInput{Title: "Deep Work", Author: "Cal Newport"})
	require.NoError(t, err)

	t.Run("list is scoped to the user", func(t *testing.T) {
		got, err := books.BookGet(user, BookFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("filter by status", func(t *testing.T) {
		got, err := books.BookGet(user, BookFilter{Status: strp(db.StatusReading)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Deep Work", got[0].Title)
	})

	t.Run("text search matches title or author case-insensitively", func(t *testing.T) {
		got, err := books.BookGet(user, BookFilter{Query: strp("newport")})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = books.BookGet(user, BookFilter{Query: strp("WALD")})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Walden", got[0].Title)
	})
}

func TestBookUpdate(t *testing.T) {
	conn := newTestDB(t)
	books := NewBooks(conn, newTestLogger(t))
	user := newTestUser(t, conn, "reader@example.com")

	created, err := books.BookCreate(user, BookCreateInput{
		Title:      "Deep Work",
		Author:     "Cal Newport",
		TotalPages: intp(296),
	})
	require.NoError(t, err)

	updated, err := books.BookUpdate(user, created.ID, BookUpdateInput{
		CurrentPage: intp(148),
		Status:      strp(db.StatusReading),
	})
	require.NoError(t, err)
	assert.Equal(t, 148, updated.CurrentPage)
	assert.Equal(t, db.StatusReading, updated.Status)
	assert.Equal(t, 50, updated.Progress())

	t.Run("progress can be reset to zero", func(t *testing.T) {
		updated, err := books.BookUpdate(user, created.ID, BookUpdateInput{
			CurrentPage: intp(0),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, updated.CurrentPage)
	})

	t.Run("another user cannot update the book", func(t *testing.T) {
		other := newTestUser(t, conn, "other@example.com")
		_, err := books.BookUpdate(other, created.ID, BookUpdateInput{Title: strp("hijacked")})
		assert.Error(t, err)

		got, err := books.BookGetOne(user, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Deep Work", got.Title)
	})
}

func TestBookDelete(t *testing.T) {
	conn := newTestDB(t)
	books := NewBooks(conn, newTestLogger(t))
	user := newTestUser(t, conn, "reader@example.com")

	created, err := books.BookCreate(user, BookCreateInput{Title: "Walden", Author: "Henry David Thoreau"})
	require.NoError(t, err)

	require.NoError(t, books.BookDelete(user, created.ID))

	_, err = books.BookGetOne(user, created.ID)
	assert.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&db.Book{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

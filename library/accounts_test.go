package library_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/library"
	"librarydesk/storage/memory"
)

func TestRegisterAndLogin(t *testing.T) {
	m, store, _ := newManager(t, seed())
	ctx := context.Background()

	acc, err := m.Readers().Register(ctx, " carol ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "carol", acc.Username)
	assert.Zero(t, acc.BooksRead)

	_, err = m.Readers().Register(ctx, "carol", "other")
	assert.ErrorIs(t, err, library.ErrAlreadyExists)
	assert.Len(t, store.Snapshot().Readers, 3)

	assert.True(t, m.Readers().Authenticate("carol", "secret"))
	assert.False(t, m.Readers().Authenticate("carol", "wrong"))
	assert.False(t, m.Readers().Authenticate("Carol", "secret"), "usernames are case-sensitive")
	assert.False(t, m.Librarians().Authenticate("carol", "secret"), "directories are separate")

	_, err = m.Readers().Login("nobody", "x")
	assert.ErrorIs(t, err, library.ErrInvalidCredentials)

	_, err = m.Readers().Register(ctx, "", "pw")
	assert.ErrorIs(t, err, library.ErrValidation)
	_, err = m.Readers().Register(ctx, "dave", "")
	assert.ErrorIs(t, err, library.ErrValidation)
	_, err = m.Readers().Register(ctx, "da,ve", "pw")
	assert.ErrorIs(t, err, library.ErrValidation)
}

func TestLibrarianDirectory(t *testing.T) {
	m, store, _ := newManager(t, seed())
	ctx := context.Background()

	_, err := m.Librarians().Register(ctx, "ops", "pw")
	require.NoError(t, err)
	assert.Len(t, store.Snapshot().Librarians, 2)
	assert.Len(t, store.Snapshot().Readers, 2)
	assert.Equal(t, library.RoleLibrarian, m.Librarians().Role())
	assert.Len(t, m.Librarians().List(), 2)

	// Readers and librarians may share a username.
	_, err = m.Librarians().Register(ctx, "alice", "pw")
	assert.NoError(t, err)
}

func TestChangeUsernameCascades(t *testing.T) {
	m, _, _ := newManager(t, seed())
	ctx := context.Background()

	_, err := m.Borrow(ctx, "alice", "12345")
	require.NoError(t, err)
	_, err = m.AddRating(ctx, "alice", "12345", 5)
	require.NoError(t, err)
	_, err = m.AddFavorite(ctx, "alice", "12345")
	require.NoError(t, err)
	_, err = m.AddReview(ctx, "alice", "12345", "Sand, spice, and politics")
	require.NoError(t, err)
	_, err = m.Borrow(ctx, "bob", "67890")
	require.NoError(t, err)

	_, err = m.Readers().ChangeUsername(ctx, "alice", "bob")
	assert.ErrorIs(t, err, library.ErrAlreadyExists)
	_, err = m.Readers().ChangeUsername(ctx, "ghost", "spirit")
	assert.ErrorIs(t, err, library.ErrAccountNotFound)

	acc, err := m.Readers().ChangeUsername(ctx, "alice", "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", acc.Username)
	assert.Equal(t, 1, acc.BooksRead)

	assert.Empty(t, m.BorrowedBooksOf("alice"))
	assert.Len(t, m.BorrowedBooksOf("alicia"), 1)
	assert.Len(t, m.HistoryOf("alicia"), 1)
	assert.Len(t, m.RatingsOf("alicia"), 1)
	assert.Len(t, m.FavoritesOf("alicia"), 1)
	assert.Equal(t, "alicia", m.AllReviews()[0].Username)
	assert.Len(t, m.BorrowedBooksOf("bob"), 1)

	book, err := m.FindBook("12345")
	require.NoError(t, err)
	assert.Equal(t, "alicia", book.BorrowedBy)

	assert.False(t, m.Readers().Authenticate("alice", "pw"))
	assert.True(t, m.Readers().Authenticate("alicia", "pw"))
}

func TestChangeUsernameToSameNameIsNoOp(t *testing.T) {
	m, store, _ := newManager(t, seed())

	acc, err := m.Readers().ChangeUsername(context.Background(), "alice", " alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
	assert.Zero(t, store.Applies())
}

func TestCascadeRefusesUnreadableUserLog(t *testing.T) {
	state := seed()
	state.Ratings = []library.Rating{{Username: "bob", ISBN: "978-12345", Stars: 5}}
	store := memory.New(state)
	store.LoadErr = map[library.Collection]error{library.Ratings: errors.New("permission denied")}
	m, err := library.NewManager(context.Background(), store, library.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	ctx := context.Background()

	err = m.Readers().Delete(ctx, "bob", "DELETE")
	require.Error(t, err)
	assert.Equal(t, library.KindIO, library.KindOf(err))
	assert.Contains(t, err.Error(), "ratings")

	_, err = m.Readers().ChangeUsername(ctx, "bob", "robert")
	require.Error(t, err)
	assert.Equal(t, library.KindIO, library.KindOf(err))

	_, ok := m.Readers().Get("bob")
	assert.True(t, ok)
	snap := store.Snapshot()
	require.Len(t, snap.Ratings, 1)
	assert.Equal(t, "bob", snap.Ratings[0].Username)
	assert.Len(t, snap.Readers, 2)
	assert.Zero(t, store.Applies())
}

func TestLibrarianRenameDoesNotTouchLogs(t *testing.T) {
	state := seed()
	state.Librarians = append(state.Librarians, library.Account{Username: "alice", Password: "x"})
	m, _, _ := newManager(t, state)
	ctx := context.Background()

	_, err := m.Borrow(ctx, "alice", "12345")
	require.NoError(t, err)
	_, err = m.Librarians().ChangeUsername(ctx, "alice", "boss")
	require.NoError(t, err)
	assert.Len(t, m.BorrowedBooksOf("alice"), 1)
}

func TestChangePassword(t *testing.T) {
	m, _, _ := newManager(t, seed())
	ctx := context.Background()
	dir := m.Readers()

	err := dir.ChangePassword(ctx, "alice", "wrong", "new", "new")
	assert.ErrorIs(t, err, library.ErrInvalidCredentials)
	err = dir.ChangePassword(ctx, "alice", "pw", "new", "nwe")
	assert.ErrorIs(t, err, library.ErrPasswordMismatch)
	err = dir.ChangePassword(ctx, "ghost", "pw", "new", "new")
	assert.ErrorIs(t, err, library.ErrAccountNotFound)

	require.NoError(t, dir.ChangePassword(ctx, "alice", "pw", "new", "new"))
	assert.False(t, dir.Authenticate("alice", "pw"))
	assert.True(t, dir.Authenticate("alice", "new"))
}

func TestDeleteCascades(t *testing.T) {
	m, store, _ := newManager(t, seed())
	ctx := context.Background()

	_, err := m.Borrow(ctx, "alice", "12345")
	require.NoError(t, err)
	_, err = m.AddFavorite(ctx, "alice", "12345")
	require.NoError(t, err)
	_, err = m.Borrow(ctx, "bob", "67890")
	require.NoError(t, err)
	_, err = m.AddFavorite(ctx, "bob", "67890")
	require.NoError(t, err)
	_, err = m.SubmitBook(ctx, "alice", "My Memoir", "44444")
	require.NoError(t, err)

	err = m.Readers().Delete(ctx, "alice", "yes")
	assert.ErrorIs(t, err, library.ErrConfirmationMissing)
	_, ok := m.Readers().Get("alice")
	assert.True(t, ok)

	require.NoError(t, m.Readers().Delete(ctx, "alice", "delete"))
	_, ok = m.Readers().Get("alice")
	assert.False(t, ok)
	assert.True(t, m.IsAvailable("12345"))
	assert.Empty(t, m.HistoryOf("alice"))
	assert.Empty(t, m.FavoritesOf("alice"))
	assert.Empty(t, m.Submissions())

	snap := store.Snapshot()
	require.Len(t, snap.Favorites, 1)
	assert.Equal(t, "bob", snap.Favorites[0].Username)
	require.Len(t, snap.Borrows, 1)
	assert.Equal(t, "bob", snap.Borrows[0].Username)

	err = m.Readers().Delete(ctx, "alice", "DELETE")
	assert.ErrorIs(t, err, library.ErrAccountNotFound)
}

func TestBcryptPasswords(t *testing.T) {
	store := memory.New(seed())
	m, err := library.NewManager(context.Background(), store, library.Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Passwords: library.PasswordsBcrypt,
	})
	require.NoError(t, err)
	ctx := context.Background()

	acc, err := m.Readers().Register(ctx, "carol", "secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(acc.Password, "$2"))
	assert.NotEqual(t, "secret", store.Snapshot().Readers[2].Password)
	assert.True(t, m.Readers().Authenticate("carol", "secret"))

	// Plain passwords written before the switch still work.
	assert.True(t, m.Readers().Authenticate("alice", "pw"))
	require.NoError(t, m.Readers().ChangePassword(ctx, "alice", "pw", "fresh", "fresh"))
	assert.True(t, m.Readers().Authenticate("alice", "fresh"))
	assert.True(t, strings.HasPrefix(store.Snapshot().Readers[0].Password, "$2"))
}

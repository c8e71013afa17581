package library_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/library"
)

func TestRatingRequiresActiveBorrow(t *testing.T) {
	m, store, _ := newManager(t, seed())
	ctx := context.Background()

	_, err := m.AddRating(ctx, "alice", "12345", 4)
	assert.ErrorIs(t, err, library.ErrNotBorrowedBySelf)
	assert.Empty(t, store.Snapshot().Ratings)

	_, err = m.Borrow(ctx, "bob", "12345")
	require.NoError(t, err)
	_, err = m.AddRating(ctx, "alice", "12345", 4)
	assert.ErrorIs(t, err, library.ErrNotBorrowedBySelf, "someone else's loan does not count")

	_, err = m.Borrow(ctx, "alice", "67890")
	require.NoError(t, err)
	for _, stars := range []int{0, 6, -1} {
		_, err = m.AddRating(ctx, "alice", "67890", stars)
		assert.ErrorIs(t, err, library.ErrValidation)
	}

	r, err := m.AddRating(ctx, "alice", "67890", 5)
	require.NoError(t, err)
	assert.Equal(t, library.Rating{Username: "alice", ISBN: "978-67890", Stars: 5}, r)
	assert.Equal(t, []library.Rating{r}, m.RatingsOf("alice"))
	assert.Len(t, m.AllRatings(), 1)
}

func TestReviewKeepsCommas(t *testing.T) {
	m, _, _ := newManager(t, seed())
	ctx := context.Background()

	_, err := m.AddReview(ctx, "alice", "12345", "great")
	assert.ErrorIs(t, err, library.ErrNotBorrowedBySelf)

	_, err = m.Borrow(ctx, "alice", "12345")
	require.NoError(t, err)

	_, err = m.AddReview(ctx, "alice", "12345", "   ")
	assert.ErrorIs(t, err, library.ErrValidation)
	_, err = m.AddReview(ctx, "alice", "12345", "line one\nline two")
	assert.ErrorIs(t, err, library.ErrValidation)

	rev, err := m.AddReview(ctx, "alice", "12345", "Long, strange, wonderful")
	require.NoError(t, err)
	assert.Equal(t, "Long, strange, wonderful", rev.Text)
	assert.Equal(t, []library.Review{rev}, m.AllReviews())
}

func TestFavoritesRejectDuplicates(t *testing.T) {
	m, _, _ := newManager(t, seed())
	ctx := context.Background()

	_, err := m.AddFavorite(ctx, "alice", "12345")
	assert.ErrorIs(t, err, library.ErrNotBorrowedBySelf)

	_, err = m.Borrow(ctx, "alice", "12345")
	require.NoError(t, err)
	fav, err := m.AddFavorite(ctx, "alice", "12345")
	require.NoError(t, err)
	assert.Equal(t, "Dune", fav.Title)

	_, err = m.AddFavorite(ctx, "alice", "978-12345")
	assert.ErrorIs(t, err, library.ErrAlreadyFavorite)
	assert.Len(t, m.FavoritesOf("alice"), 1)

	// Favorites outlive the loan.
	_, err = m.Return(ctx, "alice", "12345")
	require.NoError(t, err)
	assert.Len(t, m.FavoritesOf("alice"), 1)
}

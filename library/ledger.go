package library

import (
	"context"
	"log/slog"
	"strings"
)

// BorrowedBooksOf returns the active loans of username in borrow order.
func (m *Manager) BorrowedBooksOf(username string) []BorrowRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ownedBy(m.state.Borrows, username, func(r BorrowRecord) string { return r.Username })
}

// HistoryOf returns every borrow and read event of username.
func (m *Manager) HistoryOf(username string) []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ownedBy(m.state.History, username, func(e HistoryEntry) string { return e.Username })
}

func (m *Manager) FavoritesOf(username string) []Favorite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ownedBy(m.state.Favorites, username, func(f Favorite) string { return f.Username })
}

func (m *Manager) RatingsOf(username string) []Rating {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ownedBy(m.state.Ratings, username, func(r Rating) string { return r.Username })
}

// AllBorrows returns every active loan.
func (m *Manager) AllBorrows() []BorrowRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BorrowRecord(nil), m.state.Borrows...)
}

func (m *Manager) AllRatings() []Rating {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Rating(nil), m.state.Ratings...)
}

func (m *Manager) AllReviews() []Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Review(nil), m.state.Reviews...)
}

func ownedBy[T any](rows []T, username string, owner func(T) string) []T {
	var out []T
	for _, r := range rows {
		if owner(r) == username {
			out = append(out, r)
		}
	}
	return out
}

// heldBy returns username's active loan of isbn, or ErrNotBorrowedBySelf.
func (m *Manager) heldBy(username, isbn string) (BorrowRecord, error) {
	key := canonicalKey(isbn)
	for _, r := range m.state.Borrows {
		if r.Username == username && canonicalKey(r.ISBN) == key {
			return r, nil
		}
	}
	return BorrowRecord{}, withMessage(ErrNotBorrowedBySelf, "you haven't borrowed a book with ISBN %s", strings.TrimSpace(isbn))
}

// AddRating records a 1 to 5 star rating of a book username currently holds.
func (m *Manager) AddRating(ctx context.Context, username, isbn string, stars int) (Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, err := m.heldBy(username, isbn)
	if err != nil {
		return Rating{}, err
	}
	v := &validator{}
	if err := v.between("rating", stars, MinStars, MaxStars).err(); err != nil {
		return Rating{}, err
	}

	rating := Rating{Username: username, ISBN: held.ISBN, Stars: stars}
	cs := &Changeset{}
	cs.Ratings.Add(rating)
	if err := m.commit(ctx, "rate book", cs); err != nil {
		return Rating{}, err
	}
	m.log.Info("book rated", slog.String("isbn", held.ISBN), slog.Int("stars", stars))
	return rating, nil
}

// AddReview records a free-text review of a book username currently holds.
// The text may contain commas but not line breaks.
func (m *Manager) AddReview(ctx context.Context, username, isbn, text string) (Review, error) {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	held, err := m.heldBy(username, isbn)
	if err != nil {
		return Review{}, err
	}
	v := &validator{}
	if err := v.required("review", text).singleLine("review", text).maxLen("review", text, 2000).err(); err != nil {
		return Review{}, err
	}

	review := Review{Username: username, ISBN: held.ISBN, Text: text}
	cs := &Changeset{}
	cs.Reviews.Add(review)
	if err := m.commit(ctx, "review book", cs); err != nil {
		return Review{}, err
	}
	return review, nil
}

// AddFavorite marks a book username currently holds as a favorite.
func (m *Manager) AddFavorite(ctx context.Context, username, isbn string) (Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, err := m.heldBy(username, isbn)
	if err != nil {
		return Favorite{}, err
	}
	key := canonicalKey(held.ISBN)
	for _, f := range m.state.Favorites {
		if f.Username == username && canonicalKey(f.ISBN) == key {
			return Favorite{}, withMessage(ErrAlreadyFavorite, "%q is already in your favorites", held.Title)
		}
	}

	fav := Favorite{Username: username, Title: held.Title, Author: held.Author, ISBN: held.ISBN}
	cs := &Changeset{}
	cs.Favorites.Add(fav)
	if err := m.commit(ctx, "add favorite", cs); err != nil {
		return Favorite{}, err
	}
	return fav, nil
}

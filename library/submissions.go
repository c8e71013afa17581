package library

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// SubmitBook queues a book proposed by a reader. Readers give the short
// 5-digit ISBN; it is normalized when a librarian approves it.
func (m *Manager) SubmitBook(ctx context.Context, username, title, isbn string) (Submission, error) {
	title, isbn = strings.TrimSpace(title), strings.TrimSpace(isbn)
	v := &validator{}
	if err := v.required("title", title).plain("title", title).maxLen("title", title, 200).err(); err != nil {
		return Submission{}, err
	}
	if !IsLegacyISBN(isbn) {
		return Submission{}, withMessage(ErrInvalidISBN, "invalid ISBN %q: expected 5 digits", isbn)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sub := Submission{
		ID:          uuid.NewString(),
		Username:    username,
		Title:       title,
		ISBN:        isbn,
		SubmittedAt: m.timestamp(),
	}
	cs := &Changeset{}
	cs.Submissions.Add(sub)
	if err := m.commit(ctx, "submit book", cs); err != nil {
		return Submission{}, err
	}
	m.log.Info("book submitted", slog.String("id", sub.ID), slog.String("user", username))
	return sub, nil
}

// Submissions lists pending submissions, oldest first.
func (m *Manager) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Submission(nil), m.state.Submissions...)
}

func (m *Manager) submissionIndex(id string) int {
	for i, s := range m.state.Submissions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) withoutSubmission(idx int) []Submission {
	rest := make([]Submission, 0, len(m.state.Submissions)-1)
	rest = append(rest, m.state.Submissions[:idx]...)
	return append(rest, m.state.Submissions[idx+1:]...)
}

// ApproveSubmission adds the submitted book to the catalog under author and
// drops the submission, in one commit.
func (m *Manager) ApproveSubmission(ctx context.Context, id, author string) (Book, error) {
	author = strings.TrimSpace(author)
	v := &validator{}
	if err := v.required("author", author).plain("author", author).maxLen("author", author, 120).err(); err != nil {
		return Book{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.submissionIndex(id)
	if idx < 0 {
		return Book{}, withMessage(ErrSubmissionNotFound, "submission %s not found", id)
	}
	sub := m.state.Submissions[idx]
	canonical, err := NormalizeISBN(sub.ISBN)
	if err != nil {
		return Book{}, err
	}
	rest := m.withoutSubmission(idx)
	return m.addBookLocked(ctx, "approve submission", sub.Title, author, canonical, func(cs *Changeset) {
		cs.Submissions.Set(rest)
	})
}

// RejectSubmission drops a submission without adding the book.
func (m *Manager) RejectSubmission(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.submissionIndex(id)
	if idx < 0 {
		return withMessage(ErrSubmissionNotFound, "submission %s not found", id)
	}
	cs := &Changeset{}
	cs.Submissions.Set(m.withoutSubmission(idx))
	return m.commit(ctx, "reject submission", cs)
}

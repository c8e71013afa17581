package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DeleteConfirmation must be typed to delete an account.
const DeleteConfirmation = "DELETE"

// Directory is the account directory of one role. Lookups use the in-memory
// snapshot taken when the Manager was built, kept current by Register and
// the other mutators.
type Directory struct {
	m    *Manager
	role Role
}

// Readers returns the reader directory.
func (m *Manager) Readers() *Directory { return &Directory{m: m, role: RoleReader} }

// Librarians returns the librarian directory.
func (m *Manager) Librarians() *Directory { return &Directory{m: m, role: RoleLibrarian} }

func (d *Directory) Role() Role { return d.role }

func (m *Manager) accountIndex(role Role, username string) ([]Account, int) {
	accounts := m.state.accounts(role)
	for i, a := range accounts {
		if a.Username == username {
			return accounts, i
		}
	}
	return accounts, -1
}

// Authenticate reports whether username and password match an account.
func (d *Directory) Authenticate(username, password string) bool {
	_, err := d.Login(username, password)
	return err == nil
}

// Login returns the account for valid credentials, or ErrInvalidCredentials.
func (d *Directory) Login(username, password string) (Account, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	accounts, idx := d.m.accountIndex(d.role, strings.TrimSpace(username))
	if idx < 0 || !passwordMatches(accounts[idx].Password, password) {
		d.m.log.Info("login rejected", slog.String("role", d.role.String()), slog.String("user", username))
		return Account{}, ErrInvalidCredentials
	}
	return accounts[idx], nil
}

// Get returns the account named username.
func (d *Directory) Get(username string) (Account, bool) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	accounts, idx := d.m.accountIndex(d.role, username)
	if idx < 0 {
		return Account{}, false
	}
	return accounts[idx], true
}

// List returns every account of the directory.
func (d *Directory) List() []Account {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return append([]Account(nil), d.m.state.accounts(d.role)...)
}

func validateCredentials(username, password string) error {
	v := &validator{}
	v.required("username", username).plain("username", username).maxLen("username", username, 64).
		required("password", password).plain("password", password).maxLen("password", password, 72)
	return v.err()
}

// Register creates an account. Usernames are case-sensitive and unique
// within the directory.
func (d *Directory) Register(ctx context.Context, username, password string) (Account, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return Account{}, err
	}

	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	if _, idx := d.m.accountIndex(d.role, username); idx >= 0 {
		return Account{}, withMessage(ErrAlreadyExists, "username %q is already taken", username)
	}
	sealed, err := d.m.passwords.seal(password)
	if err != nil {
		return Account{}, storageError("register", err)
	}
	account := Account{Username: username, Password: sealed}

	cs := &Changeset{}
	if d.role == RoleLibrarian {
		cs.Librarians.Add(account)
	} else {
		cs.Readers.Add(account)
	}
	if err := d.m.commit(ctx, "register "+d.role.String(), cs); err != nil {
		return Account{}, err
	}
	d.m.log.Info("account registered", slog.String("role", d.role.String()), slog.String("user", username))
	return account, nil
}

// ChangeUsername renames an account. For readers every row they own in the
// user logs is renamed in the same commit.
func (d *Directory) ChangeUsername(ctx context.Context, oldName, newName string) (Account, error) {
	newName = strings.TrimSpace(newName)
	v := &validator{}
	v.required("username", newName).plain("username", newName).maxLen("username", newName, 64)
	if err := v.err(); err != nil {
		return Account{}, err
	}

	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	accounts, idx := d.m.accountIndex(d.role, oldName)
	if idx < 0 {
		return Account{}, withMessage(ErrAccountNotFound, "account %q not found", oldName)
	}
	if newName == oldName {
		return accounts[idx], nil
	}
	if _, taken := d.m.accountIndex(d.role, newName); taken >= 0 {
		return Account{}, withMessage(ErrAlreadyExists, "username %q is already taken", newName)
	}

	updated := append([]Account(nil), accounts...)
	updated[idx].Username = newName

	cs := &Changeset{}
	d.setAccounts(cs, updated)
	if d.role == RoleReader {
		if err := d.m.cascade(cs, "change username", oldName, newName); err != nil {
			return Account{}, err
		}
	}
	if err := d.m.commit(ctx, "change username", cs); err != nil {
		return Account{}, err
	}
	d.m.log.Info("username changed", slog.String("role", d.role.String()), slog.String("from", oldName), slog.String("to", newName))
	return updated[idx], nil
}

// ChangePassword replaces the password after checking the current one and
// that newPassword equals confirm.
func (d *Directory) ChangePassword(ctx context.Context, username, oldPassword, newPassword, confirm string) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	accounts, idx := d.m.accountIndex(d.role, username)
	if idx < 0 {
		return withMessage(ErrAccountNotFound, "account %q not found", username)
	}
	if !passwordMatches(accounts[idx].Password, oldPassword) {
		return withMessage(ErrInvalidCredentials, "incorrect current password")
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	v := &validator{}
	v.required("password", newPassword).plain("password", newPassword).maxLen("password", newPassword, 72)
	if err := v.err(); err != nil {
		return err
	}
	sealed, err := d.m.passwords.seal(newPassword)
	if err != nil {
		return storageError("change password", err)
	}

	updated := append([]Account(nil), accounts...)
	updated[idx].Password = sealed
	cs := &Changeset{}
	d.setAccounts(cs, updated)
	return d.m.commit(ctx, "change password", cs)
}

// Delete removes the account once confirmation equals DeleteConfirmation
// (any case). A reader's rows in every user log are deleted with it.
func (d *Directory) Delete(ctx context.Context, username, confirmation string) error {
	if !strings.EqualFold(strings.TrimSpace(confirmation), DeleteConfirmation) {
		return ErrConfirmationMissing
	}

	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	accounts, idx := d.m.accountIndex(d.role, username)
	if idx < 0 {
		return withMessage(ErrAccountNotFound, "account %q not found", username)
	}
	rest := make([]Account, 0, len(accounts)-1)
	rest = append(rest, accounts[:idx]...)
	rest = append(rest, accounts[idx+1:]...)

	cs := &Changeset{}
	d.setAccounts(cs, rest)
	if d.role == RoleReader {
		if err := d.m.cascade(cs, "delete account", username, ""); err != nil {
			return err
		}
	}
	if err := d.m.commit(ctx, "delete account", cs); err != nil {
		return err
	}
	d.m.log.Info("account deleted", slog.String("role", d.role.String()), slog.String("user", username))
	return nil
}

func (d *Directory) setAccounts(cs *Changeset, accounts []Account) {
	if d.role == RoleLibrarian {
		cs.Librarians.Set(accounts)
	} else {
		cs.Readers.Set(accounts)
	}
}

// cascade stages a rewrite of every user log that has rows for username.
// The rows move to newName, or are dropped when newName is empty. It fails
// when a user log could not be loaded, since that file would keep the old
// rows.
func (m *Manager) cascade(cs *Changeset, op, username, newName string) error {
	for _, c := range UserLogs {
		if err, bad := m.unreadable[c]; bad {
			return storageError(op, fmt.Errorf("%s could not be loaded earlier, cannot update the rows of %q: %w", c, username, err))
		}
	}
	remap := func(string) (string, bool) { return newName, newName != "" }
	cs.Reassign = &Reassign{From: username, To: newName}

	if rows, ok := rekey(m.state.Borrows, username, remap, func(r *BorrowRecord) *string { return &r.Username }); ok {
		cs.Borrows.Set(rows)
	}
	if rows, ok := rekey(m.state.History, username, remap, func(r *HistoryEntry) *string { return &r.Username }); ok {
		cs.History.Set(rows)
	}
	if rows, ok := rekey(m.state.Ratings, username, remap, func(r *Rating) *string { return &r.Username }); ok {
		cs.Ratings.Set(rows)
	}
	if rows, ok := rekey(m.state.Favorites, username, remap, func(r *Favorite) *string { return &r.Username }); ok {
		cs.Favorites.Set(rows)
	}
	if rows, ok := rekey(m.state.Reviews, username, remap, func(r *Review) *string { return &r.Username }); ok {
		cs.Reviews.Set(rows)
	}
	if rows, ok := rekey(m.state.Submissions, username, remap, func(r *Submission) *string { return &r.Username }); ok {
		cs.Submissions.Set(rows)
	}
	return nil
}

// rekey rewrites or drops the rows owned by username, keeping the order of
// all other rows. It reports false when no row belongs to username.
func rekey[T any](rows []T, username string, remap func(string) (string, bool), owner func(*T) *string) ([]T, bool) {
	changed := false
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if *owner(&row) != username {
			out = append(out, row)
			continue
		}
		changed = true
		name, keep := remap(username)
		if !keep {
			continue
		}
		*owner(&row) = name
		out = append(out, row)
	}
	return out, changed
}

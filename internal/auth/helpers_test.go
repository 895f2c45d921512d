package auth

import (
	"context"
	"encoding/base64"

	"github.com/latchkey-io/latchkey/internal/domain"
)

// fakeUsers is a fixed user directory for strategy tests.
type fakeUsers struct {
	byEmail map[string]domain.User
	byID    map[string]domain.User
	err     error
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	f := &fakeUsers{
		byEmail: make(map[string]domain.User),
		byID:    make(map[string]domain.User),
	}
	for _, u := range users {
		f.byEmail[u.Email] = u
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (domain.User, error) {
	if f.err != nil {
		return domain.User{}, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (domain.User, error) {
	if f.err != nil {
		return domain.User{}, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

// fakeVerifier treats "hashed:<plain>" as the stored hash of <plain>.
type fakeVerifier struct{}

func (fakeVerifier) Verify(plain, hashed string) bool { return hashed == "hashed:"+plain }

func (fakeVerifier) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func basicHeader(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

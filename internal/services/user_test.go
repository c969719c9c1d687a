package services

import (
	"testing"

	"github.com/stratalabs/strata-backend/internal/platform/apperr"
)

func newUserService(t *testing.T) UserService {
	t.Helper()
	return NewUserService(nil, testLogger(t), newFakeUserRepo())
}

func TestUserCreateNormalizesEmail(t *testing.T) {
	svc := newUserService(t)

	user, err := svc.Create(testDbc(), UserInput{
		Email: "  Maria.Lopez@Example.ORG ", FirstName: "Maria", LastName: "Lopez",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.Email != "maria.lopez@example.org" {
		t.Fatalf("email: got %q", user.Email)
	}

	got, err := svc.GetByEmail(testDbc(), "MARIA.LOPEZ@example.org")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("lookup: want %s got %s", user.ID, got.ID)
	}
}

func TestUserCreateRejectsBadEmail(t *testing.T) {
	svc := newUserService(t)

	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := svc.Create(testDbc(), UserInput{Email: email}); !apperr.IsCode(err, apperr.CodeValidation) {
			t.Fatalf("Create(%q): want validation, got %v", email, err)
		}
	}
}

func TestUserGetByEmailUnknown(t *testing.T) {
	svc := newUserService(t)

	_, err := svc.GetByEmail(testDbc(), "nobody@example.org")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("want not_found, got %v", err)
	}
}

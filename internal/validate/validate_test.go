package validate

import (
	"testing"
)

type signupFixture struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type bookFixture struct {
	Title string `json:"title" validate:"required,max=200"`
	ISBN  string `json:"isbn" validate:"omitempty,isbn"`
}

func TestStructCollectsAllFieldErrors(t *testing.T) {
	errs := Struct(signupFixture{Username: "x!", Email: "not-an-email", Password: "short"})
	if len(errs) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(errs), errs)
	}
	fields := map[string]bool{}
	for _, fe := range errs {
		fields[fe.Field] = true
	}
	for _, want := range []string{"username", "email", "password"} {
		if !fields[want] {
			t.Fatalf("missing error for field %q: %v", want, errs)
		}
	}
}

func TestStructValidPayload(t *testing.T) {
	errs := Struct(signupFixture{Username: "book_worm42", Email: "worm@example.com", Password: "sup3rsecret"})
	if errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestISBNValidation(t *testing.T) {
	errs := Struct(bookFixture{Title: "Dune", ISBN: "978-0441013593"})
	if errs != nil {
		t.Fatalf("expected valid book, got %v", errs)
	}

	errs = Struct(bookFixture{Title: "Dune", ISBN: "abc"})
	if len(errs) != 1 || errs[0].Field != "isbn" {
		t.Fatalf("expected isbn error, got %v", errs)
	}
}

func TestOptionalISBNSkippedWhenEmpty(t *testing.T) {
	errs := Struct(bookFixture{Title: "Dune"})
	if errs != nil {
		t.Fatalf("empty isbn should be allowed, got %v", errs)
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pelada-app/pelada-system/models"
	"github.com/pelada-app/pelada-system/repositories"
)

type fakeUserRepo struct {
	users  map[int]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	u.ID = r.nextID
	r.nextID++
	u.CreatedAt = time.Now()
	stored := *u
	r.users[u.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Name:     "  Marta  ",
		Email:    "  Marta@Example.COM ",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Name != "Marta" {
		t.Errorf("Name = %q, want trimmed %q", user.Name, "Marta")
	}
	if user.Email != "marta@example.com" {
		t.Errorf("Email = %q, want normalized %q", user.Email, "marta@example.com")
	}
	if user.PasswordHash != "" {
		t.Error("password hash leaked out of Register")
	}

	logged, err := svc.Login(ctx, LoginInput{Email: "MARTA@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Errorf("Login returned user %d, want %d", logged.ID, user.ID)
	}
	if logged.PasswordHash != "" {
		t.Error("password hash leaked out of Login")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	_, err := svc.Register(context.Background(), RegisterInput{
		Name: "Marta", Email: "marta@example.com", Password: "short",
	})
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	ctx := context.Background()

	input := RegisterInput{Name: "Marta", Email: "marta@example.com", Password: "correct-horse"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(ctx, input); !errors.Is(err, ErrAuthEmailTaken) {
		t.Fatalf("err = %v, want ErrAuthEmailTaken", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{
		Name: "Marta", Email: "marta@example.com", Password: "correct-horse",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "marta@example.com", Password: "wrong"}); !errors.Is(err, ErrAuthInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrAuthInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "correct-horse"}); !errors.Is(err, ErrAuthInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrAuthInvalidCredentials", err)
	}
}

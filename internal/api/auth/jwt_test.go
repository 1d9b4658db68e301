package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/good-yellow-bee/sitecraft/internal/models"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!")

func testUser() *models.User {
	return &models.User{
		ID:    "user-123",
		Name:  "Ada",
		Email: "ada@example.com",
		Role:  models.RoleEditor,
	}
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTService(testSecret, 15*time.Minute)
	user := testUser()

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", claims.UserID, user.ID)
	}
	if claims.Email() != user.Email {
		t.Errorf("Email() = %q, want %q", claims.Email(), user.Email)
	}
	if claims.Name != user.Name {
		t.Errorf("Name = %q, want %q", claims.Name, user.Name)
	}
	if claims.Role != user.Role {
		t.Errorf("Role = %q, want %q", claims.Role, user.Role)
	}
	if claims.Issuer != Issuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
	}
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := NewJWTService(testSecret, 15*time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt-token"},
		{"wrong-segments", "a.b"},
		{"invalid-signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJpZCI6InRlc3QifQ.invalid"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tc.token); err == nil {
				t.Error("expected error for invalid token")
			}
		})
	}
}

func TestJWTService_DifferentSecret(t *testing.T) {
	svc1 := NewJWTService([]byte("secret-one-32-bytes-long!!!!!!!"), time.Minute)
	svc2 := NewJWTService([]byte("secret-two-32-bytes-long!!!!!!!"), time.Minute)

	token, err := svc1.GenerateToken(testUser())
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := svc2.ValidateToken(token); err == nil {
		t.Error("expected error validating token with different secret")
	}
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc := NewJWTService(testSecret, time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.GenerateToken(testUser())
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("ValidateToken() error = %v, want ErrTokenExpired", err)
	}
}

func TestJWTService_WrongIssuer(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		UserID: "user-123",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	svc := NewJWTService(testSecret, time.Minute)
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidIssuer) {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidIssuer", err)
	}
}

func TestJWTService_TTLSeconds(t *testing.T) {
	svc := NewJWTService(testSecret, 15*time.Minute)

	if got := svc.TTLSeconds(); got != 900 {
		t.Errorf("TTLSeconds() = %d, want 900", got)
	}
}

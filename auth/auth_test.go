package auth

import (
	"testing"

	"agrilink/middleware"
	"agrilink/models"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	user := &models.User{
		UserID:   "farmer1",
		Username: "akbar",
		Role:     models.RoleFarmer,
	}

	token, err := generateAccessToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := middleware.ValidateJWT("Bearer " + token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "farmer1" {
		t.Errorf("userId: got %q", claims.UserID)
	}
	if claims.Role != models.RoleFarmer {
		t.Errorf("role: got %q", claims.Role)
	}
	if claims.Username != "akbar" {
		t.Errorf("username: got %q", claims.Username)
	}
}

func TestRefreshTokensAreUniqueAndHashed(t *testing.T) {
	a, err := generateRefreshToken()
	if err != nil {
		t.Fatal(err)
	}
	b, err := generateRefreshToken()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two refresh tokens should never collide")
	}
	if hashToken(a) == a {
		t.Error("stored form must not equal the raw token")
	}
	if hashToken(a) != hashToken(a) {
		t.Error("hash must be deterministic")
	}
}

package services

import (
	"strings"
	"testing"
)

func TestProcessWalletLogin(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db)

	user, err := service.ProcessWalletLogin("8xKvWq3Zt1P2yR4mN5bC6dE7fG9hJ1kL2mN3pQ4rS5t")
	if err != nil {
		t.Fatalf("ProcessWalletLogin failed: %v", err)
	}
	if user.ID == 0 {
		t.Error("expected user ID to be assigned")
	}
	if user.Nickname == "" {
		t.Error("expected a generated nickname")
	}
	// Generated nicknames look like Adjective_Noun_1234
	if parts := strings.Split(user.Nickname, "_"); len(parts) != 3 {
		t.Errorf("unexpected nickname format: %q", user.Nickname)
	}

	// Second login returns the same user
	again, err := service.ProcessWalletLogin(user.WalletAddress)
	if err != nil {
		t.Fatalf("repeat ProcessWalletLogin failed: %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("expected user %d, got %d", user.ID, again.ID)
	}
	if again.Nickname != user.Nickname {
		t.Errorf("expected nickname %q preserved, got %q", user.Nickname, again.Nickname)
	}
}

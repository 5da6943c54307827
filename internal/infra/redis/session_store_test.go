package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hhkuy/sums-qz/internal/app"
	"github.com/hhkuy/sums-qz/internal/domain"
)

func TestSessionStoreSetsAndClearsLivenessKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	session, _ := app.NewSession("chat-1", sampleRecords())
	store.Put("chat-1", session)

	if !mr.Exists("quiz:session:chat-1") {
		t.Fatalf("expected liveness key to be set")
	}
	if got, ok := store.Get("chat-1"); !ok || got.ID() != session.ID() {
		t.Fatalf("expected local session back")
	}

	store.Delete("chat-1")
	if mr.Exists("quiz:session:chat-1") {
		t.Fatalf("expected liveness key to be removed")
	}
	if _, ok := store.Get("chat-1"); ok {
		t.Fatalf("expected session removed locally")
	}
}

func sampleRecords() []domain.QuestionRecord {
	return []domain.QuestionRecord{
		{Text: "Which nerve?", Options: []string{"median", "ulnar"}, Answer: 1},
	}
}

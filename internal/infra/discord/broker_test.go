package discord

import (
	"testing"

	"github.com/vietddude/guildctl/internal/core/domain"
)

func joinEvent(guildID, userID string) domain.MemberJoin {
	return domain.MemberJoin{
		GuildID: guildID,
		Member:  domain.Member{User: domain.User{ID: userID}, GuildID: guildID},
	}
}

func TestBroker_PredicateFiltering(t *testing.T) {
	b := NewBroker()

	ch, cancel := b.Subscribe(func(ev domain.MemberJoin) bool {
		return ev.GuildID == "g1" && ev.Member.User.ID == "u1"
	})
	defer cancel()

	b.Publish(joinEvent("g2", "u1"))
	b.Publish(joinEvent("g1", "u2"))
	select {
	case ev := <-ch:
		t.Fatalf("received non-matching event %+v", ev)
	default:
	}

	b.Publish(joinEvent("g1", "u1"))
	select {
	case ev := <-ch:
		if ev.GuildID != "g1" || ev.Member.User.ID != "u1" {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("matching event was not delivered")
	}
}

func TestBroker_CancelRemovesSubscription(t *testing.T) {
	b := NewBroker()

	ch, cancel := b.Subscribe(func(domain.MemberJoin) bool { return true })
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}

	cancel()
	if b.Len() != 0 {
		t.Fatalf("Len() = %d after cancel, want 0", b.Len())
	}

	// Cancelling twice must be safe.
	cancel()

	b.Publish(joinEvent("g1", "u1"))
	select {
	case ev := <-ch:
		t.Fatalf("cancelled subscription received %+v", ev)
	default:
	}
}

func TestBroker_PublishNeverBlocks(t *testing.T) {
	b := NewBroker()

	_, cancel := b.Subscribe(func(domain.MemberJoin) bool { return true })
	defer cancel()

	// Nobody drains the channel; repeated publishes must not stall.
	for i := 0; i < 10; i++ {
		b.Publish(joinEvent("g1", "u1"))
	}
}

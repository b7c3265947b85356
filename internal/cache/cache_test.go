package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frandy73/Lumina/internal/domain"
)

func TestMemory_SetGetInvalidate(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()

	l, _ := c.GetList(ctx, "u1")
	if l.Hit {
		t.Fatalf("expected miss on empty cache")
	}

	docs := []domain.Document{{ID: "d1", Name: "a.pdf", Base64Data: "data:application/pdf;base64,QUJD"}}
	if err := c.SetList(ctx, "u1", l.Generation, docs); err != nil {
		t.Fatalf("SetList: %v", err)
	}
	got, err := c.GetList(ctx, "u1")
	if err != nil || !got.Hit || len(got.Docs) != 1 || got.Docs[0].ID != "d1" {
		t.Fatalf("GetList = %+v err=%v", got, err)
	}
	if got.Docs[0].Hydrated() {
		t.Fatalf("cached listing must never carry payloads")
	}
	if other, _ := c.GetList(ctx, "u2"); other.Hit {
		t.Fatalf("entries must be scoped per owner")
	}

	_ = c.Invalidate(ctx, "u1")
	after, _ := c.GetList(ctx, "u1")
	if after.Hit || after.Generation != l.Generation+1 {
		t.Fatalf("after invalidate: %+v", after)
	}
}

func TestMemory_StaleGenerationIsDropped(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()

	// a list read starts, then a delete invalidates before the write-back
	before, _ := c.GetList(ctx, "u1")
	_ = c.Invalidate(ctx, "u1")
	_ = c.SetList(ctx, "u1", before.Generation, []domain.Document{{ID: "deleted"}})

	if l, _ := c.GetList(ctx, "u1"); l.Hit {
		t.Fatalf("listing read before the invalidation must not be served: %+v", l.Docs)
	}

	cur, _ := c.GetList(ctx, "u1")
	_ = c.SetList(ctx, "u1", cur.Generation, []domain.Document{{ID: "kept"}})
	if l, _ := c.GetList(ctx, "u1"); !l.Hit || l.Docs[0].ID != "kept" {
		t.Fatalf("current generation should be stored: %+v", l)
	}
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory(time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.SetList(ctx, "u1", 0, []domain.Document{{ID: "d1"}})
	now = now.Add(2 * time.Second)
	if l, _ := c.GetList(ctx, "u1"); l.Hit {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestNoop(t *testing.T) {
	var c DocumentCache = Noop{}
	ctx := context.Background()
	_ = c.SetList(ctx, "u1", 0, []domain.Document{{ID: "d1"}})
	if l, err := c.GetList(ctx, "u1"); l.Hit || err != nil {
		t.Fatalf("noop must always miss")
	}
}

func TestNewRedis_RequiresAddr(t *testing.T) {
	if _, err := NewRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestRedis_Key(t *testing.T) {
	r := newRedisWithClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), 0, "")
	defer r.Close()
	if got := r.key("u1"); got != "lumina:docs:u1" {
		t.Fatalf("key = %q", got)
	}
	if got := r.genKey("u1"); got != "lumina:docs-gen:u1" {
		t.Fatalf("genKey = %q", got)
	}
	if r.ttl != time.Minute {
		t.Fatalf("default ttl = %v", r.ttl)
	}
}

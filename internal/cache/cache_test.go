package cache

import (
	"testing"
	"time"
)

func TestResponseCache_PutGet(t *testing.T) {
	c := New(5*time.Second, 100)

	c.Put(1, "/api/conversations", []byte(`{"a":1}`))

	body, hit := c.Get(1, "/api/conversations")
	if !hit {
		t.Fatal("expected cache hit")
	}
	if string(body) != `{"a":1}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestResponseCache_VariesPerUser(t *testing.T) {
	c := New(5*time.Second, 100)

	c.Put(1, "/api/conversations", []byte("for user 1"))

	if _, hit := c.Get(2, "/api/conversations"); hit {
		t.Fatal("user 2 must not see user 1's cached view")
	}
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	c := New(10*time.Millisecond, 100)

	c.Put(1, "/p", []byte("x"))
	if _, hit := c.Get(1, "/p"); !hit {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(15 * time.Millisecond)

	if _, hit := c.Get(1, "/p"); hit {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestResponseCache_Invalidate(t *testing.T) {
	c := New(5*time.Second, 100)

	c.Put(1, "/a", []byte("a"))
	c.Put(1, "/b", []byte("b"))
	c.Put(2, "/a", []byte("other"))

	c.Invalidate(1)

	if _, hit := c.Get(1, "/a"); hit {
		t.Fatal("entry /a should be invalidated")
	}
	if _, hit := c.Get(1, "/b"); hit {
		t.Fatal("entry /b should be invalidated")
	}
	if _, hit := c.Get(2, "/a"); !hit {
		t.Fatal("user 2 entry should survive")
	}
}

func TestResponseCache_MaxSizeEviction(t *testing.T) {
	c := New(5*time.Second, 2)

	c.Put(1, "/a", []byte("a"))
	time.Sleep(time.Millisecond)
	c.Put(1, "/b", []byte("b"))
	time.Sleep(time.Millisecond)
	c.Put(1, "/c", []byte("c"))

	if c.Size() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Size())
	}
	if _, hit := c.Get(1, "/a"); hit {
		t.Fatal("oldest entry should have been evicted")
	}
	if _, hit := c.Get(1, "/c"); !hit {
		t.Fatal("newest entry should be present")
	}
}

func TestResponseCache_Sweep(t *testing.T) {
	c := New(10*time.Millisecond, 100)

	c.Put(1, "/a", []byte("a"))
	time.Sleep(15 * time.Millisecond)
	c.Put(1, "/b", []byte("b"))

	c.Sweep()

	if c.Size() != 1 {
		t.Fatalf("expected 1 entry after sweep, got %d", c.Size())
	}
	if _, hit := c.Get(1, "/b"); !hit {
		t.Fatal("fresh entry removed by sweep")
	}
}

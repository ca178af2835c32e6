package flight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroup_SingleCaller(t *testing.T) {
	g := NewGroup[string]()

	v, attached, err := g.Do(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "result", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if attached {
		t.Error("Expected first caller to own the operation")
	}
	if v != "result" {
		t.Errorf("Value = %q, want %q", v, "result")
	}
	if g.Pending("k") {
		t.Error("Expected entry removed after completion")
	}
}

func TestGroup_CoalescesConcurrentCallers(t *testing.T) {
	g := NewGroup[int]()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (int, error) {
		calls.Add(1)
		close(started)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	attachments := make([]bool, 10)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], attachments[0], _ = g.Do(context.Background(), "k", fn)
	}()
	<-started

	for i := 1; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], attachments[i], _ = g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
				calls.Add(1)
				return -1, nil
			})
		}()
	}

	// Give followers time to attach before releasing the owner
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fn ran %d times, want 1", got)
	}
	attachedCount := 0
	for i, v := range results {
		if v != 7 {
			t.Errorf("results[%d] = %d, want 7", i, v)
		}
		if attachments[i] {
			attachedCount++
		}
	}
	if attachedCount != 9 {
		t.Errorf("attached callers = %d, want 9", attachedCount)
	}
}

func TestGroup_SharedError(t *testing.T) {
	g := NewGroup[int]()
	wantErr := errors.New("boom")

	release := make(chan struct{})
	started := make(chan struct{})
	go g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 0, wantErr
	})
	<-started

	done := make(chan error, 1)
	go func() {
		_, _, err := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
			t.Error("follower fn must not run")
			return 0, nil
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-done; err != wantErr {
		t.Errorf("Follower error = %v, want %v", err, wantErr)
	}
}

func TestGroup_FollowerCancelDetachesOnlyItself(t *testing.T) {
	g := NewGroup[int]()

	release := make(chan struct{})
	started := make(chan struct{})

	ownerDone := make(chan int, 1)
	go func() {
		v, _, _ := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 42, nil
		})
		ownerDone <- v
	}()
	<-started

	followerCtx, cancel := context.WithCancel(context.Background())
	followerDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(followerCtx, "k", func(ctx context.Context) (int, error) {
			t.Error("follower fn must not run")
			return 0, nil
		})
		followerDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-followerDone; !errors.Is(err, context.Canceled) {
		t.Errorf("Follower error = %v, want context.Canceled", err)
	}

	// The owner is unaffected
	close(release)
	if v := <-ownerDone; v != 42 {
		t.Errorf("Owner value = %d, want 42", v)
	}
}

func TestGroup_OwnerCancellationSharedWithFollowers(t *testing.T) {
	g := NewGroup[int]()

	ownerCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	ownerDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(ownerCtx, "k", func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		})
		ownerDone <- err
	}()
	<-started

	followerDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
			t.Error("follower fn must not run")
			return 0, nil
		})
		followerDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-ownerDone; !errors.Is(err, context.Canceled) {
		t.Errorf("Owner error = %v, want context.Canceled", err)
	}
	if err := <-followerDone; !errors.Is(err, context.Canceled) {
		t.Errorf("Follower error = %v, want context.Canceled", err)
	}
	if g.Pending("k") {
		t.Error("Expected entry removed after cancellation")
	}
}

func TestGroup_EntryRemovedExactlyOnce(t *testing.T) {
	g := NewGroup[int]()

	// A failed operation must not block future attempts for the key
	_, _, err := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("Expected error")
	}

	v, attached, err := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 5, nil
	})
	if err != nil || attached || v != 5 {
		t.Errorf("Second attempt = (%d, %v, %v), want (5, false, nil)", v, attached, err)
	}
}

package cart_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/caseymorris321/waterslab/internal/domain"
	"github.com/caseymorris321/waterslab/internal/service/cart"
	"github.com/caseymorris321/waterslab/internal/service/catalog"
	"github.com/caseymorris321/waterslab/internal/storage/memory"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func newTestService(cfg cart.Config) (*cart.Service, *catalog.MockService, domain.CartRepository) {
	repo := memory.NewCartRepository()
	mock := catalog.NewMockService()
	svc := cart.NewServiceWithoutMetrics(repo, mock, cfg, loggerForTests())
	return svc, mock, repo
}

func TestAdd_AccumulatesQuantity(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{})
	owner := domain.GuestOwner("tok-1")

	if _, err := svc.Add(context.Background(), owner, "sku-7", 1); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	updated, err := svc.Add(context.Background(), owner, "sku-7", 2)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	line, ok := updated.Line("sku-7")
	if !ok || line.Qty != 3 {
		t.Fatalf("expected sku-7 qty 3, got %+v ok=%v", line, ok)
	}
	if len(updated.Lines) != 1 {
		t.Fatalf("expected single line, got %d", len(updated.Lines))
	}
}

func TestAdd_ClampsToMaxPerLine(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{MaxQtyPerLine: 5})
	owner := domain.UserOwner("user-1")

	if _, err := svc.Add(context.Background(), owner, "sku-7", 3); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	updated, err := svc.Add(context.Background(), owner, "sku-7", 4)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if line, _ := updated.Line("sku-7"); line.Qty != 5 {
		t.Fatalf("expected clamped qty 5, got %d", line.Qty)
	}

	// Новая позиция тоже обрезается.
	updated, err = svc.Add(context.Background(), owner, "sku-11", 9)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if line, _ := updated.Line("sku-11"); line.Qty != 5 {
		t.Fatalf("expected clamped qty 5 for new line, got %d", line.Qty)
	}
}

func TestAdd_UnknownProductLeavesCartUnchanged(t *testing.T) {
	svc, _, repo := newTestService(cart.Config{})
	owner := domain.GuestOwner("tok-1")

	if _, err := svc.Add(context.Background(), owner, "sku-7", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	before, _ := repo.Get(context.Background(), owner)

	if _, err := svc.Add(context.Background(), owner, "sku-missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	after, _ := repo.Get(context.Background(), owner)
	if !reflect.DeepEqual(before, after) {
		t.Fatal("stored cart changed after failed add")
	}
}

func TestAdd_InvalidQuantity(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{})
	owner := domain.GuestOwner("tok-1")

	for _, qty := range []int32{0, -1} {
		if _, err := svc.Add(context.Background(), owner, "sku-7", qty); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestAdd_CapturesPriceSnapshot(t *testing.T) {
	svc, mock, _ := newTestService(cart.Config{})
	owner := domain.UserOwner("user-1")
	mock.SetProduct(domain.Product{ID: "sku-42", Name: "Wave Jug", PriceMinor: 1234})

	updated, err := svc.Add(context.Background(), owner, "sku-42", 1)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if line, _ := updated.Line("sku-42"); line.PriceMinor != 1234 {
		t.Fatalf("expected price snapshot 1234, got %d", line.PriceMinor)
	}
}

func TestUpdate_SetsExactQuantity(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{})
	owner := domain.GuestOwner("tok-1")

	if _, err := svc.Add(context.Background(), owner, "sku-7", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.Add(context.Background(), owner, "sku-7", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	updated, err := svc.Update(context.Background(), owner, "sku-7", 5)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if line, _ := updated.Line("sku-7"); line.Qty != 5 {
		t.Fatalf("expected qty 5, got %d", line.Qty)
	}
}

func TestUpdate_MissingLine(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{})
	owner := domain.GuestOwner("tok-1")

	if _, err := svc.Update(context.Background(), owner, "sku-7", 2); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestUpdate_InvalidQuantityLeavesCartUnchanged(t *testing.T) {
	svc, _, repo := newTestService(cart.Config{})
	owner := domain.UserOwner("user-1")

	if _, err := svc.Add(context.Background(), owner, "sku-7", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	before, _ := repo.Get(context.Background(), owner)

	for _, qty := range []int32{0, -1} {
		if _, err := svc.Update(context.Background(), owner, "sku-7", qty); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}

	after, _ := repo.Get(context.Background(), owner)
	if !reflect.DeepEqual(before, after) {
		t.Fatal("stored cart changed after rejected update")
	}
}

func TestRemove_IsIdempotent(t *testing.T) {
	svc, _, repo := newTestService(cart.Config{})
	owner := domain.GuestOwner("tok-1")

	if _, err := svc.Add(context.Background(), owner, "sku-7", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.Remove(context.Background(), owner, "sku-7"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	before, _ := repo.Get(context.Background(), owner)
	snapshot, err := svc.Remove(context.Background(), owner, "sku-7")
	if err != nil {
		t.Fatalf("removing absent line must succeed: %v", err)
	}
	if !snapshot.IsEmpty() {
		t.Fatal("expected empty cart")
	}
	after, _ := repo.Get(context.Background(), owner)
	if !reflect.DeepEqual(before, after) {
		t.Fatal("no-op remove must leave the cart unchanged")
	}
}

func TestClear_KeepsCartForOwner(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{})
	owner := domain.UserOwner("user-1")

	if _, err := svc.Add(context.Background(), owner, "sku-7", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.Add(context.Background(), owner, "sku-11", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	cleared, err := svc.Clear(context.Background(), owner)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if !cleared.IsEmpty() {
		t.Fatalf("expected empty cart, got %d lines", len(cleared.Lines))
	}
	if cleared.Owner != owner {
		t.Fatal("clear must not touch the owner")
	}
}

func TestApply_UnknownOperation(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{})

	_, err := svc.Apply(context.Background(), domain.GuestOwner("tok-1"), cart.Mutation{Op: "swap"})
	if err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestApply_ConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{})
	owner := domain.GuestOwner("tok-1")

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.Add(context.Background(), owner, "sku-7", 1); err != nil {
				t.Errorf("concurrent add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	cart, _, err := svc.Snapshot(context.Background(), owner)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if line, _ := cart.Line("sku-7"); line.Qty != workers {
		t.Fatalf("lost update: expected qty %d, got %d", workers, line.Qty)
	}
}

func TestApply_DifferentOwnersAreIndependent(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{})

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = svc.Add(context.Background(), domain.GuestOwner("tok-a"), "sku-7", 1)
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Add(context.Background(), domain.UserOwner("user-b"), "sku-7", 1)
		}()
	}
	wg.Wait()

	guestCart, _, err := svc.Snapshot(context.Background(), domain.GuestOwner("tok-a"))
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	userCart, _, err := svc.Snapshot(context.Background(), domain.UserOwner("user-b"))
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if line, _ := guestCart.Line("sku-7"); line.Qty != workers {
		t.Fatalf("guest cart lost updates: %d", line.Qty)
	}
	if line, _ := userCart.Line("sku-7"); line.Qty != workers {
		t.Fatalf("user cart lost updates: %d", line.Qty)
	}
}

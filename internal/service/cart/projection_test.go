package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/caseymorris321/waterslab/internal/domain"
	"github.com/caseymorris321/waterslab/internal/service/cart"
)

func TestProject_EmptyCart(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{ShippingFeeMinor: 800})

	proj, err := svc.Project(context.Background(), domain.GuestOwner("tok-1"))
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if proj.ItemCount != 0 || proj.SubtotalMinor != 0 || proj.ShippingMinor != 0 || proj.TotalMinor != 0 {
		t.Fatalf("expected zero projection, got %+v", proj)
	}
}

func TestProject_ComputesTotals(t *testing.T) {
	svc, mock, _ := newTestService(cart.Config{ShippingFeeMinor: 800})
	mock.SetProduct(domain.Product{ID: "sku-a", PriceMinor: 1000})
	mock.SetProduct(domain.Product{ID: "sku-b", PriceMinor: 250})

	owner := domain.UserOwner("user-1")
	seedCart(t, svc, owner, map[string]int32{"sku-a": 2, "sku-b": 3})

	proj, err := svc.Project(context.Background(), owner)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if proj.ItemCount != 5 {
		t.Fatalf("expected item count 5, got %d", proj.ItemCount)
	}
	if proj.SubtotalMinor != 2*1000+3*250 {
		t.Fatalf("unexpected subtotal %d", proj.SubtotalMinor)
	}
	if proj.ShippingMinor != 800 {
		t.Fatalf("expected flat shipping fee, got %d", proj.ShippingMinor)
	}
	if proj.TotalMinor != proj.SubtotalMinor+proj.ShippingMinor {
		t.Fatalf("total mismatch: %+v", proj)
	}
}

func TestProject_UsesCurrentCatalogPriceNotSnapshot(t *testing.T) {
	svc, mock, _ := newTestService(cart.Config{})
	mock.SetProduct(domain.Product{ID: "sku-a", PriceMinor: 1000})

	owner := domain.GuestOwner("tok-1")
	seedCart(t, svc, owner, map[string]int32{"sku-a": 1})

	// Цена в каталоге меняется после добавления.
	mock.SetProduct(domain.Product{ID: "sku-a", PriceMinor: 1500})

	proj, err := svc.Project(context.Background(), owner)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if proj.SubtotalMinor != 1500 {
		t.Fatalf("projection must use the current price, got %d", proj.SubtotalMinor)
	}
}

func TestProject_ScenarioAddAddUpdate(t *testing.T) {
	svc, mock, _ := newTestService(cart.Config{})
	owner := domain.GuestOwner("tok-1")

	if _, err := svc.Add(context.Background(), owner, "sku-7", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.Add(context.Background(), owner, "sku-7", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.Update(context.Background(), owner, "sku-7", 5); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	current, err := mock.Lookup(context.Background(), "sku-7")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	proj, err := svc.Project(context.Background(), owner)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if proj.SubtotalMinor != 5*current.PriceMinor {
		t.Fatalf("expected subtotal %d, got %d", 5*current.PriceMinor, proj.SubtotalMinor)
	}
}

func TestProject_MissingProductIsAnError(t *testing.T) {
	svc, mock, _ := newTestService(cart.Config{})
	owner := domain.UserOwner("user-1")

	seedCart(t, svc, owner, map[string]int32{"sku-7": 1})
	mock.RemoveProduct("sku-7")

	if _, err := svc.Project(context.Background(), owner); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestClearThenProject(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{ShippingFeeMinor: 800})
	owner := domain.GuestOwner("tok-1")

	seedCart(t, svc, owner, map[string]int32{"sku-7": 3})
	if _, err := svc.Clear(context.Background(), owner); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	proj, err := svc.Project(context.Background(), owner)
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if proj.ItemCount != 0 || proj.SubtotalMinor != 0 || proj.TotalMinor != 0 {
		t.Fatalf("expected zero projection after clear, got %+v", proj)
	}
}

func TestSnapshot_ReturnsCartAndProjection(t *testing.T) {
	svc, _, _ := newTestService(cart.Config{ShippingFeeMinor: 800})
	owner := domain.UserOwner("user-1")

	seedCart(t, svc, owner, map[string]int32{"sku-7": 2})

	snapshot, proj, err := svc.Snapshot(context.Background(), owner)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(snapshot.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(snapshot.Lines))
	}
	if proj.ItemCount != 2 || proj.ShippingMinor != 800 {
		t.Fatalf("unexpected projection %+v", proj)
	}
}

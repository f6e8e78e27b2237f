package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"agrilink/models"
)

// memStore is an in-memory Store. WithTransaction serializes transactions
// and rolls every write back when the callback fails, matching the
// all-or-nothing contract of the real store.
type memStore struct {
	mu     sync.Mutex
	crops  map[string]models.Crop
	orders map[string]models.Order
	users  map[string]models.User
}

type txMarker struct{}

func newMemStore() *memStore {
	return &memStore{
		crops:  make(map[string]models.Crop),
		orders: make(map[string]models.Order),
		users:  make(map[string]models.User),
	}
}

func (m *memStore) lock(ctx context.Context) func() {
	if ctx.Value(txMarker{}) != nil {
		return func() {} // already inside a transaction
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cropsBackup := make(map[string]models.Crop, len(m.crops))
	for k, v := range m.crops {
		cropsBackup[k] = v
	}
	ordersBackup := make(map[string]models.Order, len(m.orders))
	for k, v := range m.orders {
		ordersBackup[k] = v
	}

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		m.crops = cropsBackup
		m.orders = ordersBackup
		return err
	}
	return nil
}

func (m *memStore) FindCropByID(ctx context.Context, id string) (*models.Crop, error) {
	defer m.lock(ctx)()
	c, ok := m.crops[id]
	if !ok {
		return nil, errors.New("no documents")
	}
	return &c, nil
}

func (m *memStore) FindOrderByID(ctx context.Context, id string) (*models.Order, error) {
	defer m.lock(ctx)()
	o, ok := m.orders[id]
	if !ok {
		return nil, errors.New("no documents")
	}
	return &o, nil
}

func (m *memStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	defer m.lock(ctx)()
	u, ok := m.users[id]
	if !ok {
		return nil, errors.New("no documents")
	}
	return &u, nil
}

func (m *memStore) InsertOrder(ctx context.Context, o *models.Order) error {
	defer m.lock(ctx)()
	m.orders[o.OrderID] = *o
	return nil
}

func (m *memStore) UpdateOrderStatusCAS(ctx context.Context, orderID, farmerID string, from, to models.OrderStatus) (bool, error) {
	defer m.lock(ctx)()
	o, ok := m.orders[orderID]
	if !ok || o.FarmerID != farmerID || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.orders[orderID] = o
	return true, nil
}

func (m *memStore) SetOrderStatus(ctx context.Context, orderID string, to models.OrderStatus) error {
	defer m.lock(ctx)()
	o, ok := m.orders[orderID]
	if !ok {
		return errors.New("no documents")
	}
	o.Status = to
	m.orders[orderID] = o
	return nil
}

func (m *memStore) SetCropQuantity(ctx context.Context, cropID string, quantity int) error {
	defer m.lock(ctx)()
	c, ok := m.crops[cropID]
	if !ok {
		return errors.New("no documents")
	}
	c.Quantity = quantity
	if quantity == 0 {
		c.Status = models.CropSold
	} else {
		c.Status = models.CropAvailable
	}
	m.crops[cropID] = c
	return nil
}

func (m *memStore) ListOrders(ctx context.Context, field, userID string) ([]models.Order, error) {
	defer m.lock(ctx)()
	var out []models.Order
	for _, o := range m.orders {
		if (field == "buyerId" && o.BuyerID == userID) || (field == "farmerId" && o.FarmerID == userID) {
			out = append(out, o)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	recipient string
	message   string
	params    map[string]string
}

func (n *recordingNotifier) Emit(_ context.Context, recipientID, message string, params map[string]string, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{recipient: recipientID, message: message, params: params})
}

func (n *recordingNotifier) count(recipient, message string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.recipient == recipient && s.message == message {
			c++
		}
	}
	return c
}

func fixture() (*memStore, *recordingNotifier, *Service) {
	store := newMemStore()
	store.users["farmer1"] = models.User{UserID: "farmer1", Name: "Akbar", Role: models.RoleFarmer}
	store.users["buyer1"] = models.User{UserID: "buyer1", Name: "Bilal", Role: models.RoleBuyer}
	store.crops["crop1"] = models.Crop{
		CropID:   "crop1",
		FarmerID: "farmer1",
		Name:     "Tomatoes",
		Category: models.CategoryVegetables,
		Quantity: 10,
		Price:    5,
		Status:   models.CropAvailable,
	}
	notifier := &recordingNotifier{}
	return store, notifier, NewService(store, notifier)
}

func TestPlaceAcceptCompleteScenario(t *testing.T) {
	ctx := context.Background()
	store, notifier, svc := fixture()

	order, err := svc.Place(ctx, "buyer1", "farmer1", "crop1", 4)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if order.TotalPrice != 20 {
		t.Errorf("total price: got %v, want 20", order.TotalPrice)
	}
	if order.Status != models.OrderPending {
		t.Errorf("status after place: got %s, want Pending", order.Status)
	}
	if got := notifier.count("farmer1", "notification.newOrder"); got != 1 {
		t.Errorf("farmer newOrder notifications: got %d, want 1", got)
	}

	if err := svc.UpdateStatus(ctx, "farmer1", order.OrderID, models.OrderAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if store.orders[order.OrderID].Status != models.OrderAccepted {
		t.Fatal("order should be Accepted")
	}
	if got := notifier.count("buyer1", "notification.orderAccepted"); got != 1 {
		t.Errorf("buyer orderAccepted notifications: got %d, want 1", got)
	}

	if err := svc.Complete(ctx, "buyer1", order.OrderID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	crop := store.crops["crop1"]
	if crop.Quantity != 6 {
		t.Errorf("crop quantity: got %d, want 6", crop.Quantity)
	}
	if crop.Status != models.CropAvailable {
		t.Errorf("crop status: got %s, want available", crop.Status)
	}
	if store.orders[order.OrderID].Status != models.OrderCompleted {
		t.Error("order should be Completed")
	}
	if got := notifier.count("buyer1", "notification.orderCompleted"); got != 1 {
		t.Errorf("buyer orderCompleted notifications: got %d, want exactly 1", got)
	}
}

func TestCompleteEntireStockMarksSold(t *testing.T) {
	ctx := context.Background()
	store, _, svc := fixture()

	order, err := svc.Place(ctx, "buyer1", "", "crop1", 10)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := svc.UpdateStatus(ctx, "farmer1", order.OrderID, models.OrderAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.Complete(ctx, "farmer1", order.OrderID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	crop := store.crops["crop1"]
	if crop.Quantity != 0 {
		t.Errorf("crop quantity: got %d, want 0", crop.Quantity)
	}
	if crop.Status != models.CropSold {
		t.Errorf("crop status: got %s, want sold", crop.Status)
	}
}

func TestQuantityZeroIffSold(t *testing.T) {
	ctx := context.Background()
	store, _, svc := fixture()

	for _, qty := range []int{4, 6} {
		order, err := svc.Place(ctx, "buyer1", "", "crop1", qty)
		if err != nil {
			t.Fatalf("place %d: %v", qty, err)
		}
		if err := svc.UpdateStatus(ctx, "farmer1", order.OrderID, models.OrderAccepted); err != nil {
			t.Fatalf("accept: %v", err)
		}
		if err := svc.Complete(ctx, "buyer1", order.OrderID); err != nil {
			t.Fatalf("complete: %v", err)
		}

		crop := store.crops["crop1"]
		if (crop.Quantity == 0) != (crop.Status == models.CropSold) {
			t.Fatalf("invariant broken: quantity=%d status=%s", crop.Quantity, crop.Status)
		}
	}
}

func TestDoubleCompleteFailsWithoutSecondDecrement(t *testing.T) {
	ctx := context.Background()
	store, _, svc := fixture()

	order, _ := svc.Place(ctx, "buyer1", "", "crop1", 4)
	_ = svc.UpdateStatus(ctx, "farmer1", order.OrderID, models.OrderAccepted)
	if err := svc.Complete(ctx, "buyer1", order.OrderID); err != nil {
		t.Fatalf("first complete: %v", err)
	}

	err := svc.Complete(ctx, "buyer1", order.OrderID)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("second complete: got %v, want ErrPreconditionFailed", err)
	}
	if got := store.crops["crop1"].Quantity; got != 6 {
		t.Errorf("crop decremented twice: quantity %d, want 6", got)
	}
}

func TestCompleteInsufficientStockLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store, notifier, svc := fixture()

	// Two accepted orders that together oversell the crop: placement does
	// not reserve stock, so the second completion must fail cleanly.
	first, _ := svc.Place(ctx, "buyer1", "", "crop1", 7)
	second, _ := svc.Place(ctx, "buyer1", "", "crop1", 7)
	_ = svc.UpdateStatus(ctx, "farmer1", first.OrderID, models.OrderAccepted)
	_ = svc.UpdateStatus(ctx, "farmer1", second.OrderID, models.OrderAccepted)

	if err := svc.Complete(ctx, "buyer1", first.OrderID); err != nil {
		t.Fatalf("first complete: %v", err)
	}

	err := svc.Complete(ctx, "buyer1", second.OrderID)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("got %v, want ErrInsufficientStock", err)
	}

	if got := store.crops["crop1"].Quantity; got != 3 {
		t.Errorf("crop quantity: got %d, want 3 (no partial write)", got)
	}
	if got := store.orders[second.OrderID].Status; got != models.OrderAccepted {
		t.Errorf("failed order status: got %s, want Accepted so it can be retried", got)
	}
	if got := notifier.count("buyer1", "notification.orderCompleted"); got != 1 {
		t.Errorf("completion notifications: got %d, want 1", got)
	}
}

func TestConcurrentCompletionsExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	store, _, svc := fixture()

	order, _ := svc.Place(ctx, "buyer1", "", "crop1", 4)
	_ = svc.UpdateStatus(ctx, "farmer1", order.OrderID, models.OrderAccepted)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Complete(ctx, "buyer1", order.OrderID)
		}()
	}
	wg.Wait()
	close(results)

	var successes, preconditions int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrPreconditionFailed):
			preconditions++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes: got %d, want exactly 1", successes)
	}
	if preconditions != attempts-1 {
		t.Errorf("precondition failures: got %d, want %d", preconditions, attempts-1)
	}
	if got := store.crops["crop1"].Quantity; got != 6 {
		t.Errorf("crop quantity reflects more than one decrement: %d", got)
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	_, _, svc := fixture()

	rejected, _ := svc.Place(ctx, "buyer1", "", "crop1", 2)
	_ = svc.UpdateStatus(ctx, "farmer1", rejected.OrderID, models.OrderRejected)
	if err := svc.UpdateStatus(ctx, "farmer1", rejected.OrderID, models.OrderAccepted); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("accepting a rejected order: got %v, want ErrPreconditionFailed", err)
	}

	accepted, _ := svc.Place(ctx, "buyer1", "", "crop1", 2)
	_ = svc.UpdateStatus(ctx, "farmer1", accepted.OrderID, models.OrderAccepted)
	if err := svc.UpdateStatus(ctx, "farmer1", accepted.OrderID, models.OrderRejected); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("rejecting an accepted order: got %v, want ErrPreconditionFailed", err)
	}

	if err := svc.Complete(ctx, "buyer1", rejected.OrderID); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("completing a rejected order: got %v, want ErrPreconditionFailed", err)
	}
}

func TestPlaceValidations(t *testing.T) {
	ctx := context.Background()
	store, _, svc := fixture()

	if _, err := svc.Place(ctx, "buyer1", "", "missing", 1); !errors.Is(err, ErrCropNotFound) {
		t.Errorf("missing crop: got %v, want ErrCropNotFound", err)
	}
	if _, err := svc.Place(ctx, "buyer1", "someone-else", "crop1", 1); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("wrong farmer: got %v, want ErrPreconditionFailed", err)
	}
	if _, err := svc.Place(ctx, "buyer1", "", "crop1", 0); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("zero quantity: got %v, want ErrPreconditionFailed", err)
	}
	if _, err := svc.Place(ctx, "buyer1", "", "crop1", 11); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("over stock at placement: got %v, want ErrInsufficientStock", err)
	}

	sold := store.crops["crop1"]
	sold.Status = models.CropSold
	sold.Quantity = 0
	store.crops["crop1"] = sold
	if _, err := svc.Place(ctx, "buyer1", "", "crop1", 1); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("sold crop: got %v, want ErrPreconditionFailed", err)
	}
}

func TestCompleteByStrangerForbidden(t *testing.T) {
	ctx := context.Background()
	_, _, svc := fixture()

	order, _ := svc.Place(ctx, "buyer1", "", "crop1", 2)
	_ = svc.UpdateStatus(ctx, "farmer1", order.OrderID, models.OrderAccepted)

	if err := svc.Complete(ctx, "intruder", order.OrderID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger completion: got %v, want ErrForbidden", err)
	}
}

func TestAcceptByWrongFarmerForbidden(t *testing.T) {
	ctx := context.Background()
	store, _, svc := fixture()
	store.users["farmer2"] = models.User{UserID: "farmer2", Name: "Chandio", Role: models.RoleFarmer}

	order, _ := svc.Place(ctx, "buyer1", "", "crop1", 2)
	if err := svc.UpdateStatus(ctx, "farmer2", order.OrderID, models.OrderAccepted); !errors.Is(err, ErrForbidden) {
		t.Errorf("wrong farmer accept: got %v, want ErrForbidden", err)
	}
}

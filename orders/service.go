package orders

import (
	"context"
	"errors"
	"time"

	"agrilink/models"
	"agrilink/utils"
)

var (
	// ErrPreconditionFailed means the order is not in the status the
	// operation requires (double completion, accepting a rejected order).
	ErrPreconditionFailed = errors.New("order is not in the required status")
	// ErrInsufficientStock means completion would drive the crop quantity
	// negative. The order stays Accepted so the farmer can restock and retry.
	ErrInsufficientStock = errors.New("not enough stock to complete the order")
	ErrOrderNotFound     = errors.New("order does not exist")
	ErrCropNotFound      = errors.New("crop does not exist")
	ErrForbidden         = errors.New("caller does not own this order")
)

// completeTimeout bounds the completion transaction; it moves money and
// inventory, so it must not hang on a dead connection.
const completeTimeout = 10 * time.Second

// Store is the slice of the document store the lifecycle needs. Reads and
// writes issued inside a WithTransaction callback must use the context the
// callback receives.
type Store interface {
	FindCropByID(ctx context.Context, cropID string) (*models.Crop, error)
	FindOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	FindUserByID(ctx context.Context, userID string) (*models.User, error)
	InsertOrder(ctx context.Context, o *models.Order) error
	UpdateOrderStatusCAS(ctx context.Context, orderID, farmerID string, from, to models.OrderStatus) (bool, error)
	SetOrderStatus(ctx context.Context, orderID string, to models.OrderStatus) error
	SetCropQuantity(ctx context.Context, cropID string, quantity int) error
	ListOrders(ctx context.Context, field, userID string) ([]models.Order, error)
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier emits best-effort notifications; it never returns an error to the
// caller.
type Notifier interface {
	Emit(ctx context.Context, recipientID, message string, params map[string]string, link string)
}

type Service struct {
	store    Store
	notifier Notifier
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Place creates a Pending order for quantity kilograms of the crop. The
// total price is computed from the crop's current unit price and stored on
// the order; later price edits never change it. Stock is not reserved here;
// it is checked and decremented only at completion.
func (s *Service) Place(ctx context.Context, buyerID, farmerID, cropID string, quantity int) (*models.Order, error) {
	if quantity <= 0 {
		return nil, ErrPreconditionFailed
	}

	crop, err := s.store.FindCropByID(ctx, cropID)
	if err != nil {
		return nil, ErrCropNotFound
	}
	if farmerID != "" && farmerID != crop.FarmerID {
		// The buyer acted on stale listing data.
		return nil, ErrPreconditionFailed
	}
	if crop.Status != models.CropAvailable {
		return nil, ErrPreconditionFailed
	}
	if quantity > crop.Quantity {
		return nil, ErrInsufficientStock
	}

	now := time.Now()
	order := &models.Order{
		OrderID:    utils.GetUUID(),
		BuyerID:    buyerID,
		FarmerID:   crop.FarmerID,
		CropID:     crop.CropID,
		CropName:   crop.Name,
		Quantity:   quantity,
		TotalPrice: float64(quantity) * crop.Price,
		Status:     models.OrderPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	buyerName := buyerID
	if buyer, err := s.store.FindUserByID(ctx, buyerID); err == nil {
		buyerName = buyer.Name
	}
	s.notifier.Emit(ctx, crop.FarmerID, "notification.newOrder",
		map[string]string{"cropName": crop.Name, "buyerName": buyerName}, "/orders")

	return order, nil
}

// UpdateStatus moves a Pending order to Accepted or Rejected on behalf of
// the farmer who owns the referenced crop. Any other transition fails.
func (s *Service) UpdateStatus(ctx context.Context, farmerID, orderID string, to models.OrderStatus) error {
	if to != models.OrderAccepted && to != models.OrderRejected {
		return ErrPreconditionFailed
	}

	ok, err := s.store.UpdateOrderStatusCAS(ctx, orderID, farmerID, models.OrderPending, to)
	if err != nil {
		return err
	}
	if !ok {
		// The guarded write matched nothing; figure out which way it failed.
		order, err := s.store.FindOrderByID(ctx, orderID)
		if err != nil {
			return ErrOrderNotFound
		}
		if order.FarmerID != farmerID {
			return ErrForbidden
		}
		return ErrPreconditionFailed
	}

	order, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil
	}
	key := "notification.orderAccepted"
	if to == models.OrderRejected {
		key = "notification.orderRejected"
	}
	s.notifier.Emit(ctx, order.BuyerID, key,
		map[string]string{"cropName": order.CropName}, "/orders")
	return nil
}

// Complete finishes an Accepted order and decrements the crop's stock in a
// single transaction. The order is re-read inside the transaction so that
// concurrent completion attempts resolve to exactly one winner; the losers
// see a status that is no longer Accepted and fail with
// ErrPreconditionFailed. Either every write commits or none do.
func (s *Service) Complete(ctx context.Context, callerID, orderID string) error {
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	var completed *models.Order
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		order, err := s.store.FindOrderByID(txCtx, orderID)
		if err != nil {
			return ErrOrderNotFound
		}
		if callerID != order.BuyerID && callerID != order.FarmerID {
			return ErrForbidden
		}
		if order.Status != models.OrderAccepted {
			return ErrPreconditionFailed
		}

		crop, err := s.store.FindCropByID(txCtx, order.CropID)
		if err != nil {
			return ErrCropNotFound
		}

		newQuantity := crop.Quantity - order.Quantity
		if newQuantity < 0 {
			return ErrInsufficientStock
		}

		if err := s.store.SetCropQuantity(txCtx, crop.CropID, newQuantity); err != nil {
			return err
		}
		if err := s.store.SetOrderStatus(txCtx, order.OrderID, models.OrderCompleted); err != nil {
			return err
		}
		completed = order
		return nil
	})
	if err != nil {
		return err
	}

	// Outside the atomic boundary: a crash here leaves the order completed
	// but the buyer un-notified, which is an accepted best-effort gap.
	s.notifier.Emit(ctx, completed.BuyerID, "notification.orderCompleted",
		map[string]string{"cropName": completed.CropName}, "/orders")
	return nil
}

// ListForUser returns the user's orders newest first, augmented with
// counterpart display names for list rendering.
func (s *Service) ListForUser(ctx context.Context, userID string, role models.UserRole) ([]models.AugmentedOrder, error) {
	field := "farmerId"
	if role == models.RoleBuyer {
		field = "buyerId"
	}

	orders, err := s.store.ListOrders(ctx, field, userID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	lookup := func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		name := id
		if u, err := s.store.FindUserByID(ctx, id); err == nil {
			name = u.Name
		}
		names[id] = name
		return name
	}

	augmented := make([]models.AugmentedOrder, 0, len(orders))
	for _, o := range orders {
		augmented = append(augmented, models.AugmentedOrder{
			Order:      o,
			BuyerName:  lookup(o.BuyerID),
			FarmerName: lookup(o.FarmerID),
		})
	}
	return augmented, nil
}

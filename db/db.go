package db

import (
	"context"
	"time"

	"agrilink/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store wraps the MongoDB client and the application's collections.
// It is constructed once in main and passed down to the handlers; nothing
// here is package-level state.
type Store struct {
	Client *mongo.Client

	Users         *mongo.Collection
	Crops         *mongo.Collection
	Orders        *mongo.Collection
	Chats         *mongo.Collection
	Messages      *mongo.Collection
	Notifications *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	d := client.Database(dbName)

	// One chat per participant pair, enforced by the database so two
	// first-contact requests racing each other cannot both insert.
	_, err = d.Collection("chats").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "participantsKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}

	return &Store{
		Client:        client,
		Users:         d.Collection("users"),
		Crops:         d.Collection("crops"),
		Orders:        d.Collection("orders"),
		Chats:         d.Collection("chats"),
		Messages:      d.Collection("messages"),
		Notifications: d.Collection("notifications"),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// WithTransaction runs fn inside a MongoDB transaction. The driver retries
// transient write conflicts itself; fn only sees the context it must pass
// to every read and write so they bind to the session.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// --- typed lookups used across packages ---

func (s *Store) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.Users.FindOne(ctx, bson.M{"userid": userID}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindCropByID(ctx context.Context, cropID string) (*models.Crop, error) {
	var c models.Crop
	if err := s.Crops.FindOne(ctx, bson.M{"cropid": cropID}).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) FindOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	var o models.Order
	if err := s.Orders.FindOne(ctx, bson.M{"orderid": orderID}).Decode(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := s.Orders.InsertOne(ctx, o)
	return err
}

// UpdateOrderStatusCAS flips an order from one status to another in a single
// guarded write. It reports false when no document matched, which means the
// order is missing, owned by someone else, or no longer in the from status.
func (s *Store) UpdateOrderStatusCAS(ctx context.Context, orderID, farmerID string, from, to models.OrderStatus) (bool, error) {
	res, err := s.Orders.UpdateOne(ctx,
		bson.M{"orderid": orderID, "farmerId": farmerID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) SetOrderStatus(ctx context.Context, orderID string, to models.OrderStatus) error {
	_, err := s.Orders.UpdateOne(ctx,
		bson.M{"orderid": orderID},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}},
	)
	return err
}

// SetCropQuantity writes the new quantity and reconciles the sold flag, the
// invariant being that a crop is sold exactly when its quantity is zero.
func (s *Store) SetCropQuantity(ctx context.Context, cropID string, quantity int) error {
	status := models.CropAvailable
	if quantity == 0 {
		status = models.CropSold
	}
	_, err := s.Crops.UpdateOne(ctx,
		bson.M{"cropid": cropID},
		bson.M{"$set": bson.M{"quantity": quantity, "status": status, "updatedAt": time.Now()}},
	)
	return err
}

func (s *Store) ListOrders(ctx context.Context, field, userID string) ([]models.Order, error) {
	cursor, err := s.Orders.Find(ctx, bson.M{field: userID},
		options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func IsNoDocuments(err error) bool {
	return err == mongo.ErrNoDocuments
}

package models

import "time"

type UserRole string

const (
	RoleFarmer UserRole = "farmer"
	RoleBuyer  UserRole = "buyer"
)

func (r UserRole) Valid() bool {
	return r == RoleFarmer || r == RoleBuyer
}

type CropCategory string

const (
	CategoryVegetables CropCategory = "vegetables"
	CategoryFruits     CropCategory = "fruits"
	CategoryGrains     CropCategory = "grains"
	CategorySpices     CropCategory = "spices"
)

func (c CropCategory) Valid() bool {
	switch c {
	case CategoryVegetables, CategoryFruits, CategoryGrains, CategorySpices:
		return true
	}
	return false
}

type CropStatus string

const (
	CropAvailable CropStatus = "available"
	CropSold      CropStatus = "sold"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderAccepted  OrderStatus = "Accepted"
	OrderCompleted OrderStatus = "Completed"
	OrderRejected  OrderStatus = "Rejected"
)

// CanTransition reports whether an order may move from s to next.
// Pending goes to Accepted or Rejected, Accepted goes to Completed,
// and Completed/Rejected are terminal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderAccepted || next == OrderRejected
	case OrderAccepted:
		return next == OrderCompleted
	}
	return false
}

type User struct {
	UserID            string    `json:"userid" bson:"userid"`
	Username          string    `json:"username" bson:"username"`
	Email             string    `json:"email" bson:"email"`
	Password          string    `json:"-" bson:"password"`
	Role              UserRole  `json:"role" bson:"role"`
	Name              string    `json:"name,omitempty" bson:"name,omitempty"`
	Location          string    `json:"location,omitempty" bson:"location,omitempty"`
	PreferredLanguage string    `json:"preferredLanguage,omitempty" bson:"preferredLanguage,omitempty"`
	Theme             string    `json:"theme,omitempty" bson:"theme,omitempty"`
	ProfileImage      string    `json:"profileImage,omitempty" bson:"profileImage,omitempty"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	LastLogin         time.Time `json:"last_login" bson:"last_login"`
	RefreshToken      string    `json:"-" bson:"refreshtoken,omitempty"`
	RefreshExpiry     time.Time `json:"-" bson:"refreshexp,omitempty"`
}

// Crop is a farmer's sellable inventory record. Quantity is kilograms
// and Price is per kilogram. Status is "sold" exactly when Quantity is 0.
type Crop struct {
	CropID      string       `json:"cropid" bson:"cropid"`
	FarmerID    string       `json:"farmerId" bson:"farmerId"`
	FarmerName  string       `json:"farmerName" bson:"farmerName"`
	Name        string       `json:"name" bson:"name"`
	Category    CropCategory `json:"category" bson:"category"`
	Quantity    int          `json:"quantity" bson:"quantity"`
	Price       float64      `json:"price" bson:"price"`
	ImageURL    string       `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	ThumbURL    string       `json:"thumbUrl,omitempty" bson:"thumbUrl,omitempty"`
	Location    string       `json:"location,omitempty" bson:"location,omitempty"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Status      CropStatus   `json:"status" bson:"status"`
	CreatedAt   time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// Order snapshots CropName and TotalPrice at placement time; later price
// edits on the crop never change a committed order.
type Order struct {
	OrderID    string      `json:"orderid" bson:"orderid"`
	BuyerID    string      `json:"buyerId" bson:"buyerId"`
	FarmerID   string      `json:"farmerId" bson:"farmerId"`
	CropID     string      `json:"cropId" bson:"cropId"`
	CropName   string      `json:"cropName" bson:"cropName"`
	Quantity   int         `json:"quantity" bson:"quantity"`
	TotalPrice float64     `json:"totalPrice" bson:"totalPrice"`
	Status     OrderStatus `json:"status" bson:"status"`
	CreatedAt  time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// AugmentedOrder carries counterpart display names for list views.
type AugmentedOrder struct {
	Order      `bson:",inline"`
	BuyerName  string `json:"buyerName,omitempty" bson:"buyerName,omitempty"`
	FarmerName string `json:"farmerName,omitempty" bson:"farmerName,omitempty"`
}

type MessagePreview struct {
	Text      string    `json:"text" bson:"text"`
	SenderID  string    `json:"senderId" bson:"senderId"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Chat is keyed by its sorted participant pair so a pair of users has at
// most one chat between them.
type Chat struct {
	ChatID       string   `json:"chatid" bson:"chatid"`
	Participants []string `json:"participants" bson:"participants"`
	// Canonical pair joined with "|"; carries the unique index that keeps
	// first-contact races from creating a second chat for the same pair.
	ParticipantsKey  string            `json:"-" bson:"participantsKey"`
	ParticipantNames map[string]string `json:"participantNames,omitempty" bson:"participantNames,omitempty"`
	LastMessage      *MessagePreview   `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	UpdatedAt        time.Time         `json:"updatedAt" bson:"updatedAt"`
}

type Message struct {
	MessageID string    `json:"messageid" bson:"messageid"`
	ChatID    string    `json:"chatId" bson:"chatId"`
	SenderID  string    `json:"senderId" bson:"senderId"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Notification is an unread-by-default record owned by one recipient.
// Message holds a localization key; Params feed its placeholders.
type Notification struct {
	NotificationID string            `json:"notificationid" bson:"notificationid"`
	UserID         string            `json:"userId" bson:"userId"`
	Message        string            `json:"message" bson:"message"`
	Params         map[string]string `json:"messageParams,omitempty" bson:"messageParams,omitempty"`
	Link           string            `json:"link" bson:"link"`
	IsRead         bool              `json:"isRead" bson:"isRead"`
	CreatedAt      time.Time         `json:"createdAt" bson:"createdAt"`
}

package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account that owns activities.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"` // Should be unique
	Email        string             `bson:"email" json:"email"`       // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"`    // Never expose this via JSON
	FirstName    string             `bson:"firstName,omitempty" json:"first_name,omitempty"`
	LastName     string             `bson:"lastName,omitempty" json:"last_name,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"date_joined"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"-"`
}

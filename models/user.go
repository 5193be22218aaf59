package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User holds the structure for the users collection in mongo. Debaters
// authenticate with email + password and act from a bearer token.
type User struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Username     string             `json:"username" bson:"username"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"passwordHash"`
	CreatedAt    primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

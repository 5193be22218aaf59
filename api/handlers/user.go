package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/parleyhq/debate-api/config"
	"github.com/parleyhq/debate-api/databases"
	"github.com/parleyhq/debate-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserCreateHandler registers a new debater
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Username == "" || len(req.Password) < 8 {
		config.ErrorStatus("username, email and a password of at least 8 characters are required",
			http.StatusBadRequest, w, fmt.Errorf("invalid registration payload"))
		return
	}

	existing, err := u.DB.FindByEmail(context.Background(), req.Email)
	if err != nil {
		config.ErrorStatus("failed to check for existing user", http.StatusInternalServerError, w, err)
		return
	}
	if existing != nil {
		config.ErrorStatus("email is already registered", http.StatusConflict, w,
			fmt.Errorf("duplicate email"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}
	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    primitive.NewDateTimeFromTime(time.Now()),
	}
	id, err := u.DB.Insert(context.Background(), user)
	if err != nil {
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}
	user.ID = id
	zap.S().Infow("user created", "userId", id.Hex())

	b, err := json.Marshal(user)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UserHandler returns a user by ID
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	user, err := u.DB.FindByID(context.Background(), uID)
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusInternalServerError, w, err)
		return
	}
	if user == nil {
		config.ErrorStatus("user not found", http.StatusNotFound, w, fmt.Errorf("no user %s", userID))
		return
	}
	b, err := json.Marshal(user)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

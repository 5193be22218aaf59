package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parleyhq/debate-api/api"
	"github.com/parleyhq/debate-api/api/handlers"
	"github.com/parleyhq/debate-api/databases"
	"github.com/parleyhq/debate-api/databases/mocks"
	"github.com/parleyhq/debate-api/debate"
	"github.com/parleyhq/debate-api/models"
)

func TestJob_JobHandlerInvalidID(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/job/zzzz", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"job_id": "zzzz"})
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	db = &MockDatabaseHelper{}

	jobDatabase := databases.NewJobDatabase(db)
	j := handlers.Job{
		DB: jobDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(j.JobHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "failed to get objectID from Hex", Error: "the provided hex string is not a valid ObjectID"}}
	b, _ := json.Marshal(expected)
	if rr.Body.String() != string(b) {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}
}

func TestJob_JobHandlerNotFound(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/job/608cafd695eb9dc05379b7f3", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"job_id": "608cafd695eb9dc05379b7f3"})
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var singleResultHelper databases.SingleResultHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	singleResultHelper = &mocks.SingleResultHelper{}

	singleResultHelper.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.(*MockDatabaseHelper).On("Collection", "jobs").Return(conn)

	jobDatabase := databases.NewJobDatabase(db)
	j := handlers.Job{
		DB: jobDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(j.JobHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusNotFound)
	}

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "job not found", Error: "no job 608cafd695eb9dc05379b7f3"}}
	b, _ := json.Marshal(expected)
	if rr.Body.String() != string(b) {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}
}

func TestJob_JobCancelHandlerAlreadyTerminal(t *testing.T) {
	jobID, _ := primitive.ObjectIDFromHex("608cafd695eb9dc05379b7f3")
	roomID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	req, err := http.NewRequest("POST", "/api/v1/job/608cafd695eb9dc05379b7f3/cancel", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"job_id": "608cafd695eb9dc05379b7f3"})
	req.Header.Set("Authorization", "Bearer abc123")
	req = api.WithAuthUserID(req, userID)

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var roomConn databases.CollectionHelper
	var singleResultHelper databases.SingleResultHelper
	var roomResult databases.SingleResultHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	roomConn = &mocks.CollectionHelper{}
	singleResultHelper = &mocks.SingleResultHelper{}
	roomResult = &mocks.SingleResultHelper{}

	singleResultHelper.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Job)
		arg.ID = jobID
		arg.RoomID = roomID
		arg.Type = models.JobTypeJury
		arg.Status = models.JobStatusSucceeded
	})
	roomResult.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Room)
		arg.ID = roomID
		arg.CreatorID = userID
	})
	conn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	conn.(*mocks.CollectionHelper).On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 0}, nil)
	roomConn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(roomResult)
	db.(*MockDatabaseHelper).On("Collection", "jobs").Return(conn)
	db.(*MockDatabaseHelper).On("Collection", "rooms").Return(roomConn)

	jobDatabase := databases.NewJobDatabase(db)
	j := handlers.Job{
		DB:     jobDatabase,
		RoomDB: databases.NewRoomDatabase(db),
		Queue:  debate.NewQueue(jobDatabase),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(j.JobCancelHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusConflict)
	}

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "job is already terminal", Error: "job 608cafd695eb9dc05379b7f3 is in status succeeded"}}
	b, _ := json.Marshal(expected)
	if rr.Body.String() != string(b) {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}
}

func TestJob_JobCancelHandlerSuccess(t *testing.T) {
	jobID, _ := primitive.ObjectIDFromHex("608cafd695eb9dc05379b7f3")
	roomID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	req, err := http.NewRequest("POST", "/api/v1/job/608cafd695eb9dc05379b7f3/cancel", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"job_id": "608cafd695eb9dc05379b7f3"})
	req.Header.Set("Authorization", "Bearer abc123")
	req = api.WithAuthUserID(req, userID)

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var roomConn databases.CollectionHelper
	var singleResultHelper databases.SingleResultHelper
	var roomResult databases.SingleResultHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	roomConn = &mocks.CollectionHelper{}
	singleResultHelper = &mocks.SingleResultHelper{}
	roomResult = &mocks.SingleResultHelper{}

	singleResultHelper.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Job)
		arg.ID = jobID
		arg.RoomID = roomID
		arg.Type = models.JobTypeDebate
		arg.Status = models.JobStatusQueued
	})
	roomResult.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Room)
		arg.ID = roomID
		arg.CreatorID = userID
	})
	conn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	conn.(*mocks.CollectionHelper).On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)
	roomConn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(roomResult)
	db.(*MockDatabaseHelper).On("Collection", "jobs").Return(conn)
	db.(*MockDatabaseHelper).On("Collection", "rooms").Return(roomConn)

	jobDatabase := databases.NewJobDatabase(db)
	j := handlers.Job{
		DB:     jobDatabase,
		RoomDB: databases.NewRoomDatabase(db),
		Queue:  debate.NewQueue(jobDatabase),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(j.JobCancelHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	testJob := models.Job{}
	_ = json.Unmarshal(rr.Body.Bytes(), &testJob)

	assert.Equal(t, jobID, testJob.ID)
	assert.Equal(t, models.JobStatusCancelled, testJob.Status)
}

func TestJob_JobCancelHandlerForbiddenForNonMember(t *testing.T) {
	jobID, _ := primitive.ObjectIDFromHex("608cafd695eb9dc05379b7f3")
	roomID := primitive.NewObjectID()

	req, err := http.NewRequest("POST", "/api/v1/job/608cafd695eb9dc05379b7f3/cancel", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"job_id": "608cafd695eb9dc05379b7f3"})
	req.Header.Set("Authorization", "Bearer abc123")
	req = api.WithAuthUserID(req, primitive.NewObjectID())

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var roomConn databases.CollectionHelper
	var singleResultHelper databases.SingleResultHelper
	var roomResult databases.SingleResultHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	roomConn = &mocks.CollectionHelper{}
	singleResultHelper = &mocks.SingleResultHelper{}
	roomResult = &mocks.SingleResultHelper{}

	singleResultHelper.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Job)
		arg.ID = jobID
		arg.RoomID = roomID
		arg.Type = models.JobTypeDebate
		arg.Status = models.JobStatusQueued
	})
	roomResult.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Room)
		arg.ID = roomID
		arg.CreatorID = primitive.NewObjectID()
	})
	conn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	roomConn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(roomResult)
	db.(*MockDatabaseHelper).On("Collection", "jobs").Return(conn)
	db.(*MockDatabaseHelper).On("Collection", "rooms").Return(roomConn)

	jobDatabase := databases.NewJobDatabase(db)
	j := handlers.Job{
		DB:     jobDatabase,
		RoomDB: databases.NewRoomDatabase(db),
		Queue:  debate.NewQueue(jobDatabase),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(j.JobCancelHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusForbidden)
	}

	assert.Contains(t, rr.Body.String(), "user is not a member of this room")
}

func TestJob_JobRetryHandlerNotFailed(t *testing.T) {
	jobID, _ := primitive.ObjectIDFromHex("608cafd695eb9dc05379b7f3")

	req, err := http.NewRequest("POST", "/api/v1/job/608cafd695eb9dc05379b7f3/retry", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"job_id": "608cafd695eb9dc05379b7f3"})
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var singleResultHelper databases.SingleResultHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	singleResultHelper = &mocks.SingleResultHelper{}

	singleResultHelper.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Job)
		arg.ID = jobID
		arg.Type = models.JobTypeJudge
		arg.Status = models.JobStatusRunning
	})
	conn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	conn.(*mocks.CollectionHelper).On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 0}, nil)
	db.(*MockDatabaseHelper).On("Collection", "jobs").Return(conn)

	jobDatabase := databases.NewJobDatabase(db)
	j := handlers.Job{
		DB: jobDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(j.JobRetryHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusConflict)
	}

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "only failed jobs can be retried", Error: "job 608cafd695eb9dc05379b7f3 is in status running"}}
	b, _ := json.Marshal(expected)
	if rr.Body.String() != string(b) {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}
}

func TestJob_JobsByRoomHandlerEmptyResponse(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/room/5fc51f36c72ff10004dca381/jobs", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"room_id": "5fc51f36c72ff10004dca381"})
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var cursorHelper databases.CursorHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	cursorHelper = &mocks.CursorHelper{}

	cursorHelper.(*mocks.CursorHelper).On("Decode", mock.Anything).Return(nil)
	conn.(*mocks.CollectionHelper).On("Find", mock.Anything, mock.Anything).Return(cursorHelper, nil)
	db.(*MockDatabaseHelper).On("Collection", "jobs").Return(conn)

	jobDatabase := databases.NewJobDatabase(db)
	j := handlers.Job{
		DB: jobDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(j.JobsByRoomHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	assert.Equal(t, "[]", rr.Body.String())
}

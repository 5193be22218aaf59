package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/api"
	"github.com/parleyhq/debate-api/api/scheduler"
	"github.com/parleyhq/debate-api/config"
	"github.com/parleyhq/debate-api/databases"
	"github.com/parleyhq/debate-api/debate"
	"github.com/parleyhq/debate-api/generative"
	"github.com/parleyhq/debate-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router     *mux.Router
	Config     config.Config
	dbHelper   databases.DatabaseHelper
	hub        *Hub
	queue      *debate.Queue
	machine    *debate.StateMachine
	dispatcher *debate.Dispatcher
	scheduler  *scheduler.Scheduler
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	room := Room{
		DB:      databases.NewRoomDatabase(a.dbHelper),
		ADB:     databases.NewArgumentDatabase(a.dbHelper),
		RebDB:   databases.NewRebuttalDatabase(a.dbHelper),
		RoundDB: databases.NewRoundDatabase(a.dbHelper),
		TDB:     databases.NewTurnDatabase(a.dbHelper),
		VDB:     databases.NewJuryVoteDatabase(a.dbHelper),
		DecDB:   databases.NewJudgeDecisionDatabase(a.dbHelper),
		JDB:     databases.NewJobDatabase(a.dbHelper),
		Machine: a.machine,
		Queue:   a.queue,
		Config:  a.Config,
	}
	argument := Argument{
		DB:      databases.NewArgumentDatabase(a.dbHelper),
		RebDB:   databases.NewRebuttalDatabase(a.dbHelper),
		Room:    room,
		Machine: a.machine,
		Queue:   a.queue,
	}
	job := Job{
		DB:         databases.NewJobDatabase(a.dbHelper),
		RoomDB:     databases.NewRoomDatabase(a.dbHelper),
		Queue:      a.queue,
		Dispatcher: a.dispatcher,
	}
	user := User{DB: databases.NewUserDatabase(a.dbHelper)}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(user.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(user.UserHandler))).Methods("GET")

	apiCreate.Handle("/room", api.Middleware(http.HandlerFunc(room.RoomCreateHandler))).Methods("POST")
	apiCreate.Handle("/room/join", api.Middleware(http.HandlerFunc(room.RoomJoinHandler))).Methods("POST")
	apiCreate.Handle("/room/{room_id}", api.Middleware(http.HandlerFunc(room.RoomHandler))).Methods("GET")
	apiCreate.Handle("/room/{room_id}/state", api.Middleware(http.HandlerFunc(room.RoomStateHandler))).Methods("GET")
	apiCreate.Handle("/room/{room_id}/motion", api.Middleware(http.HandlerFunc(room.MotionHandler))).Methods("PUT")
	apiCreate.Handle("/room/{room_id}/motion/agree", api.Middleware(http.HandlerFunc(room.MotionAgreeHandler))).Methods("POST")
	apiCreate.Handle("/room/{room_id}/cancel", api.Middleware(http.HandlerFunc(room.RoomCancelHandler))).Methods("POST")
	apiCreate.Handle("/room/{room_id}/argument", api.Middleware(http.HandlerFunc(argument.ArgumentCreateHandler))).Methods("POST")
	apiCreate.Handle("/room/{room_id}/rebuttal", api.Middleware(http.HandlerFunc(argument.RebuttalCreateHandler))).Methods("POST")
	apiCreate.Handle("/room/{room_id}/verdict", api.Middleware(http.HandlerFunc(room.VerdictHandler))).Methods("GET")
	apiCreate.Handle("/room/{room_id}/jobs", api.Middleware(http.HandlerFunc(job.JobsByRoomHandler))).Methods("GET")
	apiCreate.Handle("/room/{room_id}/live", http.HandlerFunc(a.hub.LiveHandler)).Methods("GET")

	// shareable verdict links are authenticated by the token itself
	apiCreate.Handle("/verdict/{token}", http.HandlerFunc(room.VerdictByTokenHandler)).Methods("GET")

	apiCreate.Handle("/job/{job_id}", api.Middleware(http.HandlerFunc(job.JobHandler))).Methods("GET")
	apiCreate.Handle("/job/{job_id}/cancel", api.Middleware(http.HandlerFunc(job.JobCancelHandler))).Methods("POST")
	apiCreate.Handle("/job/{job_id}/retry", api.Middleware(http.HandlerFunc(job.JobRetryHandler))).Methods("POST")
	apiCreate.Handle("/jobs/drain", api.DrainAuth(a.Config.DrainSecret, http.HandlerFunc(job.JobDrainHandler))).Methods("POST")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("debate-api has connected to the database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := databases.EnsureIndexes(ctx, a.dbHelper); err != nil {
		zap.S().With(err).Error("failed to ensure indexes")
		return err
	}

	gen, err := generative.NewAnthropicClient(&a.Config)
	if err != nil {
		zap.S().With(err).Error("failed to create generative client")
		return err
	}

	a.wireEngine(gen)

	// initialize api router
	a.initializeRoutes()

	a.scheduler = scheduler.NewScheduler(a.dispatcher, a.queue, databases.NewJobDatabase(a.dbHelper))
	a.scheduler.Start()
	return nil
}

// wireEngine builds the orchestration stack: state machine, queue,
// pipeline with its notifiers, and the dispatcher that drains it.
func (a *App) wireEngine(gen generative.Client) {
	rooms := databases.NewRoomDatabase(a.dbHelper)
	arguments := databases.NewArgumentDatabase(a.dbHelper)
	rebuttals := databases.NewRebuttalDatabase(a.dbHelper)
	rounds := databases.NewRoundDatabase(a.dbHelper)
	turns := databases.NewTurnDatabase(a.dbHelper)
	votes := databases.NewJuryVoteDatabase(a.dbHelper)
	decisions := databases.NewJudgeDecisionDatabase(a.dbHelper)
	jobs := databases.NewJobDatabase(a.dbHelper)

	a.hub = NewHub()
	a.machine = debate.NewStateMachine(rooms, arguments, rebuttals, rounds, turns, votes, decisions, a.Config.JurySize)
	a.queue = debate.NewQueue(jobs)

	mailer := scheduler.NewMailer(a.Config, databases.NewUserDatabase(a.dbHelper), rooms)
	pipeline := debate.NewPipeline(
		a.machine, a.queue, gen,
		rooms, arguments, rebuttals, rounds, turns, votes, decisions,
		a.Config.JurySize,
		a.hub, mailer,
	)
	a.dispatcher = debate.NewDispatcher(a.queue, pipeline)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Shutdown stops the background scheduler.
func (a *App) Shutdown() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}

package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/chat"
	"github.com/jhjj/staychat/internal/database"
	"github.com/jhjj/staychat/internal/handlers"
	ws "github.com/jhjj/staychat/internal/websocket"
	"github.com/jhjj/staychat/pkg/auth"
)

const defaultSweepInterval = 60 * time.Second

type Server struct {
	Router  *gin.Engine
	DB      *database.Database
	Redis   *redis.Client
	Hub     *ws.Hub
	Sweeper *database.Sweeper
	Logger  *zap.SugaredLogger

	httpSrv *http.Server
}

func NewServer(logger *zap.SugaredLogger) (*Server, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			logger.Info(".env not found, using environment variables")
		}
	}

	db, err := database.Connect(os.Getenv("DATABASE_URL"), logger)
	if err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	jwtMgr := auth.NewJWTManager(os.Getenv("JWT_SECRET"), 24*time.Hour)

	hub := ws.NewHub(logger)
	members := database.NewMembershipStore(rdb, logger)

	// Гейтить ли вход в групповую комнату по членству: по умолчанию
	// вход свободный, гейтится только отправка
	gateJoin, _ := strconv.ParseBool(os.Getenv("CHAT_GATE_JOIN"))

	svc := chat.NewService(db, members, db, hub, logger, chat.WithJoinGate(gateJoin))

	sweepInterval := defaultSweepInterval
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			sweepInterval = parsed
		} else {
			logger.Warnw("invalid SWEEP_INTERVAL, using default", "value", raw)
		}
	}
	sweeper := database.NewSweeper(db, sweepInterval, logger)

	roomH := handlers.NewRoomHandler(svc, logger)
	msgH := handlers.NewMessageHandler(svc, logger)
	eventH := handlers.NewChatEventHandler(svc, hub, logger)
	wsH := handlers.NewWebSocketHandler(hub, eventH)

	router := gin.Default()
	APIEndpoints(router, roomH, msgH, wsH, jwtMgr, rdb)

	return &Server{
		Router:  router,
		DB:      db,
		Redis:   rdb,
		Hub:     hub,
		Sweeper: sweeper,
		Logger:  logger,
	}, nil
}

// Run запускает hub, фоновую уборку и HTTP-сервер
func (s *Server) Run() error {
	go s.Hub.Run()
	go s.Sweeper.Run()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	s.httpSrv = &http.Server{
		Addr:    ":" + port,
		Handler: s.Router,
	}

	s.Logger.Infow("server starting", "port", port)
	return s.httpSrv.ListenAndServe()
}

// Shutdown останавливает сервер в обратном порядке запуска
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.Logger.Warnw("http shutdown", "error", err)
		}
	}

	s.Sweeper.Stop()
	s.Hub.Stop()

	if err := s.DB.Close(); err != nil {
		s.Logger.Warnw("db close", "error", err)
	}
	if err := s.Redis.Close(); err != nil {
		s.Logger.Warnw("redis close", "error", err)
	}
}

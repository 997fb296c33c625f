package main

import (
	"context"
	"fmt"

	"MChat/data/database/mgo/mongoutil"
	config "MChat/global/config"
	"MChat/logger"
	mid "MChat/middleware"
	chatmod "MChat/module/chat"
	"MChat/module/chat/message"
	"MChat/module/user"
	usersrv "MChat/module/user/service"
	"MChat/service/chat"
	mgoSrv "MChat/service/mgo"
	"MChat/service/storage"
	redissrv "MChat/service/storage/redis"
	"MChat/tools/ids"
	"MChat/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Global
	ids.SetNodeID(cfg.NodeID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1) Mongo: background connect, gate startup on first readiness
	mgoSrv.StartAsync(ctx, &mongoutil.Config{
		Uri:         cfg.MongoURI,
		Database:    cfg.MongoDB,
		Username:    cfg.MongoUser,
		Password:    cfg.MongoPass,
		MaxPoolSize: cfg.MongoPool,
		MaxRetry:    cfg.MongoRetry,
	})
	if err := mgoSrv.WaitReady(ctx, mgoSrv.Manager()); err != nil {
		logger.Errorf("[main] mongo not ready: %v", err)
		return
	}

	userStore := usersrv.NewStore()
	msgStore := message.NewStore()
	if err := userStore.EnsureIndexes(ctx); err != nil {
		logger.Warnf("[main] user indexes: %v", err)
	}
	if err := msgStore.EnsureIndexes(ctx); err != nil {
		logger.Warnf("[main] message indexes: %v", err)
	}

	// 2) Attachment store
	files, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		logger.Errorf("[main] upload dir: %v", err)
		return
	}

	// 3) Optional redis presence mirror
	var mirror chat.PresenceMirror
	if cfg.RedisAddr != "" {
		rc := redissrv.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		if err := redissrv.InitRedis(rc); err != nil {
			logger.Warnf("[main] redis unavailable, presence mirror off: %v", err)
		} else {
			mirror = storage.NewRedisPresenceMirror(fmt.Sprintf("node-%d", cfg.NodeID))
		}
	}

	// 4) Gateway core
	jwtOpts := security.Options{Secret: cfg.JwtSecret, Alg: "HS256", TTL: cfg.JwtTTL}
	connMgr := chat.NewConnManager(chat.ManagerConf{
		PingInterval: cfg.PingInterval,
		PongDeadline: cfg.PongDeadline,
		WriteWait:    cfg.WriteWait,
		SendQueue:    cfg.SendQueue,
	})
	defer connMgr.Close()
	gateway := chat.NewServer(connMgr, msgStore, files, mirror, jwtOpts)

	// 5) HTTP + WebSocket
	userHandler := user.NewHandler(userStore, jwtOpts)
	chatHandler := chatmod.NewHandler(msgStore)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mid.CORS(cfg.ClientURL))

	r.GET("/ws", gateway.HandleWS)
	mid.POST(r, "/register", userHandler.Register, mid.RouteOpt{})
	mid.POST(r, "/login", userHandler.Login, mid.RouteOpt{})
	mid.POST(r, "/logout", userHandler.Logout, mid.RouteOpt{})
	mid.GET(r, "/profile", userHandler.Profile, mid.RouteOpt{IsAuth: true, JWT: jwtOpts})
	mid.GET(r, "/people", userHandler.People, mid.RouteOpt{IsAuth: true, JWT: jwtOpts})
	mid.GET(r, "/messages/:userId", chatHandler.History, mid.RouteOpt{IsAuth: true, JWT: jwtOpts})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("[HTTP] listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Errorf("[main] http server: %v", err)
	}
}

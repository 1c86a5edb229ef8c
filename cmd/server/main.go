package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ThunderboltDev/Resound/internal/config"
	"github.com/ThunderboltDev/Resound/internal/conversation"
	"github.com/ThunderboltDev/Resound/internal/db"
	"github.com/ThunderboltDev/Resound/internal/httpapi"
	"github.com/ThunderboltDev/Resound/internal/models"
	"github.com/ThunderboltDev/Resound/internal/session"
	"github.com/ThunderboltDev/Resound/internal/store/rabbitmq"
	"github.com/ThunderboltDev/Resound/internal/store/redisstore"
	"github.com/ThunderboltDev/Resound/internal/thread"
)

func httpAddr() string {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		return v
	}
	return ":8080"
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	if err := gdb.AutoMigrate(
		&models.Organization{},
		&models.WidgetSettings{},
		&models.Operator{},
		&session.VisitorSession{},
		&thread.Thread{},
		&thread.Turn{},
		&conversation.Conversation{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	rds := redisstore.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rds.Ping(ctx); err != nil {
			log.Printf("redis unreachable, live updates degraded: %v", err)
		}
		cancel()
	}

	// event bus is best-effort: the server runs without notifications
	var bus conversation.EventPublisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unreachable, events disabled: %v", err)
	} else {
		defer pub.Close()
		bus = pub
	}

	r, err := httpapi.NewRouter(gdb, cfg, rds, bus)
	if err != nil {
		log.Fatalf("router: %v", err)
	}

	addr := httpAddr()
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

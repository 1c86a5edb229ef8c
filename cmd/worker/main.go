package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ThunderboltDev/Resound/internal/config"
	"github.com/ThunderboltDev/Resound/internal/db"
	"github.com/ThunderboltDev/Resound/internal/email"
	"github.com/ThunderboltDev/Resound/internal/events"
	"github.com/ThunderboltDev/Resound/internal/models"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	tenants := models.NewRepo(gdb)

	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// topology matches the publisher: main queue dead-letters to DLQ
	mainQ := cfg.RabbitQueue
	if _, err := ch.QueueDeclare(mainQ+".dlq", true, false, false, false, nil); err != nil {
		log.Fatalf("dlq declare: %v", err)
	}
	if _, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ + ".dlq",
	}); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(mainQ, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", mainQ, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var ev events.Event
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.ConversationID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleEvent(ctx, tenants, smtp, ev); err != nil {
					log.Printf("worker=%d event %s conversation=%s failed cost=%s err=%v",
						workerID, ev.Type, ev.ConversationID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed conversation=%s err=%v", workerID, ev.ConversationID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// handleEvent mails the organization's notification address. Only
// escalations notify; other event types are acked without action.
func handleEvent(ctx context.Context, tenants *models.Repo, smtp email.SMTPConfig, ev events.Event) error {
	if ev.Type != events.TypeEscalated {
		return nil
	}

	org, err := tenants.GetOrganization(ctx, ev.OrganizationID)
	if err != nil {
		return err
	}
	if org.NotifyTo == "" {
		log.Printf("organization %s has no notify address, skipping", org.ID)
		return nil
	}

	subject := fmt.Sprintf("[%s] Conversation escalated", org.Name)
	body := "Hello,\n\n" +
		"A conversation needs a human reply.\n\n" +
		"Conversation: " + ev.ConversationID + "\n" +
		"Escalated at: " + ev.At.Format(time.RFC3339) + "\n\n" +
		"Open the dashboard to respond.\n"
	return email.SendText(smtp, org.NotifyTo, subject, body)
}

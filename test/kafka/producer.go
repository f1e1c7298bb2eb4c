// этот код не зависит от приложения,
// и нужен только для ручной отправки команд корзины через кафку
//
//	go run ./test/kafka add 3
//	go run ./test/kafka remove 3
//	go run ./test/kafka clear
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/segmentio/kafka-go"
)

func main() {
	// конфигурация из config.yaml
	brokerAddress := "localhost:9092"
	topic := "cart-commands"

	if len(os.Args) < 2 {
		log.Fatal("usage: producer add|remove <id> | clear")
	}

	var message string
	switch os.Args[1] {
	case "add", "remove":
		if len(os.Args) < 3 {
			log.Fatalf("%s needs a product id", os.Args[1])
		}
		id, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("bad product id: %v", err)
		}
		if os.Args[1] == "add" {
			message = fmt.Sprintf(`{"op":"add","product":{"id":%d,"title":"Test product %d","price":9.99,"image":"https://fakestoreapi.com/img/%d.jpg"}}`, id, id, id)
		} else {
			message = fmt.Sprintf(`{"op":"remove","product_id":%d}`, id)
		}
	case "clear":
		message = `{"op":"clear"}`
	default:
		log.Fatalf("unknown command %q", os.Args[1])
	}

	// настройки писателя (producer-а)
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokerAddress),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	log.Println("Sending command to Kafka...")
	err := writer.WriteMessages(context.Background(),
		kafka.Message{
			Value: []byte(message),
		},
	)
	if err != nil {
		log.Fatalf("Failed to write message: %v", err)
	}
	fmt.Println("Command sent successfully!")
}

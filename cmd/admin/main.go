package main

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
)

// Ops CLI for support staff: inspect conversations, open an admin room with
// a user, and scan unread state straight from the store.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // No redis needed for the CLI

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "rooms":
		if len(os.Args) < 3 {
			usage()
		}
		rooms, err := storageSvc.ListRoomsForUser(os.Args[2])
		if err != nil {
			log.Fatalf("failed to list rooms: %v", err)
		}
		for _, room := range rooms {
			listing := "-"
			if room.ListingID != nil {
				listing = *room.ListingID
			}
			fmt.Printf("%s  %s <-> %s  listing=%s  last_seq=%d\n",
				room.ID, room.UserAID, room.UserBID, listing, room.LastMessageSeq)
		}

	case "history":
		if len(os.Args) < 3 {
			usage()
		}
		messages, err := storageSvc.ListMessages(os.Args[2], 0, config.MaxPageSize)
		if err != nil {
			log.Fatalf("failed to load history: %v", err)
		}
		for _, msg := range messages {
			read := " "
			if msg.Read {
				read = "r"
			}
			fmt.Printf("#%d [%s] %s: %s\n", msg.Seq, read, msg.SenderID, msg.Body)
		}

	case "unread":
		if len(os.Args) < 3 {
			usage()
		}
		roomIDs, err := storageSvc.UnreadRoomIDs(os.Args[2])
		if err != nil {
			log.Fatalf("failed to scan unread rooms: %v", err)
		}
		fmt.Printf("%d unread room(s)\n", len(roomIDs))
		for _, id := range roomIDs {
			fmt.Println(id)
		}

	case "open-room":
		// Admin conversations carry no listing.
		if len(os.Args) < 4 {
			usage()
		}
		adminID, userID := os.Args[2], os.Args[3]
		if adminID == userID {
			log.Fatal("cannot open a room between a user and themselves")
		}
		room, err := storageSvc.CreateRoomIfAbsent(
			models.NewRoom(uuid.New().String(), adminID, userID, nil))
		if err != nil {
			log.Fatalf("failed to open room: %v", err)
		}
		fmt.Printf("room %s (%s <-> %s)\n", room.ID, room.UserAID, room.UserBID)

	default:
		usage()
	}
}

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  rooms <user_id>              list a user's conversations")
	fmt.Println("  history <room_id>            print a room's message log")
	fmt.Println("  unread <user_id>             scan unread rooms from the store")
	fmt.Println("  open-room <admin_id> <user_id>  open an admin conversation")
	os.Exit(1)
}

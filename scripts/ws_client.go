// Package main runs a demo WebSocket client for the snapshot stream.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type snapshot struct {
	Minute int    `json:"minute"`
	Time   string `json:"time"`
	Trucks []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"trucks"`
	Routes []json.RawMessage `json:"routes"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Check the feed is up first
	resp, err := http.Get(fmt.Sprintf("http://localhost:%s/readyz", port))
	if err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("feed not ready: %s", resp.Status)
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/snapshot/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			if m.Type != "next" {
				log.Printf("WS <- %s", m.Type)
				continue
			}
			var s snapshot
			if err := json.Unmarshal(m.Payload, &s); err != nil {
				log.Printf("bad snapshot: %v", err)
				continue
			}
			busy := 0
			for _, t := range s.Trucks {
				if t.Status != "IDLE" && t.Status != "INACTIVE" {
					busy++
				}
			}
			log.Printf("%s  trucks busy %d/%d  routes %d", s.Time, busy, len(s.Trucks), len(s.Routes))
		}
	}()

	wait := 30 * time.Second
	if v := os.Getenv("WS_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			wait = d
		}
	}
	select {
	case <-time.After(wait):
		_ = c.WriteJSON(wsMessage{Type: "complete", ID: "1"})
	case <-done:
	}
}

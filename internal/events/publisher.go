package events

import (
    "time"

    "github.com/google/uuid"
)

// Topics.
const (
    TopicTrucks   = "trucks"
    TopicParts    = "parts"
    TopicPlans    = "plans"
    TopicSnapshot = "snapshot"
)

// Publisher stamps events with an id, the run and a wall-clock timestamp
// before handing them to the broker. A nil Publisher drops everything.
type Publisher struct {
    Broker EventBroker
    RunID  string
}

func NewPublisher(b EventBroker, runID string) *Publisher {
    return &Publisher{Broker: b, RunID: runID}
}

// Emit publishes an event of eventType on topic.
func (p *Publisher) Emit(topic, eventType string, minute int, data map[string]any) {
    if p == nil || p.Broker == nil {
        return
    }
    p.Broker.Publish(topic, Event{
        ID:     "evt_" + uuid.NewString(),
        Type:   eventType,
        RunID:  p.RunID,
        Minute: minute,
        TS:     time.Now().UTC().Format(time.RFC3339),
        Data:   data,
    })
}

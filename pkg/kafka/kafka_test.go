package kafka

import (
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
)

type payload struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func TestEncodeEventsKeepsKeysAndOrder(t *testing.T) {
	msgs, err := encodeEvents([]Event{
		{Key: "doc-1", Value: payload{ID: "doc-1", Count: 1}},
		{Key: "doc-2", Value: payload{ID: "doc-2", Count: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if string(msgs[0].Key) != "doc-1" || string(msgs[1].Key) != "doc-2" {
		t.Errorf("keys = %q, %q", msgs[0].Key, msgs[1].Key)
	}
	got, err := DecodeJSON[payload](msgs[1].Value)
	if err != nil {
		t.Fatal(err)
	}
	if got != (payload{ID: "doc-2", Count: 2}) {
		t.Errorf("decoded = %+v", got)
	}
}

func TestEncodeEventsRejectsUnmarshalable(t *testing.T) {
	_, err := encodeEvents([]Event{{Key: "bad", Value: make(chan int)}})
	if err == nil || !strings.Contains(err.Error(), `"bad"`) {
		t.Errorf("err = %v", err)
	}
}

func TestDecodeJSONError(t *testing.T) {
	if _, err := DecodeJSON[payload]([]byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestReplicasJoinSeparateGroups(t *testing.T) {
	cfg := config.KafkaConfig{Brokers: []string{"localhost:9092"}, ConsumerGroupPrefix: "searchd"}
	a := readerConfig(cfg, "document-changes")
	b := readerConfig(cfg, "document-changes")

	if a.GroupID == b.GroupID {
		t.Fatalf("two processes share group %q", a.GroupID)
	}
	for _, rc := range []kafka.ReaderConfig{a, b} {
		if !strings.HasPrefix(rc.GroupID, "searchd-") {
			t.Errorf("group %q lacks the configured prefix", rc.GroupID)
		}
		if rc.StartOffset != kafka.LastOffset {
			t.Errorf("default start offset = %d", rc.StartOffset)
		}
	}
	if id := ReplicaGroupID(""); !strings.HasPrefix(id, "searchcore-") {
		t.Errorf("empty prefix group = %q", id)
	}
}

func TestConsumerOptions(t *testing.T) {
	rc := readerConfig(config.KafkaConfig{ConsumerGroupPrefix: "searchd"}, "t", FromFirstOffset())
	if !strings.HasPrefix(rc.GroupID, "searchd-") || rc.StartOffset != kafka.FirstOffset {
		t.Errorf("group = %q, start = %d", rc.GroupID, rc.StartOffset)
	}
}

package mqtt

import "github.com/rs/zerolog"

// message is a serialized publish held for replay.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m message) lifecycle() bool {
	return m.topic == TopicSystem
}

// backlog holds messages published while the broker is unreachable, oldest
// first. When full it evicts the oldest workflow event, and only evicts a
// lifecycle message when nothing else is left. Callers synchronize.
type backlog struct {
	msgs    []message
	limit   int
	dropped int
	full    bool // an overflow was logged since the last take
	log     zerolog.Logger
}

func newBacklog(limit int, log zerolog.Logger) *backlog {
	return &backlog{
		msgs:  make([]message, 0, limit),
		limit: limit,
		log:   log,
	}
}

func (b *backlog) add(m message) {
	if len(b.msgs) < b.limit {
		b.msgs = append(b.msgs, m)
		return
	}

	victim := 0
	for i, old := range b.msgs {
		if !old.lifecycle() {
			victim = i
			break
		}
	}
	if !b.full {
		b.log.Warn().Int("limit", b.limit).Str("topic", b.msgs[victim].topic).Msg("mqtt backlog full, evicting")
		b.full = true
	}
	b.msgs = append(b.msgs[:victim], b.msgs[victim+1:]...)
	b.msgs = append(b.msgs, m)
	b.dropped++
}

// take empties the backlog and returns its messages in publish order.
func (b *backlog) take() []message {
	if len(b.msgs) == 0 {
		return nil
	}
	out := b.msgs
	b.msgs = make([]message, 0, b.limit)
	b.full = false
	return out
}

func (b *backlog) size() int {
	return len(b.msgs)
}

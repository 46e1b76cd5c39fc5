package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/coder/websocket"
)

// Room event types delivered by the transport.
const (
	EventTranscript        = "transcript"
	EventParticipantJoined = "participant-joined"
	EventParticipantLeft   = "participant-left"
	EventError             = "error"
)

// Event is one inbound room event: a transcribed utterance from the
// media pipeline or a participant lifecycle change.
type Event struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id,omitempty"`
	Text          string `json:"text,omitempty"`
	Final         bool   `json:"final,omitempty"`
	Message       string `json:"message,omitempty"`
}

// speakFrame is the outbound payload the room's speech synthesis reads.
type speakFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Transport is the bot's socket into the room: transcription and
// participant events in, spoken replies out. The audio pipeline itself
// (capture, VAD, STT, TTS) lives on the far side of this socket.
type Transport struct {
	conn   *websocket.Conn
	events chan Event
	cancel context.CancelFunc
}

// DialRoom connects to the room's event socket using the session token.
func DialRoom(ctx context.Context, roomURL, token, botName string) (*Transport, error) {
	u, err := url.Parse(roomURL)
	if err != nil {
		return nil, fmt.Errorf("parse room url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("t", token)
	q.Set("name", botName)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial room %s: %w", roomURL, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:   conn,
		events: make(chan Event, 16),
		cancel: cancel,
	}
	go t.readLoop(readCtx)
	return t, nil
}

// Events returns the inbound event stream. The channel closes when the
// socket does.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Speak sends one reply for synthesis into the room.
func (t *Transport) Speak(ctx context.Context, text string) error {
	payload, err := json.Marshal(speakFrame{Type: "speak", Text: text})
	if err != nil {
		return fmt.Errorf("encode speak frame: %w", err)
	}
	if err := t.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("write speak frame: %w", err)
	}
	return nil
}

// Close tears the socket down and drains the event stream.
func (t *Transport) Close() error {
	t.cancel()
	return t.conn.Close(websocket.StatusNormalClosure, "session ended")
}

func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.events)

	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Info("Room socket closed", "error", err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Debug("Dropping malformed room event", "error", err)
			continue
		}

		select {
		case t.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

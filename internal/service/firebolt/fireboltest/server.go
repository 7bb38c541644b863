// Package fireboltest runs an embedded NATS server answering SDK requests for tests.
package fireboltest

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/ttsclient/internal/service/firebolt"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Server is an embedded NATS server with responders on texttospeech.<method>.
// Speech ids are issued from 1 and start in_progress.
type Server struct {
	ns   *server.Server
	conn *nats.Conn
	sub  *nats.Subscription

	mu      sync.Mutex
	enabled bool
	voices  []string
	config  firebolt.Configuration
	nextID  uint32
	states  map[uint32]string
	calls   map[string]int
	failing map[string]bool
}

// NewServer starts the server on a random local port
func NewServer() (*Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within 5 seconds")
	}

	conn, err := nats.Connect(ns.ClientURL(), nats.Name("fireboltest"))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connect responder: %w", err)
	}

	s := &Server{
		ns:      ns,
		conn:    conn,
		enabled: true,
		voices:  []string{"Amber", "Angelica"},
		states:  make(map[uint32]string),
		calls:   make(map[string]int),
		failing: make(map[string]bool),
	}

	s.sub, err = conn.Subscribe(firebolt.SubjectPrefix+"*", s.handle)
	if err != nil {
		s.Shutdown()
		return nil, fmt.Errorf("subscribe responder: %w", err)
	}
	if err := conn.Flush(); err != nil {
		s.Shutdown()
		return nil, fmt.Errorf("flush responder: %w", err)
	}
	return s, nil
}

// URL returns the client URL for types.FireboltConfig
func (s *Server) URL() string {
	return s.ns.ClientURL()
}

// Shutdown stops responders and the server
func (s *Server) Shutdown() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}

// Calls returns how many times method was requested
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Fail makes method answer with a non-zero ttsstatus
func (s *Server) Fail(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[method] = true
}

// SetEnabled changes the reported enabled state
func (s *Server) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Emit publishes event with payload on texttospeech.<event>
func (s *Server) Emit(event string, payload interface{}) error {
	if speech, ok := payload.(map[string]uint32); ok {
		switch event {
		case "onspeechcomplete", "onspeechinterrupted", "onnetworkerror", "onplaybackerror":
			s.mu.Lock()
			delete(s.states, speech["speechid"])
			s.mu.Unlock()
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.conn.Publish(firebolt.SubjectPrefix+event, data); err != nil {
		return err
	}
	return s.conn.Flush()
}

func (s *Server) handle(msg *nats.Msg) {
	method := strings.TrimPrefix(msg.Subject, firebolt.SubjectPrefix)
	if strings.HasPrefix(method, "on") {
		return
	}

	var params struct {
		SpeechID uint32 `json:"speechid"`
	}
	if len(msg.Data) > 0 {
		_ = json.Unmarshal(msg.Data, &params)
	}

	s.mu.Lock()
	s.calls[method]++
	result := map[string]interface{}{"ttsstatus": 0}
	if s.failing[method] {
		result["ttsstatus"] = 1
	} else {
		s.apply(method, msg.Data, params.SpeechID, result)
	}
	s.mu.Unlock()

	data, _ := json.Marshal(result)
	_ = msg.Respond(data)
}

func (s *Server) apply(method string, data []byte, speechID uint32, result map[string]interface{}) {
	switch method {
	case "isttsenabled":
		result["isenabled"] = s.enabled
	case "listvoices":
		result["voices"] = s.voices
	case "setttsconfiguration":
		_ = json.Unmarshal(data, &s.config)
	case "getttsconfiguration":
		raw, _ := json.Marshal(s.config)
		_ = json.Unmarshal(raw, &result)
	case "speak":
		s.nextID++
		s.states[s.nextID] = "in_progress"
		result["speechid"] = s.nextID
	case "pause":
		if _, ok := s.states[speechID]; ok {
			s.states[speechID] = "paused"
		}
	case "resume":
		if _, ok := s.states[speechID]; ok {
			s.states[speechID] = "in_progress"
		}
	case "cancel":
		delete(s.states, speechID)
	case "getspeechstate":
		state, ok := s.states[speechID]
		if !ok {
			state = "not_found"
		}
		result["speechstate"] = state
	default:
		result["ttsstatus"] = 2
	}
}

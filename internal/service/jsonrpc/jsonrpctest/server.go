// Package jsonrpctest provides an in-process JSON-RPC text to speech service for tests.
package jsonrpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/dooshek/ttsclient/internal/service/jsonrpc"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) write(v interface{}) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.WriteJSON(v)
}

// Server answers <callsign>.<method> requests from memory.
// Speech ids are issued from 1 and start in the in-progress state.
type Server struct {
	*httptest.Server

	callsign string

	mu         sync.Mutex
	enabled    bool
	voices     []string
	config     jsonrpc.Configuration
	nextID     uint32
	states     map[uint32]int
	calls      map[string]int
	failing    map[string]bool
	registered map[string]string
	peers      []*peer
}

// NewServer starts a server for callsign
func NewServer(callsign string) *Server {
	s := &Server{
		callsign:   callsign,
		enabled:    true,
		voices:     []string{"Amber", "Angelica"},
		states:     make(map[uint32]int),
		calls:      make(map[string]int),
		failing:    make(map[string]bool),
		registered: make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Endpoint returns host:port for types.JSONRPCConfig
func (s *Server) Endpoint() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Close drops open sockets and stops the server
func (s *Server) Close() {
	s.Disconnect()
	s.Server.Close()
}

// Disconnect drops open sockets; new connections are still accepted
func (s *Server) Disconnect() {
	s.mu.Lock()
	peers := s.peers
	s.peers = nil
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
}

// Calls returns how many times method was invoked
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Fail makes method answer with success=false
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

// Registered returns the id event is registered under, or ""
func (s *Server) Registered(event string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered[event]
}

// Emit sends event to every connected client that registered for it
func (s *Server) Emit(event string, params interface{}) {
	s.mu.Lock()
	id, ok := s.registered[event]
	peers := append([]*peer(nil), s.peers...)
	if speech, isSpeech := params.(map[string]uint32); isSpeech {
		switch event {
		case "onspeechcomplete", "onspeechinterrupted", "onnetworkerror", "onplaybackerror":
			delete(s.states, speech["speechid"])
		}
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, p := range peers {
		p.write(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  id + "." + event,
			"params":  params,
		})
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn}

	s.mu.Lock()
	s.peers = append(s.peers, p)
	s.mu.Unlock()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		p.write(s.handle(req))
	}
}

func (s *Server) handle(req request) map[string]interface{} {
	reply := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}

	method, ok := strings.CutPrefix(req.Method, s.callsign+".")
	if !ok {
		reply["error"] = map[string]interface{}{"code": -32601, "message": "unknown callsign"}
		return reply
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++

	if s.failing[method] {
		reply["result"] = map[string]interface{}{"success": false}
		return reply
	}

	var params struct {
		Event     string `json:"event"`
		ID        string `json:"id"`
		EnableTTS bool   `json:"enabletts"`
		SpeechID  uint32 `json:"speechid"`
	}
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}

	result := map[string]interface{}{"success": true}
	switch method {
	case "register":
		s.registered[params.Event] = params.ID
		reply["result"] = 0
		return reply
	case "unregister":
		delete(s.registered, params.Event)
		reply["result"] = 0
		return reply
	case "enabletts":
		s.enabled = params.EnableTTS
	case "isttsenabled":
		result["isenabled"] = s.enabled
	case "listvoices":
		result["voices"] = s.voices
	case "setttsconfiguration":
		_ = json.Unmarshal(req.Params, &s.config)
	case "getttsconfiguration":
		raw, _ := json.Marshal(s.config)
		_ = json.Unmarshal(raw, &result)
	case "speak":
		s.nextID++
		s.states[s.nextID] = 1
		result["speechid"] = s.nextID
	case "pause":
		if _, ok := s.states[params.SpeechID]; ok {
			s.states[params.SpeechID] = 2
		}
	case "resume":
		if _, ok := s.states[params.SpeechID]; ok {
			s.states[params.SpeechID] = 1
		}
	case "cancel":
		delete(s.states, params.SpeechID)
	case "getspeechstate":
		state, ok := s.states[params.SpeechID]
		if !ok {
			state = 3
		}
		result["speechstate"] = state
	case "acquireresource", "claimresource", "releaseresource":
	default:
		reply["error"] = map[string]interface{}{"code": -32601, "message": "unknown method " + method}
		return reply
	}

	reply["result"] = result
	return reply
}

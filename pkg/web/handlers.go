package web

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-talk/pkg/hub"
)

// handleStatus returns the current status document
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleStatusWS sends the current status, then every broadcast
func (s *Server) handleStatusWS(c *websocket.Conn) {
	initial, err := json.Marshal(s.status())
	if err != nil {
		s.logger.Warn("encode status", "error", err)
		initial = nil
	}
	hub.NewClient(s.statusHub, c, initial).Run()
}

// handleListen answers a WebRTC offer with a connection that receives the
// conversation audio.
func (s *Server) handleListen(c *fiber.Ctx) error {
	if s.track == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "webrtc listening is not enabled",
		})
	}

	var offer webrtc.SessionDescription
	if err := c.BodyParser(&offer); err != nil || offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expected an SDP offer",
		})
	}

	answer, err := s.answer(offer)
	if err != nil {
		s.logger.Warn("webrtc negotiation failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(answer)
}

func (s *Server) answer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*webrtc.SessionDescription, error) {
		_ = pc.Close()
		return nil, err
	}

	sender, err := pc.AddTrack(s.track)
	if err != nil {
		return fail(err)
	}
	// Drain RTCP so interceptors keep running.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Debug("listener state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			s.removePeer(pc)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(err)
	}
	<-gathered

	s.peersMu.Lock()
	s.peers[pc] = struct{}{}
	s.peersMu.Unlock()

	return pc.LocalDescription(), nil
}

func (s *Server) removePeer(pc *webrtc.PeerConnection) {
	s.peersMu.Lock()
	_, ok := s.peers[pc]
	delete(s.peers, pc)
	s.peersMu.Unlock()
	if ok {
		_ = pc.Close()
	}
}

func (s *Server) closePeers() {
	s.peersMu.Lock()
	peers := s.peers
	s.peers = make(map[*webrtc.PeerConnection]struct{})
	s.peersMu.Unlock()

	for pc := range peers {
		_ = pc.Close()
	}
}

// Listeners returns the number of WebRTC listeners.
func (s *Server) Listeners() int {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()
	return len(s.peers)
}

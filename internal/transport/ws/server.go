package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"terrainsynth.ai/internal/protocol"
	"terrainsynth.ai/internal/synth/io/tilecodec"
	"terrainsynth.ai/internal/synth/tile"
	"terrainsynth.ai/internal/synth/tiler"
	"terrainsynth.ai/internal/synth/worldgen"
)

// TileObserver sees every tile the server streams, e.g. for the generation
// log. It is called from request goroutines and must be safe for concurrent use.
type TileObserver interface {
	ObserveTile(sessionID, reqID string, t tiler.Tile)
}

type Options struct {
	// Workers per request; 0 means runtime.NumCPU().
	Workers int
	// MaxPending bounds queued requests per connection.
	MaxPending int
	// ReadTimeout drops a client that neither sends nor answers pings;
	// 0 means 60s.
	ReadTimeout time.Duration
	Observer    TileObserver
}

type Server struct {
	world *worldgen.World
	log   *log.Logger
	opts  Options

	welcome  protocol.WelcomeMsg
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *worldgen.World, logger *log.Logger, opts Options) *Server {
	if opts.MaxPending <= 0 {
		opts.MaxPending = 4
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	return &Server{
		world: w,
		log:   logger,
		opts:  opts,
		welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			WorldParams:     WorldParams(w),
			Catalogs:        w.Catalogs.Digests(),
			TuningDigest:    w.Tuning.Digest(),
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type frame struct {
	binary bool
	data   []byte
}

// request is a validated TILES request resolved against the layout.
type request struct {
	id       string
	coords   []tiler.Coord
	mode     tile.Mode
	heights  bool
	compress bool
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid := fmt.Sprintf("S%d", s.nextID.Add(1))
		welcome := s.welcome
		welcome.SessionID = sid
		if err := writeJSON(conn, welcome); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		out := make(chan frame, 64)

		// Pongs keep a silent client alive while its requests stream.
		readTimeout := s.opts.ReadTimeout
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			ping := time.NewTicker(readTimeout / 2)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-ping.C:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						cancel()
						writeErr <- err
						return
					}
				case f := <-out:
					typ := websocket.TextMessage
					if f.binary {
						typ = websocket.BinaryMessage
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(typ, f.data); err != nil {
						cancel()
						writeErr <- err
						return
					}
				}
			}
		}()

		// Requests run one at a time, in arrival order.
		reqs := make(chan request, s.opts.MaxPending)
		served := make(chan struct{})
		go func() {
			defer close(served)
			for req := range reqs {
				s.serve(ctx, sid, req, out)
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			req, code, err := s.parseRequest(msg)
			if err != nil {
				s.sendError(ctx, out, req.id, code, err.Error())
				continue
			}
			select {
			case reqs <- req:
			default:
				s.sendError(ctx, out, req.id, protocol.ErrBadRequest, "too many pending requests")
			}
		}

		cancel()
		close(reqs)
		<-served
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) parseRequest(msg []byte) (request, string, error) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return request{}, protocol.ErrProtoBadRequest, fmt.Errorf("bad json: %w", err)
	}
	if base.Type != protocol.TypeTiles {
		return request{}, protocol.ErrProtoBadRequest, fmt.Errorf("unexpected message type %q", base.Type)
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		return request{}, protocol.ErrProtoBadRequest, fmt.Errorf("unsupported protocol_version %q", base.ProtocolVersion)
	}
	m, err := protocol.DecodeTilesReq(msg)
	if err != nil {
		// Echo req_id when the document carries one.
		var id struct {
			ReqID string `json:"req_id"`
		}
		_ = json.Unmarshal(msg, &id)
		return request{id: id.ReqID}, protocol.ErrBadRequest, err
	}
	req := request{id: m.ReqID, heights: m.IncludeHeight, compress: m.Compress}
	if req.mode, err = tile.ParseMode(m.Mode); err != nil {
		return req, protocol.ErrBadRequest, err
	}

	layout := s.world.Layout
	if m.Rect != nil {
		req.coords, err = layout.Rect(m.Rect[0], m.Rect[1], m.Rect[2], m.Rect[3])
		if err != nil {
			if errors.Is(err, tiler.ErrOutOfBounds) {
				return req, protocol.ErrOutOfBounds, err
			}
			return req, protocol.ErrBadRequest, err
		}
		return req, "", nil
	}
	for _, xz := range m.Tiles {
		c := tiler.Coord{X: xz[0], Z: xz[1]}
		if !layout.Contains(c) {
			return req, protocol.ErrOutOfBounds, fmt.Errorf("tile %s outside %dx%d world", c, layout.WidthInTiles, layout.DepthInTiles)
		}
		req.coords = append(req.coords, c)
	}
	return req, "", nil
}

func (s *Server) serve(ctx context.Context, sid string, req request, out chan<- frame) {
	start := time.Now()
	n := 0
	err := tiler.Run(ctx, s.world.Job(req.coords, s.opts.Workers), func(t tiler.Tile) error {
		f, err := encodeTile(req, t)
		if err != nil {
			return err
		}
		if s.opts.Observer != nil {
			s.opts.Observer.ObserveTile(sid, req.id, t)
		}
		if err := send(ctx, out, f); err != nil {
			return err
		}
		n++
		return nil
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if s.log != nil {
			s.log.Printf("session %s req %s: %v", sid, req.id, err)
		}
		s.sendError(ctx, out, req.id, protocol.ErrInternal, err.Error())
		return
	}
	b, _ := json.Marshal(protocol.DoneMsg{
		Type:      protocol.TypeDone,
		ReqID:     req.id,
		Tiles:     n,
		ElapsedMS: time.Since(start).Milliseconds(),
	})
	_ = send(ctx, out, frame{data: b})
}

// TileMessage renders t for the wire.
func TileMessage(reqID string, mode tile.Mode, includeHeight bool, t tiler.Tile) protocol.TileMsg {
	r := t.Result
	msg := protocol.TileMsg{
		Type:        protocol.TypeTile,
		ReqID:       reqID,
		X:           t.Coord.X,
		Z:           t.Coord.Z,
		Width:       r.Width,
		Depth:       r.Depth,
		Mode:        string(mode),
		Colors:      tilecodec.PackColors(r.Colors(mode)),
		BiomeCounts: r.BiomeCounts(),
		WaterCells:  r.WaterCells(),
		Digest:      r.Digest(),
	}
	delete(msg.BiomeCounts, "")
	if includeHeight {
		msg.Heights = tilecodec.PackHeights(r.HeightMap.Values)
	}
	return msg
}

func encodeTile(req request, t tiler.Tile) (frame, error) {
	msg := TileMessage(req.id, req.mode, req.heights, t)
	if req.compress {
		b, err := tilecodec.Marshal(msg)
		return frame{binary: true, data: b}, err
	}
	b, err := json.Marshal(msg)
	return frame{data: b}, err
}

func (s *Server) sendError(ctx context.Context, out chan<- frame, reqID, code, message string) {
	b, _ := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, ReqID: reqID, Code: code, Message: message})
	_ = send(ctx, out, frame{data: b})
}

func send(ctx context.Context, out chan<- frame, f frame) error {
	select {
	case out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
